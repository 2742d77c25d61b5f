// Package power holds user declarations of supply, input, and expected
// voltages, along with aliases, macros, and relation (family) groups
// parsed from the power-intent file described in spec.md §6.
package power

import (
	"path"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind is a bitset of the declaration's roles.
type Kind uint32

const (
	Power Kind = 1 << iota
	Input
	HiZ
	Reference
	ResistorKind
	MinCalculated
	SimCalculated
	MaxCalculated
	InternalOverride
	Expected
)

func (k Kind) Has(bit Kind) bool { return k&bit != 0 }

// Value is either a literal voltage (millivolts) or a symbolic reference to
// another declaration's expression, resolved once macros are expanded.
type Value struct {
	Literal    bool
	Millivolts int32
	Symbol     string // e.g. "VDD-300", unresolved reference expression
}

// ExpectedTriplet names the operator's expected min/sim/max voltages for a
// net, any of which may be absent ("open").
type ExpectedTriplet struct {
	HasMin, HasSim, HasMax bool
	Min, Sim, Max          Value
}

// Declaration is a single line of the power file (after macro expansion).
type Declaration struct {
	Pattern  string
	FamilyID int
	Kind     Kind

	HasMin, HasSim, HasMax bool
	Min, Sim, Max          Value

	Expected ExpectedTriplet
	Alias    string
}

// Matches reports whether netName satisfies this declaration's glob
// pattern (the power file's netPattern column supports '*'/'?' globs).
func (d *Declaration) Matches(netName string) bool {
	ok, err := path.Match(d.Pattern, netName)
	return err == nil && ok
}

// Spec is the full set of declarations plus the family-relation index
// built over them.
type Spec struct {
	Declarations []*Declaration

	families map[int]mapset.Set[int] // familyID -> set of declaration indices sharing it
}

// NewSpec returns an empty Spec.
func NewSpec() *Spec {
	return &Spec{families: make(map[int]mapset.Set[int])}
}

// Add appends decl and indexes it under its family.
func (s *Spec) Add(decl *Declaration) {
	idx := len(s.Declarations)
	s.Declarations = append(s.Declarations, decl)
	set, ok := s.families[decl.FamilyID]
	if !ok {
		set = mapset.NewThreadUnsafeSet[int]()
		s.families[decl.FamilyID] = set
	}
	set.Add(idx)
}

// FindForNet returns the first declaration whose pattern matches netName,
// or nil. Declarations are checked in the order they were added, mirroring
// the original's first-match-wins power-file semantics.
func (s *Spec) FindForNet(netName string) *Declaration {
	for _, d := range s.Declarations {
		if d.Matches(netName) {
			return d
		}
	}
	return nil
}

// AreRelatives reports whether declarations a and b (by index into
// Declarations) share a family id — the predicate that drives
// "unrelated power" checker suppression in spec.md §4.6.
func (s *Spec) AreRelatives(a, b int) bool {
	if a < 0 || b < 0 || a >= len(s.Declarations) || b >= len(s.Declarations) {
		return false
	}
	return s.Declarations[a].FamilyID == s.Declarations[b].FamilyID
}

// IndexOf returns the index of decl within s.Declarations, or -1.
func (s *Spec) IndexOf(decl *Declaration) int {
	for i, d := range s.Declarations {
		if d == decl {
			return i
		}
	}
	return -1
}
