// Package vnet implements the virtual-net maps of spec.md §4.3: for each
// of the five propagation kinds (min, max, sim, minLeak, maxLeak), a
// per-net {nextNet, resistance, finalNet} record describing the
// committed path from that net back to its driving supply.
package vnet

import "github.com/donn/cvc/pkg/elaborate"

// Kind selects one of the five independent virtual-net maps.
type Kind int

const (
	Min Kind = iota
	Max
	Sim
	MinLeak
	MaxLeak
	numKinds
)

// UnknownVoltage is the sentinel for "not yet assigned", mirroring
// model.UnknownVoltage but scoped to the propagation engine's own
// voltage-labels.
const UnknownVoltage = int32(-1 << 30)

// entry is the {nextNetId, resistance, finalNetId} triplet for one net
// under one kind. gen pins the cached final to the map generation it was
// computed under: any TryImprove bumps the generation, so a stale cache
// (one computed through an edge that has since been superseded) is never
// read back as valid, even though invalidation isn't otherwise
// propagated to every net whose path happened to cross the changed edge.
type entry struct {
	hasNext    bool
	next       elaborate.NetID
	resistance float64

	final elaborate.NetID
	gen   int
}

// Maps holds the five virtual-net maps plus the min/sim/max voltage
// labels for every global net, all sized once from an elaborate.Database.
type Maps struct {
	entries    [numKinds][]entry
	generation [numKinds]int

	minVoltage []int32
	simVoltage []int32
	maxVoltage []int32

	// minLeakVoltage/maxLeakVoltage are kept independent of minVoltage/
	// maxVoltage: the leak passes propagate through every conducting
	// device, MOS included regardless of gate state, which is strictly
	// more permissive than the designed-connectivity min/max and must
	// never feed back into them.
	minLeakVoltage []int32
	maxLeakVoltage []int32

	// simKnown distinguishes "assigned exactly 0" from "never assigned":
	// int32 alone can't, since 0V is a legitimate committed level.
	simKnown []bool
}

// New allocates Maps sized to db's global net count, with every voltage
// label set to UnknownVoltage.
func New(db *elaborate.Database) *Maps {
	n := int(db.NetCount)
	m := &Maps{
		minVoltage:     make([]int32, n),
		simVoltage:     make([]int32, n),
		maxVoltage:     make([]int32, n),
		minLeakVoltage: make([]int32, n),
		maxLeakVoltage: make([]int32, n),
		simKnown:       make([]bool, n),
	}
	for k := Kind(0); k < numKinds; k++ {
		m.entries[k] = make([]entry, n)
		// Start past 0 so a zero-valued entry never reads as a valid cache.
		m.generation[k] = 1
	}
	for i := range m.minVoltage {
		m.minVoltage[i] = UnknownVoltage
		m.simVoltage[i] = UnknownVoltage
		m.maxVoltage[i] = UnknownVoltage
		m.minLeakVoltage[i] = UnknownVoltage
		m.maxLeakVoltage[i] = UnknownVoltage
	}
	return m
}

func (m *Maps) MinVoltage(n elaborate.NetID) int32     { return m.minVoltage[n] }
func (m *Maps) MaxVoltage(n elaborate.NetID) int32     { return m.maxVoltage[n] }
func (m *Maps) SimVoltage(n elaborate.NetID) int32     { return m.simVoltage[n] }
func (m *Maps) MinLeakVoltage(n elaborate.NetID) int32 { return m.minLeakVoltage[n] }
func (m *Maps) MaxLeakVoltage(n elaborate.NetID) int32 { return m.maxLeakVoltage[n] }
func (m *Maps) HasSimVoltage(n elaborate.NetID) bool   { return m.simKnown[n] }

func (m *Maps) SetMinVoltage(n elaborate.NetID, v int32)     { m.minVoltage[n] = v }
func (m *Maps) SetMaxVoltage(n elaborate.NetID, v int32)     { m.maxVoltage[n] = v }
func (m *Maps) SetMinLeakVoltage(n elaborate.NetID, v int32) { m.minLeakVoltage[n] = v }
func (m *Maps) SetMaxLeakVoltage(n elaborate.NetID, v int32) { m.maxLeakVoltage[n] = v }
func (m *Maps) SetSimVoltage(n elaborate.NetID, v int32) {
	m.simVoltage[n] = v
	m.simKnown[n] = true
}

// TryImprove installs the edge (from -> to, edgeResistance) under kind if
// the improves predicate accepts it. improves(hasCurrent) is told only
// whether from already has an edge; the caller folds its own comparison
// into it: the min and min-leak passes want "lower wins", max/max-leak
// want "higher wins", sim wants "first wins" (any assignment beats none,
// no second assignment is ever attempted for a net with a known sim
// voltage).
//
// Returns whether the edge was installed. On install, from's finalNetId
// cache is invalidated (lazily recomputed by FinalNet).
func (m *Maps) TryImprove(kind Kind, from, to elaborate.NetID, edgeResistance float64, improves func(hasCurrent bool) bool) bool {
	e := &m.entries[kind][from]
	if !improves(e.hasNext) {
		return false
	}
	e.hasNext = true
	e.next = to
	e.resistance = edgeResistance
	m.generation[kind]++
	return true
}

// NextNet reports the installed next hop for n under kind, if any.
func (m *Maps) NextNet(kind Kind, n elaborate.NetID) (elaborate.NetID, bool) {
	e := &m.entries[kind][n]
	return e.next, e.hasNext
}

// Resistance returns the accumulated edge resistance to n's final driver
// under kind. Calling FinalNet first ensures the cache is warm.
func (m *Maps) Resistance(kind Kind, n elaborate.NetID) float64 {
	total := 0.0
	cur := n
	seen := make(map[elaborate.NetID]bool)
	for {
		e := &m.entries[kind][cur]
		if !e.hasNext || seen[cur] {
			return total
		}
		seen[cur] = true
		total += e.resistance
		cur = e.next
	}
}

// FinalNet follows nextNetId from n under kind to the terminal driver
// net, with path compression: every visited net's finalNetId cache is
// updated to point straight at the result. Acyclic by construction
// (spec.md §8 Virtual-net acyclicity): TryImprove only ever installs an
// edge that strictly improves a bound in a finite lattice, so no cycle
// can form.
func (m *Maps) FinalNet(kind Kind, n elaborate.NetID) elaborate.NetID {
	entries := m.entries[kind]
	gen := m.generation[kind]

	if entries[n].gen == gen {
		return entries[n].final
	}
	if !entries[n].hasNext {
		entries[n].final = n
		entries[n].gen = gen
		return n
	}

	var path []elaborate.NetID
	cur := n
	for {
		e := &entries[cur]
		if e.gen == gen {
			break
		}
		if !e.hasNext {
			e.final = cur
			e.gen = gen
			break
		}
		path = append(path, cur)
		cur = e.next
	}
	final := entries[cur].final
	for _, p := range path {
		entries[p].final = final
		entries[p].gen = gen
	}
	return final
}
