// Package circuit holds parsed, not-yet-elaborated subcircuit definitions:
// ports, local nets, the device list, and the child subcircuit-instance
// list. Definitions are immutable once the netlist parser finishes
// building them.
package circuit

import (
	"fmt"
	"sort"

	"github.com/donn/cvc/pkg/model"
)

// NetID is a local net id, scoped to one Def. Ports occupy
// [0, PortCount); internal nets occupy [PortCount, len(NetNames)).
type NetID int32

// Device is a single transistor, diode, resistor, capacitor, fuse, or
// switch instance belonging to one Def.
type Device struct {
	Name     string
	Model    *model.Model
	ModelKey string // raw model/key text before resolution
	Param    string // raw parameter string, e.g. "l=0.18u w=1u"
	Nets     []NetID
}

// Instance is a use of a child circuit at a specific place in this
// definition: a target circuit name, a local instance name, and the
// ordered actual-parameter net list.
type Instance struct {
	Name       string
	MasterName string
	Nets       []NetID
}

// Def is a named subcircuit definition. Invariant: instance names are
// unique within a Def, and PortCount never changes once sealed.
type Def struct {
	Name      string
	PortCount int
	NetNames  []string // ports precede internal nets; index is NetID
	netIndex  map[string]NetID

	Devices   []Device
	Instances []Instance

	sealed bool
}

// NewDef returns an empty Def named name.
func NewDef(name string) *Def {
	return &Def{Name: name, netIndex: make(map[string]NetID)}
}

// AddPorts seals the port list. It must be called before any device or
// instance is added, and at most once.
func (d *Def) AddPorts(names []string) error {
	if d.sealed {
		return fmt.Errorf("circuit %s: ports already sealed", d.Name)
	}
	for _, n := range names {
		if _, exists := d.netIndex[n]; exists {
			return fmt.Errorf("circuit %s: duplicate port name %s", d.Name, n)
		}
		id := NetID(len(d.NetNames))
		d.NetNames = append(d.NetNames, n)
		d.netIndex[n] = id
	}
	d.PortCount = len(names)
	d.sealed = true
	return nil
}

// InternalNetID returns the NetID for name, allocating a fresh internal net
// if name hasn't been seen in this Def before.
func (d *Def) InternalNetID(name string) NetID {
	if id, ok := d.netIndex[name]; ok {
		return id
	}
	id := NetID(len(d.NetNames))
	d.NetNames = append(d.NetNames, name)
	d.netIndex[name] = id
	return id
}

// NetCount returns the total number of local nets (ports + internals).
func (d *Def) NetCount() int { return len(d.NetNames) }

// AddDevice appends a device whose Nets are already resolved to local
// NetIDs via InternalNetID. Fails mirroring the original's
// EDuplicateInstance if name collides with an existing device or instance.
func (d *Def) AddDevice(dev Device) error {
	if d.hasName(dev.Name) {
		return &DuplicateInstanceError{Circuit: d.Name, Name: dev.Name}
	}
	d.Devices = append(d.Devices, dev)
	return nil
}

// AddInstance appends a subcircuit instance. Port-count validation against
// the master happens later, in the elaborator, since the master may not be
// loaded yet.
func (d *Def) AddInstance(inst Instance) error {
	if d.hasName(inst.Name) {
		return &DuplicateInstanceError{Circuit: d.Name, Name: inst.Name}
	}
	d.Instances = append(d.Instances, inst)
	return nil
}

func (d *Def) hasName(name string) bool {
	for _, dev := range d.Devices {
		if dev.Name == name {
			return true
		}
	}
	for _, inst := range d.Instances {
		if inst.Name == name {
			return true
		}
	}
	return false
}

// DuplicateInstanceError is returned when a device or subcircuit instance
// name collides with one already present in the same Def.
type DuplicateInstanceError struct {
	Circuit, Name string
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("duplicate instance %s in %s", e.Name, e.Circuit)
}

// Library is the full set of parsed circuit definitions, keyed by name.
type Library struct {
	defs map[string]*Def
}

func NewLibrary() *Library {
	return &Library{defs: make(map[string]*Def)}
}

// Add registers def, replacing any prior definition of the same name (the
// netlist parser's last-definition-wins convention).
func (l *Library) Add(def *Def) {
	l.defs[def.Name] = def
}

// Find returns the named Def, or nil if it hasn't been parsed.
func (l *Library) Find(name string) *Def {
	return l.defs[name]
}

// Each visits every definition in name order, for the shell's
// subcircuit search and listing commands.
func (l *Library) Each(fn func(name string, def *Def)) {
	names := make([]string, 0, len(l.defs))
	for n := range l.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fn(n, l.defs[n])
	}
}

// Len reports how many definitions the library holds.
func (l *Library) Len() int { return len(l.defs) }
