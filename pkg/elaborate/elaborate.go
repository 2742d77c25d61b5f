// Package elaborate flattens a hierarchical circuit.Library into a single
// flat global address space of nets and devices, following each
// subcircuit instance down from a named top circuit. It also detects
// structurally-identical sibling instances (same master, same actual net
// tuple) and collapses them into one canonical instance so propagation
// and checking only visit a parallel group once.
package elaborate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/donn/cvc/pkg/circuit"
)

// InstanceID, NetID, and DeviceID index into Database.Instances, the
// global net space, and the global device space respectively. All three
// are dense, zero-based, and contiguous: InstanceID 0 is always the top
// instance.
type InstanceID int32
type NetID int32
type DeviceID int32

// Instance is one elaborated use of a circuit.Def: the top circuit, or a
// subcircuit instance reached by following circuit.Instance references
// down from it.
//
// FirstNetID and FirstDeviceID are only meaningful on a canonical
// (non-parallel) instance: a parallel instance contributes no nets or
// devices of its own to the global space. LocalToGlobalNetID is always
// valid, but a parallel instance's is the same slice as its canonical
// twin's (borrowed, not its own) rather than freshly allocated — it
// shares that twin's net identity entirely, ports and internal nets
// alike, so descending further into a collapsed subtree still resolves
// correctly. Use Database.DeviceAt and Database.GlobalNet rather than
// reading these fields directly.
type Instance struct {
	Master     *circuit.Def
	ParentID   InstanceID // -1 for the top instance
	Name       string     // instance name as given by the parent, "" for top

	FirstNetID    NetID
	FirstDeviceID DeviceID

	// LocalToGlobalNetID maps Master's local circuit.NetID to a global
	// NetID. Index 0..PortCount-1 are the actual nets supplied by the
	// parent; the rest are this instance's own internal nets.
	LocalToGlobalNetID []NetID

	// ParallelInstanceID is -1 for a canonical instance (including every
	// instance with no sibling twin), or the InstanceID of the twin this
	// instance was collapsed into.
	ParallelInstanceID InstanceID

	// ParallelInstanceCount is only valid on a canonical instance: how
	// many instances (itself included) were collapsed into it.
	ParallelInstanceCount int
}

// IsParallel reports whether inst was collapsed into a canonical twin.
func (inst *Instance) IsParallel() bool { return inst.ParallelInstanceID >= 0 }

// Database is the result of elaborating one top circuit: the flattened
// instance tree plus the parent-instance lookup for every global net and
// device id.
type Database struct {
	Lib       *circuit.Library
	PortLimit int // circuit.Instance net counts above this are never parallel-matched

	NetCount    NetID
	DeviceCount DeviceID

	// NetParent[n] / DeviceParent[n] is the owning instance for global
	// net/device id n. Monotonic by construction: id k+1 belongs to the
	// same instance as k or to an instance visited after it in the
	// elaboration's depth-first walk.
	NetParent    []InstanceID
	DeviceParent []InstanceID

	Instances []*Instance
}

// Elaborate flattens topName out of lib into a Database. portLimit caps
// how many actual-parameter nets an instance may have and still be
// considered for parallel-instance collapsing (spec.md §4.5); with 0,
// only instances that have no nets at all can still be collapsed.
func Elaborate(lib *circuit.Library, topName string, portLimit int) (*Database, error) {
	top := lib.Find(topName)
	if top == nil {
		return nil, &UnresolvedSubcircuitError{Instance: "<top>", Master: topName}
	}

	db := &Database{Lib: lib, PortLimit: portLimit}

	topInst := &Instance{
		Master:             top,
		ParentID:           -1,
		ParallelInstanceID: -1,
		ParallelInstanceCount: 1,
	}
	topInst.LocalToGlobalNetID = make([]NetID, top.NetCount())
	for i := range topInst.LocalToGlobalNetID {
		topInst.LocalToGlobalNetID[i] = NetID(i)
	}
	db.Instances = append(db.Instances, topInst)
	db.NetCount = NetID(top.NetCount())
	db.DeviceCount = DeviceID(len(top.Devices))
	db.NetParent = make([]InstanceID, db.NetCount)
	db.DeviceParent = make([]InstanceID, db.DeviceCount)
	db.recordDeviceModels(topInst)

	siblings := make(map[InstanceID]map[string]InstanceID)
	for i := range top.Instances {
		if _, err := db.elaborateChild(&top.Instances[i], 0, topInst, false, i, siblings); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// elaborateChild elaborates one circuit.Instance declaration. childIndex
// is decl's position within its own parent's circuit.Instances list: when
// forceParallel cascades from a collapsed ancestor, childIndex is what
// lets canonicalChild find the structurally-corresponding instance under
// the canonical ancestor, since every duplicate of a subcircuit walks the
// exact same master.Instances slice in the same order.
func (db *Database) elaborateChild(decl *circuit.Instance, parentID InstanceID, parent *Instance, forceParallel bool, childIndex int, siblings map[InstanceID]map[string]InstanceID) (InstanceID, error) {
	master := db.Lib.Find(decl.MasterName)
	if master == nil {
		return 0, &UnresolvedSubcircuitError{Instance: decl.Name, Master: decl.MasterName}
	}
	if len(decl.Nets) != master.PortCount {
		return 0, &PortCountMismatchError{Instance: decl.Name, Got: len(decl.Nets), Want: master.PortCount}
	}

	id := InstanceID(len(db.Instances))
	inst := &Instance{Master: master, ParentID: parentID, Name: decl.Name, ParallelInstanceID: -1}
	db.Instances = append(db.Instances, inst)

	// parent may itself be a parallel instance (forceParallel cascading
	// down from a collapsed ancestor), in which case its own
	// LocalToGlobalNetID is the slice borrowed from its canonical twin
	// rather than one populated directly — resolve to that canonical
	// instance before indexing; both give the same mapping.
	netParent := parent
	if canonicalParentID := canonicalOf(db, parentID); canonicalParentID != parentID {
		netParent = db.Instances[canonicalParentID]
	}

	actualNets := make([]NetID, len(decl.Nets))
	for i, localNet := range decl.Nets {
		actualNets[i] = netParent.LocalToGlobalNetID[localNet]
	}

	isParallel := forceParallel
	if !isParallel && len(decl.Nets) <= db.PortLimit {
		byParent, ok := siblings[parentID]
		if !ok {
			byParent = make(map[string]InstanceID)
			siblings[parentID] = byParent
		}
		key := parallelKey(decl.MasterName, actualNets)
		if twinID, found := byParent[key]; found {
			isParallel = true
			canonical := canonicalOf(db, twinID)
			inst.ParallelInstanceID = canonical
			db.Instances[canonical].ParallelInstanceCount++
		} else {
			byParent[key] = id
			inst.ParallelInstanceCount = 1
		}
	} else if !isParallel {
		inst.ParallelInstanceCount = 1
	}

	if !isParallel {
		inst.FirstNetID = db.NetCount
		inst.FirstDeviceID = db.DeviceCount

		inst.LocalToGlobalNetID = make([]NetID, master.NetCount())
		copy(inst.LocalToGlobalNetID, actualNets)
		internalCount := master.NetCount() - master.PortCount
		for i := 0; i < internalCount; i++ {
			inst.LocalToGlobalNetID[master.PortCount+i] = db.NetCount + NetID(i)
		}

		db.NetCount += NetID(internalCount)
		db.DeviceCount += DeviceID(len(master.Devices))
		for NetID(len(db.NetParent)) < db.NetCount {
			db.NetParent = append(db.NetParent, id)
		}
		for DeviceID(len(db.DeviceParent)) < db.DeviceCount {
			db.DeviceParent = append(db.DeviceParent, id)
		}
		db.recordDeviceModels(inst)
	} else {
		// A forceParallel cascade (decl's parent was itself collapsed,
		// rather than decl having a direct sibling twin of its own) never
		// ran the sibling-match lookup above, so ParallelInstanceID is
		// still unset: resolve it to the instance at the same childIndex
		// under the canonical ancestor, the way a direct twin match would
		// have. Electrically this instance is the very same occurrence as
		// that one, so its net map is borrowed wholesale rather than
		// recomputed — borrowing (not reallocating) internal nets is what
		// keeps a collapsed subtree from double-counting its own nodes.
		if inst.ParallelInstanceID < 0 {
			canonicalParentID := canonicalOf(db, parentID)
			inst.ParallelInstanceID = canonicalOf(db, db.canonicalChild(canonicalParentID, childIndex))
			db.Instances[inst.ParallelInstanceID].ParallelInstanceCount++
		}
		inst.LocalToGlobalNetID = db.Instances[inst.ParallelInstanceID].LocalToGlobalNetID
	}

	for i := range master.Instances {
		if _, err := db.elaborateChild(&master.Instances[i], id, inst, isParallel, i, siblings); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// canonicalChild returns the childIndex-th instance created with
// ParentID == canonicalParentID, in the same creation order used by
// elaborateChild's own loop over master.Instances. Every duplicate of a
// subcircuit walks an identical master.Instances slice in the same
// index order, so this is well-defined regardless of how deep a
// forceParallel cascade runs.
func (db *Database) canonicalChild(canonicalParentID InstanceID, childIndex int) InstanceID {
	count := 0
	for id, inst := range db.Instances {
		if inst.ParentID == canonicalParentID {
			if count == childIndex {
				return InstanceID(id)
			}
			count++
		}
	}
	return -1
}

// recordDeviceModels appends inst's global device ids to each device's
// model, giving every model a dense list of the devices that use it
// without needing a back-pointer on circuit.Device.
func (db *Database) recordDeviceModels(inst *Instance) {
	for i := range inst.Master.Devices {
		dev := &inst.Master.Devices[i]
		if dev.Model != nil {
			dev.Model.DeviceIDs = append(dev.Model.DeviceIDs, int(inst.FirstDeviceID)+i)
		}
	}
}

func canonicalOf(db *Database, id InstanceID) InstanceID {
	for db.Instances[id].ParallelInstanceID >= 0 {
		id = db.Instances[id].ParallelInstanceID
	}
	return id
}

func parallelKey(master string, actualNets []NetID) string {
	sorted := append([]NetID(nil), actualNets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var b strings.Builder
	b.WriteString(master)
	for _, n := range sorted {
		fmt.Fprintf(&b, ",%d", n)
	}
	return b.String()
}

// DeviceAt resolves a global device id back to its owning instance and
// the circuit.Device within that instance's master.
func (db *Database) DeviceAt(id DeviceID) (*Instance, *circuit.Device) {
	instID := db.DeviceParent[id]
	inst := db.Instances[instID]
	local := int(id - inst.FirstDeviceID)
	return inst, &inst.Master.Devices[local]
}

// NetAt resolves a global net id back to its owning instance.
func (db *Database) NetAt(id NetID) *Instance {
	return db.Instances[db.NetParent[id]]
}

// GlobalNet resolves local net localNet of instance instID to a global
// NetID. It errors on a parallel instance: only the canonical twin's
// mapping is authoritative, so callers that need a parallel instance's
// nets (the interactive shell navigating into one to inspect, not set,
// state) should use CanonicalGlobalNet instead.
func (db *Database) GlobalNet(instID InstanceID, localNet circuit.NetID) (NetID, error) {
	inst := db.Instances[instID]
	if inst.IsParallel() {
		return 0, ErrParallelInstanceMutation
	}
	return inst.LocalToGlobalNetID[localNet], nil
}

// CanonicalGlobalNet resolves local net localNet of instance instID to a
// global NetID, following the parallel-instance chain to the canonical
// twin when necessary. Safe for read-only navigation; never for setting
// net state, since the instance's own hierarchy path is not preserved by
// the canonical twin's mapping.
func (db *Database) CanonicalGlobalNet(instID InstanceID, localNet circuit.NetID) NetID {
	inst := db.Instances[canonicalOf(db, instID)]
	return inst.LocalToGlobalNetID[localNet]
}

// InstancePath returns the hierarchy path to id, delimiter-joined from
// the top instance down, e.g. "X1/X3". The top instance's path is "".
func (db *Database) InstancePath(id InstanceID, delimiter string) string {
	var segments []string
	for cur := id; db.Instances[cur].ParentID >= 0; cur = db.Instances[cur].ParentID {
		segments = append(segments, db.Instances[cur].Name)
	}
	// segments was built leaf-to-root; reverse it in place.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	path := ""
	for i, s := range segments {
		if i > 0 {
			path += delimiter
		}
		path += s
	}
	return path
}

// NetName returns net n's fully-qualified hierarchical name: the
// instance path of the instance that first allocated it, joined to its
// local leaf name within that instance's master circuit. Every global
// net id was allocated by exactly one (canonical) instance (the
// elaboration-closure invariant of spec.md §8), so this is well-defined
// without a reverse name index.
func (db *Database) NetName(n NetID, delimiter string) string {
	owner := db.Instances[db.NetParent[n]]
	var localIndex int
	if owner.ParentID == -1 {
		// The top instance's LocalToGlobalNetID is the identity map over
		// its whole net range (ports included), unlike every other
		// instance, whose FirstNetID only marks the start of its own
		// internal-net slice.
		localIndex = int(n)
	} else {
		localIndex = int(n-owner.FirstNetID) + owner.Master.PortCount
	}
	leaf := owner.Master.NetNames[localIndex]
	path := db.InstancePath(db.NetParent[n], delimiter)
	if path == "" {
		return leaf
	}
	return path + delimiter + leaf
}
