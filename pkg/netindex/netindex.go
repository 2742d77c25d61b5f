// Package netindex builds the post-elaboration connectivity index: the
// resistor/capacitor-short union-find over global nets, and each net's
// gate/source/drain/bulk fan-out lists.
package netindex

import "github.com/donn/cvc/pkg/elaborate"

// Terminal position convention for a device's Nets slice, following the
// SPICE M/D/R/C/F/S card order the netlist parser produces.
const (
	TermDrain  = 0
	TermGate   = 1
	TermSource = 2
	TermBulk   = 3

	TermAnode   = 0
	TermCathode = 1

	TermA = 0
	TermB = 1
)

// Index is read-only once Build returns; spec.md §4.2 guarantees no
// query-time failure modes.
type Index struct {
	db *elaborate.Database

	parent []elaborate.NetID // union-find over global net ids
	rank   []int

	gate, source, drain, bulk map[elaborate.NetID][]elaborate.DeviceID
}

// Build walks every canonical device twice: once to union resistor/
// capacitor-short endpoints, once to attach gate/source/drain/bulk
// membership to the resulting representative nets.
func Build(db *elaborate.Database) *Index {
	idx := &Index{
		db:     db,
		parent: make([]elaborate.NetID, db.NetCount),
		rank:   make([]int, db.NetCount),
		gate:   make(map[elaborate.NetID][]elaborate.DeviceID),
		source: make(map[elaborate.NetID][]elaborate.DeviceID),
		drain:  make(map[elaborate.NetID][]elaborate.DeviceID),
		bulk:   make(map[elaborate.NetID][]elaborate.DeviceID),
	}
	for i := range idx.parent {
		idx.parent[i] = elaborate.NetID(i)
	}

	for id := elaborate.DeviceID(0); id < db.DeviceCount; id++ {
		inst, dev := db.DeviceAt(id)
		if dev.Model == nil || !dev.Model.IsShort() {
			continue
		}
		if len(dev.Nets) < 2 {
			continue
		}
		a := inst.LocalToGlobalNetID[dev.Nets[TermA]]
		b := inst.LocalToGlobalNetID[dev.Nets[TermB]]
		idx.union(a, b)
	}

	for id := elaborate.DeviceID(0); id < db.DeviceCount; id++ {
		inst, dev := db.DeviceAt(id)
		if dev.Model == nil || dev.Model.IsShort() {
			continue
		}
		global := func(local int) elaborate.NetID {
			return idx.EquivalentNet(inst.LocalToGlobalNetID[dev.Nets[local]])
		}
		switch {
		case dev.Model.Type.IsMos():
			if len(dev.Nets) < 4 {
				continue
			}
			idx.drain[global(TermDrain)] = append(idx.drain[global(TermDrain)], id)
			idx.gate[global(TermGate)] = append(idx.gate[global(TermGate)], id)
			idx.source[global(TermSource)] = append(idx.source[global(TermSource)], id)
			idx.bulk[global(TermBulk)] = append(idx.bulk[global(TermBulk)], id)
		default:
			if len(dev.Nets) < 2 {
				continue
			}
			// Non-MOS two-terminal devices (diode, unshort resistor,
			// capacitor, open fuse, switch) contribute to source/drain
			// fan-out only, so checkers can still find their endpoints
			// by walking a net's connected-device population.
			idx.source[global(TermA)] = append(idx.source[global(TermA)], id)
			idx.drain[global(TermB)] = append(idx.drain[global(TermB)], id)
		}
	}

	return idx
}

func (idx *Index) find(n elaborate.NetID) elaborate.NetID {
	for idx.parent[n] != n {
		idx.parent[n] = idx.parent[idx.parent[n]]
		n = idx.parent[n]
	}
	return n
}

func (idx *Index) union(a, b elaborate.NetID) {
	ra, rb := idx.find(a), idx.find(b)
	if ra == rb {
		return
	}
	switch {
	case idx.rank[ra] < idx.rank[rb]:
		idx.parent[ra] = rb
	case idx.rank[ra] > idx.rank[rb]:
		idx.parent[rb] = ra
	default:
		idx.parent[rb] = ra
		idx.rank[ra]++
	}
}

// EquivalentNet returns the representative of n's resistor-short group.
// Idempotent: EquivalentNet(EquivalentNet(n)) == EquivalentNet(n).
func (idx *Index) EquivalentNet(n elaborate.NetID) elaborate.NetID { return idx.find(n) }

func (idx *Index) GateCount(n elaborate.NetID) int   { return len(idx.gate[idx.find(n)]) }
func (idx *Index) SourceCount(n elaborate.NetID) int { return len(idx.source[idx.find(n)]) }
func (idx *Index) DrainCount(n elaborate.NetID) int  { return len(idx.drain[idx.find(n)]) }
func (idx *Index) BulkCount(n elaborate.NetID) int   { return len(idx.bulk[idx.find(n)]) }

// Gates, Sources, Drains, and Bulks return the devices attached to the
// representative of n at each terminal role, replacing the original's
// firstGate/nextGate linked-list walk with a dense slice.
func (idx *Index) Gates(n elaborate.NetID) []elaborate.DeviceID   { return idx.gate[idx.find(n)] }
func (idx *Index) Sources(n elaborate.NetID) []elaborate.DeviceID { return idx.source[idx.find(n)] }
func (idx *Index) Drains(n elaborate.NetID) []elaborate.DeviceID  { return idx.drain[idx.find(n)] }
func (idx *Index) Bulks(n elaborate.NetID) []elaborate.DeviceID   { return idx.bulk[idx.find(n)] }
