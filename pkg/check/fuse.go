package check

import (
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkFusePath implements spec.md §4.6's fuse-path row: an intact fuse
// (FuseOn) whose terminals disagree on sim voltage indicates a fuse that
// reads as blown anyway; a blown fuse (FuseOff) whose terminals still
// agree indicates one that never opened. Grounded on PrintFuseError
// (_examples/original_source/src/CCvcDb_error.cc line 35), simplified to a
// direct sim-voltage-agreement check rather than the original's resistance
// path walk.
func (c *Checker) checkFusePath() {
	c.models.All(func(_ string, m *model.Model) {
		if m.Type != model.FuseOn && m.Type != model.FuseOff {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			aSim, hasA := c.sim(cn.source)
			bSim, hasB := c.sim(cn.drain)
			if !hasA || !hasB {
				continue
			}
			agree := aSim == bSim

			var headline string
			switch {
			case m.Type == model.FuseOn && !agree:
				headline = "Fuse Error: intact fuse shows disconnected terminals"
			case m.Type == model.FuseOff && agree:
				headline = "Fuse Error: blown fuse still shows connected terminals"
			default:
				continue
			}
			c.emit(FusePath, cn.deviceID, cn.instID, headline, false)
		}
	})
}

// checkMosDiodeConflict implements spec.md §4.6's "Min/Max voltage
// conflict at MOS diode" row: a MOS device's bulk-source/bulk-drain body
// diode forward-biased beyond the propagated min/max bound, which
// contradicts the bound the diode's own conduction would otherwise have
// imposed. Grounded on PrintMinVoltageConflict/PrintMaxVoltageConflict
// (_examples/original_source/src/CCvcDb_error.cc lines 56-87).
func (c *Checker) checkMosDiodeConflict() {
	c.models.All(func(_ string, m *model.Model) {
		if !m.Type.IsMos() {
			return
		}
		isN := m.Type.IsNType()
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			var conflict bool
			if isN {
				minBulk, hasMinBulk := c.min(cn.bulk)
				maxSource, hasMaxSource := c.max(cn.source)
				maxDrain, hasMaxDrain := c.max(cn.drain)
				conflict = hasMinBulk && ((hasMaxSource && minBulk > maxSource) || (hasMaxDrain && minBulk > maxDrain))
			} else {
				maxBulk, hasMaxBulk := c.max(cn.bulk)
				minSource, hasMinSource := c.min(cn.source)
				minDrain, hasMinDrain := c.min(cn.drain)
				conflict = hasMaxBulk && ((hasMinSource && maxBulk < minSource) || (hasMinDrain && maxBulk < minDrain))
			}
			if !conflict {
				continue
			}
			c.emit(MosDiodeConflict, cn.deviceID, cn.instID, "Min/Max Voltage Conflict: bulk diode forward biased beyond the propagated bound", false)
		}
	})
}
