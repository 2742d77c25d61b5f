package check

import (
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkLDDDirection implements spec.md §4.6's LDD direction row: an LDDN
// device wired backwards (source reaches higher than drain) or an LDDP
// device wired backwards (source reaches lower than drain) is a polarity
// violation, unless the gate's own sim voltage already guarantees the
// device off. Grounded on FindLDDErrors (_examples/original_source/src/
// CCvcDb_error.cc lines 1161-1226), simplified to drop the resistance-
// chain tie-break and the self-path exclusion.
func (c *Checker) checkLDDDirection() {
	c.models.All(func(_ string, m *model.Model) {
		if !m.Type.IsLDD() {
			return
		}
		isN := m.Type == model.LDDN
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			maxSource, hasMaxSource := c.max(cn.source)
			minDrain, hasMinDrain := c.min(cn.drain)
			minSource, hasMinSource := c.min(cn.source)
			maxDrain, hasMaxDrain := c.max(cn.drain)

			if isN {
				if hasMaxSource && hasMinDrain && maxSource <= minDrain {
					continue // proper direction: source never reaches above drain
				}
			} else if hasMinSource && hasMaxDrain && minSource >= maxDrain {
				continue // proper direction: source never reaches below drain
			}

			if simGate, known := c.sim(cn.gate); known {
				if isN && hasMinSource && hasMinDrain && simGate <= minI32(minSource, minDrain) {
					continue // gate guarantees the device off despite the polarity violation
				}
				if !isN && hasMaxSource && hasMaxDrain && simGate >= maxI32(maxSource, maxDrain) {
					continue
				}
			}

			c.emit(LddDirection, cn.deviceID, cn.instID, "LDD Direction Error: source/drain polarity violates device orientation", false)
		}
	})
}
