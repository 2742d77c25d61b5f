package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkPossibleLeak implements spec.md §4.6's NMOS/PMOS possible leak
// row: a device whose gate state isn't pinned by simulation, whose source
// and drain nonetheless disagree by more than LeakErrorThreshold, is a
// candidate leak path. Grounded on FindNmosPossibleLeakErrors/
// FindPmosPossibleLeakErrors (_examples/original_source/src/
// CCvcDb_error.cc lines 881-977), simplified to drop the HIZ-and-
// unrelated "leak to cutoff power" exemption, the internal-override
// suppression, and the EstimatedCurrent()/cvcLeakLimit current model —
// the bound-level fallback below stands in for that current estimate by
// comparing a voltage-differential estimate against LeakErrorThreshold;
// LeakLimit is not consulted.
func (c *Checker) checkPossibleLeak(isN bool) {
	cat := NmosPossibleLeak
	typ := model.NMOS
	if !isN {
		cat = PmosPossibleLeak
		typ = model.PMOS
	}
	c.models.All(func(_ string, m *model.Model) {
		if m.Type != typ {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			if _, known := c.sim(cn.gate); known {
				continue // gate's sim voltage already known: resolved, not a leak candidate
			}

			vth := int32(0)
			if m.Vth.IsSet() {
				vth = m.Vth.Voltage
			}
			if c.alwaysOff(isN, vth, cn) {
				continue
			}

			if sourceSim, hasSourceSim := c.sim(cn.source); hasSourceSim {
				if drainSim, hasDrainSim := c.sim(cn.drain); hasDrainSim {
					diff := absI32(sourceSim - drainSim)
					if diff <= c.opts.LeakErrorThreshold {
						continue
					}
					headline := fmt.Sprintf("Possible Leak Error: source-drain differential %s while gate is indeterminate", formatVoltage(diff))
					c.emit(cat, cn.deviceID, cn.instID, headline, false)
					continue
				}
			}

			estimate := c.leakBoundEstimate(cn)
			if estimate <= c.opts.LeakErrorThreshold {
				continue
			}
			headline := fmt.Sprintf("Possible Leak Error: estimated source-drain differential %s with gate state unresolved", formatVoltage(estimate))
			c.emit(cat, cn.deviceID, cn.instID, headline, false)
		}
	})
}

// alwaysOff is the "gate can never rise/fall enough to conduct" shortcut:
// NMOS compares the gate's worst-case (leak) high against source plus
// Vth; PMOS mirrors it against source minus Vth.
func (c *Checker) alwaysOff(isN bool, vth int32, cn conn) bool {
	if isN {
		gateLeak, hasGateLeak := c.maxLeak(cn.gate)
		source, hasSource := c.min(cn.source)
		return hasGateLeak && hasSource && gateLeak <= source+vth
	}
	gateLeak, hasGateLeak := c.minLeak(cn.gate)
	source, hasSource := c.max(cn.source)
	return hasGateLeak && hasSource && gateLeak >= source-vth
}

func (c *Checker) leakBoundEstimate(cn conn) int32 {
	var estimate int32
	if sourceMin, hasSourceMin := c.min(cn.source); hasSourceMin {
		if drainMax, hasDrainMax := c.max(cn.drain); hasDrainMax {
			estimate = maxI32(estimate, absI32(sourceMin-drainMax))
		}
	}
	if sourceMax, hasSourceMax := c.max(cn.source); hasSourceMax {
		if drainMin, hasDrainMin := c.min(cn.drain); hasDrainMin {
			estimate = maxI32(estimate, absI32(sourceMax-drainMin))
		}
	}
	return estimate
}
