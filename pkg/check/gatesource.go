package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkGateVsSource implements spec.md §4.6's NMOS/PMOS gate vs source
// row: a gate held too far from both source and drain (beyond
// GateErrorThreshold, or Vth when MinVthGates asks for the looser bound)
// signals a device that's neither cleanly on nor cleanly off. Grounded on
// FindNmosGateVsSourceErrors/FindPmosGateVsSourceErrors
// (_examples/original_source/src/CCvcDb_error.cc lines 431-571), simplified
// to drop the capacitor source==drain sub-exemption and the always-on
// shortcut, keeping the core threshold/unrelated-power logic.
func (c *Checker) checkGateVsSource(isN bool) {
	cat := NmosGateSource
	typ := model.NMOS
	if !isN {
		cat = PmosGateSource
		typ = model.PMOS
	}
	c.models.All(func(_ string, m *model.Model) {
		if m.Type != typ {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			gateDecl := c.anyDeclaration(cn.gate)
			if gateDecl == nil {
				continue // gate's power declaration unknown: nothing to compare against
			}
			sourceDecl := c.anyDeclaration(cn.source)
			drainDecl := c.anyDeclaration(cn.drain)
			if !c.related(gateDecl, sourceDecl) || !c.related(gateDecl, drainDecl) {
				c.emitUnrelated(cat, cn.deviceID, cn.instID)
				continue
			}

			vth := int32(0)
			if m.Vth.IsSet() {
				vth = m.Vth.Voltage
			}
			threshold := c.opts.GateErrorThreshold
			if c.opts.MinVthGates && vth > threshold {
				threshold = vth
			}

			diff, ok := c.gateSourceDrainDiff(isN, cn)
			if !ok || diff <= threshold {
				continue
			}
			if diff == vth && !c.opts.VthGates {
				continue // exactly at Vth: suppressed unless VthGates asks to report it
			}
			headline := fmt.Sprintf("Gate vs Source/Drain Error: differential %s exceeds threshold", formatVoltage(diff))
			c.emit(cat, cn.deviceID, cn.instID, headline, false)
		}
	})
}

// gateSourceDrainDiff computes how far the gate sits from whichever of
// source/drain it's closest to conducting against: for NMOS, the gate's
// min against the higher of source/drain's max; for PMOS, the gate's max
// against the lower of source/drain's min.
func (c *Checker) gateSourceDrainDiff(isN bool, cn conn) (int32, bool) {
	if isN {
		minGate, hasMinGate := c.min(cn.gate)
		maxSource, hasMaxSource := c.max(cn.source)
		maxDrain, hasMaxDrain := c.max(cn.drain)
		if !hasMinGate || !hasMaxSource || !hasMaxDrain {
			return 0, false
		}
		return maxI32(maxSource, maxDrain) - minGate, true
	}
	maxGate, hasMaxGate := c.max(cn.gate)
	minSource, hasMinSource := c.min(cn.source)
	minDrain, hasMinDrain := c.min(cn.drain)
	if !hasMaxGate || !hasMinSource || !hasMinDrain {
		return 0, false
	}
	return maxGate - minI32(minSource, minDrain), true
}
