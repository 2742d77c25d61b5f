package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkForwardBiasedDiodes implements spec.md §4.6's forward-biased diode
// row. Grounded on FindForwardBiasDiodes
// (_examples/original_source/src/CCvcDb_error.cc lines 779-879), simplified
// to drop the resistance-chain anode/cathode override and PathCrosses
// exemption, keeping the core threshold/unrelated-power logic: sim voltage
// is preferred when known (exact), falling back to the declared bound that
// represents the worst case for a forward-bias reading (anode's max,
// cathode's min).
func (c *Checker) checkForwardBiasedDiodes() {
	c.models.All(func(_ string, m *model.Model) {
		if m.Type != model.Diode {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			if cn.source.present && cn.drain.present && cn.source.net == cn.drain.net {
				continue // anode and cathode tied together: nothing to check
			}

			anodeDecl := c.anyDeclaration(cn.source)
			cathodeDecl := c.anyDeclaration(cn.drain)
			if !c.related(anodeDecl, cathodeDecl) {
				c.emitUnrelated(ForwardDiode, cn.deviceID, cn.instID)
				continue
			}

			anode, hasAnode := c.resolveAnodeVoltage(cn.source)
			cathode, hasCathode := c.resolveCathodeVoltage(cn.drain)
			if !hasAnode || !hasCathode {
				continue
			}
			diff := anode - cathode
			if diff <= c.opts.ForwardErrorThreshold {
				continue
			}
			headline := fmt.Sprintf("Forward Bias Diode Error: anode-cathode differential %s exceeds threshold", formatVoltage(diff))
			c.emit(ForwardDiode, cn.deviceID, cn.instID, headline, false)
		}
	})
}

func (c *Checker) resolveAnodeVoltage(t termInfo) (int32, bool) {
	if v, ok := c.sim(t); ok {
		return v, true
	}
	return c.max(t)
}

func (c *Checker) resolveCathodeVoltage(t termInfo) (int32, bool) {
	if v, ok := c.sim(t); ok {
		return v, true
	}
	return c.min(t)
}
