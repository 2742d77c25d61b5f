package check

import (
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/power"
)

// checkFloatingInputs implements spec.md §4.6's floating input row: a
// gate-driving net with no known sim voltage that is either genuinely
// disconnected from any source/drain (no leak path) or declared HiZ is
// flagged as a floating input. Grounded on FindFloatingInputErrors
// (_examples/original_source/src/CCvcDb_error.cc lines 979-1036),
// simplified to a single pass over representative nets — the original's
// second "secondary float" pass (nets that only float because a sibling
// gate floats) is dropped; every net is judged solely on its own
// connectivity and declaration.
func (c *Checker) checkFloatingInputs() {
	for n := elaborate.NetID(0); n < c.eng.DB.NetCount; n++ {
		if c.eng.Index.EquivalentNet(n) != n {
			continue // only the representative net of each short-group is walked
		}
		gates := c.eng.Index.Gates(n)
		if len(gates) == 0 {
			continue
		}
		if c.eng.Maps.HasSimVoltage(n) {
			continue
		}

		decl := c.power.FindForNet(c.eng.DB.NetName(n, c.opts.HierarchyDelimiter))
		if decl != nil && decl.Kind.Has(power.Input) {
			continue // declared input: its voltage is simply unmodeled, not floating
		}

		noLeakPath := c.eng.Index.SourceCount(n) == 0 && c.eng.Index.DrainCount(n) == 0
		possibleHiZ := decl != nil && decl.Kind.Has(power.HiZ)
		if !noLeakPath && !possibleHiZ {
			continue
		}

		headline := "Floating Input Error: gate has no driving source"
		if noLeakPath {
			headline += " * No leak path"
		} else {
			headline += " * Tri-state input"
		}
		for _, gateDev := range gates {
			c.emit(HizInput, gateDev, c.eng.DB.DeviceParent[gateDev], headline, false)
		}
	}
}
