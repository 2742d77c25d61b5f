package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// checkSourceVsBulk implements spec.md §4.6's NMOS/PMOS source vs bulk
// row: a bulk biased too far past source/drain (beyond BiasErrorThreshold)
// risks forward-biasing the body diode. Grounded on
// FindNmosSourceVsBulkErrors/FindPmosSourceVsBulkErrors
// (_examples/original_source/src/CCvcDb_error.cc lines 573-779), simplified
// to drop the resistance-chain tie-break and backwards-resistance-check
// special case, keeping the core threshold/unrelated-power logic.
func (c *Checker) checkSourceVsBulk(isN bool) {
	cat := NmosSourceBulk
	typ := model.NMOS
	if !isN {
		cat = PmosSourceBulk
		typ = model.PMOS
	}
	c.models.All(func(_ string, m *model.Model) {
		if m.Type != typ {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			if cn.source.present && cn.drain.present && cn.bulk.present &&
				cn.source.net == cn.drain.net && cn.drain.net == cn.bulk.net {
				continue // all three terminals tied together: nothing to check
			}

			bulkDecl := c.anyDeclaration(cn.bulk)
			sourceDecl := c.anyDeclaration(cn.source)
			drainDecl := c.anyDeclaration(cn.drain)
			if !c.related(bulkDecl, sourceDecl) || !c.related(bulkDecl, drainDecl) {
				c.emitUnrelated(cat, cn.deviceID, cn.instID)
				continue
			}

			diff, ok := c.sourceBulkDiff(isN, cn)
			if !ok || diff <= c.opts.BiasErrorThreshold {
				continue
			}
			headline := fmt.Sprintf("Source/Drain vs Bulk Error: bias differential %s exceeds threshold", formatVoltage(diff))
			c.emit(cat, cn.deviceID, cn.instID, headline, false)
		}
	})
}

func (c *Checker) sourceBulkDiff(isN bool, cn conn) (int32, bool) {
	if isN {
		maxBulk, hasMaxBulk := c.max(cn.bulk)
		minSource, hasMinSource := c.min(cn.source)
		minDrain, hasMinDrain := c.min(cn.drain)
		if !hasMaxBulk || !hasMinSource || !hasMinDrain {
			return 0, false
		}
		return maxBulk - minI32(minSource, minDrain), true
	}
	minBulk, hasMinBulk := c.min(cn.bulk)
	maxSource, hasMaxSource := c.max(cn.source)
	maxDrain, hasMaxDrain := c.max(cn.drain)
	if !hasMinBulk || !hasMaxSource || !hasMaxDrain {
		return 0, false
	}
	return maxI32(maxSource, maxDrain) - minBulk, true
}
