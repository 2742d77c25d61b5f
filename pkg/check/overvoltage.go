package check

import (
	"fmt"

	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/model"
)

// ovKind selects which of the four per-model voltage limits (Vbg/Vbs/
// Vds/Vgs) a checkOvervoltage pass evaluates.
type ovKind int

const (
	ovVBG ovKind = iota
	ovVBS
	ovVDS
	ovVGS
)

func limitFor(m *model.Model, k ovKind) model.Limit {
	switch k {
	case ovVBG:
		return m.MaxVbg
	case ovVBS:
		return m.MaxVbs
	case ovVDS:
		return m.MaxVds
	default:
		return m.MaxVgs
	}
}

func limitLabel(k ovKind) string {
	switch k {
	case ovVBG:
		return "Vbg"
	case ovVBS:
		return "Vbs"
	case ovVDS:
		return "Vds"
	default:
		return "Vgs"
	}
}

// checkOvervoltage implements spec.md §4.6's "Vbg/Vbs/Vds/Vgs overvoltage"
// row: for every model carrying the relevant limit, every device of that
// model is checked against the worst combination of valid min/max
// terminal voltages, grounded directly on FindVbgError/FindVbsError/
// FindVdsError/FindVgsError (_examples/original_source/src/
// CCvcDb_error.cc lines 88-216).
func (c *Checker) checkOvervoltage(k ovKind, cat Category) {
	c.models.All(func(_ string, m *model.Model) {
		limit := limitFor(m, k)
		if !limit.IsSet() {
			return
		}
		for _, id := range m.DeviceIDs {
			cn := c.mapDevice(elaborate.DeviceID(id))
			var msg string
			switch k {
			case ovVBG:
				msg = c.vbgMessage(limit.Voltage, cn)
			case ovVBS:
				msg = c.vbsMessage(limit.Voltage, cn)
			case ovVDS:
				msg = c.vdsMessage(limit.Voltage, cn)
			case ovVGS:
				msg = c.vgsMessage(limit.Voltage, cn)
			}
			if msg == "" {
				continue
			}
			logicOK := len(msg) > 0 && msg[len(msg)-1] == ')'
			headline := fmt.Sprintf("%s %s=%s%s", msg, limitLabel(k), limit.Definition, m.ConditionString())
			c.emit(cat, cn.deviceID, cn.instID, headline, logicOK)
		}
	})
}

// vbgMessage mirrors FindVbgError: Gate vs Bulk, falling back to a
// leak-voltage variant labeled "(logic ok)" only when LeakOvervoltage is
// set (sim-level voltages are fine, but a leak path alone would exceed
// the limit).
func (c *Checker) vbgMessage(param int32, cn conn) string {
	maxGate, hasMaxGate := c.max(cn.gate)
	minBulk, hasMinBulk := c.min(cn.bulk)
	minGate, hasMinGate := c.min(cn.gate)
	maxBulk, hasMaxBulk := c.max(cn.bulk)
	if (hasMaxGate && hasMinBulk && absI32(maxGate-minBulk) > param) ||
		(hasMinGate && hasMaxBulk && absI32(minGate-maxBulk) > param) {
		return "Overvoltage Error:Gate vs Bulk:"
	}
	if !c.opts.LeakOvervoltage {
		return ""
	}
	maxGateLeak, hasMaxGateLeak := c.maxLeak(cn.gate)
	minBulkLeak, hasMinBulkLeak := c.minLeak(cn.bulk)
	minGateLeak, hasMinGateLeak := c.minLeak(cn.gate)
	maxBulkLeak, hasMaxBulkLeak := c.maxLeak(cn.bulk)
	switch {
	case hasMaxGateLeak && hasMinBulkLeak && absI32(maxGateLeak-minBulkLeak) > param,
		hasMinGateLeak && hasMaxBulkLeak && absI32(minGateLeak-maxBulkLeak) > param,
		hasMaxGateLeak && !hasMinBulkLeak && absI32(maxGateLeak) > param,
		hasMinGateLeak && !hasMaxBulkLeak && absI32(minGateLeak) > param,
		!hasMaxGateLeak && hasMinBulkLeak && absI32(minBulkLeak) > param,
		!hasMinGateLeak && hasMaxBulkLeak && absI32(maxBulkLeak) > param:
		return "Overvoltage Error:Gate vs Bulk: (logic ok)"
	}
	return ""
}

// vbsMessage mirrors FindVbsError: Source/Drain vs Bulk.
func (c *Checker) vbsMessage(param int32, cn conn) string {
	maxSource, hasMaxSource := c.max(cn.source)
	minBulk, hasMinBulk := c.min(cn.bulk)
	minSource, hasMinSource := c.min(cn.source)
	maxBulk, hasMaxBulk := c.max(cn.bulk)
	maxDrain, hasMaxDrain := c.max(cn.drain)
	minDrain, hasMinDrain := c.min(cn.drain)
	if (hasMaxSource && hasMinBulk && absI32(maxSource-minBulk) > param) ||
		(hasMinSource && hasMaxBulk && absI32(minSource-maxBulk) > param) ||
		(hasMaxDrain && hasMinBulk && absI32(maxDrain-minBulk) > param) ||
		(hasMinDrain && hasMaxBulk && absI32(minDrain-maxBulk) > param) {
		return "Overvoltage Error:Source/Drain vs Bulk:"
	}
	if !c.opts.LeakOvervoltage {
		return ""
	}
	maxSourceLeak, hasMaxSourceLeak := c.maxLeak(cn.source)
	minBulkLeak, hasMinBulkLeak := c.minLeak(cn.bulk)
	minSourceLeak, hasMinSourceLeak := c.minLeak(cn.source)
	maxBulkLeak, hasMaxBulkLeak := c.maxLeak(cn.bulk)
	maxDrainLeak, hasMaxDrainLeak := c.maxLeak(cn.drain)
	minDrainLeak, hasMinDrainLeak := c.minLeak(cn.drain)
	switch {
	case hasMaxSourceLeak && hasMinBulkLeak && absI32(maxSourceLeak-minBulkLeak) > param,
		hasMinSourceLeak && hasMaxBulkLeak && absI32(minSourceLeak-maxBulkLeak) > param,
		hasMaxDrainLeak && hasMinBulkLeak && absI32(maxDrainLeak-minBulkLeak) > param,
		hasMinDrainLeak && hasMaxBulkLeak && absI32(minDrainLeak-maxBulkLeak) > param,
		hasMinBulkLeak && !hasMaxSourceLeak && !hasMaxDrainLeak && absI32(minBulkLeak) > param,
		hasMaxBulkLeak && !hasMinSourceLeak && !hasMinDrainLeak && absI32(maxBulkLeak) > param,
		hasMinSourceLeak && !hasMaxBulkLeak && absI32(minSourceLeak) > param,
		hasMaxSourceLeak && !hasMinBulkLeak && absI32(maxSourceLeak) > param,
		hasMinDrainLeak && !hasMaxBulkLeak && absI32(minDrainLeak) > param,
		hasMaxDrainLeak && !hasMinBulkLeak && absI32(maxDrainLeak) > param:
		return "Overvoltage Error:Source/Drain vs Bulk: (logic ok)"
	}
	return ""
}

// vdsMessage mirrors FindVdsError: Source vs Drain, with the
// pumping-capacitor exemption — a capacitor whose source and drain swing
// together (both min-min and max-max differences within the limit) is
// only checked on that coupled basis, skipping the cross (min-max)
// comparison that would otherwise flag the capacitor's designed swing.
func (c *Checker) vdsMessage(param int32, cn conn) string {
	minSource, hasMinSource := c.min(cn.source)
	maxDrain, hasMaxDrain := c.max(cn.drain)
	maxSource, hasMaxSource := c.max(cn.source)
	minDrain, hasMinDrain := c.min(cn.drain)
	if (hasMinSource && hasMaxDrain && absI32(minSource-maxDrain) > param) ||
		(hasMaxSource && hasMinDrain && absI32(maxSource-minDrain) > param) {
		pumped := cn.source.present && cn.drain.present && c.eng.IsPumped(cn.source.net, cn.drain.net)
		if pumped && hasMinSource && hasMinDrain && absI32(minSource-minDrain) <= param &&
			hasMaxSource && hasMaxDrain && absI32(maxSource-maxDrain) <= param {
			return "" // pumping capacitor: min-min/max-max track, no error
		}
		return "Overvoltage Error:Source vs Drain:"
	}
	if !c.opts.LeakOvervoltage {
		return ""
	}
	minSourceLeak, hasMinSourceLeak := c.minLeak(cn.source)
	maxDrainLeak, hasMaxDrainLeak := c.maxLeak(cn.drain)
	maxSourceLeak, hasMaxSourceLeak := c.maxLeak(cn.source)
	minDrainLeak, hasMinDrainLeak := c.minLeak(cn.drain)
	switch {
	case hasMinSourceLeak && hasMaxDrainLeak && absI32(minSourceLeak-maxDrainLeak) > param,
		hasMaxSourceLeak && hasMinDrainLeak && absI32(maxSourceLeak-minDrainLeak) > param,
		hasMinSourceLeak && !hasMaxDrainLeak && absI32(minSourceLeak) > param,
		!hasMinSourceLeak && hasMaxDrainLeak && absI32(maxDrainLeak) > param,
		hasMaxSourceLeak && !hasMinDrainLeak && absI32(maxSourceLeak) > param,
		!hasMaxSourceLeak && hasMinDrainLeak && absI32(minDrainLeak) > param:
		return "Overvoltage Error:Source vs Drain: (logic ok)"
	}
	return ""
}

// vgsMessage mirrors FindVgsError: Gate vs Source/Drain.
func (c *Checker) vgsMessage(param int32, cn conn) string {
	minGate, hasMinGate := c.min(cn.gate)
	maxSource, hasMaxSource := c.max(cn.source)
	maxGate, hasMaxGate := c.max(cn.gate)
	minSource, hasMinSource := c.min(cn.source)
	maxDrain, hasMaxDrain := c.max(cn.drain)
	minDrain, hasMinDrain := c.min(cn.drain)
	if (hasMinGate && hasMaxSource && absI32(minGate-maxSource) > param) ||
		(hasMaxGate && hasMinSource && absI32(maxGate-minSource) > param) ||
		(hasMinGate && hasMaxDrain && absI32(minGate-maxDrain) > param) ||
		(hasMaxGate && hasMinDrain && absI32(maxGate-minDrain) > param) {
		return "Overvoltage Error:Gate vs Source/Drain:"
	}
	if !c.opts.LeakOvervoltage {
		return ""
	}
	minGateLeak, hasMinGateLeak := c.minLeak(cn.gate)
	maxSourceLeak, hasMaxSourceLeak := c.maxLeak(cn.source)
	maxGateLeak, hasMaxGateLeak := c.maxLeak(cn.gate)
	minSourceLeak, hasMinSourceLeak := c.minLeak(cn.source)
	maxDrainLeak, hasMaxDrainLeak := c.maxLeak(cn.drain)
	minDrainLeak, hasMinDrainLeak := c.minLeak(cn.drain)
	switch {
	case hasMinGateLeak && hasMaxSourceLeak && absI32(minGateLeak-maxSourceLeak) > param,
		hasMaxGateLeak && hasMinSourceLeak && absI32(maxGateLeak-minSourceLeak) > param,
		hasMinGateLeak && hasMaxDrainLeak && absI32(minGateLeak-maxDrainLeak) > param,
		hasMaxGateLeak && hasMinDrainLeak && absI32(maxGateLeak-minDrainLeak) > param,
		hasMinGateLeak && !hasMaxSourceLeak && !hasMaxDrainLeak && absI32(minGateLeak) > param,
		hasMaxGateLeak && !hasMinSourceLeak && !hasMinDrainLeak && absI32(maxGateLeak) > param,
		!hasMinGateLeak && hasMaxSourceLeak && absI32(maxSourceLeak) > param,
		!hasMinGateLeak && hasMaxDrainLeak && absI32(maxDrainLeak) > param,
		!hasMaxGateLeak && hasMinSourceLeak && absI32(minSourceLeak) > param,
		!hasMaxGateLeak && hasMinDrainLeak && absI32(minDrainLeak) > param:
		return "Overvoltage Error:Gate vs Source/Drain: (logic ok)"
	}
	return ""
}
