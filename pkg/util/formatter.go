// Package util holds small value-formatting helpers shared by the report
// and shell output paths. Narrowed from the teacher's AC/DC simulation
// formatter (magnitude/phase, frequency) down to the voltage, resistance,
// and current renderings this rework actually produces.
package util

import (
	"fmt"
	"math"
	"strings"
)

// FormatEngineering renders value in the nearest SI-prefixed unit, the
// same magnitude ladder the teacher's FormatValueFactor used for
// simulation quantities.
func FormatEngineering(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

// FormatMillivolts renders a millivolt value as plain volts with no unit
// suffix, always showing a decimal point, for inline headline text such
// as "differential 1.0 exceeds threshold".
func FormatMillivolts(mv int32) string {
	v := float64(mv) / 1000.0
	s := fmt.Sprintf("%g", v)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatVoltage renders a millivolt value as volts with a trailing unit
// suffix and three significant figures, for the shell's standalone
// report lines ("sim voltage 1.2V").
func FormatVoltage(mv int32) string {
	return fmt.Sprintf("%.3gV", float64(mv)/1000.0)
}

// FormatOhms renders a resistance in the nearest SI-prefixed unit.
func FormatOhms(ohms float64) string {
	return FormatEngineering(ohms, "ohm")
}

// FormatAmps renders an estimated leak current in the nearest
// SI-prefixed unit.
func FormatAmps(amps float64) string {
	return FormatEngineering(amps, "A")
}
