// Package present turns a decoded field's raw integer plus its schema LSB
// and Unit metadata into a human-readable string. The decoder itself never
// scales or formats values; this is strictly a report/CLI-rendering helper.
package present

import (
	"fmt"
	"math"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/schema"
)

// Field renders a ParsedField for display, applying def.LSB/def.Unit where
// meaningful and falling back to a raw representation otherwise.
func Field(f asterix.ParsedField) string {
	if f.Err != nil {
		return "ERR"
	}
	switch f.Value.Kind {
	case asterix.KindBool:
		return fmt.Sprintf("%v", f.Value.B)
	case asterix.KindString:
		return f.Value.S
	case asterix.KindBytes:
		return hexString(f.Value.Bin)
	case asterix.KindUint:
		return scaled(float64(f.Value.U), f.Def)
	case asterix.KindInt:
		return scaled(float64(f.Value.I), f.Def)
	default:
		return "?"
	}
}

func scaled(raw float64, def schema.FieldDef) string {
	lsb := def.LSB
	if lsb == 0 {
		lsb = 1
	}
	v := raw * lsb

	switch def.Unit {
	case schema.UnitSeconds:
		return formatTimeOfDay(v)
	case schema.UnitFlightLevel:
		return formatFlightLevel(v)
	case schema.UnitDegrees:
		return fmt.Sprintf("%.4f°", v)
	case schema.UnitNauticalMiles:
		return fmt.Sprintf("%.3f NM", v)
	case schema.UnitKnots:
		return fmt.Sprintf("%.1f kt", v)
	case schema.UnitFeet:
		return fmt.Sprintf("%.0f ft", v)
	case schema.UnitMetersPerSec:
		return fmt.Sprintf("%.2f m/s", v)
	default:
		if lsb == 1 {
			return fmt.Sprintf("%d", int64(raw))
		}
		return fmt.Sprintf("%g", v)
	}
}

// formatTimeOfDay renders a value in seconds-since-midnight as HH:MM:SS.mmm.
func formatTimeOfDay(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	totalSec := total / 1000
	s := totalSec % 60
	m := (totalSec / 60) % 60
	h := (totalSec / 3600) % 24
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// formatFlightLevel renders a value already in flight levels as FLnnn.
func formatFlightLevel(fl float64) string {
	return fmt.Sprintf("FL%03d", int64(math.Round(fl)))
}

func hexString(b []byte) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0F]
	}
	return string(out)
}

// Item renders every non-spare field of a ParsedItem as "Name=Value" pairs.
func Item(item asterix.ParsedItem) []string {
	out := make([]string, 0, len(item.Fields))
	for _, f := range item.Fields {
		out = append(out, fmt.Sprintf("%s=%s", f.Def.Name, Field(f)))
	}
	return out
}
