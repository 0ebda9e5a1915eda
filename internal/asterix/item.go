package asterix

import (
	"fmt"

	"example.com/asterixgate/internal/bits"
	"example.com/asterixgate/internal/schema"
)

// maxExtensionGroups bounds Variable/Extended FX-chain iteration so a
// pathological FX==1 forever cannot force an unbounded read.
const maxExtensionGroups = 32

// ParseItem decodes one data item from cur according to def, consuming
// exactly def's declared body length regardless of whether the fields
// within it decode cleanly.
func ParseItem(def schema.ItemDef, cur *bits.Cursor) ParsedItem {
	item := ParsedItem{ID: def.ID, Def: def}

	switch def.Format {
	case schema.Fixed:
		buf, err := cur.ReadBytes(int(def.Length))
		if err != nil {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: err}
			return item
		}
		item.Length = len(buf)
		fields, ferr := parseFields(def.Fields, buf)
		item.Fields, item.Err = fields, ferr

	case schema.Explicit:
		lenByte, err := cur.PeekByte(0)
		if err != nil {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: err}
			return item
		}
		if lenByte == 0 {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: fmt.Errorf("%w: explicit length byte is 0", ErrInvalidFieldValue)}
			return item
		}
		buf, err := cur.ReadBytes(int(lenByte))
		if err != nil {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: err}
			return item
		}
		item.Length = len(buf)
		fields, ferr := parseFields(def.Fields, buf[1:])
		item.Fields, item.Err = fields, ferr

	case schema.Repetitive:
		repByte, err := cur.PeekByte(0)
		if err != nil {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: err}
			return item
		}
		bodyLen := 1 + int(repByte)*int(def.Length)
		buf, err := cur.ReadBytes(bodyLen)
		if err != nil {
			item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: err}
			return item
		}
		item.Length = len(buf)
		rep := int(buf[0])
		var allFields []ParsedField
		for i := 0; i < rep; i++ {
			start := 1 + i*int(def.Length)
			row := buf[start : start+int(def.Length)]
			fields, ferr := parseFields(def.Fields, row)
			if ferr != nil {
				item.Err = ferr
			}
			for _, f := range fields {
				f.Def.Name = fmt.Sprintf("%s#%d", f.Def.Name, i)
				allFields = append(allFields, f)
			}
		}
		item.Fields = allFields

	case schema.Variable:
		fields, n, err := parseFXChain(def.Fields, cur)
		item.Length = n
		item.Fields = fields
		item.Err = err

	case schema.Extended:
		fields, n, err := parseFXChain(def.Fields, cur)
		item.Length = n
		item.Fields = fields
		item.Err = err

	default:
		item.Err = &DecodeError{Op: fmt.Sprintf("item %s", def.ID), Err: fmt.Errorf("unhandled format %s", def.Format)}
	}

	return item
}

// parseFXChain reads successive whole-byte field groups from cur, each
// terminated by a trailing boolean FX field, continuing to a following group
// while FX is true. The following group's layout is the FX field's own
// ExtensionFields when present (Extended), or the same group layout
// otherwise (Variable); either way this is the "chained through nested FX
// bits" behavior.
func parseFXChain(first []schema.FieldDef, cur *bits.Cursor) ([]ParsedField, int, error) {
	current := first
	var all []ParsedField
	total := 0
	for group := 0; ; group++ {
		if group >= maxExtensionGroups {
			return all, total, &DecodeError{Op: "fx-chain", Err: ErrRecordLimitExceeded}
		}
		groupLen := fieldBits(current) / 8
		if groupLen == 0 {
			return all, total, &DecodeError{Op: "fx-chain", Err: fmt.Errorf("zero-length field group")}
		}
		buf, err := cur.ReadBytes(groupLen)
		if err != nil {
			return all, total, &DecodeError{Op: "fx-chain", Err: err}
		}
		total += groupLen
		// The FX field's ExtensionFields describe the next group, not bits
		// inside this one, so they are not parsed inline here.
		layout := make([]schema.FieldDef, len(current))
		copy(layout, current)
		next := layout[len(layout)-1].ExtensionFields
		layout[len(layout)-1].ExtensionFields = nil
		fields, ferr := parseFields(layout, buf)
		all = append(all, fields...)
		if ferr != nil {
			return all, total, ferr
		}
		last := fields[len(fields)-1]
		more := last.Value.Kind == KindBool && last.Value.B
		if !more {
			return all, total, nil
		}
		if len(next) == 0 {
			current = first
			continue
		}
		current = next
	}
}

func fieldBits(fields []schema.FieldDef) int {
	n := 0
	for _, f := range fields {
		n += f.Bits
	}
	return n
}

// parseFields decodes a flat, whole-byte-aligned buffer against fields in
// declared order, resolving Condition-gated ExtensionFields inline against
// already-decoded sibling values.
func parseFields(fields []schema.FieldDef, buf []byte) ([]ParsedField, error) {
	bitOffset := 0
	values := make(map[string]int64)
	out, err := parseFieldsAt(fields, buf, &bitOffset, values)
	return out, err
}

func parseFieldsAt(fields []schema.FieldDef, buf []byte, bitOffset *int, values map[string]int64) ([]ParsedField, error) {
	var out []ParsedField
	for _, f := range fields {
		if f.IsSpare() {
			*bitOffset += f.Bits
			continue
		}
		raw, err := bits.ExtractBits(buf, *bitOffset, f.Bits)
		if err != nil {
			pf := ParsedField{Def: f, Err: &DecodeError{Op: fmt.Sprintf("field %s", f.Name), Err: fmt.Errorf("%w: %v", ErrInvalidFieldValue, err)}}
			out = append(out, pf)
			return out, pf.Err
		}
		*bitOffset += f.Bits

		val, err := convertValue(f, raw, buf, *bitOffset)
		pf := ParsedField{Def: f, Value: val, Err: err}
		out = append(out, pf)
		if n, ok := val.AsInt64(); ok {
			values[f.Name] = n
		}
		if err != nil {
			return out, err
		}

		if len(f.ExtensionFields) > 0 {
			include := true
			if f.Condition != "" {
				cond, cerr := schema.ParseCondition(f.Condition)
				if cerr != nil {
					return out, &DecodeError{Op: fmt.Sprintf("field %s", f.Name), Err: cerr}
				}
				include = cond.Eval(values)
			}
			if include {
				nested, nerr := parseFieldsAt(f.ExtensionFields, buf, bitOffset, values)
				out = append(out, nested...)
				if nerr != nil {
					return out, nerr
				}
			}
		}
	}
	return out, nil
}

func convertValue(f schema.FieldDef, raw uint32, buf []byte, bitOffsetAfter int) (TypedValue, error) {
	switch f.Type {
	case schema.Bool:
		return BoolValue(raw != 0), nil
	case schema.I8, schema.I16, schema.I24, schema.I32:
		return IntValue(bits.SignExtend(raw, f.Bits)), nil
	case schema.String:
		if f.Encoding == "6bit_ascii" {
			s, err := decodeICAO6Bit(buf, bitOffsetAfter-f.Bits, f.Bits)
			if err != nil {
				return TypedValue{}, &DecodeError{Op: fmt.Sprintf("field %s", f.Name), Err: err}
			}
			return StringValue(s), nil
		}
		return UintValue(raw), nil
	case schema.Bytes:
		n := f.Bits / 8
		out := make([]byte, n)
		for i := 0; i < n; i++ {
			out[i] = byte(raw >> uint((n-1-i)*8))
		}
		return BytesValue(out), nil
	default:
		return UintValue(raw), nil
	}
}

// icao6Bit is the 6-bit character table used by ASTERIX character fields
// (target identification, callsigns): space, A-Z, five spares, 0-9 at codes
// 32-41, then six spares. Codes 48 and above decode as a space.
const icao6Bit = " ABCDEFGHIJKLMNOPQRSTUVWXYZ?????0123456789??????"

// decodeICAO6Bit decodes numBits (a multiple of 6) starting at startBit
// within buf into an ICAO 6-bit ASCII string, trimming leading/trailing
// spaces.
func decodeICAO6Bit(buf []byte, startBit, numBits int) (string, error) {
	if numBits%6 != 0 {
		return "", fmt.Errorf("6bit_ascii field width %d is not a multiple of 6", numBits)
	}
	n := numBits / 6
	chars := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		code, err := bits.ExtractBits(buf, startBit+i*6, 6)
		if err != nil {
			return "", err
		}
		if int(code) >= len(icao6Bit) {
			chars = append(chars, ' ')
			continue
		}
		chars = append(chars, icao6Bit[code])
	}
	s := string(chars)
	trimmed := trimSpaces(s)
	return trimmed, nil
}

func trimSpaces(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}
