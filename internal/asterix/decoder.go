package asterix

import (
	"fmt"

	"example.com/asterixgate/internal/bits"
	"example.com/asterixgate/internal/schema"
)

// Config tunes decode/validate strictness and tracing, mirroring the
// strict_validation/debug_trace knobs of the original decoder.
type Config struct {
	// StrictValidation turns record-length mismatches and mid-block parse
	// errors into hard failures instead of warnings.
	StrictValidation bool
	// DebugTrace, when set, is called with a human-readable line for every
	// record decoded. Nil disables tracing.
	DebugTrace func(line string)
}

// Decoder decodes ASTERIX blocks against a set of registered category
// schemas. A Decoder is not safe for concurrent RegisterCategory calls, but
// once registration ends, concurrent DecodeBlock calls are safe: decoding
// never mutates the registered schema.
type Decoder struct {
	categories map[uint8]*schema.Category
	cfg        Config
}

// NewDecoder returns an empty Decoder ready for RegisterCategory calls.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{categories: make(map[uint8]*schema.Category), cfg: cfg}
}

// RegisterCategory adds or replaces the schema used to decode blocks of
// cat.Header.Category.
func (d *Decoder) RegisterCategory(cat *schema.Category) {
	d.categories[cat.Header.Category] = cat
}

// Lookup returns the registered schema for a category, if any.
func (d *Decoder) Lookup(category uint8) (*schema.Category, bool) {
	c, ok := d.categories[category]
	return c, ok
}

func (d *Decoder) trace(format string, args ...any) {
	if d.cfg.DebugTrace != nil {
		d.cfg.DebugTrace(fmt.Sprintf(format, args...))
	}
}

// DecodeBlock decodes one ASTERIX block: a 3-byte header (category, 16-bit
// big-endian length) followed by `length-3` bytes of record data.
func (d *Decoder) DecodeBlock(raw []byte) ParsedBlock {
	cur := bits.New(raw)
	cat8, err := cur.ReadU8()
	if err != nil {
		return ParsedBlock{Err: &DecodeError{Op: "block header", Err: err}}
	}
	length, err := cur.ReadU16BE()
	if err != nil {
		return ParsedBlock{Category: cat8, Err: &DecodeError{Op: "block header", Err: err}}
	}
	block := ParsedBlock{Category: cat8, Length: length}

	if int(length) < 3 {
		block.Err = &DecodeError{Op: "block header", Err: fmt.Errorf("declared length %d shorter than header", length)}
		return block
	}
	bodyLen := int(length) - 3
	if !cur.Has(bodyLen) {
		block.Err = &DecodeError{Op: "block body", Err: bits.Underrun{Need: bodyLen, Have: cur.Len()}}
		return block
	}
	body, _ := cur.ReadBytes(bodyLen)

	cat, ok := d.categories[cat8]
	if !ok {
		block.Err = &DecodeError{Op: "block header", Err: fmt.Errorf("category %d: %w", cat8, ErrUnsupportedCategory)}
		return block
	}

	bodyCur := bits.New(body)
	consumed := 0
	for recIdx := 0; ; recIdx++ {
		if recIdx >= MaxRecordsPerBlock {
			block.Err = &DecodeError{Op: "block body", Err: ErrRecordLimitExceeded}
			return block
		}
		if bodyCur.Len() == 0 {
			break
		}
		rec := d.DecodeRecord(cat, bodyCur)
		block.Records = append(block.Records, rec)
		consumed += rec.Length
		d.trace("cat%d record %d: %d bytes, valid=%v", cat8, recIdx, rec.Length, rec.Valid())

		if rec.Err != nil {
			if d.cfg.StrictValidation {
				block.Err = &DecodeError{Op: "block body", Err: rec.Err}
				return block
			}
			// Lenient mode: a malformed record has already consumed at
			// least one byte (rec.Length), or nothing if the failure was
			// immediate; guarantee forward progress either way.
			if rec.Length == 0 {
				if _, err := bodyCur.ReadBytes(1); err != nil {
					break
				}
				consumed++
			}
		}

		if !cat.MultiRecord {
			break
		}
	}

	if consumed != bodyLen {
		msg := fmt.Sprintf("record bytes %d + header 3 != declared length %d", consumed, length)
		if d.cfg.StrictValidation {
			if block.Err == nil {
				block.Err = &DecodeError{Op: "block body", Err: fmt.Errorf("%s: %w", msg, ErrRecordLengthMismatch)}
			}
		} else {
			block.Warnings = append(block.Warnings, msg)
		}
	}

	return block
}

// DecodeRecord decodes one FSPEC-delimited record from cur against cat's
// UAP and item catalogue.
func (d *Decoder) DecodeRecord(cat *schema.Category, cur *bits.Cursor) ParsedRecord {
	start := cur.Pos()
	fspec, err := readFSPEC(cur)
	if err != nil {
		return ParsedRecord{Err: &DecodeError{Op: "fspec", Err: err}, Length: cur.Pos() - start}
	}

	slots := expandFSPEC(fspec, cat.UAPSlots())
	rec := ParsedRecord{FSPEC: fspec}

	for _, id := range slots {
		if id == schema.SpareItem {
			continue
		}
		def, ok := cat.Lookup(id)
		if !ok {
			rec.Err = &DecodeError{Op: fmt.Sprintf("uap slot %s", id), Err: fmt.Errorf("%w: %s", ErrUnknownItem, id)}
			rec.Length = cur.Pos() - start
			return rec
		}
		item := ParseItem(def, cur)
		rec.Items = append(rec.Items, item)
		if item.Err != nil {
			if rec.Err == nil {
				rec.Err = item.Err
			}
			// Variable/Extended items consume a caller-read FX chain rather
			// than a fixed, declared length; a failure partway through
			// leaves the cursor at an unknown offset into the item's own
			// body, so the rest of the record can no longer be trusted.
			if def.Format == schema.Variable || def.Format == schema.Extended {
				rec.Length = cur.Pos() - start
				return rec
			}
		}
	}

	rec.Length = cur.Pos() - start
	return rec
}

// readFSPEC consumes the record's FSPEC: successive bytes while the FX bit
// (bit 0, the LSB) is set, capped at MaxFSPECBytes.
func readFSPEC(cur *bits.Cursor) ([]byte, error) {
	var out []byte
	for {
		if len(out) >= MaxFSPECBytes {
			return out, fmt.Errorf("%w: exceeds %d bytes", ErrMalformedFSPEC, MaxFSPECBytes)
		}
		b, err := cur.ReadU8()
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedFSPEC, err)
		}
		out = append(out, b)
		if b&0x01 == 0 {
			return out, nil
		}
	}
}

// expandFSPEC walks bits 7..1 of every FSPEC byte (MSB first, bit 0 is
// always the FX flag and is never a selection bit, including on the
// terminal byte) and returns the UAP slots whose bit is set, in FSPEC order.
func expandFSPEC(fspec []byte, uap []schema.ItemRef) []schema.ItemRef {
	var selected []schema.ItemRef
	for byteIdx, b := range fspec {
		for bitPos := 7; bitPos >= 1; bitPos-- {
			if b&(1<<bitPos) == 0 {
				continue
			}
			slot := byteIdx*7 + (7 - bitPos)
			if slot >= len(uap) {
				continue
			}
			selected = append(selected, uap[slot])
		}
	}
	return selected
}

// DecodeFile walks consecutive ASTERIX blocks in data purely by each
// block's declared length; it does not cross-check category continuity
// between blocks.
func (d *Decoder) DecodeFile(data []byte) ([]ParsedBlock, error) {
	var blocks []ParsedBlock
	cur := bits.New(data)
	for cur.Len() > 0 {
		if !cur.Has(3) {
			return blocks, &DecodeError{Op: "file", Err: fmt.Errorf("trailing %d byte(s) too short for a block header", cur.Len())}
		}
		cat, err := cur.PeekByte(0)
		if err != nil {
			return blocks, &DecodeError{Op: "file", Err: err}
		}
		lenHi, _ := cur.PeekByte(1)
		lenLo, _ := cur.PeekByte(2)
		length := int(lenHi)<<8 | int(lenLo)
		if length < 3 {
			return blocks, &DecodeError{Op: "file", Err: fmt.Errorf("category %d: declared length %d shorter than header", cat, length)}
		}
		raw, err := cur.ReadBytes(length)
		if err != nil {
			return blocks, &DecodeError{Op: "file", Err: err}
		}
		blocks = append(blocks, d.DecodeBlock(raw))
	}
	return blocks, nil
}
