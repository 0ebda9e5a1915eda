// Package asterix decodes ASTERIX blocks and records against a loaded
// schema.Category: FSPEC-driven item selection, per-format field extraction,
// and the resulting immutable parse tree.
package asterix

import "example.com/asterixgate/internal/schema"

// ValueKind is the closed set of shapes a ParsedField's value can take.
type ValueKind int

const (
	KindUint ValueKind = iota
	KindInt
	KindBool
	KindString
	KindBytes
)

// TypedValue is a closed sum type over a field's decoded value. Exactly one
// accessor is meaningful for a given Kind.
type TypedValue struct {
	Kind ValueKind
	U    uint32
	I    int32
	B    bool
	S    string
	Bin  []byte
}

func UintValue(v uint32) TypedValue  { return TypedValue{Kind: KindUint, U: v} }
func IntValue(v int32) TypedValue    { return TypedValue{Kind: KindInt, I: v} }
func BoolValue(v bool) TypedValue    { return TypedValue{Kind: KindBool, B: v} }
func StringValue(v string) TypedValue { return TypedValue{Kind: KindString, S: v} }
func BytesValue(v []byte) TypedValue { return TypedValue{Kind: KindBytes, Bin: v} }

// AsInt64 widens the value to an int64 for use in condition evaluation,
// treating bools as 0/1. Strings and byte blobs are not representable and
// return (0, false).
func (v TypedValue) AsInt64() (int64, bool) {
	switch v.Kind {
	case KindUint:
		return int64(v.U), true
	case KindInt:
		return int64(v.I), true
	case KindBool:
		if v.B {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ParsedField is one decoded, named field within a ParsedItem.
type ParsedField struct {
	Def   schema.FieldDef
	Value TypedValue
	Err   error
}

// ParsedItem is the decoded contents of one data item, keyed by ItemRef in
// its enclosing ParsedRecord.
type ParsedItem struct {
	ID     schema.ItemRef
	Def    schema.ItemDef
	Fields []ParsedField
	Length int // bytes consumed from the record body
	Err    error
}

// FieldByName returns the first field with the given name, if present.
func (it ParsedItem) FieldByName(name string) (ParsedField, bool) {
	for _, f := range it.Fields {
		if f.Def.Name == name {
			return f, true
		}
	}
	return ParsedField{}, false
}

// Valid reports whether the item decoded with no field or item-level error.
func (it ParsedItem) Valid() bool { return it.Err == nil }

// ParsedRecord is one FSPEC-delimited record within a ParsedBlock.
type ParsedRecord struct {
	Items     []ParsedItem
	FSPEC     []byte
	Length    int // total bytes consumed, including FSPEC
	Err       error
	Diagnostics []string
}

// Valid reports whether the record and all of its items decoded cleanly.
func (r ParsedRecord) Valid() bool {
	if r.Err != nil {
		return false
	}
	for _, it := range r.Items {
		if !it.Valid() {
			return false
		}
	}
	return true
}

// ItemIDs returns the ids of the record's parsed items in order.
func (r ParsedRecord) ItemIDs() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = string(it.ID)
	}
	return ids
}

// ItemByID returns the first parsed item with the given id, if present.
func (r ParsedRecord) ItemByID(id schema.ItemRef) (ParsedItem, bool) {
	for _, it := range r.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ParsedItem{}, false
}

// ParsedBlock is the decoded result of one ASTERIX block.
type ParsedBlock struct {
	Category    uint8
	Length      uint16
	Records     []ParsedRecord
	Warnings    []string
	Err         error
}

// Valid reports whether the block and every record decoded cleanly.
func (b ParsedBlock) Valid() bool {
	if b.Err != nil {
		return false
	}
	for _, r := range b.Records {
		if !r.Valid() {
			return false
		}
	}
	return true
}
