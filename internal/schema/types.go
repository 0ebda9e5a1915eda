// Package schema holds the declarative, immutable-after-load description of
// an ASTERIX category: its header metadata, UAP, data-item catalogue and
// validation rules.
package schema

import "fmt"

// FieldType is the closed set of storage representations a FieldDef can
// decode to.
type FieldType int

const (
	U8 FieldType = iota
	U16
	U24
	U32
	I8
	I16
	I24
	I32
	Bool
	String
	Bytes
)

func (t FieldType) String() string {
	switch t {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U24:
		return "u24"
	case U32:
		return "u32"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I24:
		return "i24"
	case I32:
		return "i32"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("fieldtype(%d)", int(t))
	}
}

func (t FieldType) Signed() bool {
	switch t {
	case I8, I16, I24, I32:
		return true
	default:
		return false
	}
}

// Format is the data-item body-length discipline.
type Format int

const (
	Fixed Format = iota
	Variable
	Extended
	Repetitive
	Explicit
)

func (f Format) String() string {
	switch f {
	case Fixed:
		return "fixed"
	case Variable:
		return "variable"
	case Extended:
		return "extended"
	case Repetitive:
		return "repetitive"
	case Explicit:
		return "explicit"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Unit is metadata retained alongside a raw decoded value so presentation
// layers can produce a physical quantity. The decoder never applies it.
type Unit string

const (
	UnitNone          Unit = ""
	UnitSeconds       Unit = "s"
	UnitNauticalMiles Unit = "NM"
	UnitDegrees       Unit = "deg"
	UnitFlightLevel   Unit = "FL"
	UnitFeet          Unit = "ft"
	UnitKnots         Unit = "kt"
	UnitMetersPerSec  Unit = "m/s"
)

// EnumValue names a single raw integer value of a field.
type EnumValue struct {
	Value uint32
	Label string
}

// FieldDef describes one bit-level field within an item's declared body.
type FieldDef struct {
	Name             string
	Type             FieldType
	Bits             int
	LSB              float64
	Unit             Unit
	Enums            []EnumValue
	Encoding         string
	Condition        string
	ExtensionFields  []FieldDef
}

// IsSpare reports whether the field is a padding placeholder that advances
// the bit offset but produces no ParsedField.
func (f FieldDef) IsSpare() bool { return f.Name == "spare" }

// ItemRef identifies a data item within a UAP slot or catalogue. The value
// "spare" is a reserved sentinel meaning "no item occupies this FSPEC bit".
type ItemRef string

const SpareItem ItemRef = "spare"

// ItemDef is the catalogue entry for one data item.
type ItemDef struct {
	ID     ItemRef
	Name   string
	Desc   string
	Format Format
	Length uint16 // required for Fixed/Repetitive
	Fields []FieldDef
}

// ValidationKind classifies a ValidationRule.
type ValidationKind string

const (
	Mandatory   ValidationKind = "mandatory"
	Conditional ValidationKind = "conditional"
	Optional    ValidationKind = "optional"
)

// ValidationRule is a schema-declared predicate evaluated against a decoded
// record by package validate.
type ValidationRule struct {
	FieldID   ItemRef
	Kind      ValidationKind
	Condition string
}

// Header carries the category's descriptive metadata.
type Header struct {
	Category    uint8
	Name        string
	Description string
	Version     string
	Date        string
}

// Category is the complete, immutable-after-load description of one ASTERIX
// category: its UAP, item catalogue and validation rules.
type Category struct {
	Header      Header
	UAP         []ItemRef
	Items       map[ItemRef]ItemDef
	Validations []ValidationRule
	// MultiRecord marks whether blocks of this category should be walked as
	// a bounded sequence of records (true, the default) or decoded as a
	// single record regardless of leftover bytes (false). This is a
	// category-schema property, not a hard-coded category number.
	MultiRecord bool
}

// Lookup returns the catalogue entry for id, or false if absent.
func (c *Category) Lookup(id ItemRef) (ItemDef, bool) {
	if c == nil {
		return ItemDef{}, false
	}
	item, ok := c.Items[id]
	return item, ok
}

// UAPSlots returns the ordered UAP, for callers that want to walk it without
// reaching into the struct directly.
func (c *Category) UAPSlots() []ItemRef {
	if c == nil {
		return nil
	}
	return c.UAP
}
