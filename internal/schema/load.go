package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaError is returned by FromDocument/Load when a category description
// is ill-formed. It is always attributable to a single item or field.
type SchemaError struct {
	Category uint8
	Item     string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema: category %d", e.Category)
	if e.Item != "" {
		fmt.Fprintf(&b, " item %s", e.Item)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// Document is the on-disk (YAML) shape a category description is parsed
// into before being converted to the immutable Category. The wire syntax of
// the description is an external-collaborator concern (spec.md treats the
// loader's input format as out of scope for the core); YAML is used here as
// the concrete, in-repo stand-in for "today XML, but format-agnostic".
type Document struct {
	Category    uint8               `yaml:"category"`
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	Version     string              `yaml:"version,omitempty"`
	Date        string              `yaml:"date,omitempty"`
	MultiRecord *bool               `yaml:"multiRecord,omitempty"`
	UAP         []string            `yaml:"uap"`
	Items       []DocumentItem      `yaml:"items"`
	Validations []DocumentValidation `yaml:"validations,omitempty"`
}

type DocumentItem struct {
	ID     string         `yaml:"id"`
	Name   string         `yaml:"name,omitempty"`
	Desc   string         `yaml:"description,omitempty"`
	Format string         `yaml:"format"`
	Length uint16         `yaml:"length,omitempty"`
	Fields []DocumentField `yaml:"fields,omitempty"`
}

type DocumentField struct {
	Name            string               `yaml:"name"`
	Type            string               `yaml:"type"`
	Bits            int                  `yaml:"bits"`
	LSB             float64              `yaml:"lsb,omitempty"`
	Unit            string               `yaml:"unit,omitempty"`
	Enums           []DocumentEnum       `yaml:"enums,omitempty"`
	Encoding        string               `yaml:"encoding,omitempty"`
	Condition       string               `yaml:"condition,omitempty"`
	ExtensionFields []DocumentField      `yaml:"extensionFields,omitempty"`
}

type DocumentEnum struct {
	Value uint32 `yaml:"value"`
	Label string `yaml:"label"`
}

type DocumentValidation struct {
	FieldID   string `yaml:"fieldId"`
	Kind      string `yaml:"kind"`
	Condition string `yaml:"condition,omitempty"`
}

// Load reads and parses a single category description file.
func Load(path string) (*Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	return FromDocument(doc)
}

// LoadDirectory loads every *.yaml/*.yml category description in dir and
// returns them keyed by category number. At least one category must load
// successfully or an error is returned, mirroring
// load_categories_from_directory in the original implementation.
func LoadDirectory(dir string) (map[uint8]*Category, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[uint8]*Category)
	var loadErrs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		full := filepath.Join(dir, e.Name())
		cat, err := Load(full)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Sprintf("%s: %v", e.Name(), err))
			continue
		}
		out[cat.Header.Category] = cat
	}
	if len(out) == 0 {
		if len(loadErrs) > 0 {
			return nil, fmt.Errorf("schema: no categories loaded from %s: %s", dir, strings.Join(loadErrs, "; "))
		}
		return nil, fmt.Errorf("schema: no category descriptions found in %s", dir)
	}
	return out, nil
}

// FromDocument converts a parsed Document into an immutable Category,
// rejecting ill-formed schemas per spec.md §4.1.
func FromDocument(doc Document) (*Category, error) {
	cat := &Category{
		Header: Header{
			Category:    doc.Category,
			Name:        doc.Name,
			Description: doc.Description,
			Version:     doc.Version,
			Date:        doc.Date,
		},
		MultiRecord: true,
		Items:       make(map[ItemRef]ItemDef, len(doc.Items)),
	}
	if doc.MultiRecord != nil {
		cat.MultiRecord = *doc.MultiRecord
	}
	for _, id := range doc.UAP {
		cat.UAP = append(cat.UAP, ItemRef(id))
	}

	for _, di := range doc.Items {
		item, err := convertItem(doc.Category, di)
		if err != nil {
			return nil, err
		}
		if _, dup := cat.Items[item.ID]; dup {
			return nil, &SchemaError{Category: doc.Category, Item: string(item.ID), Reason: "duplicate item id"}
		}
		cat.Items[item.ID] = item
	}

	for _, slot := range cat.UAP {
		if slot == SpareItem || slot == "" {
			continue
		}
		if _, ok := cat.Items[slot]; !ok {
			return nil, &SchemaError{Category: doc.Category, Item: string(slot), Reason: "UAP item has no matching definition"}
		}
	}

	for _, dv := range doc.Validations {
		rule := ValidationRule{
			FieldID:   ItemRef(dv.FieldID),
			Kind:      ValidationKind(dv.Kind),
			Condition: dv.Condition,
		}
		switch rule.Kind {
		case Mandatory, Conditional, Optional:
		default:
			return nil, &SchemaError{Category: doc.Category, Field: dv.FieldID, Reason: fmt.Sprintf("unknown validation kind %q", dv.Kind)}
		}
		cat.Validations = append(cat.Validations, rule)
	}

	return cat, nil
}

func convertItem(catID uint8, di DocumentItem) (ItemDef, error) {
	var item ItemDef
	item.ID = ItemRef(di.ID)
	item.Name = di.Name
	item.Desc = di.Desc

	format, err := parseFormat(di.Format)
	if err != nil {
		return item, &SchemaError{Category: catID, Item: di.ID, Reason: err.Error()}
	}
	item.Format = format

	switch format {
	case Fixed, Repetitive:
		if di.Length == 0 {
			return item, &SchemaError{Category: catID, Item: di.ID, Reason: fmt.Sprintf("%s format requires length", format)}
		}
		item.Length = di.Length
	}

	fields, fixedBits, err := convertFields(catID, di.ID, di.Fields)
	if err != nil {
		return item, err
	}
	item.Fields = fields

	switch format {
	case Variable, Extended:
		if fixedBits == 0 || fixedBits%8 != 0 {
			return item, &SchemaError{Category: catID, Item: di.ID, Reason: "variable/extended fixed portion must be a whole number of bytes including the FX bit"}
		}
		lastField := fields[len(fields)-1]
		if !strings.EqualFold(lastField.Name, "FX") && lastField.Bits != 1 {
			return item, &SchemaError{Category: catID, Item: di.ID, Reason: "variable/extended format requires a trailing 1-bit FX field"}
		}
	case Fixed:
		if fixedBits%8 != 0 {
			return item, &SchemaError{Category: catID, Item: di.ID, Reason: "fixed format fields must sum to a whole number of bytes"}
		}
	}

	return item, nil
}

func convertFields(catID uint8, itemID string, docs []DocumentField) ([]FieldDef, int, error) {
	names := make(map[string]bool)
	var fields []FieldDef
	total := 0
	for _, df := range docs {
		ft, err := parseFieldType(df.Type)
		if err != nil {
			return nil, 0, &SchemaError{Category: catID, Item: itemID, Field: df.Name, Reason: err.Error()}
		}
		if df.Bits <= 0 || df.Bits > 32 {
			return nil, 0, &SchemaError{Category: catID, Item: itemID, Field: df.Name, Reason: fmt.Sprintf("bits must be in 1..32, got %d", df.Bits)}
		}
		lsb := df.LSB
		if lsb == 0 {
			lsb = 1.0
		}
		field := FieldDef{
			Name:      df.Name,
			Type:      ft,
			Bits:      df.Bits,
			LSB:       lsb,
			Unit:      Unit(df.Unit),
			Encoding:  df.Encoding,
			Condition: df.Condition,
		}
		for _, de := range df.Enums {
			field.Enums = append(field.Enums, EnumValue{Value: de.Value, Label: de.Label})
		}
		if len(df.ExtensionFields) > 0 {
			ext, _, err := convertFields(catID, itemID, df.ExtensionFields)
			if err != nil {
				return nil, 0, err
			}
			field.ExtensionFields = ext
		}
		if field.Condition != "" {
			if err := validateConditionFields(field.Condition, names, field.Name); err != nil {
				return nil, 0, &SchemaError{Category: catID, Item: itemID, Field: field.Name, Reason: err.Error()}
			}
		}
		names[field.Name] = true
		fields = append(fields, field)
		total += field.Bits
	}
	return fields, total, nil
}

func parseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return Fixed, nil
	case "variable":
		return Variable, nil
	case "extended":
		return Extended, nil
	case "repetitive":
		return Repetitive, nil
	case "explicit":
		return Explicit, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

func parseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u8", "u1", "u2", "u3", "u4", "u5", "u6", "u7":
		return U8, nil
	case "u16", "u12", "u14":
		return U16, nil
	case "u24":
		return U24, nil
	case "u32":
		return U32, nil
	case "i8":
		return I8, nil
	case "i16":
		return I16, nil
	case "i24":
		return I24, nil
	case "i32":
		return I32, nil
	case "bool":
		return Bool, nil
	case "string":
		return String, nil
	case "bytes":
		return Bytes, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}
