package validate

import (
	"testing"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/schema"
)

func recordWithItems(items ...asterix.ParsedItem) asterix.ParsedRecord {
	return asterix.ParsedRecord{Items: items}
}

func itemOK(id schema.ItemRef, fields ...asterix.ParsedField) asterix.ParsedItem {
	return asterix.ParsedItem{ID: id, Fields: fields}
}

func TestRecordMandatoryPresent(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I010", Kind: schema.Mandatory},
	}}
	rec := recordWithItems(itemOK("I010"))
	res := Record(cat, rec, true)
	if !res.Valid() {
		t.Errorf("expected valid, got diagnostics: %v", res.Diagnostics)
	}
}

func TestRecordMandatoryAbsent(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I010", Kind: schema.Mandatory},
	}}
	rec := recordWithItems()
	res := Record(cat, rec, true)
	if res.Valid() {
		t.Error("expected invalid when mandatory item absent")
	}
}

func TestRecordConditionalTriggered(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I130", Kind: schema.Conditional, Condition: "hasRE == 1"},
	}}
	rec := recordWithItems(itemOK("I020", asterix.ParsedField{
		Def:   schema.FieldDef{Name: "hasRE"},
		Value: asterix.UintValue(1),
	}))
	res := Record(cat, rec, true)
	if res.Valid() {
		t.Error("expected invalid: conditional item required but absent")
	}
}

func TestRecordConditionalNotTriggered(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I130", Kind: schema.Conditional, Condition: "hasRE == 1"},
	}}
	rec := recordWithItems(itemOK("I020", asterix.ParsedField{
		Def:   schema.FieldDef{Name: "hasRE"},
		Value: asterix.UintValue(0),
	}))
	res := Record(cat, rec, true)
	if !res.Valid() {
		t.Errorf("expected valid, got diagnostics: %v", res.Diagnostics)
	}
}

func TestRecordOptionalNeverFails(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I999", Kind: schema.Optional},
	}}
	res := Record(cat, recordWithItems(), true)
	if !res.Valid() {
		t.Error("optional rule should never fail")
	}
}

func TestRecordUnrecognizedConditionWarnsOnly(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I130", Kind: schema.Conditional, Condition: "bad <> syntax"},
	}}
	res := Record(cat, recordWithItems(), true)
	if !res.Valid() {
		t.Error("malformed condition should warn, not invalidate")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Severity != SeverityWarning {
		t.Errorf("diagnostics = %v, want one warning", res.Diagnostics)
	}
}

func TestRecordMandatoryAbsentLenientWarnsOnly(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I010", Kind: schema.Mandatory},
	}}
	rec := recordWithItems()
	res := Record(cat, rec, false)
	if !res.Valid() {
		t.Error("lenient mode should downgrade a missing mandatory item to a warning")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Severity != SeverityWarning {
		t.Errorf("diagnostics = %v, want one warning", res.Diagnostics)
	}
}

func TestBlockValidatesEveryRecord(t *testing.T) {
	cat := &schema.Category{Validations: []schema.ValidationRule{
		{FieldID: "I010", Kind: schema.Mandatory},
	}}
	b := asterix.ParsedBlock{Records: []asterix.ParsedRecord{
		recordWithItems(itemOK("I010")),
		recordWithItems(),
	}}
	results := Block(cat, b, true)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].Valid() || results[1].Valid() {
		t.Errorf("results = %+v", results)
	}
}
