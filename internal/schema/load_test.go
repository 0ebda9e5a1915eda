package schema

import "testing"

func minimalCat002Doc() Document {
	return Document{
		Category: 2,
		Name:     "CAT002",
		UAP:      []string{"I010", "I000", "spare", "I020"},
		Items: []DocumentItem{
			{
				ID:     "I010",
				Name:   "Data Source Identifier",
				Format: "fixed",
				Length: 2,
				Fields: []DocumentField{
					{Name: "SAC", Type: "u8", Bits: 8},
					{Name: "SIC", Type: "u8", Bits: 8},
				},
			},
			{
				ID:     "I000",
				Name:   "Message Type",
				Format: "fixed",
				Length: 1,
				Fields: []DocumentField{
					{Name: "type", Type: "u8", Bits: 8},
				},
			},
			{
				ID:     "I020",
				Name:   "Sector Number",
				Format: "fixed",
				Length: 1,
				Fields: []DocumentField{
					{Name: "sector", Type: "u8", Bits: 8, LSB: 1.40625, Unit: "deg"},
				},
			},
		},
		Validations: []DocumentValidation{
			{FieldID: "I010", Kind: "mandatory"},
		},
	}
}

func TestFromDocumentValid(t *testing.T) {
	cat, err := FromDocument(minimalCat002Doc())
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if cat.Header.Category != 2 {
		t.Errorf("Category = %d, want 2", cat.Header.Category)
	}
	if len(cat.UAP) != 4 {
		t.Errorf("len(UAP) = %d, want 4", len(cat.UAP))
	}
	if _, ok := cat.Lookup("I010"); !ok {
		t.Error("Lookup(I010) failed")
	}
	if !cat.MultiRecord {
		t.Error("MultiRecord should default true")
	}
}

func TestFromDocumentUnknownUAPItem(t *testing.T) {
	doc := minimalCat002Doc()
	doc.UAP = append(doc.UAP, "I999")
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for UAP entry with no matching item")
	}
}

func TestFromDocumentUnknownFieldType(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items[0].Fields[0].Type = "u99"
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for unknown field type")
	}
}

func TestFromDocumentNonPositiveBits(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items[0].Fields[0].Bits = 0
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for non-positive bits")
	}
}

func TestFromDocumentMissingLengthForFixed(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items[0].Length = 0
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for fixed item missing length")
	}
}

func TestFromDocumentConditionOnUndeclaredField(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items[1].Fields[0].Condition = "ghost == 1"
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for condition referencing undeclared field")
	}
}

func TestFromDocumentMultiRecordOverride(t *testing.T) {
	doc := minimalCat002Doc()
	f := false
	doc.MultiRecord = &f
	cat, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if cat.MultiRecord {
		t.Error("MultiRecord should honor explicit false")
	}
}

func TestFromDocumentVariableRequiresFXField(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items = append(doc.Items, DocumentItem{
		ID:     "I040",
		Format: "variable",
		Fields: []DocumentField{
			{Name: "flag1", Type: "u8", Bits: 7},
			{Name: "FX", Type: "bool", Bits: 1},
		},
	})
	if _, err := FromDocument(doc); err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
}

func TestFromDocumentVariableMissingFXField(t *testing.T) {
	doc := minimalCat002Doc()
	doc.Items = append(doc.Items, DocumentItem{
		ID:     "I040",
		Format: "variable",
		Fields: []DocumentField{
			{Name: "flag1", Type: "u8", Bits: 8},
		},
	})
	if _, err := FromDocument(doc); err == nil {
		t.Error("expected error for variable item without trailing FX bit")
	}
}
