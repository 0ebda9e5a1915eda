package asterix

import (
	"testing"

	"example.com/asterixgate/internal/bits"
	"example.com/asterixgate/internal/schema"
)

func TestParseItemFixedSignExtension(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Fixed, Length: 1,
		Fields: []schema.FieldDef{{Name: "V", Type: schema.I8, Bits: 8}},
	}
	cur := bits.New([]byte{0xFF})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	f, ok := item.FieldByName("V")
	if !ok {
		t.Fatal("missing field V")
	}
	if f.Value.Kind != KindInt || f.Value.I != -1 {
		t.Errorf("V = %+v, want int -1", f.Value)
	}
}

func TestParseItemVariableFXChain(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Variable,
		Fields: []schema.FieldDef{
			{Name: "WE", Type: schema.U8, Bits: 7},
			{Name: "FX", Type: schema.Bool, Bits: 1, ExtensionFields: []schema.FieldDef{
				{Name: "WE2", Type: schema.U8, Bits: 7},
				{Name: "FX2", Type: schema.Bool, Bits: 1},
			}},
		},
	}
	cur := bits.New([]byte{0x03, 0x02})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	if item.Length != 2 {
		t.Errorf("Length = %d, want 2", item.Length)
	}
	we, _ := item.FieldByName("WE")
	we2, _ := item.FieldByName("WE2")
	fx, _ := item.FieldByName("FX")
	fx2, _ := item.FieldByName("FX2")
	if we.Value.U != 1 || we2.Value.U != 1 {
		t.Errorf("WE=%d WE2=%d, want 1, 1", we.Value.U, we2.Value.U)
	}
	if !fx.Value.B || fx2.Value.B {
		t.Errorf("FX=%v FX2=%v, want true, false", fx.Value.B, fx2.Value.B)
	}
}

// TestParseItemVariableRepeatsGroupWithoutDeclaredExtension covers a
// schema-legal Variable item whose FX chain repeats the same one-byte group
// (no ExtensionFields declared on the FX field at all) more than once: the
// chain must keep reading groups of the initial layout for as long as FX
// stays set, not stop and leave the remaining wire bytes unread.
func TestParseItemVariableRepeatsGroupWithoutDeclaredExtension(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Variable,
		Fields: []schema.FieldDef{
			{Name: "WE", Type: schema.U8, Bits: 7},
			{Name: "FX", Type: schema.Bool, Bits: 1},
		},
	}
	// group0: WE=1,FX=1 ; group1: WE=2,FX=1 ; group2: WE=3,FX=0
	cur := bits.New([]byte{0x03, 0x05, 0x06})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	if item.Length != 3 {
		t.Fatalf("Length = %d, want 3 (all three groups consumed)", item.Length)
	}
	var we []uint32
	for _, f := range item.Fields {
		if f.Def.Name == "WE" {
			we = append(we, f.Value.U)
		}
	}
	if len(we) != 3 || we[0] != 1 || we[1] != 2 || we[2] != 3 {
		t.Errorf("WE values = %v, want [1 2 3]", we)
	}
}

func TestParseItemRepetitive(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Repetitive, Length: 2,
		Fields: []schema.FieldDef{
			{Name: "A", Type: schema.U8, Bits: 8},
			{Name: "B", Type: schema.U8, Bits: 8},
		},
	}
	cur := bits.New([]byte{0x03, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	if item.Length != 7 {
		t.Errorf("Length = %d, want 7", item.Length)
	}
	if len(item.Fields) != 6 {
		t.Fatalf("len(Fields) = %d, want 6", len(item.Fields))
	}
	want := []uint32{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	for i, f := range item.Fields {
		if f.Value.U != want[i] {
			t.Errorf("Fields[%d] = %#x, want %#x", i, f.Value.U, want[i])
		}
	}
}

func TestParseItemExplicit(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Explicit,
		Fields: []schema.FieldDef{{Name: "Payload", Type: schema.Bytes, Bits: 32}},
	}
	cur := bits.New([]byte{0x05, 0x11, 0x22, 0x33, 0x44})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	if item.Length != 5 {
		t.Errorf("Length = %d, want 5", item.Length)
	}
	f, ok := item.FieldByName("Payload")
	if !ok {
		t.Fatal("missing field Payload")
	}
	if f.Value.Kind != KindBytes {
		t.Fatalf("Kind = %v, want KindBytes", f.Value.Kind)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44}
	if len(f.Value.Bin) != len(want) {
		t.Fatalf("Bin = %x, want %x", f.Value.Bin, want)
	}
	for i := range want {
		if f.Value.Bin[i] != want[i] {
			t.Errorf("Bin[%d] = %#x, want %#x", i, f.Value.Bin[i], want[i])
		}
	}
}

func TestParseItemICAO6BitString(t *testing.T) {
	// "AB" in the ICAO 6-bit alphabet: A=1, B=2 -> 000001 000010, padded to
	// whole bytes with trailing spaces (code 0) to a 24-bit (4-char) field.
	def := schema.ItemDef{
		ID: "I999", Format: schema.Fixed, Length: 3,
		Fields: []schema.FieldDef{
			{Name: "Callsign", Type: schema.String, Bits: 24, Encoding: "6bit_ascii"},
		},
	}
	// codes: A(1) B(2) space(0) space(0) packed MSB-first across 3 bytes.
	// 000001 000010 000000 000000 -> bytes 0000 0100 0010 0000 0000 0000
	cur := bits.New([]byte{0x04, 0x20, 0x00})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	f, ok := item.FieldByName("Callsign")
	if !ok {
		t.Fatal("missing field Callsign")
	}
	if f.Value.Kind != KindString || f.Value.S != "AB" {
		t.Errorf("Callsign = %+v, want string \"AB\"", f.Value)
	}
}

func TestParseItemBytesPackedMSBFirst(t *testing.T) {
	def := schema.ItemDef{
		ID: "I999", Format: schema.Fixed, Length: 2,
		Fields: []schema.FieldDef{{Name: "Raw", Type: schema.Bytes, Bits: 16}},
	}
	cur := bits.New([]byte{0x12, 0x34})
	item := ParseItem(def, cur)
	if item.Err != nil {
		t.Fatalf("ParseItem: %v", item.Err)
	}
	f, _ := item.FieldByName("Raw")
	if f.Value.Kind != KindBytes {
		t.Fatalf("Kind = %v, want KindBytes", f.Value.Kind)
	}
	want := []byte{0x12, 0x34}
	if len(f.Value.Bin) != 2 || f.Value.Bin[0] != want[0] || f.Value.Bin[1] != want[1] {
		t.Errorf("Bin = %x, want %x", f.Value.Bin, want)
	}
}

// cat002Schema is a trimmed CAT002 (monoradar service messages) category
// exercising the block/record decoder against a real multi-record capture,
// not just a single synthetic item.
func cat002Schema() *schema.Category {
	return &schema.Category{
		Header:      schema.Header{Category: 2, Name: "cat002"},
		MultiRecord: true,
		UAP: []schema.ItemRef{
			"I010", "I000", "I020", "I030", "I041", "spare", "spare",
		},
		Items: map[schema.ItemRef]schema.ItemDef{
			"I010": {
				ID: "I010", Format: schema.Fixed, Length: 2,
				Fields: []schema.FieldDef{
					{Name: "SAC", Type: schema.U8, Bits: 8},
					{Name: "SIC", Type: schema.U8, Bits: 8},
				},
			},
			"I000": {
				ID: "I000", Format: schema.Fixed, Length: 1,
				Fields: []schema.FieldDef{{Name: "MsgType", Type: schema.U8, Bits: 8}},
			},
			"I020": {
				ID: "I020", Format: schema.Fixed, Length: 1,
				Fields: []schema.FieldDef{{Name: "Sector", Type: schema.U8, Bits: 8, LSB: 360.0 / 256, Unit: schema.UnitDegrees}},
			},
			"I030": {
				ID: "I030", Format: schema.Fixed, Length: 3,
				Fields: []schema.FieldDef{{Name: "ToD", Type: schema.U24, Bits: 24, LSB: 1.0 / 128, Unit: schema.UnitSeconds}},
			},
			"I041": {
				ID: "I041", Format: schema.Fixed, Length: 2,
				Fields: []schema.FieldDef{{Name: "ARP", Type: schema.U16, Bits: 16}},
			},
		},
	}
}

// TestDecodeBlockCAT002MultiRecordSample decodes the five-record CAT002
// sample block: record 1 carries SAC/SIC, message type, sector and time of
// day; record 2 carries a sector azimuth reading with no SAC/SIC; records
// 3-5 are empty (FSPEC 0x00).
func TestDecodeBlockCAT002MultiRecordSample(t *testing.T) {
	raw := []byte{
		0x02, 0x00, 0x16,
		0xF0, 0x00, 0x10, 0x01, 0x00, 0x12, 0x34, 0x56,
		0x78, 0x9A, 0xBC, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00,
		0x00,
		0x00,
	}
	d := NewDecoder(Config{})
	d.RegisterCategory(cat002Schema())
	block := d.DecodeBlock(raw)
	if block.Err != nil {
		t.Fatalf("DecodeBlock: %v", block.Err)
	}
	if len(block.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", block.Warnings)
	}
	if len(block.Records) != 5 {
		t.Fatalf("len(Records) = %d, want 5", len(block.Records))
	}

	rec1 := block.Records[0]
	if !rec1.Valid() {
		t.Fatalf("record 1 invalid: %v", rec1.Err)
	}
	sac, _ := rec1.ItemByID("I010")
	sacF, _ := sac.FieldByName("SAC")
	sicF, _ := sac.FieldByName("SIC")
	if sacF.Value.U != 0x00 || sicF.Value.U != 0x10 {
		t.Errorf("record1 SAC/SIC = %#x/%#x, want 0x00/0x10", sacF.Value.U, sicF.Value.U)
	}
	msg1, _ := rec1.ItemByID("I000")
	msg1F, _ := msg1.FieldByName("MsgType")
	if msg1F.Value.U != 0x01 {
		t.Errorf("record1 MsgType = %#x, want 0x01", msg1F.Value.U)
	}
	tod1, _ := rec1.ItemByID("I030")
	tod1F, _ := tod1.FieldByName("ToD")
	if tod1F.Value.U != 0x123456 {
		t.Errorf("record1 ToD raw = %#x, want 0x123456", tod1F.Value.U)
	}
	if _, ok := rec1.ItemByID("I041"); ok {
		t.Error("record1 should not carry I041")
	}

	rec2 := block.Records[1]
	if !rec2.Valid() {
		t.Fatalf("record 2 invalid: %v", rec2.Err)
	}
	if _, ok := rec2.ItemByID("I010"); ok {
		t.Error("record2 should not carry I010")
	}
	msg2, _ := rec2.ItemByID("I000")
	msg2F, _ := msg2.FieldByName("MsgType")
	if msg2F.Value.U != 0x9A {
		t.Errorf("record2 MsgType = %#x, want 0x9A", msg2F.Value.U)
	}
	sector2, _ := rec2.ItemByID("I020")
	sector2F, _ := sector2.FieldByName("Sector")
	if sector2F.Value.U != 0xBC {
		t.Errorf("record2 Sector raw = %#x, want 0xBC", sector2F.Value.U)
	}

	for i := 2; i < 5; i++ {
		rec := block.Records[i]
		if !rec.Valid() {
			t.Errorf("record %d invalid: %v", i+1, rec.Err)
		}
		if len(rec.Items) != 0 {
			t.Errorf("record %d = %d items, want 0 (empty FSPEC)", i+1, len(rec.Items))
		}
	}
}
