package present

import (
	"testing"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/schema"
)

func TestFormatTimeOfDay(t *testing.T) {
	got := formatTimeOfDay(3725.5)
	want := "01:02:05.500"
	if got != want {
		t.Errorf("formatTimeOfDay(3725.5) = %s, want %s", got, want)
	}
}

func TestFormatFlightLevel(t *testing.T) {
	if got := formatFlightLevel(330); got != "FL330" {
		t.Errorf("formatFlightLevel(330) = %s, want FL330", got)
	}
}

func TestFieldPlainInteger(t *testing.T) {
	f := asterix.ParsedField{
		Def:   schema.FieldDef{Name: "SAC", LSB: 1},
		Value: asterix.UintValue(25),
	}
	if got := Field(f); got != "25" {
		t.Errorf("Field() = %s, want 25", got)
	}
}

func TestFieldSecondsUnit(t *testing.T) {
	f := asterix.ParsedField{
		Def:   schema.FieldDef{Name: "ToD", LSB: 1.0 / 128.0, Unit: schema.UnitSeconds},
		Value: asterix.UintValue(128 * 5),
	}
	if got := Field(f); got != "00:00:05.000" {
		t.Errorf("Field() = %s, want 00:00:05.000", got)
	}
}

func TestFieldError(t *testing.T) {
	f := asterix.ParsedField{Err: errBoom{}}
	if got := Field(f); got != "ERR" {
		t.Errorf("Field() = %s, want ERR", got)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestItemRendersAllFields(t *testing.T) {
	item := asterix.ParsedItem{Fields: []asterix.ParsedField{
		{Def: schema.FieldDef{Name: "SAC", LSB: 1}, Value: asterix.UintValue(1)},
		{Def: schema.FieldDef{Name: "SIC", LSB: 1}, Value: asterix.UintValue(2)},
	}}
	got := Item(item)
	if len(got) != 2 || got[0] != "SAC=1" || got[1] != "SIC=2" {
		t.Errorf("Item() = %v", got)
	}
}
