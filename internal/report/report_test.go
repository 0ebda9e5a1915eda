package report

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/validate"
)

func sampleBlock() asterix.ParsedBlock {
	return asterix.ParsedBlock{
		Category: 2,
		Records: []asterix.ParsedRecord{
			{Length: 3, Items: []asterix.ParsedItem{{ID: "I010"}}},
			{Length: 3, Items: []asterix.ParsedItem{{ID: "I010"}}, Err: sentinel{}},
		},
	}
}

type sentinel struct{}

func (sentinel) Error() string { return "boom" }

func TestBuildSummary(t *testing.T) {
	results := []validate.Result{{Diagnostics: []validate.Diagnostic{{Severity: validate.SeverityError, Message: "bad"}}}, {}}
	rep := Build(2, sampleBlock(), results)
	if rep.Summary.Total != 2 {
		t.Fatalf("Summary.Total = %d, want 2", rep.Summary.Total)
	}
	if rep.Summary.Invalid != 2 {
		t.Errorf("Summary.Invalid = %d, want 2 (one decode error, one diagnostic)", rep.Summary.Invalid)
	}
	if rep.Summary.Pass {
		t.Error("Summary.Pass should be false")
	}
}

func TestSaveLoadDecodeJSON(t *testing.T) {
	rep := Build(2, sampleBlock(), nil)
	path := filepath.Join(t.TempDir(), "report.json")
	if err := SaveDecodeJSON(rep, path); err != nil {
		t.Fatalf("SaveDecodeJSON: %v", err)
	}
	got, err := LoadDecodeJSON(path)
	if err != nil {
		t.Fatalf("LoadDecodeJSON: %v", err)
	}
	if got.Category != rep.Category || got.Summary.Total != rep.Summary.Total {
		t.Errorf("round-tripped report mismatch: %+v vs %+v", got, rep)
	}
}

func TestSaveDecodePDF(t *testing.T) {
	rep := Build(2, sampleBlock(), nil)
	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := SaveDecodePDF(rep, path); err != nil {
		t.Fatalf("SaveDecodePDF: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty PDF, err=%v", err)
	}
}

func TestTranslatorFallback(t *testing.T) {
	tr := NewTranslator(LangTurkish)
	if tr.Lang() != LangTurkish {
		t.Errorf("Lang() = %s, want tr", tr.Lang())
	}
	if tr.T("report.summary") == "report.summary" {
		t.Error("expected localized summary label")
	}
	if tr.T("does.not.exist") != "does.not.exist" {
		t.Error("unknown key should fall back to the key itself")
	}
}
