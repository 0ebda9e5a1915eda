// Package report renders a decoded block's records, validation diagnostics
// and statistics as JSON, PDF, and a QR-coded manifest hash for a paper
// trail, the way ch10gate's acceptance report pipeline did for CH10 gating.
package report

import (
	"encoding/json"
	"os"
	"time"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/present"
	"example.com/asterixgate/internal/stats"
	"example.com/asterixgate/internal/validate"
)

// DecodeReport is the top-level document a decode/validate run renders.
type DecodeReport struct {
	Category    uint8              `json:"category"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Summary     Summary            `json:"summary"`
	Records     []RecordSummary    `json:"records"`
	Stats       stats.Stats        `json:"stats"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Summary is the pass/fail rollup over every record in the block.
type Summary struct {
	Total   int  `json:"total"`
	Valid   int  `json:"valid"`
	Invalid int  `json:"invalid"`
	Pass    bool `json:"pass"`
}

// RecordSummary is one record's validation outcome.
type RecordSummary struct {
	Index       int                  `json:"index"`
	ItemIDs     []string             `json:"itemIds"`
	Length      int                  `json:"length"`
	Valid       bool                 `json:"valid"`
	Fields      []FieldSummary       `json:"fields,omitempty"`
	Diagnostics []validate.Diagnostic `json:"diagnostics,omitempty"`
}

// FieldSummary is one decoded field rendered for display, not for
// re-parsing: Display is the presentation-layer formatting of Value (unit
// and LSB scaling applied where the schema declares them).
type FieldSummary struct {
	ItemID  string `json:"itemId"`
	Name    string `json:"name"`
	Display string `json:"display"`
}

// Build assembles a DecodeReport from a decoded block and its per-record
// validation results; results[i] belongs to b.Records[i], and a record with
// no entry in results is judged on its decode error alone.
func Build(category uint8, b asterix.ParsedBlock, results []validate.Result) DecodeReport {
	rep := DecodeReport{
		Category:    category,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats.Analyze(b),
		Warnings:    b.Warnings,
	}
	rep.Summary.Total = len(b.Records)

	for i, rec := range b.Records {
		rs := RecordSummary{Index: i, Length: rec.Length, Valid: rec.Valid()}
		for _, item := range rec.Items {
			rs.ItemIDs = append(rs.ItemIDs, string(item.ID))
			for _, f := range item.Fields {
				rs.Fields = append(rs.Fields, FieldSummary{
					ItemID:  string(item.ID),
					Name:    f.Def.Name,
					Display: present.Field(f),
				})
			}
		}
		if i < len(results) {
			rs.Diagnostics = results[i].Diagnostics
			rs.Valid = rs.Valid && results[i].Valid()
		}
		if rs.Valid {
			rep.Summary.Valid++
		} else {
			rep.Summary.Invalid++
		}
		rep.Records = append(rep.Records, rs)
	}
	rep.Summary.Pass = rep.Summary.Invalid == 0 && b.Err == nil

	return rep
}

// SaveDecodeJSON writes rep as indented JSON to out.
func SaveDecodeJSON(rep DecodeReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadDecodeJSON reads back a report written by SaveDecodeJSON.
func LoadDecodeJSON(path string) (DecodeReport, error) {
	var rep DecodeReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
