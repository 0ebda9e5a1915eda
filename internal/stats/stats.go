// Package stats summarizes a decoded block: record counts, length
// distribution and per-item frequency. It is a CLI-level convenience built
// on top of the decoder's output, not consulted by the decoder itself.
package stats

import (
	"sort"

	"example.com/asterixgate/internal/asterix"
)

// ItemFrequency is one entry of the per-item-id histogram, kept as a slice
// (rather than a bare map) so output ordering is stable.
type ItemFrequency struct {
	ID    string
	Count int
}

// Stats is the statistical summary of one decoded block.
type Stats struct {
	RecordCount   int
	ValidRecords  int
	InvalidRecords int
	LengthMin     int
	LengthMax     int
	LengthAvg     float64
	ItemFrequency []ItemFrequency
}

// Analyze computes Stats over every record in b.
func Analyze(b asterix.ParsedBlock) Stats {
	var s Stats
	s.RecordCount = len(b.Records)
	if s.RecordCount == 0 {
		return s
	}

	freq := make(map[string]int)
	totalLen := 0
	s.LengthMin = b.Records[0].Length
	s.LengthMax = b.Records[0].Length

	for _, rec := range b.Records {
		if rec.Valid() {
			s.ValidRecords++
		} else {
			s.InvalidRecords++
		}
		totalLen += rec.Length
		if rec.Length < s.LengthMin {
			s.LengthMin = rec.Length
		}
		if rec.Length > s.LengthMax {
			s.LengthMax = rec.Length
		}
		for _, item := range rec.Items {
			freq[string(item.ID)]++
		}
	}

	s.LengthAvg = float64(totalLen) / float64(s.RecordCount)

	for id, count := range freq {
		s.ItemFrequency = append(s.ItemFrequency, ItemFrequency{ID: id, Count: count})
	}
	sort.Slice(s.ItemFrequency, func(i, j int) bool {
		if s.ItemFrequency[i].Count != s.ItemFrequency[j].Count {
			return s.ItemFrequency[i].Count > s.ItemFrequency[j].Count
		}
		return s.ItemFrequency[i].ID < s.ItemFrequency[j].ID
	})

	return s
}

// AnalyzeFile merges Stats across every block decoded from a file; asterixctl
// decode prints its record counts on every run over a multi-block capture.
func AnalyzeFile(blocks []asterix.ParsedBlock) Stats {
	var merged Stats
	freq := make(map[string]int)
	totalLen, n := 0, 0
	first := true

	for _, b := range blocks {
		bs := Analyze(b)
		merged.RecordCount += bs.RecordCount
		merged.ValidRecords += bs.ValidRecords
		merged.InvalidRecords += bs.InvalidRecords
		if bs.RecordCount == 0 {
			continue
		}
		if first {
			merged.LengthMin = bs.LengthMin
			merged.LengthMax = bs.LengthMax
			first = false
		} else {
			if bs.LengthMin < merged.LengthMin {
				merged.LengthMin = bs.LengthMin
			}
			if bs.LengthMax > merged.LengthMax {
				merged.LengthMax = bs.LengthMax
			}
		}
		totalLen += int(bs.LengthAvg * float64(bs.RecordCount))
		n += bs.RecordCount
		for _, f := range bs.ItemFrequency {
			freq[f.ID] += f.Count
		}
	}

	if n > 0 {
		merged.LengthAvg = float64(totalLen) / float64(n)
	}
	for id, count := range freq {
		merged.ItemFrequency = append(merged.ItemFrequency, ItemFrequency{ID: id, Count: count})
	}
	sort.Slice(merged.ItemFrequency, func(i, j int) bool {
		if merged.ItemFrequency[i].Count != merged.ItemFrequency[j].Count {
			return merged.ItemFrequency[i].Count > merged.ItemFrequency[j].Count
		}
		return merged.ItemFrequency[i].ID < merged.ItemFrequency[j].ID
	})

	return merged
}
