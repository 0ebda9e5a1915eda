// Package validate evaluates a category's schema-declared ValidationRules
// against an already-decoded record. It is read-only: unlike the rule
// engine it replaces, it never patches or mutates the decode result, only
// reports a verdict and diagnostics.
package validate

import (
	"fmt"

	"example.com/asterixgate/internal/asterix"
	"example.com/asterixgate/internal/schema"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic reports one rule's outcome against a record.
type Diagnostic struct {
	FieldID  schema.ItemRef
	Kind     schema.ValidationKind
	Severity Severity
	Message  string
}

// Result is the outcome of validating one record.
type Result struct {
	Diagnostics []Diagnostic
}

// Valid reports whether no diagnostic carries SeverityError.
func (r Result) Valid() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Record validates rec against cat's declared rules. A missing mandatory or
// conditionally-required item is a SeverityError in strict mode and a
// SeverityWarning in lenient mode.
func Record(cat *schema.Category, rec asterix.ParsedRecord, strict bool) Result {
	values := fieldValues(rec)
	var result Result
	missingSeverity := SeverityError
	if !strict {
		missingSeverity = SeverityWarning
	}

	for _, rule := range cat.Validations {
		switch rule.Kind {
		case schema.Mandatory:
			if !itemPresent(rec, rule.FieldID) {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					FieldID: rule.FieldID, Kind: rule.Kind, Severity: missingSeverity,
					Message: fmt.Sprintf("mandatory item %s is absent", rule.FieldID),
				})
			}
		case schema.Conditional:
			if rule.Condition == "" {
				continue
			}
			cond, err := schema.ParseCondition(rule.Condition)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					FieldID: rule.FieldID, Kind: rule.Kind, Severity: SeverityWarning,
					Message: fmt.Sprintf("unrecognized condition %q: %v", rule.Condition, err),
				})
				continue
			}
			if cond.Eval(values) && !itemPresent(rec, rule.FieldID) {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{
					FieldID: rule.FieldID, Kind: rule.Kind, Severity: missingSeverity,
					Message: fmt.Sprintf("item %s is required when %s", rule.FieldID, rule.Condition),
				})
			}
		case schema.Optional:
			// no requirement; presence or absence is always acceptable.
		default:
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				FieldID: rule.FieldID, Kind: rule.Kind, Severity: SeverityWarning,
				Message: fmt.Sprintf("unknown validation kind %q", rule.Kind),
			})
		}
	}

	if rec.Err != nil {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("record decode error: %v", rec.Err),
		})
	}

	return result
}

// Block validates every record in b and returns one Result per record, in
// order.
func Block(cat *schema.Category, b asterix.ParsedBlock, strict bool) []Result {
	out := make([]Result, len(b.Records))
	for i, rec := range b.Records {
		out[i] = Record(cat, rec, strict)
	}
	return out
}

func itemPresent(rec asterix.ParsedRecord, id schema.ItemRef) bool {
	item, ok := rec.ItemByID(id)
	return ok && item.Valid()
}

// fieldValues flattens every field across every item in rec into a single
// name-to-value map for condition evaluation. Fields repeat their name
// across items only rarely in practice; the last one wins.
func fieldValues(rec asterix.ParsedRecord) map[string]int64 {
	values := make(map[string]int64)
	for _, item := range rec.Items {
		for _, f := range item.Fields {
			if n, ok := f.Value.AsInt64(); ok {
				values[f.Def.Name] = n
			}
		}
	}
	return values
}
