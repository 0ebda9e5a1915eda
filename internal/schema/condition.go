package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a parsed instance of the minimal extension/validation DSL:
//
//	expr       := and ( "||" and )*
//	and        := cmp ( "&&" cmp )*
//	cmp        := ident ("==" | "!=") literal
//	literal    := int | "true" | "false"
//
// It gates extension fields (C3) and conditional validation rules (§4.5),
// evaluated against the set of already-parsed sibling field values.
type Condition struct {
	ors [][]comparison
	src string
}

type comparison struct {
	field string
	op    string // "==" or "!="
	want  int64
	isBool bool
	wantBool bool
}

// String returns the original expression text.
func (c Condition) String() string { return c.src }

// Fields returns the distinct field names referenced by the condition, in
// the order they first appear.
func (c Condition) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, and := range c.ors {
		for _, cmp := range and {
			if !seen[cmp.field] {
				seen[cmp.field] = true
				out = append(out, cmp.field)
			}
		}
	}
	return out
}

// Eval evaluates the condition against a set of named integer-ish values.
// A missing field is treated as a failed comparison, never a panic.
func (c Condition) Eval(values map[string]int64) bool {
	if len(c.ors) == 0 {
		return true
	}
	for _, and := range c.ors {
		allTrue := true
		for _, cmp := range and {
			got, ok := values[cmp.field]
			if !ok {
				allTrue = false
				break
			}
			var match bool
			if cmp.isBool {
				match = (got != 0) == cmp.wantBool
			} else {
				match = got == cmp.want
			}
			if cmp.op == "!=" {
				match = !match
			}
			if !match {
				allTrue = false
				break
			}
		}
		if allTrue {
			return true
		}
	}
	return false
}

// ParseCondition parses a condition expression. An empty string parses to
// an always-true Condition with no referenced fields.
func ParseCondition(expr string) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Condition{src: expr}, nil
	}
	var ors [][]comparison
	for _, orPart := range strings.Split(expr, "||") {
		var ands []comparison
		for _, andPart := range strings.Split(orPart, "&&") {
			cmp, err := parseComparison(andPart)
			if err != nil {
				return Condition{}, fmt.Errorf("condition %q: %w", expr, err)
			}
			ands = append(ands, cmp)
		}
		ors = append(ors, ands)
	}
	return Condition{ors: ors, src: expr}, nil
}

func parseComparison(s string) (comparison, error) {
	s = strings.TrimSpace(s)
	var op string
	switch {
	case strings.Contains(s, "!="):
		op = "!="
	case strings.Contains(s, "=="):
		op = "=="
	default:
		return comparison{}, fmt.Errorf("missing == or != in %q", s)
	}
	parts := strings.SplitN(s, op, 2)
	if len(parts) != 2 {
		return comparison{}, fmt.Errorf("malformed comparison %q", s)
	}
	field := strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	if field == "" {
		return comparison{}, fmt.Errorf("empty field name in %q", s)
	}
	cmp := comparison{field: field, op: op}
	switch rhs {
	case "true":
		cmp.isBool = true
		cmp.wantBool = true
	case "false":
		cmp.isBool = true
		cmp.wantBool = false
	default:
		n, err := strconv.ParseInt(rhs, 0, 64)
		if err != nil {
			return comparison{}, fmt.Errorf("value %q in %q is not an int or bool", rhs, s)
		}
		cmp.want = n
	}
	return cmp, nil
}

// validateConditionFields parses cond and checks every field it references
// was already declared (i.e. appears earlier in the same item's field
// list), returning an error usable as a SchemaError reason.
func validateConditionFields(cond string, known map[string]bool, forField string) error {
	parsed, err := ParseCondition(cond)
	if err != nil {
		return err
	}
	for _, f := range parsed.Fields() {
		if !known[f] {
			return fmt.Errorf("condition on field %s references undeclared field %q", forField, f)
		}
	}
	return nil
}
