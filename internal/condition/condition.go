// Package condition implements the typed predicate trees that gate question
// visibility. A tree is stored as JSONB on the question row and evaluated
// against a snapshot of the interview's responses and external data. A node
// is either a leaf comparison (field + op + value) or exactly one composite
// (all / any / not); anything else is rejected at decode time.
package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Op is a leaf comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpNotEmpty Op = "notEmpty"
	OpContains Op = "contains"
)

// Snapshot supplies field values to Evaluate. Lookup reports whether the
// field has a recorded value at all; emptiness is judged separately.
type Snapshot interface {
	Lookup(field string) (any, bool)
}

// Predicate is one node of a show-condition tree.
type Predicate struct {
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	All []Predicate `json:"all,omitempty"`
	Any []Predicate `json:"any,omitempty"`
	Not *Predicate  `json:"not,omitempty"`
}

// UnmarshalJSON decodes a node and rejects structurally invalid ones, so a
// malformed catalog entry fails at load time rather than at evaluation time.
// Nested nodes are checked as they decode.
func (p *Predicate) UnmarshalJSON(data []byte) error {
	type alias Predicate
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Predicate(a)
	return p.checkShape()
}

func (p *Predicate) checkShape() error {
	composites := 0
	if len(p.All) > 0 {
		composites++
	}
	if len(p.Any) > 0 {
		composites++
	}
	if p.Not != nil {
		composites++
	}

	isLeaf := p.Op != "" || p.Field != "" || p.Value != nil

	switch {
	case composites > 1:
		return errors.New("condition: node declares more than one composite")
	case composites == 1 && isLeaf:
		return errors.New("condition: node mixes leaf and composite fields")
	case composites == 0 && p.Op == "":
		return errors.New("condition: node has neither op nor composite")
	}

	if composites == 0 {
		if p.Field == "" {
			return fmt.Errorf("condition: op %q without field", p.Op)
		}
		if !knownOp(p.Op) {
			return fmt.Errorf("condition: unknown op %q", p.Op)
		}
	}
	return nil
}

func knownOp(op Op) bool {
	switch op {
	case OpEq, OpNeq, OpNotEmpty, OpContains:
		return true
	}
	return false
}

// Validate walks the whole tree. UnmarshalJSON already rejects bad shapes,
// but predicates can also be built in code; the catalog loader calls this.
func (p *Predicate) Validate() error {
	if p == nil {
		return nil
	}
	if err := p.checkShape(); err != nil {
		return err
	}
	for i := range p.All {
		if err := p.All[i].Validate(); err != nil {
			return fmt.Errorf("all[%d]: %w", i, err)
		}
	}
	for i := range p.Any {
		if err := p.Any[i].Validate(); err != nil {
			return fmt.Errorf("any[%d]: %w", i, err)
		}
	}
	if p.Not != nil {
		if err := p.Not.Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	}
	return nil
}

// Fields returns every field name referenced by leaves of the tree, in
// traversal order, duplicates included. The catalog loader checks each one
// resolves to a declared question id or alias.
func (p *Predicate) Fields() []string {
	if p == nil {
		return nil
	}
	var fields []string
	if p.Field != "" {
		fields = append(fields, p.Field)
	}
	for i := range p.All {
		fields = append(fields, p.All[i].Fields()...)
	}
	for i := range p.Any {
		fields = append(fields, p.Any[i].Fields()...)
	}
	if p.Not != nil {
		fields = append(fields, p.Not.Fields()...)
	}
	return fields
}

// Evaluate resolves the tree against snap. A nil predicate is true. Leaf ops
// on fields with no recorded value evaluate to false. Malformed nodes return
// an error; callers treat that as not-visible. Never panics.
func (p *Predicate) Evaluate(snap Snapshot) (bool, error) {
	if p == nil {
		return true, nil
	}

	switch {
	case len(p.All) > 0:
		for i := range p.All {
			ok, err := p.All[i].Evaluate(snap)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case len(p.Any) > 0:
		for i := range p.Any {
			ok, err := p.Any[i].Evaluate(snap)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case p.Not != nil:
		ok, err := p.Not.Evaluate(snap)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	if p.Field == "" {
		return false, errors.New("condition: leaf without field")
	}

	val, ok := snap.Lookup(p.Field)
	switch p.Op {
	case OpNotEmpty:
		return ok && !IsEmpty(val), nil
	case OpEq:
		return ok && Equal(val, p.Value), nil
	case OpNeq:
		return ok && !Equal(val, p.Value), nil
	case OpContains:
		if !ok {
			return false, nil
		}
		return contains(val, p.Value)
	default:
		return false, fmt.Errorf("condition: unknown op %q", p.Op)
	}
}

// IsEmpty reports whether a recorded value counts as "no answer": nil, the
// empty string, or an empty slice/map. Zero numbers and false are answers.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// Equal compares recorded values the way the engine does everywhere: loosely
// across the JSON number representations (int64 vs float64) and exactly
// otherwise. The invalidation default trigger uses it too.
func Equal(a, b any) bool {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		return bok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// contains is membership for array values and substring match for strings.
func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("condition: contains needle %T against string", needle)
		}
		return strings.Contains(h, n), nil
	case []any:
		for _, el := range h {
			if Equal(el, needle) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		n, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("condition: contains needle %T against string slice", needle)
		}
		for _, el := range h {
			if el == n {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("condition: contains against %T", haystack)
	}
}
