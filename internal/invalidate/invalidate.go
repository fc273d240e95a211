// Package invalidate clears downstream interview state when an upstream
// answer changes. The cascade is a declarative rule table keyed by the
// answer's response field; adding a trigger means adding a rule, not touching
// the state machine.
package invalidate

import (
	"fmt"
	"strings"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/condition"
	"rankwell.app/onboard/internal/model"
)

type ClearMode int

const (
	// ClearNone leaves the map alone.
	ClearNone ClearMode = iota
	// ClearKeys deletes exactly the listed keys.
	ClearKeys
	// ClearAllExcept wipes everything but the listed keys.
	ClearAllExcept
)

// Rule describes one invalidation cascade.
type Rule struct {
	// TriggerField is the response key (save_to_field alias, or question id
	// when no alias exists) whose change arms the rule.
	TriggerField string

	ClearResponses ClearMode
	// PreserveFields are response keys kept when ClearResponses is
	// ClearAllExcept. Aliases expand to their owning question ids.
	PreserveFields []string

	ClearExternalMode ClearMode
	// ExternalKeys are deleted under ClearKeys and preserved under
	// ClearAllExcept.
	ExternalKeys []string

	ResetStep bool

	// Changed decides whether old and new values actually differ. Nil means
	// plain normalized inequality.
	Changed func(old, new any) bool
}

// DefaultRules is the production cascade table: a changed website URL voids
// everything derived from the old site except the per-URL crawl memo, and a
// changed keyword set voids only the competitor suggestions derived from it.
func DefaultRules() []Rule {
	return []Rule{
		{
			TriggerField:      "websiteUrl",
			ClearResponses:    ClearAllExcept,
			PreserveFields:    []string{"websiteUrl"},
			ClearExternalMode: ClearAllExcept,
			ExternalKeys:      []string{action.KeyCrawlCache},
			ResetStep:         true,
			Changed:           URLChanged,
		},
		{
			TriggerField:      "keywords",
			ClearExternalMode: ClearKeys,
			ExternalKeys:      []string{action.KeyCompetitorSuggestions, action.KeyCompetitorsGeneratedAt},
			Changed:           StringSetChanged,
		},
	}
}

type Engine struct {
	rules map[string]Rule
}

func NewEngine(rules []Rule) *Engine {
	e := &Engine{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		e.rules[r.TriggerField] = r
	}
	return e
}

// Apply runs the cascade for a re-answered field. The caller captures old
// from the interview before recording new. A rule fires only when the old
// value was recorded and non-empty and differs from the new one; first-time
// answers and idempotent resubmissions never fire. Reports whether it fired.
func (e *Engine) Apply(questions []model.Question, itv *model.Interview, field string, oldValue, newValue any) bool {
	rule, ok := e.rules[field]
	if !ok {
		return false
	}
	if condition.IsEmpty(oldValue) {
		return false
	}

	changed := rule.Changed
	if changed == nil {
		changed = func(a, b any) bool { return !condition.Equal(a, b) }
	}
	if !changed(oldValue, newValue) {
		return false
	}

	if rule.ClearResponses == ClearAllExcept {
		keep := preserveSet(questions, rule.PreserveFields)
		kept := make(map[string]any, len(keep))
		for k, v := range itv.Responses {
			if _, ok := keep[k]; ok {
				kept[k] = v
			}
		}
		itv.Responses = kept
	}

	e.applyExternal(itv, rule)

	if rule.ResetStep {
		itv.CurrentStep = 0
	}
	return true
}

// ApplyCleared runs only the external-data effects for fields whose answers
// were dropped wholesale (revert). Response clearing and step placement are
// the caller's business there.
func (e *Engine) ApplyCleared(itv *model.Interview, clearedFields []string) bool {
	fired := false
	for _, field := range clearedFields {
		rule, ok := e.rules[field]
		if !ok {
			continue
		}
		e.applyExternal(itv, rule)
		fired = true
	}
	return fired
}

func (e *Engine) applyExternal(itv *model.Interview, rule Rule) {
	switch rule.ClearExternalMode {
	case ClearKeys:
		for _, k := range rule.ExternalKeys {
			delete(itv.ExternalData, k)
		}
	case ClearAllExcept:
		kept := make(map[string]any, len(rule.ExternalKeys))
		for _, k := range rule.ExternalKeys {
			if v, ok := itv.ExternalData[k]; ok {
				kept[k] = v
			}
		}
		itv.ExternalData = kept
	}
}

// preserveSet expands preserved response fields to every key an answer may
// be filed under: the field itself plus the id and alias of any question
// that owns it.
func preserveSet(questions []model.Question, fields []string) map[string]struct{} {
	keep := make(map[string]struct{}, len(fields)*2)
	for _, f := range fields {
		keep[f] = struct{}{}
		for _, q := range questions {
			if q.ID != f && q.SaveToField != f {
				continue
			}
			keep[q.ID] = struct{}{}
			if q.SaveToField != "" {
				keep[q.SaveToField] = struct{}{}
			}
		}
	}
	return keep
}

// URLChanged compares site URLs in their canonical key form: trimmed,
// lowercased, scheme and trailing slash stripped. www stays significant.
func URLChanged(oldValue, newValue any) bool {
	return urlKey(oldValue) != urlKey(newValue)
}

func urlKey(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimSuffix(s, "/")
}

// StringSetChanged compares two answers as unordered string sets, so
// reordering seed keywords does not void competitor suggestions.
func StringSetChanged(oldValue, newValue any) bool {
	oldSet := stringSet(oldValue)
	newSet := stringSet(newValue)
	if len(oldSet) != len(newSet) {
		return true
	}
	for k := range oldSet {
		if _, ok := newSet[k]; !ok {
			return true
		}
	}
	return false
}

func stringSet(v any) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = struct{}{}
		}
	}

	switch vals := v.(type) {
	case []string:
		for _, s := range vals {
			add(s)
		}
	case []any:
		for _, el := range vals {
			if s, ok := el.(string); ok {
				add(s)
			} else {
				add(fmt.Sprintf("%v", el))
			}
		}
	case string:
		// Free-text keyword entry: comma separated.
		for _, s := range strings.Split(vals, ",") {
			add(s)
		}
	default:
		if v != nil {
			add(fmt.Sprintf("%v", v))
		}
	}
	return set
}
