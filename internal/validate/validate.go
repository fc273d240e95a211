// Package validate checks a submitted answer against its question's rules
// and type. Validation is pure: no logging, no mutation, no I/O. A failing
// result may carry an advisory suggestion (for example a normalized URL);
// suggestions never make an invalid value acceptable by themselves.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"rankwell.app/onboard/internal/condition"
	"rankwell.app/onboard/internal/model"
)

// Result is the verdict for one submitted value.
type Result struct {
	IsValid        bool   `json:"is_valid"`
	Error          string `json:"error,omitempty"`
	Suggestion     string `json:"suggestion,omitempty"`
	CanAutoCorrect bool   `json:"can_auto_correct,omitempty"`
}

func valid() Result {
	return Result{IsValid: true}
}

func invalid(msg string) Result {
	return Result{Error: msg}
}

// Validate applies the question's generic rules (required, length, pattern)
// and its type-specific checks, in that order, returning on the first
// failure. Empty optional answers are valid without further checks.
func Validate(q model.Question, value any) Result {
	rules := q.Validation

	empty := isBlank(value)
	if rules != nil && rules.Required && empty {
		return invalid(message(rules, "this answer is required"))
	}
	if empty {
		return valid()
	}

	if rules != nil {
		if r := checkLength(rules, value); !r.IsValid {
			return r
		}
		if r := checkPattern(rules, value); !r.IsValid {
			return r
		}
	}

	return checkType(q, value)
}

// isBlank extends the shared emptiness rule: a whitespace-only string is no
// answer either.
func isBlank(value any) bool {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return condition.IsEmpty(value)
}

func message(rules *model.ValidationRules, fallback string) string {
	if rules != nil && rules.ErrorMessage != "" {
		return rules.ErrorMessage
	}
	return fallback
}

func checkLength(rules *model.ValidationRules, value any) Result {
	length, counted := -1, ""
	switch v := value.(type) {
	case string:
		length, counted = utf8.RuneCountInString(v), "characters"
	case []any:
		length, counted = len(v), "items"
	case []string:
		length, counted = len(v), "items"
	}
	if length < 0 {
		return valid()
	}

	if rules.MinLength != nil && length < *rules.MinLength {
		return invalid(message(rules, fmt.Sprintf("must have at least %d %s", *rules.MinLength, counted)))
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		return invalid(message(rules, fmt.Sprintf("must have at most %d %s", *rules.MaxLength, counted)))
	}
	return valid()
}

// checkPattern matches string values against the rule's regexp. A pattern
// that does not compile is skipped; the catalog loader rejects such rules
// before they can reach a live interview.
func checkPattern(rules *model.ValidationRules, value any) Result {
	if rules.Pattern == "" {
		return valid()
	}
	s, ok := value.(string)
	if !ok {
		return valid()
	}

	re, err := regexp.Compile(rules.Pattern)
	if err != nil {
		return valid()
	}
	if re.MatchString(s) {
		return valid()
	}

	r := invalid(message(rules, "answer does not match the expected format"))

	// Advisory fixes: plain trim first, then URL normalization.
	if trimmed := strings.TrimSpace(s); trimmed != s && re.MatchString(trimmed) {
		r.Suggestion = trimmed
		r.CanAutoCorrect = true
		return r
	}
	if normalized, ok := normalizeURL(s); ok && re.MatchString(normalized) {
		r.Suggestion = normalized
		r.CanAutoCorrect = true
	}
	return r
}

// normalizeURL produces the canonical form of a URL-ish string: trimmed,
// https-prefixed when schemeless, host lowercased, trailing slash dropped.
func normalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t") {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/"), true
}

func checkType(q model.Question, value any) Result {
	switch q.Type {
	case model.QuestionTypeSelection:
		return checkSelection(q, value)
	case model.QuestionTypeMultiSelection:
		return checkMultiSelection(q, value)
	case model.QuestionTypeConfirmation:
		return checkConfirmation(value)
	case model.QuestionTypeSlider:
		return checkSlider(q, value)
	case model.QuestionTypeFileUpload:
		return checkFileUpload(q, value)
	}
	// GREETING, INPUT, DYNAMIC, EDITABLE_DATA and AI_SUGGESTION answers take
	// only the generic rules.
	return valid()
}

func choiceSet(q model.Question) map[string]struct{} {
	if len(q.InputConfig.Choices) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(q.InputConfig.Choices))
	for _, c := range q.InputConfig.Choices {
		set[c.Value] = struct{}{}
	}
	return set
}

func checkSelection(q model.Question, value any) Result {
	choices := choiceSet(q)
	if choices == nil {
		return valid()
	}
	s, ok := value.(string)
	if !ok {
		return invalid("select one of the offered options")
	}
	if _, ok := choices[s]; !ok {
		return invalid(fmt.Sprintf("%q is not one of the offered options", s))
	}
	return valid()
}

func checkMultiSelection(q model.Question, value any) Result {
	var items []string
	switch v := value.(type) {
	case []string:
		items = v
	case []any:
		items = make([]string, 0, len(v))
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return invalid("selections must be a list of option values")
			}
			items = append(items, s)
		}
	default:
		return invalid("selections must be a list of option values")
	}

	choices := choiceSet(q)
	if choices == nil {
		return valid()
	}
	for _, s := range items {
		if _, ok := choices[s]; !ok {
			return invalid(fmt.Sprintf("%q is not one of the offered options", s))
		}
	}
	return valid()
}

func checkConfirmation(value any) Result {
	switch v := value.(type) {
	case bool:
		return valid()
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "no", "true", "false":
			return valid()
		}
		return invalid("answer yes or no")
	default:
		return invalid("answer yes or no")
	}
}

func checkSlider(q model.Question, value any) Result {
	n, ok := toFloat(value)
	if !ok {
		return invalid("answer must be a number")
	}
	cfg := q.InputConfig
	if cfg.MinValue != nil && n < *cfg.MinValue {
		return invalid(fmt.Sprintf("must be at least %v", *cfg.MinValue))
	}
	if cfg.MaxValue != nil && n > *cfg.MaxValue {
		return invalid(fmt.Sprintf("must be at most %v", *cfg.MaxValue))
	}
	return valid()
}

func checkFileUpload(q model.Question, value any) Result {
	var refs []string
	switch v := value.(type) {
	case []string:
		refs = v
	case []any:
		refs = make([]string, 0, len(v))
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return invalid("uploads must be a list of file references")
			}
			refs = append(refs, s)
		}
	default:
		return invalid("uploads must be a list of file references")
	}

	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return invalid("uploads must be a list of file references")
		}
	}
	if limit := q.InputConfig.MaxFiles; limit > 0 && len(refs) > limit {
		return invalid(fmt.Sprintf("at most %d files allowed", limit))
	}
	return valid()
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
	}
	return 0, false
}
