// Package catalog ships the default Rankwell onboarding flow as an embedded
// question set and validates question sets before they reach the engine.
// cmd/seed upserts the embedded flow into Postgres; the engine's tests use it
// as their fixture, so a broken flow fails in CI instead of in a live
// interview.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/model"
)

//go:embed questions.json
var questionsJSON []byte

// Load parses the embedded flow and validates it.
func Load() ([]model.Question, error) {
	var questions []model.Question
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("catalog: parse embedded questions: %w", err)
	}
	if err := Validate(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// MustLoad is Load for startup paths and tests, where a broken embedded
// catalog is a build defect rather than a runtime condition.
func MustLoad() []model.Question {
	questions, err := Load()
	if err != nil {
		panic(err)
	}
	return questions
}

// Validate checks a question set for the defects that would corrupt a live
// interview: colliding identifiers, ambiguous ordering among active rows,
// gates pointing at fields nobody records, patterns that cannot compile,
// references to actions this build does not register, and duplicate choice
// values.
func Validate(questions []model.Question) error {
	if len(questions) == 0 {
		return errors.New("catalog: empty question set")
	}

	ids := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			return errors.New("catalog: question with empty id")
		}
		if _, dup := ids[q.ID]; dup {
			return fmt.Errorf("catalog: duplicate question id %q", q.ID)
		}
		ids[q.ID] = struct{}{}
	}

	// Answers are filed under both the id and the save_to_field alias, so a
	// response key must resolve to exactly one question.
	owners := make(map[string]string, len(questions)*2)
	for _, q := range questions {
		owners[q.ID] = q.ID
	}
	for _, q := range questions {
		if q.SaveToField == "" {
			continue
		}
		if prev, ok := owners[q.SaveToField]; ok && prev != q.ID {
			return fmt.Errorf("catalog: alias %q of question %q collides with %q", q.SaveToField, q.ID, prev)
		}
		owners[q.SaveToField] = q.ID
	}

	orders := make(map[int32]string, len(questions))
	for _, q := range questions {
		if !q.IsActive {
			continue
		}
		if prev, ok := orders[q.Order]; ok {
			return fmt.Errorf("catalog: active questions %q and %q share order %d", prev, q.ID, q.Order)
		}
		orders[q.Order] = q.ID
	}

	for _, q := range questions {
		if err := checkQuestion(q, owners); err != nil {
			return err
		}
	}
	return nil
}

func checkQuestion(q model.Question, owners map[string]string) error {
	if !knownType(q.Type) {
		return fmt.Errorf("catalog: question %q has unknown type %q", q.ID, q.Type)
	}
	if q.Prompt == "" {
		return fmt.Errorf("catalog: question %q has no prompt", q.ID)
	}
	if q.Version < 1 {
		return fmt.Errorf("catalog: question %q has version %d, want 1 or higher", q.ID, q.Version)
	}

	if q.DependsOn != "" {
		owner, ok := owners[q.DependsOn]
		if !ok {
			return fmt.Errorf("catalog: question %q depends on unknown field %q", q.ID, q.DependsOn)
		}
		if owner == q.ID {
			return fmt.Errorf("catalog: question %q depends on itself", q.ID)
		}
	}

	if q.ShowCondition != nil {
		if err := q.ShowCondition.Validate(); err != nil {
			return fmt.Errorf("catalog: question %q show condition: %w", q.ID, err)
		}
		for _, field := range q.ShowCondition.Fields() {
			owner, ok := owners[field]
			if !ok {
				return fmt.Errorf("catalog: question %q show condition references unknown field %q", q.ID, field)
			}
			if owner == q.ID {
				return fmt.Errorf("catalog: question %q show condition references itself", q.ID)
			}
		}
	}

	if rules := q.Validation; rules != nil {
		if rules.Pattern != "" {
			if _, err := regexp.Compile(rules.Pattern); err != nil {
				return fmt.Errorf("catalog: question %q pattern: %w", q.ID, err)
			}
		}
		if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
			return fmt.Errorf("catalog: question %q has min length %d above max length %d",
				q.ID, *rules.MinLength, *rules.MaxLength)
		}
	}

	if cfg := q.InputConfig; cfg.MinValue != nil && cfg.MaxValue != nil && *cfg.MinValue > *cfg.MaxValue {
		return fmt.Errorf("catalog: question %q has min value %v above max value %v",
			q.ID, *cfg.MinValue, *cfg.MaxValue)
	}

	values := make(map[string]struct{}, len(q.InputConfig.Choices))
	for _, c := range q.InputConfig.Choices {
		if c.Value == "" {
			return fmt.Errorf("catalog: question %q has a choice with empty value", q.ID)
		}
		if _, dup := values[c.Value]; dup {
			return fmt.Errorf("catalog: question %q has duplicate choice value %q", q.ID, c.Value)
		}
		values[c.Value] = struct{}{}
	}

	for _, name := range q.AllowedActions {
		if !knownAction(name) {
			return fmt.Errorf("catalog: question %q allows unknown action %q", q.ID, name)
		}
	}
	for _, name := range q.AutoActions {
		if !knownAction(name) {
			return fmt.Errorf("catalog: question %q auto-runs unknown action %q", q.ID, name)
		}
	}
	return nil
}

func knownType(t model.QuestionType) bool {
	switch t {
	case model.QuestionTypeGreeting,
		model.QuestionTypeInput,
		model.QuestionTypeConfirmation,
		model.QuestionTypeSelection,
		model.QuestionTypeMultiSelection,
		model.QuestionTypeDynamic,
		model.QuestionTypeEditableData,
		model.QuestionTypeFileUpload,
		model.QuestionTypeSlider,
		model.QuestionTypeAISuggestion:
		return true
	}
	return false
}

func knownAction(name action.Name) bool {
	switch name {
	case action.CrawlWebsite, action.GenerateKeywords, action.FindCompetitors:
		return true
	}
	return false
}
