// Package graph derives question visibility, ordering and progress from the
// catalog and an interview's recorded state. Every function is deterministic
// in its inputs; a show condition that fails to evaluate hides its question
// and logs a warning rather than erroring the request.
package graph

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"rankwell.app/onboard/internal/condition"
	"rankwell.app/onboard/internal/model"
)

// Snapshot is the lookup view dependsOn checks and show conditions evaluate
// against: responses first, then externalData.
type Snapshot struct {
	responses    map[string]any
	externalData map[string]any
}

func NewSnapshot(responses, externalData map[string]any) Snapshot {
	return Snapshot{responses: responses, externalData: externalData}
}

func (s Snapshot) Lookup(field string) (any, bool) {
	if v, ok := s.responses[field]; ok {
		return v, true
	}
	v, ok := s.externalData[field]
	return v, ok
}

// Active returns the active questions in ascending Order. Input order does
// not matter; stores return rows ordered but test fixtures may not be.
func Active(questions []model.Question) []model.Question {
	active := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if q.IsActive {
			active = append(active, q)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Order < active[j].Order })
	return active
}

// IsReachable reports whether the question may currently be shown. The
// dependsOn gate short-circuits: with no non-empty value recorded under that
// key the show condition is never evaluated.
func IsReachable(ctx context.Context, q model.Question, snap Snapshot) bool {
	if q.DependsOn != "" {
		v, ok := snap.Lookup(q.DependsOn)
		if !ok || condition.IsEmpty(v) {
			return false
		}
	}

	visible, err := q.ShowCondition.Evaluate(snap)
	if err != nil {
		slog.WarnContext(ctx, "show condition failed to evaluate, hiding question",
			"question_id", q.ID,
			"error", err)
		return false
	}
	return visible
}

// Answered reports whether a non-empty value is recorded under the
// question's id or its save_to_field alias.
func Answered(q model.Question, responses map[string]any) bool {
	if v, ok := responses[q.ID]; ok && !condition.IsEmpty(v) {
		return true
	}
	if q.SaveToField != "" {
		if v, ok := responses[q.SaveToField]; ok && !condition.IsEmpty(v) {
			return true
		}
	}
	return false
}

// NextQuestion returns the first active question, in ascending order, that
// is reachable and has no recorded answer. Both the submit path and the
// standalone next-question endpoint use this single derivation, so the two
// always agree. Returns nil when the interview has nothing left to ask.
func NextQuestion(ctx context.Context, questions []model.Question, responses, externalData map[string]any) *model.Question {
	snap := NewSnapshot(responses, externalData)
	for _, q := range Active(questions) {
		if !IsReachable(ctx, q, snap) {
			continue
		}
		if Answered(q, responses) {
			continue
		}
		next := q
		return &next
	}
	return nil
}

// Progress counts currently reachable active questions and how many of them
// are answered. Unreachable branches never inflate the denominator; answering
// a question that reveals a new branch can therefore lower Percent.
type Progress struct {
	Answered  int32   `json:"answered"`
	Reachable int32   `json:"reachable"`
	Percent   float64 `json:"percent"`
}

// ComputeProgress measures progress against the current snapshot. Percent is
// rounded to a whole number; an interview with nothing reachable is 100.
func ComputeProgress(ctx context.Context, questions []model.Question, responses, externalData map[string]any) Progress {
	snap := NewSnapshot(responses, externalData)

	var p Progress
	for _, q := range Active(questions) {
		if !IsReachable(ctx, q, snap) {
			continue
		}
		p.Reachable++
		if Answered(q, responses) {
			p.Answered++
		}
	}

	if p.Reachable == 0 {
		p.Percent = 100
		return p
	}
	p.Percent = math.Round(float64(p.Answered) / float64(p.Reachable) * 100)
	return p
}

// StepIndex returns the question's position in the ordered active list, or
// -1 when the id is not an active question.
func StepIndex(questions []model.Question, questionID string) int32 {
	for i, q := range Active(questions) {
		if q.ID == questionID {
			return int32(i)
		}
	}
	return -1
}
