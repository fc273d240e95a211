package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Failure describes one non-fatal action failure collected during dispatch.
type Failure struct {
	Action Name
	Err    error
	Denied bool
}

// Dispatcher runs actions against an interview snapshot. Auto-dispatch never
// fails the surrounding submission; manual dispatch reports its error to the
// caller.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// RunAuto executes names sequentially in declaration order. Unregistered
// names are skipped with a warning. Each success is merged into
// actx.ExternalData immediately, so later actions of the same question see
// earlier results. Errors and panics are collected, never returned.
func (d *Dispatcher) RunAuto(ctx context.Context, names []Name, actx *Context) []Failure {
	var failures []Failure
	for _, name := range names {
		h, ok := d.registry.Resolve(name)
		if !ok {
			slog.WarnContext(ctx, "auto action not registered, skipping",
				"action", string(name),
				"interview_id", actx.InterviewID)
			continue
		}

		res, err := d.invoke(ctx, h, actx)
		if err != nil {
			denied := errors.Is(err, ErrDenied)
			if denied {
				slog.WarnContext(ctx, "auto action denied",
					"action", string(name),
					"interview_id", actx.InterviewID,
					"error", err)
			} else {
				slog.ErrorContext(ctx, "auto action failed",
					"action", string(name),
					"interview_id", actx.InterviewID,
					"error", err)
			}
			failures = append(failures, Failure{Action: name, Err: err, Denied: denied})
			continue
		}

		actx.ExternalData = res.MergeInto(actx.ExternalData)
	}
	return failures
}

// RunManual executes one action on behalf of an explicit client request.
// The name must appear in allowed (the current question's allowed_actions);
// otherwise ErrNotAllowed. The result is returned unmerged so the caller
// controls persistence.
func (d *Dispatcher) RunManual(ctx context.Context, allowed []Name, name Name, actx *Context) (*Result, error) {
	if !slices.Contains(allowed, name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotAllowed)
	}

	h, ok := d.registry.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("action %s not registered", name)
	}

	return d.invoke(ctx, h, actx)
}

// invoke shields the engine from handler panics; a panicking action is just
// a failed action.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, actx *Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("action %s panicked: %v", h.Name(), r)
		}
	}()
	return h.Invoke(ctx, actx)
}
