package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/queue"
)

type queueFinalizer struct {
	producer queue.Producer
}

// NewQueueFinalizer hands completed interviews to the provisioning worker via
// the task stream. The COMPLETED row is already committed when OnComplete
// runs, so enqueue failures are logged and swallowed rather than surfaced to
// the submitting user.
func NewQueueFinalizer(producer queue.Producer) CompletionFinalizer {
	return &queueFinalizer{producer: producer}
}

func (f *queueFinalizer) OnComplete(ctx context.Context, itv *model.Interview) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:   "onboard.service.finalizer",
		InterviewID: &itv.ID,
	})

	msg := queue.TaskMessage{
		TaskType:    queue.TaskTypeInterviewCompleted,
		InterviewID: itv.ID,
		AccountID:   itv.AccountID,
		UserID:      itv.UserID,
		Attempt:     1,
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		msg.TraceID = &traceID
	}

	if err := f.producer.Enqueue(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue completion task",
			"error", err,
			"interview_id", itv.ID,
			"account_id", itv.AccountID)
		return
	}

	slog.InfoContext(ctx, "interview completion enqueued", "interview_id", itv.ID)
}
