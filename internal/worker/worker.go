// Package worker consumes interview tasks from the Redis stream and runs the
// post-completion provisioning pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/internal/queue"
)

// Config holds worker behavior settings.
type Config struct {
	// MaxAttempts is the number of delivery attempts before a message is
	// moved to the dead letter queue.
	MaxAttempts int
}

// Worker reads messages from the queue and dispatches them to the processor.
type Worker struct {
	consumer  Consumer
	processor Processor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a worker with the given consumer and processor.
func New(consumer Consumer, processor Processor, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run processes messages until the context is canceled or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "worker stopping: context canceled")
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping: stop requested")
			return nil
		default:
		}

		if err := w.processOneBatch(ctx); err != nil {
			slog.ErrorContext(ctx, "batch processing failed", "error", err)
			// Brief pause so a persistent Redis failure does not spin.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopCh:
				return nil
			}
		}
	}
}

// Stop signals the worker to stop and waits for the current batch to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading messages: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

// processMessageSafe wraps ProcessMessage with panic recovery so one bad
// message cannot take down the loop.
func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage handles a single message. Exported so the reclaimer can reuse
// it for messages claimed from stalled consumers.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	// Resume the trace the producer started, so the HTTP request that
	// completed the interview and the provisioning it queued share one trace.
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_task",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	taskType := string(msg.TaskType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:   "onboard.worker",
		MessageID:   &msg.ID,
		TaskType:    &taskType,
		InterviewID: msg.InterviewID,
		AccountID:   msg.AccountID,
	})

	slog.InfoContext(ctx, "processing task", "attempt", msg.Attempt)

	if msg.TaskType != queue.TaskTypeInterviewCompleted {
		// Unknown types are acked, not retried: requeueing them would loop
		// until the DLQ regardless of attempts.
		slog.WarnContext(ctx, "unknown task type, acknowledging")
		return w.consumer.Ack(ctx, msg)
	}

	if err := w.processor.Process(ctx, msg); err != nil {
		sc.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		slog.WarnContext(ctx, "failed to ack message", "error", err)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, procErr error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:   "onboard.worker",
		MessageID:   &msg.ID,
		InterviewID: msg.InterviewID,
	})

	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "message exhausted retries, sending to DLQ",
			"attempt", msg.Attempt,
			"max_attempts", w.cfg.MaxAttempts,
			"error", procErr)
		if err := w.consumer.SendDLQ(ctx, msg, procErr.Error()); err != nil {
			slog.ErrorContext(ctx, "failed to send message to DLQ", "error", err)
		}
		return
	}

	slog.WarnContext(ctx, "message processing failed, requeueing",
		"attempt", msg.Attempt,
		"error", procErr)
	if err := w.consumer.Requeue(ctx, msg, procErr.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", err)
	}
}
