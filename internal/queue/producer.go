package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type TaskMessage struct {
	TaskType    TaskType
	InterviewID int64
	AccountID   int64
	UserID      int64
	TraceID     *string
	Attempt     int
}

type Producer interface {
	Enqueue(ctx context.Context, msg TaskMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg TaskMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	taskType := msg.TaskType
	if taskType == "" {
		taskType = TaskTypeInterviewCompleted
	}

	fields := map[string]any{
		"task_type":    string(taskType),
		"interview_id": msg.InterviewID,
		"account_id":   msg.AccountID,
		"user_id":      msg.UserID,
		"attempt":      attempt,
	}

	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued task", "task_type", taskType, "interview_id", msg.InterviewID, "account_id", msg.AccountID, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
