package worker

import (
	"context"

	"rankwell.app/onboard/internal/queue"
)

// Consumer is the slice of the queue consumer the worker loop needs. It is
// satisfied by *queue.RedisConsumer and mocked in tests.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Processor handles a single parsed task message. Implementations return nil
// when the task is finished (including no-op skips); any error sends the
// message back through the retry path.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) error
}
