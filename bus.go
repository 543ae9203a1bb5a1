package hashpipe

import (
	"context"
)

// Message is one encoded record on a bus. Key is the partition key the record
// was published with.
type Message struct {
	Key  string
	Data []byte
}

// Publisher puts a batch of messages onto a bus in a single operation. An error
// means the batch as a whole should be considered unpublished; buses deliver at
// least once, so republishing is always safe.
type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
}

// BatchSource is the interface for getting messages off a bus a batch at a
// time. Batch returns io.EOF when there will be no more messages. Commit
// acknowledges every message returned by Batch so far; messages which are not
// committed may be delivered again. Implementations are not threadsafe.
type BatchSource interface {
	Batch(ctx context.Context) ([]Message, error)
	Commit() error
}

// Stage processes one batch of messages. Stages hold no state between
// batches.
type Stage interface {
	Process(ctx context.Context, batch []Message) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, batch []Message) error

// Process calls f.
func (f StageFunc) Process(ctx context.Context, batch []Message) error {
	return f(ctx, batch)
}
