package mock

import (
	"context"
	"io"
	"sync"

	"github.com/pilosa/hashpipe"
)

// Bus is an in-memory bus. Everything published to it can be read back with
// Batch, BatchSize messages at a time. Batch returns io.EOF once the bus is
// closed and drained. It is safe for concurrent use.
type Bus struct {
	BatchSize int

	// PublishErr, if set, is returned from every call to Publish instead of
	// storing the messages.
	PublishErr error

	mu        sync.Mutex
	msgs      []hashpipe.Message
	next      int
	committed int
	closed    bool
	publishes int
}

// NewBus returns an open, empty Bus.
func NewBus() *Bus {
	return &Bus{BatchSize: 100}
}

// Publish appends msgs to the bus.
func (b *Bus) Publish(ctx context.Context, msgs []hashpipe.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishes++
	if b.PublishErr != nil {
		return b.PublishErr
	}
	b.msgs = append(b.msgs, msgs...)
	return nil
}

// Batch returns up to BatchSize messages after the last ones returned.
func (b *Bus) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next >= len(b.msgs) {
		if b.closed {
			return nil, io.EOF
		}
		return nil, nil
	}
	end := b.next + b.BatchSize
	if end > len(b.msgs) {
		end = len(b.msgs)
	}
	batch := make([]hashpipe.Message, end-b.next)
	copy(batch, b.msgs[b.next:end])
	b.next = end
	return batch, nil
}

// Commit marks every message returned so far as processed.
func (b *Bus) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.committed = b.next
	return nil
}

// Close makes Batch return io.EOF once all messages have been read.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Messages returns a copy of everything published so far.
func (b *Bus) Messages() []hashpipe.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]hashpipe.Message(nil), b.msgs...)
}

// Committed returns the number of messages which have been committed.
func (b *Bus) Committed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Publishes returns the number of calls to Publish.
func (b *Bus) Publishes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishes
}
