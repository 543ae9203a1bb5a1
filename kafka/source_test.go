package kafka

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Shopify/sarama"
)

type fakeConsumer struct {
	msgs    chan *sarama.ConsumerMessage
	marked  []int64
	commits int
	closed  bool
}

func (f *fakeConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.msgs }
func (f *fakeConsumer) MarkOffset(msg *sarama.ConsumerMessage, metadata string) {
	f.marked = append(f.marked, msg.Offset)
}
func (f *fakeConsumer) CommitOffsets() error { f.commits++; return nil }
func (f *fakeConsumer) Close() error         { f.closed = true; return nil }

func newTestSource(batchSize int) (*Source, *fakeConsumer) {
	fc := &fakeConsumer{msgs: make(chan *sarama.ConsumerMessage, 10)}
	src := NewSource()
	src.BatchSize = batchSize
	src.Linger = 10 * time.Millisecond
	src.consumer = fc
	return src, fc
}

func TestSourceBatch(t *testing.T) {
	src, fc := newTestSource(2)
	for i := int64(0); i < 3; i++ {
		fc.msgs <- &sarama.ConsumerMessage{Key: []byte{'k', byte('0' + i)}, Value: []byte("v"), Offset: i}
	}
	ctx := context.Background()

	batch, err := src.Batch(ctx)
	if err != nil {
		t.Fatalf("getting batch: %v", err)
	}
	if len(batch) != 2 || batch[0].Key != "k0" || batch[1].Key != "k1" {
		t.Fatalf("unexpected batch: %v", batch)
	}
	if len(fc.marked) != 0 {
		t.Fatal("offsets marked before commit")
	}
	if err := src.Commit(); err != nil {
		t.Fatalf("committing: %v", err)
	}
	if len(fc.marked) != 2 || fc.commits != 1 {
		t.Fatalf("unexpected marks %v and commits %d", fc.marked, fc.commits)
	}

	// only one message left, so the linger timer ends the batch
	batch, err = src.Batch(ctx)
	if err != nil || len(batch) != 1 {
		t.Fatalf("expected a short batch, got %v, %v", batch, err)
	}

	close(fc.msgs)
	batch, err = src.Batch(ctx)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v, %v", batch, err)
	}
}

func TestSourceBatchCanceled(t *testing.T) {
	src, _ := newTestSource(2)
	src.Linger = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Batch(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSourceNotOpen(t *testing.T) {
	if _, err := NewSource().Batch(context.Background()); err == nil {
		t.Fatal("expected error from unopened source")
	}
}
