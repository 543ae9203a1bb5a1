package file

import (
	"context"
	"io"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/test"
)

func msgs(data ...string) []hashpipe.Message {
	ms := make([]hashpipe.Message, len(data))
	for i, d := range data {
		ms[i] = hashpipe.Message{Key: d, Data: []byte(d)}
	}
	return ms
}

func TestPublishThenRead(t *testing.T) {
	ctx := context.Background()
	name := filepath.Join(test.TempDirName(t), "records.ndjson")
	pub, err := NewPublisher(name)
	test.ErrNil(t, err, "NewPublisher")
	test.ErrNil(t, pub.Publish(ctx, msgs(`{"a":1}`, `{"a":2}`)), "Publish")
	test.ErrNil(t, pub.Publish(ctx, msgs(`{"a":3}`)), "Publish")
	test.ErrNil(t, pub.Close(), "Close")

	src, err := NewSource(name, OptSrcBatchSize(2))
	test.ErrNil(t, err, "NewSource")
	defer src.Close()

	batch, err := src.Batch(ctx)
	test.ErrNil(t, err, "Batch")
	test.MustBe(t, 2, len(batch))
	test.MustBe(t, `{"a":1}`, string(batch[0].Data))

	again, err := src.Batch(ctx)
	test.ErrNil(t, err, "Batch uncommitted")
	test.MustBe(t, batch, again)
	test.ErrNil(t, src.Commit(), "Commit")

	batch, err = src.Batch(ctx)
	test.ErrNil(t, err, "Batch")
	test.MustBe(t, 1, len(batch))
	test.MustBe(t, `{"a":3}`, string(batch[0].Data))
	test.ErrNil(t, src.Commit(), "Commit")

	if _, err := src.Batch(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestSourceDirectory(t *testing.T) {
	dir := test.TempDirName(t)
	test.ErrNil(t, ioutil.WriteFile(filepath.Join(dir, "b"), []byte("b1\n\nb2\n"), 0644), "writing b")
	test.ErrNil(t, ioutil.WriteFile(filepath.Join(dir, "a"), []byte("a1\n"), 0644), "writing a")

	src, err := NewSource(dir)
	test.ErrNil(t, err, "NewSource")
	batch, err := src.Batch(context.Background())
	test.ErrNil(t, err, "Batch")
	var got []string
	for _, m := range batch {
		got = append(got, string(m.Data))
	}
	test.MustBe(t, []string{"a1", "b1", "b2"}, got)
}

func TestSourceMissing(t *testing.T) {
	if _, err := NewSource(filepath.Join(test.TempDirName(t), "nope")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestPublishNewline(t *testing.T) {
	pub, err := NewPublisher(filepath.Join(test.TempDirName(t), "x"))
	test.ErrNil(t, err, "NewPublisher")
	defer pub.Close()
	if err := pub.Publish(context.Background(), msgs("a\nb")); err == nil {
		t.Fatal("expected error publishing a newline")
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	name := filepath.Join(test.TempDirName(t), "x")
	pub, err := NewPublisher(name)
	test.ErrNil(t, err, "NewPublisher")
	defer pub.Close()
	if err := pub.Publish(ctx, msgs("a")); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	src, err := NewSource(name)
	test.ErrNil(t, err, "NewSource")
	if _, err := src.Batch(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
