package fake

import (
	"context"
	"io"
	"testing"

	"github.com/pilosa/hashpipe"
)

func TestSource(t *testing.T) {
	src := NewSource(1, 250)
	ctx := context.Background()

	total := 0
	for {
		batch, err := src.Batch(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("unexpected error after %d records: %v", total, err)
		}
		for _, msg := range batch {
			d, err := hashpipe.Decode(msg.Data)
			if err != nil {
				t.Fatalf("generated record doesn't decode: %v", err)
			}
			if d.ID() != msg.Key {
				t.Fatalf("key %s doesn't match id %s", msg.Key, d.ID())
			}
		}
		total += len(batch)
	}
	if total != 250 {
		t.Fatalf("should get EOF after 250 records, but got %d", total)
	}
}

func TestSourceSkewed(t *testing.T) {
	src := NewSource(3, 50)
	src.MaxIterations = 7
	batch, err := src.Batch(context.Background())
	if err != nil {
		t.Fatalf("getting batch: %v", err)
	}
	for _, msg := range batch {
		d, err := hashpipe.Decode(msg.Data)
		if err != nil {
			t.Fatalf("generated record doesn't decode: %v", err)
		}
		if d.Iterations() < 1 || d.Iterations() > 7 {
			t.Fatalf("iterations %d out of range", d.Iterations())
		}
	}
}
