package hashpipe_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/mock"
	"github.com/pkg/errors"
)

func TestPersisterIsolatesFailures(t *testing.T) {
	store := mock.NewStore()
	store.Fail = func(item hashpipe.Item) error {
		if item.ID == "3" {
			return errors.New("throttled")
		}
		return nil
	}
	stats := &mock.RecordingStatter{}
	p := hashpipe.NewPersister(store, hashpipe.OptPersisterStatter(stats))

	batch := make([]hashpipe.Message, 0, 5)
	for i := 1; i <= 5; i++ {
		d := hashpipe.NewDatum(fmt.Sprint(i), "doc", 2)
		d.Hash()
		batch = append(batch, hashpipe.Message{Data: encode(t, d)})
	}

	err := p.Process(context.Background(), batch)
	if err == nil {
		t.Fatal("expected the failed write to be reported")
	}
	errs, ok := err.(hashpipe.ErrorList)
	if !ok || len(errs) != 1 {
		t.Fatalf("expected a single aggregated failure, got %#v", err)
	}
	if store.Writes() != 5 {
		t.Fatalf("expected 5 writes to be attempted, got %d", store.Writes())
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 stored items, got %d", store.Len())
	}
	if _, ok := store.Get("3"); ok {
		t.Fatal("item 3 should not be stored")
	}
	if stats.Get("persister.stored") != 4 || stats.Get("persister.failed") != 1 {
		t.Fatalf("unexpected counts: %v", stats.Counts)
	}
}

func TestPersisterStoresFields(t *testing.T) {
	store := mock.NewStore()
	p := hashpipe.NewPersister(store)
	d := hashpipe.NewDatum("x", "abc", 3)
	d.Hash()
	if err := p.Process(context.Background(), []hashpipe.Message{{Data: encode(t, d)}}); err != nil {
		t.Fatalf("processing: %v", err)
	}
	item, ok := store.Get("x")
	if !ok {
		t.Fatal("item not stored")
	}
	exp := hashpipe.Item{ID: "x", Payload: "abc", Iterations: 3, Digest: abc3Digest}
	if item != exp {
		t.Fatalf("unexpected item %#v", item)
	}
	if item.IterationsString() != "3" {
		t.Fatalf("unexpected iterations string %s", item.IterationsString())
	}
}

func TestPersisterHashesMissingDigest(t *testing.T) {
	store := mock.NewStore()
	p := hashpipe.NewPersister(store)
	if err := p.Process(context.Background(), []hashpipe.Message{{Data: []byte(`{"id":"y","payload":"abc","iterations":1}`)}}); err != nil {
		t.Fatalf("processing: %v", err)
	}
	item, _ := store.Get("y")
	if item.Digest != abcDigest {
		t.Fatalf("expected fallback digest, got %s", item.Digest)
	}
}

func TestPersisterSkipsMalformed(t *testing.T) {
	store := mock.NewStore()
	stats := &mock.RecordingStatter{}
	p := hashpipe.NewPersister(store, hashpipe.OptPersisterStatter(stats))
	err := p.Process(context.Background(), []hashpipe.Message{
		{Data: []byte(`{"id":"a","payload":"abc","iterations":1}`)},
		{Data: []byte(`{"id":"b","iterations":1}`)},
	})
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if store.Len() != 1 || stats.Get("persister.malformed") != 1 {
		t.Fatalf("expected 1 stored and 1 malformed, got %d and %d", store.Len(), stats.Get("persister.malformed"))
	}
}

func TestPersistCount(t *testing.T) {
	store := mock.NewStore()
	p := hashpipe.NewPersister(store)
	n, err := p.Persist(context.Background(), []*hashpipe.Datum{
		hashpipe.NewDatum("a", "1", 1),
		hashpipe.NewDatum("b", "2", 1),
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 stored, got %d, %v", n, err)
	}
}
