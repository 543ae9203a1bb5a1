package hashpipe_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/mock"
	"github.com/pkg/errors"
)

func encode(t *testing.T, d *hashpipe.Datum) []byte {
	t.Helper()
	data, err := d.Encode()
	if err != nil {
		t.Fatalf("encoding %v: %v", d, err)
	}
	return data
}

func TestHasherSkipsMalformed(t *testing.T) {
	bus := mock.NewBus()
	stats := &mock.RecordingStatter{}
	h := hashpipe.NewHasher(bus, hashpipe.OptHasherStatter(stats))

	batch := []hashpipe.Message{
		{Key: "k1", Data: encode(t, hashpipe.NewDatum("1", "abc", 1))},
		{Key: "k2", Data: []byte(`{"id":"2","payload":"abc"}`)},
		{Key: "k3", Data: encode(t, hashpipe.NewDatum("3", "abc", 3))},
	}
	if err := h.Process(context.Background(), batch); err != nil {
		t.Fatalf("processing: %v", err)
	}

	out := bus.Messages()
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing records, got %d", len(out))
	}
	if bus.Publishes() != 1 {
		t.Fatalf("expected a single publish, got %d", bus.Publishes())
	}
	digests := make(map[string]string)
	keys := make(map[string]string)
	for _, msg := range out {
		d, err := hashpipe.Decode(msg.Data)
		if err != nil {
			t.Fatalf("decoding outgoing record: %v", err)
		}
		dg, ok := d.Digest()
		if !ok {
			t.Fatalf("outgoing record %s has no digest", d.ID())
		}
		digests[d.ID()] = dg
		keys[d.ID()] = msg.Key
	}
	if digests["1"] != abcDigest || digests["3"] != abc3Digest {
		t.Fatalf("unexpected digests: %v", digests)
	}
	if keys["1"] != "k1" || keys["3"] != "k3" {
		t.Fatalf("partition keys not preserved: %v", keys)
	}
	if n := stats.Get("hasher.malformed"); n != 1 {
		t.Fatalf("expected 1 malformed, got %d", n)
	}
}

func TestHasherKeysByIDWithoutIncomingKey(t *testing.T) {
	bus := mock.NewBus()
	h := hashpipe.NewHasher(bus)
	err := h.Process(context.Background(), []hashpipe.Message{{Data: encode(t, hashpipe.NewDatum("the-id", "x", 1))}})
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if out := bus.Messages(); len(out) != 1 || out[0].Key != "the-id" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestHasherKeepsExistingDigest(t *testing.T) {
	bus := mock.NewBus()
	h := hashpipe.NewHasher(bus)
	err := h.Process(context.Background(), []hashpipe.Message{
		{Key: "a", Data: []byte(`{"id":"a","payload":"abc","iterations":1,"digest":"ALREADY"}`)},
	})
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	d, err := hashpipe.Decode(bus.Messages()[0].Data)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if dg, _ := d.Digest(); dg != "ALREADY" {
		t.Fatalf("digest was recomputed: %s", dg)
	}
}

func TestHasherConcurrent(t *testing.T) {
	bus := mock.NewBus()
	h := hashpipe.NewHasher(bus, hashpipe.OptHasherConcurrency(8))

	batch := make([]hashpipe.Message, 0, 100)
	exp := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("%03d", i)
		exp = append(exp, id)
		batch = append(batch, hashpipe.Message{Key: id, Data: encode(t, hashpipe.NewDatum(id, id, uint64(i)))})
	}
	if err := h.Process(context.Background(), batch); err != nil {
		t.Fatalf("processing: %v", err)
	}

	got := make([]string, 0, 100)
	for _, msg := range bus.Messages() {
		d, err := hashpipe.Decode(msg.Data)
		if err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if dg, _ := d.Digest(); dg != hashpipe.ComputeDigest(d.Payload(), d.Iterations()) {
			t.Fatalf("wrong digest for %s", d.ID())
		}
		got = append(got, d.ID())
	}
	sort.Strings(got)
	if fmt.Sprint(got) != fmt.Sprint(exp) {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestHasherPublishFailure(t *testing.T) {
	bus := mock.NewBus()
	bus.PublishErr = errors.New("stream unavailable")
	h := hashpipe.NewHasher(bus)
	err := h.Process(context.Background(), []hashpipe.Message{{Data: encode(t, hashpipe.NewDatum("a", "b", 1))}})
	if err == nil {
		t.Fatal("expected publish failure to be returned")
	}
	if errors.Cause(err) != bus.PublishErr {
		t.Fatalf("unexpected cause: %v", err)
	}
}

func TestHasherNothingToPublish(t *testing.T) {
	bus := mock.NewBus()
	h := hashpipe.NewHasher(bus)
	err := h.Process(context.Background(), []hashpipe.Message{{Data: []byte("garbage")}})
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if bus.Publishes() != 0 {
		t.Fatalf("expected no publish, got %d", bus.Publishes())
	}
}

func TestHasherCanceled(t *testing.T) {
	bus := mock.NewBus()
	h := hashpipe.NewHasher(bus)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Process(ctx, []hashpipe.Message{{Data: encode(t, hashpipe.NewDatum("a", "b", 1))}})
	if errors.Cause(err) != context.Canceled {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if bus.Publishes() != 0 {
		t.Fatal("canceled batch should not be published")
	}
}
