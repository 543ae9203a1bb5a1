package hashpipe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// HasherOption is a functional option type for Hasher.
type HasherOption func(h *Hasher)

// OptHasherConcurrency sets the number of routines which compute digests for
// a batch. Values below 1 are ignored.
func OptHasherConcurrency(n int) HasherOption {
	return func(h *Hasher) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// OptHasherLogger sets the Logger used by a Hasher.
func OptHasherLogger(l Logger) HasherOption {
	return func(h *Hasher) {
		h.log = l
	}
}

// OptHasherStatter sets the Statter used by a Hasher.
func OptHasherStatter(s Statter) HasherOption {
	return func(h *Hasher) {
		h.stats = s
	}
}

// Hasher is the Stage which computes the digest of each record in a batch and
// publishes the hashed records downstream.
type Hasher struct {
	concurrency int

	pub   Publisher
	log   Logger
	stats Statter
}

// NewHasher returns a Hasher which publishes to pub.
func NewHasher(pub Publisher, opts ...HasherOption) *Hasher {
	h := &Hasher{
		concurrency: 1,
		pub:         pub,
		log:         NopLogger{},
		stats:       NopStatter{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Process decodes and hashes every message in batch, then publishes all of
// the hashed records with a single call to the Publisher. Records which cannot
// be decoded, or which encode to nothing, are logged and left out; they never
// fail the batch. A publish failure is returned.
func (h *Hasher) Process(ctx context.Context, batch []Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "hashing batch")
	}
	start := time.Now()
	hashed := make([]*Message, len(batch))

	idxs := make(chan int)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(idxs)
		for i := range batch {
			select {
			case idxs <- i:
			case <-ectx.Done():
				return ectx.Err()
			}
		}
		return nil
	})
	for w := 0; w < h.concurrency; w++ {
		eg.Go(func() error {
			for i := range idxs {
				hashed[i] = h.hash(batch[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "hashing batch")
	}

	out := make([]Message, 0, len(batch))
	for _, msg := range hashed {
		if msg != nil {
			out = append(out, *msg)
		}
	}
	h.stats.Timing("hasher.batch", time.Since(start), 1)
	if len(out) == 0 {
		h.log.Debugf("nothing to publish from batch of %d", len(batch))
		return nil
	}

	h.log.Debugf("publishing messages: %d", len(out))
	if err := h.pub.Publish(ctx, out); err != nil {
		return errors.Wrapf(err, "publishing %d hashed records", len(out))
	}
	h.stats.Count("hasher.published", int64(len(out)), 1)
	return nil
}

// hash returns the outgoing message for msg, or nil if msg should be skipped.
func (h *Hasher) hash(msg Message) *Message {
	d, err := Decode(msg.Data)
	if err != nil {
		h.log.Printf("skipping record with key '%s': %v", msg.Key, err)
		h.stats.Count("hasher.malformed", 1, 1)
		return nil
	}
	h.log.Debugf("incoming datum %s: %v", d.ID(), d)
	d.Hash()
	h.log.Debugf("outgoing datum %s: %v", d.ID(), d)

	data, err := d.Encode()
	if err != nil || degenerate(data) {
		h.log.Printf("skipping datum %s, degenerate encoding '%s': %v", d.ID(), data, err)
		h.stats.Count("hasher.degenerate", 1, 1)
		return nil
	}

	key := msg.Key
	if key == "" {
		key = d.ID()
	}
	return &Message{Key: key, Data: data}
}
