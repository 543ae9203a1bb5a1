package hashpipe

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Runner drives a Stage with batches from a BatchSource until the source is
// exhausted or the context is done.
type Runner struct {
	// MaxRetries is the number of times a failed batch is retried before Run
	// gives up and returns the error. Negative means retry forever.
	MaxRetries int

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Idle is how long Run waits after the source hands back an empty batch.
	Idle time.Duration

	Log   Logger
	Stats Statter

	src   BatchSource
	stage Stage
	seq   *Nexter
}

// NewRunner returns a Runner feeding batches from src to stage.
func NewRunner(src BatchSource, stage Stage) *Runner {
	return &Runner{
		MaxRetries:     5,
		BackoffInitial: DefaultBackoffInitial,
		BackoffMax:     DefaultBackoffMax,
		Idle:           DefaultIdle,
		Log:            NopLogger{},
		Stats:          NopStatter{},
		src:            src,
		stage:          stage,
		seq:            NewNexter(),
	}
}

// DefaultIdle is how long a Runner waits after an empty batch.
const DefaultIdle = 100 * time.Millisecond

// Run processes batches until the source returns io.EOF, in which case it
// returns nil, or ctx is done, in which case it returns ctx.Err(). A batch is
// only committed to the source once the stage has processed it successfully.
func (r *Runner) Run(ctx context.Context) error {
	b := newBackoff(r.BackoffInitial, r.BackoffMax)
	for {
		batch, err := r.src.Batch(ctx)
		if err == io.EOF {
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "getting batch")
		}
		if len(batch) == 0 {
			if err := sleep(ctx, r.Idle); err != nil {
				return err
			}
			continue
		}

		seq := r.seq.Next()
		r.Log.Debugf("batch %d: %d messages", seq, len(batch))
		for attempt := 0; ; attempt++ {
			err = r.stage.Process(ctx, batch)
			if err == nil {
				break
			}
			r.Stats.Count("runner.failed", 1, 1)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if r.MaxRetries >= 0 && attempt >= r.MaxRetries {
				return errors.Wrapf(err, "processing batch %d after %d attempts", seq, attempt+1)
			}
			r.Log.Printf("batch %d attempt %d failed, backing off: %v", seq, attempt+1, err)
			if err := b.Sleep(ctx); err != nil {
				return err
			}
		}
		b.Reset()

		if err := r.src.Commit(); err != nil {
			return errors.Wrapf(err, "committing batch %d", seq)
		}
		r.Stats.Count("runner.batches", 1, 1)
		r.Stats.Count("runner.messages", int64(len(batch)), 1)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
