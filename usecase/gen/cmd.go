// Package gen generates random records and publishes them to a bus for the
// hashing stage.
package gen

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/fake"
	"github.com/pilosa/hashpipe/usecase/conn"
	"github.com/pkg/errors"
)

// Main holds the options for generating records.
type Main struct {
	Seed          int64         `help:"Random seed for generating data. -1 will use current nanosecond."`
	Num           uint64        `help:"Number of records to generate. 0 means infinity."`
	Chars         int           `help:"Number of characters in each payload."`
	Iterations    uint64        `help:"Hash iterations for each record."`
	MaxIterations uint64        `help:"If non-zero, iterations are drawn from [1, max-iterations] with a zipfian skew instead."`
	BatchSize     int           `help:"Number of records published at once."`
	Rate          time.Duration `help:"Minimum delay between batches. 0 publishes as fast as possible."`
	Topic         string        `help:"Topic or stream to publish to."`
	Bus           conn.Bus
	Logging       conn.Logging
	Stats         conn.Stats

	// Publisher, if set, is used instead of opening Bus.
	Publisher hashpipe.Publisher `flag:"-"`
	Stderr    io.Writer          `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Seed:       -1,
		Chars:      64,
		Iterations: 100,
		BatchSize:  100,
		Topic:      "datum-a",
		Bus:        conn.NewBus(),
		Stats:      conn.NewStats(),
		Stderr:     os.Stderr,
	}
}

// Run generates records until Num have been published or the process is
// interrupted.
func (m *Main) Run() error {
	ctx, cancel := conn.SignalContext(context.Background())
	defer cancel()
	return m.run(ctx)
}

func (m *Main) run(ctx context.Context) (err error) {
	if m.Seed == -1 {
		m.Seed = time.Now().UnixNano()
	}
	if m.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	var closers conn.Closers
	defer func() {
		if cerr := closers.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing")
		}
	}()

	log, closer, err := m.Logging.Logger(m.Stderr)
	if err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	closers = append(closers, closer)
	stats, closer, err := m.Stats.Statter(ctx, m.Stderr)
	if err != nil {
		return errors.Wrap(err, "setting up stats")
	}
	closers = append(closers, closer)

	pub := m.Publisher
	if pub == nil {
		pub, closer, err = m.Bus.Publisher(m.Topic, log)
		if err != nil {
			return errors.Wrap(err, "opening publisher")
		}
		closers = append(closers, closer)
	}

	src := fake.NewSource(m.Seed, m.Num)
	src.BatchSize = m.BatchSize
	src.Chars = m.Chars
	src.Iterations = m.Iterations
	src.MaxIterations = m.MaxIterations

	var tick <-chan time.Time
	if m.Rate > 0 {
		ticker := time.NewTicker(m.Rate)
		defer ticker.Stop()
		tick = ticker.C
	}
	stage := hashpipe.StageFunc(func(ctx context.Context, batch []hashpipe.Message) error {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := pub.Publish(ctx, batch); err != nil {
			return errors.Wrap(err, "publishing")
		}
		stats.Count("generator.published", int64(len(batch)), 1)
		return nil
	})

	runner := hashpipe.NewRunner(src, stage)
	runner.Log = log
	runner.Stats = stats
	log.Printf("generating records to %s with seed %d", m.Topic, m.Seed)
	start := time.Now()
	err = runner.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	log.Printf("generator done after %v", time.Since(start))
	return err
}
