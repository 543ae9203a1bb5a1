// Package hash runs the hashing stage: it consumes records from one topic,
// computes their digests, and publishes them to another.
package hash

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/usecase/conn"
	"github.com/pkg/errors"
)

// Main holds the options for the hashing stage.
type Main struct {
	ReadTopic   string `help:"Topic or stream to consume unhashed records from."`
	WriteTopic  string `help:"Topic or stream to publish hashed records to."`
	Concurrency int    `help:"Number of records hashed in parallel."`
	MaxRetries  int    `help:"Times a failed batch is retried before giving up. Negative retries forever."`
	Bus         conn.Bus
	// Out is the bus hashed records are published to. It defaults to Bus
	// when its kind is empty.
	Out     conn.Bus
	Logging conn.Logging
	Stats   conn.Stats

	Source    hashpipe.BatchSource `flag:"-"`
	Publisher hashpipe.Publisher   `flag:"-"`
	Stderr    io.Writer            `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		ReadTopic:   "datum-a",
		WriteTopic:  "datum-b",
		Concurrency: runtime.NumCPU(),
		MaxRetries:  5,
		Bus:         conn.NewBus(),
		Stats:       conn.NewStats(),
		Stderr:      os.Stderr,
	}
}

// Run hashes records until the source is exhausted or the process is
// interrupted.
func (m *Main) Run() error {
	ctx, cancel := conn.SignalContext(context.Background())
	defer cancel()
	return m.run(ctx)
}

func (m *Main) run(ctx context.Context) (err error) {
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

	src := m.Source
	if src == nil {
		src, closer, err = m.Bus.Source(ctx, m.ReadTopic, log)
		if err != nil {
			return errors.Wrap(err, "opening source")
		}
		closers = append(closers, closer)
	}
	pub := m.Publisher
	if pub == nil {
		out := m.Out
		if out.Kind == "" {
			out = m.Bus
		}
		pub, closer, err = out.Publisher(m.WriteTopic, log)
		if err != nil {
			return errors.Wrap(err, "opening publisher")
		}
		closers = append(closers, closer)
	}

	hasher := hashpipe.NewHasher(pub,
		hashpipe.OptHasherConcurrency(m.Concurrency),
		hashpipe.OptHasherLogger(log),
		hashpipe.OptHasherStatter(stats),
	)
	runner := hashpipe.NewRunner(src, hasher)
	runner.MaxRetries = m.MaxRetries
	runner.Log = log
	runner.Stats = stats

	log.Printf("hashing records from %s to %s with %d workers", m.ReadTopic, m.WriteTopic, m.Concurrency)
	err = runner.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	return errors.Wrap(err, "running hasher")
}
