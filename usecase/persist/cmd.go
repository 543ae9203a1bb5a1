// Package persist runs the storage stage: it consumes hashed records and
// writes them to a durable store.
package persist

import (
	"context"
	"io"
	"os"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/usecase/conn"
	"github.com/pkg/errors"
)

// Main holds the options for the storage stage.
type Main struct {
	ReadTopic  string `help:"Topic or stream to consume hashed records from."`
	MaxRetries int    `help:"Times a failed batch is retried before giving up. Negative retries forever."`
	Bus        conn.Bus
	Store      conn.Store
	Logging    conn.Logging
	Stats      conn.Stats

	Source hashpipe.BatchSource `flag:"-"`
	Sink   hashpipe.Store       `flag:"-"`
	Stderr io.Writer            `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		ReadTopic:  "datum-b",
		MaxRetries: 5,
		Bus:        conn.NewBus(),
		Store:      conn.NewStore(),
		Stats:      conn.NewStats(),
		Stderr:     os.Stderr,
	}
}

// Run stores records until the source is exhausted or the process is
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

	store := m.Sink
	if store == nil {
		store, closer, err = m.Store.Open()
		if err != nil {
			return errors.Wrap(err, "opening store")
		}
		closers = append(closers, closer)
	}
	src := m.Source
	if src == nil {
		src, closer, err = m.Bus.Source(ctx, m.ReadTopic, log)
		if err != nil {
			return errors.Wrap(err, "opening source")
		}
		closers = append(closers, closer)
	}

	persister := hashpipe.NewPersister(store,
		hashpipe.OptPersisterLogger(log),
		hashpipe.OptPersisterStatter(stats),
	)
	runner := hashpipe.NewRunner(src, persister)
	runner.MaxRetries = m.MaxRetries
	runner.Log = log
	runner.Stats = stats

	log.Printf("storing records from %s in %s", m.ReadTopic, m.Store.Kind)
	err = runner.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	return errors.Wrap(err, "running persister")
}
