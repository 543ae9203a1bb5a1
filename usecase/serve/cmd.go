// Package serve runs the HTTP front end to the pipeline.
package serve

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/fake"
	"github.com/pilosa/hashpipe/http"
	"github.com/pilosa/hashpipe/usecase/conn"
	"github.com/pkg/errors"
)

// Main holds the options for the HTTP server.
type Main struct {
	Bind          string `help:"Listen for requests on this address."`
	Topic         string `help:"Topic or stream generated records are published to."`
	Publish       bool   `help:"Enable POST /datum, which generates records and publishes them to the bus."`
	Persist       bool   `help:"Enable POST /data and GET /item, which write to and read from the store."`
	MaxIterations uint64 `help:"Largest iteration count a request may ask for. 0 means unbounded."`
	MaxChars      int    `help:"Longest payload POST /datum may generate."`
	AccessLog     bool   `help:"Write an access log line per request to stderr."`
	Seed          int64  `help:"Random seed for generating data. -1 will use current nanosecond."`
	Bus           conn.Bus
	Store         conn.Store
	Logging       conn.Logging
	Stats         conn.Stats

	Publisher hashpipe.Publisher `flag:"-"`
	Sink      hashpipe.Store     `flag:"-"`
	Stderr    io.Writer          `flag:"-"`
	// started, if set, receives the server once it is listening.
	started chan<- *http.Server
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Bind:          ":12121",
		Topic:         "datum-a",
		MaxIterations: 1000000,
		MaxChars:      1 << 20,
		Seed:          -1,
		Bus:           conn.NewBus(),
		Store:         conn.NewStore(),
		Stats:         conn.NewStats(),
		Stderr:        os.Stderr,
	}
}

// Run serves until the process is interrupted.
func (m *Main) Run() error {
	ctx, cancel := conn.SignalContext(context.Background())
	defer cancel()
	return m.run(ctx)
}

func (m *Main) run(ctx context.Context) (err error) {
	if m.Seed == -1 {
		m.Seed = time.Now().UnixNano()
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

	opts := []http.ServerOption{
		http.WithAddr(m.Bind),
		http.WithLogger(log),
		http.WithGenerator(fake.NewDatumGenerator(m.Seed)),
		http.WithMaxIterations(m.MaxIterations),
		http.WithMaxChars(m.MaxChars),
	}
	if m.AccessLog {
		opts = append(opts, http.WithAccessLog(m.Stderr))
	}
	if m.Publish {
		pub := m.Publisher
		if pub == nil {
			pub, closer, err = m.Bus.Publisher(m.Topic, log)
			if err != nil {
				return errors.Wrap(err, "opening publisher")
			}
			closers = append(closers, closer)
		}
		opts = append(opts, http.WithPublisher(pub))
	}
	if m.Persist {
		store := m.Sink
		if store == nil {
			store, closer, err = m.Store.Open()
			if err != nil {
				return errors.Wrap(err, "opening store")
			}
			closers = append(closers, closer)
		}
		opts = append(opts, http.WithPersister(hashpipe.NewPersister(store,
			hashpipe.OptPersisterLogger(log),
			hashpipe.OptPersisterStatter(stats),
		)))
		if g, ok := store.(http.ItemGetter); ok {
			opts = append(opts, http.WithItems(g))
		}
	}

	srv, err := http.NewServer(opts...)
	if err != nil {
		return errors.Wrap(err, "starting server")
	}
	if m.started != nil {
		m.started <- srv
	}
	return srv.Serve(ctx)
}
