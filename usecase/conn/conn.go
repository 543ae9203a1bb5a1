// Package conn turns flat, flag friendly configuration into the buses,
// stores, stats and loggers which the hashpipe commands are wired from.
package conn

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/aws/dynamodb"
	"github.com/pilosa/hashpipe/aws/kinesis"
	"github.com/pilosa/hashpipe/aws/s3"
	"github.com/pilosa/hashpipe/boltdb"
	"github.com/pilosa/hashpipe/file"
	"github.com/pilosa/hashpipe/kafka"
	"github.com/pilosa/hashpipe/leveldb"
	"github.com/pilosa/hashpipe/redis"
	"github.com/pilosa/hashpipe/sqlite"
	"github.com/pilosa/hashpipe/statsd"
	"github.com/pilosa/hashpipe/termstat"
	"github.com/pkg/errors"
)

// Closers closes each of its members, collecting any failures.
type Closers []io.Closer

// Close implements io.Closer. Members are closed in reverse order.
func (cs Closers) Close() error {
	var errs hashpipe.ErrorList
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.Err()
}

// SignalContext returns a context which is cancelled on SIGINT or SIGTERM,
// or when the returned cancel func is called.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Logging configures how a command logs.
type Logging struct {
	LogPath string `help:"Log file to write to. Empty means stderr."`
	Verbose bool   `help:"Enable verbose logging."`
	Console bool   `help:"Write human readable log lines instead of JSON."`
}

// Logger opens the configured log. stderr is used when LogPath is empty.
func (l Logging) Logger(stderr io.Writer) (hashpipe.Logger, io.Closer, error) {
	out := stderr
	var closer io.Closer = nopCloser{}
	if l.LogPath != "" {
		f, err := os.OpenFile(l.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		out, closer = f, f
	}
	if l.Console {
		return hashpipe.NewConsoleLogger(out, l.Verbose), closer, nil
	}
	return hashpipe.NewZeroLogger(out, l.Verbose), closer, nil
}

// Bus kinds.
const (
	BusKafka   = "kafka"
	BusKinesis = "kinesis"
	BusS3      = "s3"
	BusFile    = "file"
)

// Bus configures the record bus a command reads from or writes to.
type Bus struct {
	Kind      string        `help:"Record bus: kafka, kinesis, file, or s3 (reading archived records only)."`
	Hosts     []string      `help:"Comma separated list of Kafka brokers."`
	Group     string        `help:"Kafka consumer group."`
	Region    string        `help:"AWS region for kinesis and s3."`
	Endpoint  string        `help:"Override the AWS endpoint, e.g. for a local emulator."`
	Bucket    string        `help:"S3 bucket holding archived records."`
	BatchSize int           `help:"Maximum number of records per batch."`
	Linger    time.Duration `help:"How long to wait for a batch to fill before processing it."`
	TLS       TLSConfig
}

// NewBus gets a Bus with the default configuration.
func NewBus() Bus {
	return Bus{
		Kind:      BusKafka,
		Hosts:     []string{"localhost:9092"},
		Group:     "hashpipe",
		Region:    "us-east-1",
		BatchSize: 100,
		Linger:    time.Second,
	}
}

// Source opens a batch source reading topic, which is a kafka topic, a
// kinesis stream, a local path, or an s3 key prefix depending on Kind.
func (b Bus) Source(ctx context.Context, topic string, log hashpipe.Logger) (hashpipe.BatchSource, io.Closer, error) {
	switch b.Kind {
	case BusKafka:
		tlsConf, err := b.TLS.Config(log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "getting TLS config")
		}
		src := kafka.NewSource()
		src.Hosts = b.Hosts
		src.Topics = []string{topic}
		src.Group = b.Group
		src.BatchSize = b.BatchSize
		src.Linger = b.Linger
		src.TLS = tlsConf
		src.Log = log
		if err := src.Open(); err != nil {
			return nil, nil, errors.Wrap(err, "opening kafka source")
		}
		return src, src, nil
	case BusKinesis:
		client, err := kinesis.NewClient(b.Region, b.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		src := kinesis.NewSource(client, topic)
		src.BatchSize = b.BatchSize
		src.PollInterval = b.Linger
		src.Log = log
		if err := src.Open(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "opening kinesis source")
		}
		return src, nopCloser{}, nil
	case BusS3:
		client, err := s3.NewClient(b.Region, b.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		src := s3.NewSource(client, b.Bucket, s3.OptSrcPrefix(topic), s3.OptSrcBatchSize(b.BatchSize), s3.OptSrcLogger(log))
		return src, src, nil
	case BusFile:
		src, err := file.NewSource(topic, file.OptSrcBatchSize(b.BatchSize), file.OptSrcLogger(log))
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening file source")
		}
		return src, src, nil
	}
	return nil, nil, errors.Errorf("unknown bus kind %q", b.Kind)
}

// Publisher opens a publisher writing to topic.
func (b Bus) Publisher(topic string, log hashpipe.Logger) (hashpipe.Publisher, io.Closer, error) {
	switch b.Kind {
	case BusKafka:
		tlsConf, err := b.TLS.Config(log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "getting TLS config")
		}
		pub, err := kafka.NewPublisher(b.Hosts, topic, tlsConf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening kafka publisher")
		}
		return pub, pub, nil
	case BusKinesis:
		client, err := kinesis.NewClient(b.Region, b.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return kinesis.NewPublisher(client, topic), nopCloser{}, nil
	case BusFile:
		pub, err := file.NewPublisher(topic)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening file publisher")
		}
		return pub, pub, nil
	}
	return nil, nil, errors.Errorf("bus kind %q cannot publish", b.Kind)
}

// Store kinds.
const (
	StoreDynamoDB = "dynamodb"
	StoreBolt     = "bolt"
	StoreLevelDB  = "leveldb"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StoreS3       = "s3"
)

// Store configures the durable table hashed records are written to.
type Store struct {
	Kind     string `help:"Store: dynamodb, bolt, leveldb, redis, sqlite, or s3."`
	Table    string `help:"DynamoDB or SQLite table, bolt bucket, or key prefix for leveldb, redis and s3."`
	Path     string `help:"Database file (bolt, sqlite) or directory (leveldb)."`
	Region   string `help:"AWS region for dynamodb and s3."`
	Endpoint string `help:"Override the AWS endpoint, e.g. for DynamoDB Local."`
	Bucket   string `help:"S3 bucket to archive items to."`
	Addr     string `help:"Redis address."`
	DB       int    `help:"Redis database number."`
}

// NewStore gets a Store with the default configuration.
func NewStore() Store {
	return Store{
		Kind:   StoreDynamoDB,
		Table:  "datum",
		Path:   "hashpipe.db",
		Region: "us-east-1",
		Addr:   "localhost:6379",
	}
}

// Open opens the configured store.
func (s Store) Open() (hashpipe.Store, io.Closer, error) {
	switch s.Kind {
	case StoreDynamoDB:
		client, err := dynamodb.NewClient(s.Region, s.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return dynamodb.NewStore(client, s.Table), nopCloser{}, nil
	case StoreBolt:
		st, err := boltdb.NewStore(s.Path, s.Table)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case StoreLevelDB:
		st, err := leveldb.NewStore(s.Path, leveldb.OptStorePrefix(s.Table))
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case StoreRedis:
		client, err := redis.NewClient(s.Addr, s.DB)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewStore(client, s.Table), client, nil
	case StoreSQLite:
		st, err := sqlite.Open(s.Path, s.Table)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case StoreS3:
		client, err := s3.NewClient(s.Region, s.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return s3.NewArchive(client, s.Bucket, s.Table), nopCloser{}, nil
	}
	return nil, nil, errors.Errorf("unknown store kind %q", s.Kind)
}

// Stats kinds.
const (
	StatsNone   = "none"
	StatsTerm   = "term"
	StatsStatsd = "statsd"
)

// Stats configures where a command sends its stats.
type Stats struct {
	Kind      string   `help:"Stats destination: none, term, or statsd."`
	Addr      string   `help:"Statsd agent address."`
	Namespace string   `help:"Prefix for every stat name sent to statsd."`
	Tags      []string `help:"Tags added to every stat sent to statsd."`
}

// NewStats gets a Stats with the default configuration.
func NewStats() Stats {
	return Stats{
		Kind:      StatsNone,
		Addr:      "localhost:8125",
		Namespace: "hashpipe.",
	}
}

// Statter opens the configured stats destination. A term Statter writes to
// out until ctx is done.
func (s Stats) Statter(ctx context.Context, out io.Writer) (hashpipe.Statter, io.Closer, error) {
	switch s.Kind {
	case StatsNone, "":
		return hashpipe.NopStatter{}, nopCloser{}, nil
	case StatsTerm:
		return termstat.NewCollector(ctx, out, 2*time.Second), nopCloser{}, nil
	case StatsStatsd:
		st, err := statsd.NewStatter(s.Addr, s.Namespace, s.Tags...)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
	return nil, nil, errors.Errorf("unknown stats kind %q", s.Kind)
}
