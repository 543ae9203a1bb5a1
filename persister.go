package hashpipe

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PersisterOption is a functional option type for Persister.
type PersisterOption func(p *Persister)

// OptPersisterLogger sets the Logger used by a Persister.
func OptPersisterLogger(l Logger) PersisterOption {
	return func(p *Persister) {
		p.log = l
	}
}

// OptPersisterStatter sets the Statter used by a Persister.
func OptPersisterStatter(s Statter) PersisterOption {
	return func(p *Persister) {
		p.stats = s
	}
}

// Persister is the Stage which writes hashed records to a Store.
type Persister struct {
	store Store
	log   Logger
	stats Statter
}

// NewPersister returns a Persister which writes to store.
func NewPersister(store Store, opts ...PersisterOption) *Persister {
	p := &Persister{
		store: store,
		log:   NopLogger{},
		stats: NopStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process writes every decodable record in batch to the store, one
// independent write per record, all at once. It waits for every write to
// settle; a failed write does not stop the others. Failures are returned
// together as an ErrorList.
func (p *Persister) Process(ctx context.Context, batch []Message) error {
	data := make([]*Datum, 0, len(batch))
	for _, msg := range batch {
		d, err := Decode(msg.Data)
		if err != nil {
			p.log.Printf("skipping record with key '%s': %v", msg.Key, err)
			p.stats.Count("persister.malformed", 1, 1)
			continue
		}
		data = append(data, d)
	}
	_, err := p.Persist(ctx, data)
	return err
}

// Persist writes data to the store concurrently and returns the number of
// records which were stored.
func (p *Persister) Persist(ctx context.Context, data []*Datum) (int, error) {
	start := time.Now()
	p.log.Debugf("writing records: %d", len(data))

	errs := make([]error, len(data))
	wg := sync.WaitGroup{}
	for i, d := range data {
		wg.Add(1)
		go func(i int, d *Datum) {
			defer wg.Done()
			errs[i] = p.put(ctx, d)
		}(i, d)
	}
	wg.Wait()

	failed := make(ErrorList, 0)
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	stored := len(data) - len(failed)
	p.stats.Count("persister.stored", int64(stored), 1)
	p.stats.Count("persister.failed", int64(len(failed)), 1)
	p.stats.Timing("persister.batch", time.Since(start), 1)
	p.log.Debugf("stored items: %d, failed: %d", stored, len(failed))
	return stored, failed.Err()
}

func (p *Persister) put(ctx context.Context, d *Datum) error {
	if _, ok := d.Digest(); !ok {
		p.log.Debugf("datum %s arrived without a digest, hashing before storing", d.ID())
		d.Hash()
	}
	item := NewItem(d)
	if err := p.store.PutItem(ctx, item); err != nil {
		p.log.Printf("storing datum %s: %v", item.ID, err)
		return errors.Wrapf(err, "storing datum %s", item.ID)
	}
	return nil
}
