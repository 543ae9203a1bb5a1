package fake

import (
	"context"
	"io"

	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// Source is a hashpipe.BatchSource which generates encoded random Datums.
type Source struct {
	BatchSize  int
	Chars      int
	Iterations uint64
	// MaxIterations, if non-zero, replaces Iterations with zipfian counts
	// in [1, MaxIterations].
	MaxIterations uint64

	g   *DatumGenerator
	max uint64
	n   uint64
}

// NewSource creates a new Source with the given random seed which returns max
// records in total, or never ends if max is 0.
func NewSource(seed int64, max uint64) *Source {
	return &Source{
		BatchSize:  100,
		Chars:      32,
		Iterations: 10,
		g:          NewDatumGenerator(seed),
		max:        max,
	}
}

// Batch implements hashpipe.BatchSource.
func (s *Source) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.max > 0 && s.n >= s.max {
		return nil, io.EOF
	}
	size := uint64(s.BatchSize)
	if s.max > 0 && s.max-s.n < size {
		size = s.max - s.n
	}
	batch := make([]hashpipe.Message, 0, size)
	for i := uint64(0); i < size; i++ {
		var d *hashpipe.Datum
		if s.MaxIterations > 0 {
			d = s.g.Skewed(s.Chars, s.MaxIterations)
		} else {
			d = s.g.Datum(s.Chars, s.Iterations)
		}
		data, err := d.Encode()
		if err != nil {
			return nil, errors.Wrap(err, "encoding generated datum")
		}
		batch = append(batch, hashpipe.Message{Key: d.ID(), Data: data})
	}
	s.n += size
	return batch, nil
}

// Commit does nothing; generated records are never redelivered.
func (s *Source) Commit() error { return nil }
