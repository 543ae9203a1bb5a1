// Package fake generates pseudo-random records for feeding the pipeline.
package fake

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/fake/gen"
)

// DatumGenerator generates random Datums. Using the same seed gives the same
// series of records on a given version of Go. It is threadsafe.
type DatumGenerator struct {
	mu sync.Mutex
	g  *gen.Generator
}

// NewDatumGenerator gets a new DatumGenerator.
func NewDatumGenerator(seed int64) *DatumGenerator {
	return &DatumGenerator{
		g: gen.NewGenerator(seed),
	}
}

// Datum generates a record with a random version 4 UUID, a random
// alphanumeric payload of chars characters, and the given iteration count.
// Its digest is unset.
func (g *DatumGenerator) Datum(chars int, iterations uint64) *hashpipe.Datum {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.datum(chars, iterations)
}

// Skewed is like Datum, but picks the iteration count from [1, maxIterations]
// with a zipfian distribution.
func (g *DatumGenerator) Skewed(chars int, maxIterations uint64) *hashpipe.Datum {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.datum(chars, g.g.Iterations(maxIterations))
}

func (g *DatumGenerator) datum(chars int, iterations uint64) *hashpipe.Datum {
	id, err := uuid.NewRandomFromReader(g.g)
	if err != nil {
		// math/rand never fails to Read
		panic(err)
	}
	return hashpipe.NewDatum(id.String(), g.g.Alphanumeric(chars), iterations)
}

var globalGen = NewDatumGenerator(0)

// GenDatum builds a random Datum.
func GenDatum(chars int, iterations uint64) *hashpipe.Datum {
	return globalGen.Datum(chars, iterations)
}
