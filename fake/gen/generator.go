package gen

import (
	"math/rand"
	"sync"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator holds state for generating random data in certain distributions.
// It is not threadsafe.
type Generator struct {
	r  *rand.Rand
	zs map[uint64]*rand.Zipf
}

// NewGenerator gets a new Generator
func NewGenerator(seed int64) *Generator {
	return &Generator{
		r:  rand.New(rand.NewSource(seed)),
		zs: make(map[uint64]*rand.Zipf),
	}
}

// Alphanumeric returns a uniformly random string of length characters drawn
// from [A-Za-z0-9].
func (g *Generator) Alphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumeric[g.r.Intn(len(alphanumeric))]
	}
	return string(b)
}

// Uint64 gets a zipfian random uint64 in [0, cardinality).
func (g *Generator) Uint64(cardinality uint64) uint64 {
	if cardinality < 2 {
		return 0
	}
	z, ok := g.zs[cardinality]
	if !ok {
		// rand.Zipf generates values in [0, imax], so subtract one to get the
		// [0, n) behavior of rand.Intn.
		imax := cardinality - 1
		v := 0.05 * float64(imax)
		if v < 1.0 {
			v = 1.0
		}
		z = rand.NewZipf(g.r, 1.1, v, imax)
		g.zs[cardinality] = z
	}
	return z.Uint64()
}

// Iterations returns an iteration count in [1, max], skewed towards small
// counts so that most records are cheap to hash and a few are expensive.
func (g *Generator) Iterations(max uint64) uint64 {
	if max == 0 {
		return 0
	}
	return g.Uint64(max) + 1
}

// Read fills p with random bytes. It lets a Generator act as the entropy
// source for seeded identifiers.
func (g *Generator) Read(p []byte) (int, error) {
	return g.r.Read(p)
}

// Global convenience funcs

var globalGen = NewGenerator(0)
var globalLk = sync.Mutex{}

// Alphanumeric returns a random alphanumeric string of the given length.
func Alphanumeric(length int) string {
	globalLk.Lock()
	defer globalLk.Unlock()
	return globalGen.Alphanumeric(length)
}

// Uint64 gets a zipfian random uint64 in [0, cardinality).
func Uint64(cardinality uint64) uint64 {
	globalLk.Lock()
	defer globalLk.Unlock()
	return globalGen.Uint64(cardinality)
}
