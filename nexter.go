package hashpipe

import (
	"sync/atomic"
)

// Nexter is a threadsafe monotonic sequence generator. The runner numbers
// batches with it so that log lines about one batch can be correlated.
type Nexter struct {
	id *uint64
}

// NexterOption configures a Nexter.
type NexterOption func(n *Nexter)

// NexterStartFrom makes the first call to Next return start.
func NexterStartFrom(start uint64) NexterOption {
	return func(n *Nexter) {
		*n.id = start
	}
}

// NewNexter creates a new sequence starting at 0.
func NewNexter(opts ...NexterOption) *Nexter {
	var id uint64
	n := &Nexter{
		id: &id,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Next generates a new number and returns it.
func (n *Nexter) Next() (nextID uint64) {
	nextID = atomic.AddUint64(n.id, 1)
	return nextID - 1
}

// Last returns the most recently generated number.
func (n *Nexter) Last() (lastID uint64) {
	lastID = atomic.LoadUint64(n.id) - 1
	return
}
