package hashpipe

import (
	"context"
	"strconv"
)

// Item is the stored form of a hashed Datum.
type Item struct {
	ID         string `json:"id"`
	Payload    string `json:"payload"`
	Iterations uint64 `json:"iterations"`
	Digest     string `json:"digest"`
}

// NewItem builds the stored form of d. The digest is empty if d has not been
// hashed; NewItem never hashes.
func NewItem(d *Datum) Item {
	digest, _ := d.Digest()
	return Item{
		ID:         d.ID(),
		Payload:    d.Payload(),
		Iterations: d.Iterations(),
		Digest:     digest,
	}
}

// IterationsString renders the iteration count the way numeric attributes are
// sent to stores which take numbers as strings.
func (it Item) IterationsString() string {
	return strconv.FormatUint(it.Iterations, 10)
}

// Store is a durable table of items keyed by id. PutItem replaces any existing
// item with the same id, so writing the same item twice is harmless.
// Implementations must be safe for concurrent use.
type Store interface {
	PutItem(ctx context.Context, item Item) error
}
