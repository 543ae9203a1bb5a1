package mock

import (
	"context"
	"sync"

	"github.com/pilosa/hashpipe"
)

// Store is an in-memory hashpipe.Store. It is safe for concurrent use.
type Store struct {
	// Fail, if set, is consulted before each write, and a non-nil return is
	// the result of that write.
	Fail func(item hashpipe.Item) error

	mu     sync.Mutex
	items  map[string]hashpipe.Item
	writes int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]hashpipe.Item)}
}

// PutItem stores item under its id.
func (s *Store) PutItem(ctx context.Context, item hashpipe.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.Fail != nil {
		if err := s.Fail(item); err != nil {
			return err
		}
	}
	s.items[item.ID] = item
	return nil
}

// Get returns the item stored under id.
func (s *Store) Get(id string) (hashpipe.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

// GetItem is Get with the signature of the stores which read from a
// database.
func (s *Store) GetItem(ctx context.Context, id string) (hashpipe.Item, bool, error) {
	item, ok := s.Get(id)
	return item, ok, nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Writes returns the number of calls to PutItem, including failed ones.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
