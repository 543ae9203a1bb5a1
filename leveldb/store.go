// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package leveldb stores hashed records in a LevelDB directory.
package leveldb

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a hashpipe.Store which keeps each item as JSON under
// <prefix><id>.
type Store struct {
	db     *leveldb.DB
	prefix []byte
	sync   bool
}

// StoreOption is a functional option for Store.
type StoreOption func(s *Store)

// OptStorePrefix namespaces every key the store writes.
func OptStorePrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = []byte(prefix)
	}
}

// OptStoreSync makes every write wait for the log to reach disk.
func OptStoreSync(sync bool) StoreOption {
	return func(s *Store) {
		s.sync = sync
	}
}

// NewStore opens (creating if needed) a leveldb in dirname.
func NewStore(dirname string, opts ...StoreOption) (*Store, error) {
	err := os.MkdirAll(dirname, 0700)
	if err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	s.db, err = leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return s, nil
}

func (s *Store) key(id string) []byte {
	return append(append([]byte{}, s.prefix...), id...)
}

// PutItem implements hashpipe.Store.
func (s *Store) PutItem(ctx context.Context, item hashpipe.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(item)
	if err != nil {
		return errors.Wrap(err, "marshaling item")
	}
	err = s.db.Put(s.key(item.ID), val, &opt.WriteOptions{Sync: s.sync})
	return errors.Wrapf(err, "putting item %s", item.ID)
}

// GetItem returns the item stored under id. ok is false if there is none.
func (s *Store) GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error) {
	val, err := s.db.Get(s.key(id), nil)
	if err == leveldb.ErrNotFound {
		return item, false, nil
	} else if err != nil {
		return item, false, errors.Wrapf(err, "getting item %s", id)
	}
	if err := json.Unmarshal(val, &item); err != nil {
		return item, false, errors.Wrapf(err, "decoding item %s", id)
	}
	return item, true, nil
}

// Len counts the items under the store's prefix.
func (s *Store) Len() (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix(s.prefix), nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, errors.Wrap(iter.Error(), "iterating")
}

// Close closes the underlying leveldb.
func (s *Store) Close() error {
	return s.db.Close()
}
