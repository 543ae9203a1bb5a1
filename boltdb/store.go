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

// Package boltdb stores hashed records in a BoltDB file.
package boltdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// DefaultBucket is the bucket items are written to when none is given.
const DefaultBucket = "datum"

// Store is a hashpipe.Store which keeps each item as JSON under its id in a
// single bolt bucket. Concurrent writes are coalesced into shared
// transactions by bolt's Batch.
type Store struct {
	Db     *bolt.DB
	bucket []byte
}

// NewStore opens (creating if needed) the bolt file at filename and ensures
// the bucket exists.
func NewStore(filename, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	s := &Store{bucket: []byte(bucket)}
	var err error
	s.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	s.Db.MaxBatchDelay = 400 * time.Microsecond
	err = s.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		s.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return s, nil
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
	err = s.Db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(item.ID), val)
	})
	return errors.Wrapf(err, "putting item %s", item.ID)
}

// GetItem returns the item stored under id. ok is false if there is none.
func (s *Store) GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error) {
	err = s.Db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(s.bucket).Get([]byte(id))
		if val == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(val, &item)
	})
	return item, ok, errors.Wrapf(err, "getting item %s", id)
}

// Len returns the number of stored items.
func (s *Store) Len() (n int, err error) {
	err = s.Db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close syncs and closes the underlying boltdb.
func (s *Store) Close() error {
	err := s.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return s.Db.Close()
}
