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

// Package redis stores hashed records as Redis hashes.
package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// Store is a hashpipe.Store which writes each item to the hash
// <prefix><id> with one field per item attribute.
type Store struct {
	prefix  string
	hmset   func(key string, fields map[string]interface{}) error
	hgetall func(key string) (map[string]string, error)
}

// NewClient connects to the Redis server at addr.
func NewClient(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", addr)
	}
	return client, nil
}

// NewStore returns a Store writing through client.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{
		prefix: prefix,
		hmset: func(key string, fields map[string]interface{}) error {
			return client.HMSet(key, fields).Err()
		},
		hgetall: func(key string) (map[string]string, error) {
			return client.HGetAll(key).Result()
		},
	}
}

// PutItem implements hashpipe.Store.
func (s *Store) PutItem(ctx context.Context, item hashpipe.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.hmset(s.prefix+item.ID, map[string]interface{}{
		"id":         item.ID,
		"payload":    item.Payload,
		"iterations": item.IterationsString(),
		"digest":     item.Digest,
	})
	return errors.Wrapf(err, "setting %s%s", s.prefix, item.ID)
}

// GetItem returns the item stored under id. ok is false if there is none.
func (s *Store) GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error) {
	fields, err := s.hgetall(s.prefix + id)
	if err != nil {
		return item, false, errors.Wrapf(err, "getting %s%s", s.prefix, id)
	}
	if len(fields) == 0 {
		return item, false, nil
	}
	item.ID = fields["id"]
	item.Payload = fields["payload"]
	item.Digest = fields["digest"]
	item.Iterations, err = strconv.ParseUint(fields["iterations"], 10, 64)
	if err != nil {
		return item, false, errors.Wrapf(err, "parsing iterations of %s%s", s.prefix, id)
	}
	return item, true, nil
}
