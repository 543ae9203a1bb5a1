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

// Package sqlite stores hashed records in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// DefaultTable is the table items are written to when none is given.
const DefaultTable = "datum"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a hashpipe.Store on a SQLite table keyed by id.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens (creating if needed) the database at path and ensures the table
// exists.
func Open(path, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to database")
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	digest TEXT NOT NULL
)`, table),
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "executing %q", stmt)
		}
	}
	return &Store{db: db, table: table}, nil
}

// PutItem implements hashpipe.Store. Iteration counts must fit in a signed
// 64 bit integer.
func (s *Store) PutItem(ctx context.Context, item hashpipe.Item) error {
	if item.Iterations > math.MaxInt64 {
		return errors.Errorf("iterations %d of %s too large for sqlite", item.Iterations, item.ID)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+s.table+" (id, payload, iterations, digest) VALUES (?, ?, ?, ?)",
		item.ID, item.Payload, int64(item.Iterations), item.Digest)
	return errors.Wrapf(err, "inserting item %s", item.ID)
}

// GetItem returns the item stored under id. ok is false if there is none.
func (s *Store) GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error) {
	var iterations int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id, payload, iterations, digest FROM "+s.table+" WHERE id = ?", id,
	).Scan(&item.ID, &item.Payload, &iterations, &item.Digest)
	if err == sql.ErrNoRows {
		return item, false, nil
	} else if err != nil {
		return item, false, errors.Wrapf(err, "selecting item %s", id)
	}
	item.Iterations = uint64(iterations)
	return item, true, nil
}

// Len returns the number of stored items.
func (s *Store) Len(ctx context.Context) (n int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n)
	return n, errors.Wrap(err, "counting items")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
