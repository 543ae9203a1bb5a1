package persist_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/sqlite"
	"github.com/pilosa/hashpipe/test"
	"github.com/pilosa/hashpipe/usecase/conn"
	"github.com/pilosa/hashpipe/usecase/gen"
	"github.com/pilosa/hashpipe/usecase/hash"
	"github.com/pilosa/hashpipe/usecase/persist"
)

func TestPipelineOverFiles(t *testing.T) {
	dir := test.TempDirName(t)
	raw := filepath.Join(dir, "raw.ndjson")
	hashed := filepath.Join(dir, "hashed.ndjson")
	db := filepath.Join(dir, "datum.db")

	g := gen.NewMain()
	g.Seed = 3
	g.Num = 25
	g.Chars = 8
	g.Iterations = 4
	g.BatchSize = 10
	g.Topic = raw
	g.Bus.Kind = conn.BusFile
	g.Stderr = ioutil.Discard
	test.ErrNil(t, g.Run(), "generating")

	h := hash.NewMain()
	h.ReadTopic = raw
	h.WriteTopic = hashed
	h.Concurrency = 4
	h.Bus.Kind = conn.BusFile
	h.Stderr = ioutil.Discard
	test.ErrNil(t, h.Run(), "hashing")

	p := persist.NewMain()
	p.ReadTopic = hashed
	p.Bus.Kind = conn.BusFile
	p.Store.Kind = conn.StoreSQLite
	p.Store.Path = db
	p.Stderr = ioutil.Discard
	test.ErrNil(t, p.Run(), "persisting")

	st, err := sqlite.Open(db, "")
	test.ErrNil(t, err, "reopening")
	defer st.Close()
	ctx := context.Background()
	n, err := st.Len(ctx)
	test.ErrNil(t, err, "counting")
	test.MustBe(t, 25, n)

	lines, err := ioutil.ReadFile(raw)
	test.ErrNil(t, err, "reading raw records")
	for _, line := range splitLines(lines) {
		d, err := hashpipe.Decode(line)
		test.ErrNil(t, err, "decoding raw record")
		item, ok, err := st.GetItem(ctx, d.ID())
		test.ErrNil(t, err, "getting item")
		test.MustBe(t, true, ok, d.ID())
		test.MustBe(t, hashpipe.ComputeDigest(d.Payload(), 4), item.Digest, d.ID())
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
