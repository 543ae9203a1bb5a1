package persist

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/mock"
	"github.com/pilosa/hashpipe/sqlite"
	"github.com/pilosa/hashpipe/test"
	"github.com/pkg/errors"
)

func seed(t *testing.T, bus *mock.Bus, ds ...*hashpipe.Datum) {
	t.Helper()
	for _, d := range ds {
		data, err := d.Encode()
		test.ErrNil(t, err, "encoding")
		test.ErrNil(t, bus.Publish(context.Background(), []hashpipe.Message{{Key: d.ID(), Data: data}}), "seeding")
	}
	test.ErrNil(t, bus.Close(), "closing bus")
}

func TestMainStoresInSQLite(t *testing.T) {
	in := mock.NewBus()
	hashed := hashpipe.NewDatum("a", "abc", 1)
	hashed.Hash()
	seed(t, in, hashed, hashpipe.NewDatum("b", "abc", 3))

	path := filepath.Join(test.TempDirName(t), "datum.db")
	m := NewMain()
	m.Source = in
	m.Store.Kind = "sqlite"
	m.Store.Path = path
	m.Stderr = ioutil.Discard
	test.ErrNil(t, m.run(context.Background()), "running")

	st, err := sqlite.Open(path, "")
	test.ErrNil(t, err, "reopening")
	defer st.Close()
	n, err := st.Len(context.Background())
	test.ErrNil(t, err, "counting")
	test.MustBe(t, 2, n)
	b, ok, err := st.GetItem(context.Background(), "b")
	test.ErrNil(t, err, "getting b")
	test.MustBe(t, true, ok)
	test.MustBe(t, hashpipe.ComputeDigest("abc", 3), b.Digest, "fallback digest")
}

func TestMainGivesUp(t *testing.T) {
	in := mock.NewBus()
	seed(t, in, hashpipe.NewDatum("a", "abc", 1))
	store := mock.NewStore()
	store.Fail = func(hashpipe.Item) error { return errors.New("throttled") }

	m := NewMain()
	m.MaxRetries = 1
	m.Source = in
	m.Sink = store
	m.Stderr = ioutil.Discard
	done := make(chan error)
	go func() { done <- m.run(context.Background()) }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after retries")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("persister did not give up")
	}
	test.MustBe(t, 2, store.Writes())
	test.MustBe(t, 0, in.Committed())
}
