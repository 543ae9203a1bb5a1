// Package test holds assertion helpers shared by the tests of hashpipe's
// packages.
package test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"sync"
	"testing"

	"github.com/pilosa/hashpipe"
)

// MustBe uses reflect.DeepEqual to assert that thing1 and thing2 are equal, and
// fails otherwise.
func MustBe(t testing.TB, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t testing.TB, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// TempFileName creates an empty temp file and returns its name. The file is
// removed when the test ends.
func TempFileName(t testing.TB) string {
	t.Helper()
	tf, err := ioutil.TempFile("", "hashpipe")
	if err != nil {
		t.Fatalf("couldn't get temp file: %v", err)
	}
	err = tf.Close()
	if err != nil {
		t.Fatalf("couldn't close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tf.Name()) })
	return tf.Name()
}

// TempDirName creates a temp directory which is removed when the test ends.
func TempDirName(t testing.TB) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "hashpipe")
	if err != nil {
		t.Fatalf("couldn't get temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// ItemGetter is implemented by stores which can read items back.
type ItemGetter interface {
	GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error)
}

// HashedItem returns the stored form of a freshly hashed datum.
func HashedItem(id, payload string, iterations uint64) hashpipe.Item {
	d := hashpipe.NewDatum(id, payload, iterations)
	d.Hash()
	return hashpipe.NewItem(d)
}

// StoreContract checks the behavior every hashpipe.Store must have: items
// read back exactly as written, a second write to an id replaces the first,
// unknown ids are reported missing, and concurrent writes are all kept.
func StoreContract(t *testing.T, s hashpipe.Store, g ItemGetter) {
	t.Helper()
	ctx := context.Background()

	first := HashedItem("id-1", "abc", 3)
	ErrNil(t, s.PutItem(ctx, first), "putting first item")
	got, ok, err := g.GetItem(ctx, "id-1")
	ErrNil(t, err, "getting first item")
	MustBe(t, true, ok, "first item found")
	MustBe(t, first, got, "first item")

	second := hashpipe.Item{ID: "id-1", Payload: "def", Iterations: 1 << 40, Digest: "FEED"}
	ErrNil(t, s.PutItem(ctx, second), "replacing item")
	got, _, err = g.GetItem(ctx, "id-1")
	ErrNil(t, err, "getting replaced item")
	MustBe(t, second, got, "replaced item")

	_, ok, err = g.GetItem(ctx, "nope")
	ErrNil(t, err, "getting missing item")
	MustBe(t, false, ok, "missing item found")

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.PutItem(ctx, HashedItem(fmt.Sprintf("c%d", i), "x", uint64(i)))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		ErrNil(t, err, fmt.Sprintf("concurrent put %d", i))
		got, ok, err := g.GetItem(ctx, fmt.Sprintf("c%d", i))
		ErrNil(t, err, "getting concurrent item")
		if !ok || got.Iterations != uint64(i) || got.Digest != hashpipe.ComputeDigest("x", uint64(i)) {
			t.Fatalf("unexpected item c%d: %#v", i, got)
		}
	}
}
