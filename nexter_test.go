package hashpipe_test

import (
	"sync"
	"testing"

	"github.com/pilosa/hashpipe"
)

func TestNexter(t *testing.T) {
	n := hashpipe.NewNexter(hashpipe.NexterStartFrom(19))
	if num := n.Next(); num != 19 {
		t.Fatalf("expected 19 for Next, but %d", num)
	}
	if num := n.Last(); num != 19 {
		t.Fatalf("expected 19 for Last, but %d", num)
	}
}

func TestNexterConcurrent(t *testing.T) {
	n := hashpipe.NewNexter()
	seen := make([]uint64, 100)
	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = n.Next()
		}(i)
	}
	wg.Wait()
	uniq := make(map[uint64]struct{})
	for _, s := range seen {
		uniq[s] = struct{}{}
	}
	if len(uniq) != 100 {
		t.Fatalf("expected 100 distinct values, got %d", len(uniq))
	}
	if n.Last() != 99 {
		t.Fatalf("expected Last to be 99, got %d", n.Last())
	}
}
