package mock

import (
	"context"
	"testing"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/test"
	"github.com/pkg/errors"
)

func TestStoreContract(t *testing.T) {
	s := NewStore()
	test.StoreContract(t, s, s)
}

func TestStoreFail(t *testing.T) {
	s := NewStore()
	s.Fail = func(item hashpipe.Item) error {
		if item.ID == "bad" {
			return errors.New("rejected")
		}
		return nil
	}
	ctx := context.Background()
	test.ErrNil(t, s.PutItem(ctx, hashpipe.Item{ID: "good"}), "putting good item")
	if err := s.PutItem(ctx, hashpipe.Item{ID: "bad"}); err == nil {
		t.Fatal("expected failure for bad item")
	}
	test.MustBe(t, 1, s.Len())
	test.MustBe(t, 2, s.Writes())
}
