package dynamodb

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/test"
	"github.com/pkg/errors"
)

type fakeTable struct {
	mu    sync.Mutex
	items map[string]map[string]*dynamodb.AttributeValue
	table string
	err   error
}

func (f *fakeTable) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = aws.StringValue(input.TableName)
	f.items[aws.StringValue(input.Item[AttrID].S)] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestStorePutItem(t *testing.T) {
	ft := &fakeTable{items: make(map[string]map[string]*dynamodb.AttributeValue)}
	s := NewStore(ft, "datum")
	d := hashpipe.NewDatum("id-1", "abc", 3)
	d.Hash()

	test.ErrNil(t, s.PutItem(context.Background(), hashpipe.NewItem(d)), "putting")

	test.MustBe(t, "datum", ft.table)
	got := ft.items["id-1"]
	test.MustBe(t, "abc", aws.StringValue(got[AttrPayload].S))
	test.MustBe(t, "3", aws.StringValue(got[AttrIterations].N))
	test.MustBe(t, (*string)(nil), got[AttrIterations].S, "iterations is numeric")
	test.MustBe(t, d.Hash(), aws.StringValue(got[AttrDigest].S))
}

func TestStoreReplaces(t *testing.T) {
	ft := &fakeTable{items: make(map[string]map[string]*dynamodb.AttributeValue)}
	s := NewStore(ft, "datum")
	ctx := context.Background()
	test.ErrNil(t, s.PutItem(ctx, hashpipe.Item{ID: "a", Payload: "one", Iterations: 1, Digest: "X"}), "first put")
	test.ErrNil(t, s.PutItem(ctx, hashpipe.Item{ID: "a", Payload: "two", Iterations: 1, Digest: "Y"}), "second put")
	test.MustBe(t, 1, len(ft.items))
	test.MustBe(t, "two", aws.StringValue(ft.items["a"][AttrPayload].S))
}

func TestStoreError(t *testing.T) {
	ft := &fakeTable{err: errors.New("ProvisionedThroughputExceededException")}
	s := NewStore(ft, "datum")
	err := s.PutItem(context.Background(), hashpipe.Item{ID: "a"})
	test.MustBe(t, ft.err, errors.Cause(err))
}
