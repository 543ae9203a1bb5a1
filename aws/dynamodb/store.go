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

// Package dynamodb stores hashed records in an AWS DynamoDB table.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// Attribute names written for each item. "id" is the table's hash key.
const (
	AttrID         = "id"
	AttrPayload    = "payload"
	AttrIterations = "iterations"
	AttrDigest     = "digest"
)

type itemPutter interface {
	PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error)
}

// NewClient returns a DynamoDB client for region. endpoint overrides the
// service endpoint when non-empty, e.g. for DynamoDB Local.
func NewClient(region, endpoint string) (*dynamodb.DynamoDB, error) {
	conf := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting aws session")
	}
	return dynamodb.New(sess), nil
}

// Store implements hashpipe.Store on a DynamoDB table. Writing an id which
// already exists replaces the earlier item.
type Store struct {
	table  string
	client itemPutter
}

// NewStore returns a Store writing to table.
func NewStore(client itemPutter, table string) *Store {
	return &Store{
		table:  table,
		client: client,
	}
}

// PutItem implements hashpipe.Store.
func (s *Store) PutItem(ctx context.Context, item hashpipe.Item) error {
	_, err := s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      attributes(item),
	})
	return errors.Wrapf(err, "putting item %s into %s", item.ID, s.table)
}

func attributes(item hashpipe.Item) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		AttrID:         {S: aws.String(item.ID)},
		AttrPayload:    {S: aws.String(item.Payload)},
		AttrIterations: {N: aws.String(item.IterationsString())},
		AttrDigest:     {S: aws.String(item.Digest)},
	}
}
