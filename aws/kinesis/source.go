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

package kinesis

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// streamReader is the part of the Kinesis API which Source uses.
type streamReader interface {
	DescribeStreamWithContext(ctx aws.Context, input *kinesis.DescribeStreamInput, opts ...request.Option) (*kinesis.DescribeStreamOutput, error)
	GetShardIteratorWithContext(ctx aws.Context, input *kinesis.GetShardIteratorInput, opts ...request.Option) (*kinesis.GetShardIteratorOutput, error)
	GetRecordsWithContext(ctx aws.Context, input *kinesis.GetRecordsInput, opts ...request.Option) (*kinesis.GetRecordsOutput, error)
}

// Source implements hashpipe.BatchSource by polling every shard of a
// Kinesis stream. Shard positions only advance on Commit, so an
// uncommitted batch is read again by the next call to Batch.
type Source struct {
	Stream       string
	BatchSize    int
	PollInterval time.Duration
	// IteratorType is where reading starts in each shard, e.g. TRIM_HORIZON
	// or LATEST.
	IteratorType string
	Log          hashpipe.Logger

	client    streamReader
	iterators map[string]*string
	pending   map[string]*string
	shards    []string
}

// NewSource gets a new Source reading from stream.
func NewSource(client streamReader, stream string) *Source {
	return &Source{
		Stream:       stream,
		BatchSize:    100,
		PollInterval: time.Second,
		IteratorType: kinesis.ShardIteratorTypeTrimHorizon,
		Log:          hashpipe.NopLogger{},
		client:       client,
	}
}

// Open looks up the shards of the stream and gets an iterator for each.
func (s *Source) Open(ctx context.Context) error {
	s.iterators = make(map[string]*string)
	var start *string
	for {
		out, err := s.client.DescribeStreamWithContext(ctx, &kinesis.DescribeStreamInput{
			StreamName:            aws.String(s.Stream),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return errors.Wrapf(err, "describing stream %s", s.Stream)
		}
		for _, shard := range out.StreamDescription.Shards {
			id := aws.StringValue(shard.ShardId)
			it, err := s.client.GetShardIteratorWithContext(ctx, &kinesis.GetShardIteratorInput{
				StreamName:        aws.String(s.Stream),
				ShardId:           shard.ShardId,
				ShardIteratorType: aws.String(s.IteratorType),
			})
			if err != nil {
				return errors.Wrapf(err, "getting iterator for shard %s", id)
			}
			s.iterators[id] = it.ShardIterator
			s.shards = append(s.shards, id)
			start = shard.ShardId
		}
		if !aws.BoolValue(out.StreamDescription.HasMoreShards) {
			break
		}
	}
	if len(s.shards) == 0 {
		return errors.Errorf("stream %s has no shards", s.Stream)
	}
	s.Log.Printf("reading %d shards of %s", len(s.shards), s.Stream)
	return nil
}

// Batch reads up to BatchSize records across the open shards. When every
// shard is empty it waits PollInterval and returns an empty batch. Once all
// shards have been closed Batch returns io.EOF.
func (s *Source) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.iterators == nil {
		return nil, errors.New("source not opened")
	}
	s.pending = make(map[string]*string, len(s.iterators))
	var msgs []hashpipe.Message
	open := 0
	for _, id := range s.shards {
		it, ok := s.iterators[id]
		if !ok || it == nil {
			continue
		}
		open++
		if len(msgs) >= s.BatchSize {
			continue
		}
		out, err := s.client.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
			ShardIterator: it,
			Limit:         aws.Int64(int64(s.BatchSize - len(msgs))),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "getting records from shard %s", id)
		}
		for _, rec := range out.Records {
			msgs = append(msgs, hashpipe.Message{
				Key:  aws.StringValue(rec.PartitionKey),
				Data: rec.Data,
			})
		}
		s.pending[id] = out.NextShardIterator
	}
	if open == 0 {
		return nil, io.EOF
	}
	if len(msgs) == 0 {
		// Empty reads still move the iterators along.
		if err := s.Commit(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
	return msgs, nil
}

// Commit advances each shard past the records returned by the last Batch.
func (s *Source) Commit() error {
	for id, next := range s.pending {
		s.iterators[id] = next
	}
	s.pending = nil
	return nil
}
