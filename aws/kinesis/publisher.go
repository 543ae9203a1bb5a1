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

// Package kinesis carries records over AWS Kinesis data streams.
package kinesis

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// MaxRecordsPerPut is the largest number of records Kinesis accepts in a
// single PutRecords request.
const MaxRecordsPerPut = 500

// putRecordser is the part of the Kinesis API which Publisher uses.
type putRecordser interface {
	PutRecordsWithContext(ctx aws.Context, input *kinesis.PutRecordsInput, opts ...request.Option) (*kinesis.PutRecordsOutput, error)
}

// NewClient returns a Kinesis client for region. endpoint overrides the
// service endpoint when non-empty, which is useful for local emulators.
func NewClient(region, endpoint string) (*kinesis.Kinesis, error) {
	conf := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting aws session")
	}
	return kinesis.New(sess), nil
}

// Publisher implements hashpipe.Publisher by putting records onto a Kinesis
// stream. Message keys become partition keys.
type Publisher struct {
	stream string
	client putRecordser
}

// NewPublisher returns a Publisher which writes to stream.
func NewPublisher(client putRecordser, stream string) *Publisher {
	return &Publisher{
		stream: stream,
		client: client,
	}
}

// Publish puts msgs onto the stream. Batches larger than MaxRecordsPerPut are
// split into several requests. Records Kinesis reports as failed make the
// whole publish fail; the caller republishes the batch.
func (p *Publisher) Publish(ctx context.Context, msgs []hashpipe.Message) error {
	for start := 0; start < len(msgs); start += MaxRecordsPerPut {
		end := start + MaxRecordsPerPut
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := p.put(ctx, msgs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) put(ctx context.Context, msgs []hashpipe.Message) error {
	entries := make([]*kinesis.PutRecordsRequestEntry, len(msgs))
	for i, msg := range msgs {
		entries[i] = &kinesis.PutRecordsRequestEntry{
			Data:         msg.Data,
			PartitionKey: aws.String(msg.Key),
		}
	}
	out, err := p.client.PutRecordsWithContext(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(p.stream),
		Records:    entries,
	})
	if err != nil {
		return errors.Wrapf(err, "putting records to %s", p.stream)
	}
	if failed := aws.Int64Value(out.FailedRecordCount); failed > 0 {
		return errors.Errorf("%d of %d records failed to put to %s: %s", failed, len(entries), p.stream, firstFailure(out))
	}
	return nil
}

func firstFailure(out *kinesis.PutRecordsOutput) string {
	for _, rec := range out.Records {
		if rec.ErrorCode != nil {
			return aws.StringValue(rec.ErrorCode) + ": " + aws.StringValue(rec.ErrorMessage)
		}
	}
	return "unknown error"
}
