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

// Package s3 archives hashed records to S3 and replays archived records back
// into the pipeline.
package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// MaxLineSize is the longest record the Source will read from an object.
const MaxLineSize = 16 * 1024 * 1024

type client interface {
	ListObjectsPagesWithContext(ctx aws.Context, input *s3.ListObjectsInput, fn func(*s3.ListObjectsOutput, bool) bool, opts ...request.Option) error
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// NewClient returns an S3 client for region. endpoint overrides the service
// endpoint when non-empty, which also switches to path style addressing as
// S3 compatible servers expect.
func NewClient(region, endpoint string) (*s3.S3, error) {
	conf := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
		conf.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting aws session")
	}
	return s3.New(sess), nil
}

// Archive implements hashpipe.Store by writing each item to its own object
// named <prefix><id>.json.
type Archive struct {
	bucket string
	prefix string
	client client
}

// NewArchive gets an Archive writing under prefix in bucket.
func NewArchive(c client, bucket, prefix string) *Archive {
	return &Archive{
		bucket: bucket,
		prefix: prefix,
		client: c,
	}
}

// Key returns the object key which holds the item with the given id.
func (a *Archive) Key(id string) string {
	return a.prefix + id + ".json"
}

// PutItem implements hashpipe.Store.
func (a *Archive) PutItem(ctx context.Context, item hashpipe.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return errors.Wrap(err, "marshaling item")
	}
	body = append(body, '\n')
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(item.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return errors.Wrapf(err, "putting %s", a.Key(item.ID))
}

// SrcOption is a functional option type for s3.Source.
type SrcOption func(s *Source)

// OptSrcPrefix tells the source to read only the objects in the bucket that
// match the specified prefix.
func OptSrcPrefix(prefix string) SrcOption {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// OptSrcBatchSize sets the maximum number of records per batch.
func OptSrcBatchSize(size int) SrcOption {
	return func(s *Source) {
		s.batchSize = size
	}
}

// OptSrcLogger sets the logger for a Source.
func OptSrcLogger(l hashpipe.Logger) SrcOption {
	return func(s *Source) {
		s.log = l
	}
}

// Source implements hashpipe.BatchSource over the objects in a bucket. Each
// line of each object is one record. A batch which has not been committed is
// returned again by the next call to Batch.
type Source struct {
	bucket    string
	prefix    string
	batchSize int
	log       hashpipe.Logger

	client  client
	keys    []string
	listed  bool
	objIdx  int
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []hashpipe.Message
}

// NewSource returns a new Source reading from bucket with the options applied.
func NewSource(c client, bucket string, opts ...SrcOption) *Source {
	s := &Source{
		bucket:    bucket,
		batchSize: 100,
		log:       hashpipe.NopLogger{},
		client:    c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) list(ctx context.Context) error {
	err := s.client.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsOutput, last bool) bool {
		for _, obj := range page.Contents {
			s.keys = append(s.keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return errors.Wrapf(err, "listing objects in %s", s.bucket)
	}
	s.listed = true
	s.log.Printf("replaying %d objects from %s/%s", len(s.keys), s.bucket, s.prefix)
	return nil
}

// next opens the next object. It returns io.EOF when there are none left.
func (s *Source) next(ctx context.Context) error {
	if s.body != nil {
		s.body.Close()
		s.body, s.scanner = nil, nil
	}
	if s.objIdx >= len(s.keys) {
		return io.EOF
	}
	key := s.keys[s.objIdx]
	s.objIdx++
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "fetching %s", key)
	}
	s.body = out.Body
	s.scanner = bufio.NewScanner(out.Body)
	s.scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	s.log.Debugf("reading %s", key)
	return nil
}

// Batch implements hashpipe.BatchSource.
func (s *Source) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending != nil {
		return s.pending, nil
	}
	if !s.listed {
		if err := s.list(ctx); err != nil {
			return nil, err
		}
	}
	var msgs []hashpipe.Message
	for len(msgs) < s.batchSize {
		if s.scanner == nil {
			if err := s.next(ctx); err == io.EOF {
				break
			} else if err != nil {
				return nil, err
			}
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, errors.Wrapf(err, "reading %s", s.keys[s.objIdx-1])
			}
			s.body.Close()
			s.body, s.scanner = nil, nil
			continue
		}
		line := s.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msgs = append(msgs, hashpipe.Message{Data: append([]byte(nil), line...)})
	}
	if len(msgs) == 0 {
		return nil, io.EOF
	}
	s.pending = msgs
	return msgs, nil
}

// Commit implements hashpipe.BatchSource.
func (s *Source) Commit() error {
	s.pending = nil
	return nil
}

// Close releases the object currently being read.
func (s *Source) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body, s.scanner = nil, nil
	return err
}
