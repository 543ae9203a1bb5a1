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

package kafka

import (
	"context"
	"crypto/tls"
	"io"
	"io/ioutil"
	"log"
	"time"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// consumer is the part of *cluster.Consumer which Source uses.
type consumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
	CommitOffsets() error
	Close() error
}

// Source implements the hashpipe.BatchSource interface using a kafka consumer
// group. Offsets are only committed when Commit is called, so a batch which
// fails processing is consumed again after a restart. It is not threadsafe.
type Source struct {
	Hosts     []string
	Topics    []string
	Group     string
	BatchSize int
	// Linger is how long Batch waits for a batch to fill up before returning
	// what it has.
	Linger time.Duration
	// TLS, if set, is used to connect to the brokers.
	TLS *tls.Config
	Log hashpipe.Logger

	consumer consumer
	pending  []*sarama.ConsumerMessage
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:     []string{"localhost:9092"},
		Topics:    []string{"datum-a"},
		Group:     "hashpipe",
		BatchSize: 100,
		Linger:    time.Second,
		Log:       hashpipe.NopLogger{},
	}
}

// Open initializes the kafka consumer.
func (s *Source) Open() error {
	// init (custom) config, enable errors and notifications
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true
	if s.TLS != nil {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = s.TLS
	}

	c, err := cluster.NewConsumer(s.Hosts, s.Group, s.Topics, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	s.consumer = c

	// consume errors
	go func() {
		for err := range c.Errors() {
			s.Log.Printf("kafka consumer error: %v", err)
		}
	}()

	// consume notifications
	go func() {
		for ntf := range c.Notifications() {
			s.Log.Printf("rebalanced: %+v", ntf)
		}
	}()
	return nil
}

// Batch returns the next messages from kafka. It returns once BatchSize
// messages have arrived or Linger has passed, whichever is first; the batch
// may be empty. It returns io.EOF when the consumer has been closed.
func (s *Source) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if s.consumer == nil {
		return nil, errors.New("source is not open")
	}
	timer := time.NewTimer(s.Linger)
	defer timer.Stop()

	batch := make([]hashpipe.Message, 0, s.BatchSize)
	for len(batch) < s.BatchSize {
		select {
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				if len(batch) > 0 {
					return batch, nil
				}
				return nil, io.EOF
			}
			s.pending = append(s.pending, msg)
			batch = append(batch, hashpipe.Message{Key: string(msg.Key), Data: msg.Value})
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return batch, nil
}

// Commit marks every message returned by Batch so far as processed and
// commits the offsets to kafka.
func (s *Source) Commit() error {
	for _, msg := range s.pending {
		s.consumer.MarkOffset(msg, "")
	}
	s.pending = s.pending[:0]
	return errors.Wrap(s.consumer.CommitOffsets(), "committing offsets")
}

// Close closes the underlying kafka consumer.
func (s *Source) Close() error {
	if s.consumer == nil {
		return nil
	}
	err := s.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}
