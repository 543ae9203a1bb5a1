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

	"github.com/Shopify/sarama"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// Publisher implements hashpipe.Publisher with a synchronous kafka producer.
// The message key becomes the kafka key, so records with the same key land on
// the same partition.
type Publisher struct {
	topic    string
	producer sarama.SyncProducer
}

// NewPublisher connects a producer to the kafka cluster at hosts which
// publishes to topic. tlsConf may be nil for plaintext connections.
func NewPublisher(hosts []string, topic string, tlsConf *tls.Config) (*Publisher, error) {
	conf := sarama.NewConfig()
	conf.Version = sarama.V0_10_0_0
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	if tlsConf != nil {
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConf
	}
	producer, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "getting new producer")
	}
	return NewPublisherWithProducer(producer, topic), nil
}

// NewPublisherWithProducer returns a Publisher using an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		topic:    topic,
		producer: producer,
	}
}

// Publish sends msgs to kafka in one call.
func (p *Publisher) Publish(ctx context.Context, msgs []hashpipe.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.producer.SendMessages(producerMessages(p.topic, msgs))
	if perrs, ok := err.(sarama.ProducerErrors); ok {
		return errors.Wrapf(perrs, "%d of %d messages failed", len(perrs), len(msgs))
	}
	return errors.Wrap(err, "sending messages")
}

// Close closes the producer.
func (p *Publisher) Close() error {
	return errors.Wrap(p.producer.Close(), "closing producer")
}

func producerMessages(topic string, msgs []hashpipe.Message) []*sarama.ProducerMessage {
	pms := make([]*sarama.ProducerMessage, len(msgs))
	for i, msg := range msgs {
		pms[i] = &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(msg.Data),
		}
		if msg.Key != "" {
			pms[i].Key = sarama.StringEncoder(msg.Key)
		}
	}
	return pms
}
