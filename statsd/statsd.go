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

// Package statsd provides a hashpipe.Statter which sends stats to a
// DogStatsD agent.
package statsd

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

var _ hashpipe.Statter = &Statter{}

type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Set(name string, value string, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Close() error
}

// Statter is a hashpipe.Statter backed by a DogStatsD client. Sending is
// best effort; errors from the client are dropped.
type Statter struct {
	client client
	tags   []string
}

// NewStatter returns a Statter sending to the agent at addr. Every stat is
// prefixed with namespace (which should end in ".") and carries tags.
func NewStatter(addr, namespace string, tags ...string) (*Statter, error) {
	c, err := statsd.New(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to statsd at %s", addr)
	}
	c.Namespace = namespace
	return &Statter{client: c, tags: tags}, nil
}

// WithTags returns a Statter sharing s's connection which adds tags to
// every stat.
func (s *Statter) WithTags(tags ...string) *Statter {
	return &Statter{
		client: s.client,
		tags:   append(append([]string{}, s.tags...), tags...),
	}
}

func (s *Statter) with(tags []string) []string {
	if len(s.tags) == 0 {
		return tags
	}
	return append(append([]string{}, s.tags...), tags...)
}

// Count implements hashpipe.Statter.
func (s *Statter) Count(name string, value int64, rate float64, tags ...string) {
	_ = s.client.Count(name, value, s.with(tags), rate)
}

// Gauge implements hashpipe.Statter.
func (s *Statter) Gauge(name string, value float64, rate float64, tags ...string) {
	_ = s.client.Gauge(name, value, s.with(tags), rate)
}

// Histogram implements hashpipe.Statter.
func (s *Statter) Histogram(name string, value float64, rate float64, tags ...string) {
	_ = s.client.Histogram(name, value, s.with(tags), rate)
}

// Set implements hashpipe.Statter.
func (s *Statter) Set(name string, value string, rate float64, tags ...string) {
	_ = s.client.Set(name, value, s.with(tags), rate)
}

// Timing implements hashpipe.Statter.
func (s *Statter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	_ = s.client.Timing(name, value, s.with(tags), rate)
}

// Close flushes and closes the connection to the agent.
func (s *Statter) Close() error {
	return s.client.Close()
}
