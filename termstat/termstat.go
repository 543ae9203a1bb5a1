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

// Package termstat provides a stats implementation which periodically writes
// the pipeline's statistics to the terminal. It is meant for watching a
// stage run by hand in lieu of an external collector like datadog.
package termstat

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"
)

type stat struct {
	name  string
	count int64
	sum   float64
	set   map[string]struct{}
	kind  byte
}

func (s *stat) String() string {
	switch s.kind {
	case 'g':
		return fmt.Sprintf("%s: %g", s.name, s.sum)
	case 'h':
		return fmt.Sprintf("%s: %.3g avg", s.name, s.sum/float64(s.count))
	case 't':
		return fmt.Sprintf("%s: %v avg", s.name, time.Duration(s.sum/float64(s.count)).Round(time.Microsecond))
	case 's':
		return fmt.Sprintf("%s: %d uniq", s.name, len(s.set))
	default:
		return fmt.Sprintf("%s: %d", s.name, s.count)
	}
}

// Collector collects stats and prints them to the terminal
type Collector struct {
	lock    sync.Mutex
	indexes map[string]int
	stats   []*stat
	changed bool
	out     io.Writer
}

// NewCollector initializes and returns a new Collector which writes to out
// every interval until ctx is done.
func NewCollector(ctx context.Context, out io.Writer, interval time.Duration) *Collector {
	ts := &Collector{
		indexes: make(map[string]int),
		out:     out,
	}
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				ts.write()
			case <-ctx.Done():
				ts.write()
				fmt.Fprintln(ts.out)
				return
			}
		}
	}()
	return ts
}

// get returns the named stat, creating it if needed. t.lock must be held.
func (t *Collector) get(name string, kind byte) *stat {
	idx, ok := t.indexes[name]
	if !ok {
		idx = len(t.stats)
		t.stats = append(t.stats, &stat{name: name, kind: kind})
		t.indexes[name] = idx
	}
	t.changed = true
	return t.stats[idx]
}

func sampled(rate float64) bool {
	return rate >= 1 || (rate > 0 && rand.Float64() < rate)
}

// Count adds value to the named stat at the specified rate.
func (t *Collector) Count(name string, value int64, rate float64, tags ...string) {
	if !sampled(rate) {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.get(name, 'c').count += value
}

// Gauge records the latest value of the named stat.
func (t *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	if !sampled(rate) {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.get(name, 'g').sum = value
}

// Histogram tracks the mean of the values recorded for the named stat.
func (t *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	if !sampled(rate) {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	s := t.get(name, 'h')
	s.count++
	s.sum += value
}

// Set counts the distinct values recorded for the named stat.
func (t *Collector) Set(name string, value string, rate float64, tags ...string) {
	if !sampled(rate) {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	s := t.get(name, 's')
	if s.set == nil {
		s.set = make(map[string]struct{})
	}
	s.set[value] = struct{}{}
}

// Timing tracks the mean duration recorded for the named stat.
func (t *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	if !sampled(rate) {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	s := t.get(name, 't')
	s.count++
	s.sum += float64(value)
}

func (t *Collector) write() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.changed {
		return
	}
	parts := make([]string, len(t.stats))
	for i, s := range t.stats {
		parts[i] = s.String()
	}
	t.changed = false
	fmt.Fprint(t.out, "\r"+strings.Join(parts, " "))
}
