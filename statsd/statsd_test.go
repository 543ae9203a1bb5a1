package statsd

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/hashpipe/test"
)

type call struct {
	kind  string
	name  string
	value string
	tags  []string
	rate  float64
}

type recordingClient struct {
	calls  []call
	closed bool
}

func (r *recordingClient) record(kind, name string, value interface{}, tags []string, rate float64) error {
	r.calls = append(r.calls, call{kind: kind, name: name, value: fmt.Sprint(value), tags: tags, rate: rate})
	return nil
}

func (r *recordingClient) Count(name string, value int64, tags []string, rate float64) error {
	return r.record("c", name, value, tags, rate)
}
func (r *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	return r.record("g", name, value, tags, rate)
}
func (r *recordingClient) Histogram(name string, value float64, tags []string, rate float64) error {
	return r.record("h", name, value, tags, rate)
}
func (r *recordingClient) Set(name string, value string, tags []string, rate float64) error {
	return r.record("s", name, value, tags, rate)
}
func (r *recordingClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	return r.record("ms", name, value, tags, rate)
}
func (r *recordingClient) Close() error { r.closed = true; return nil }

func TestStatterForwards(t *testing.T) {
	rc := &recordingClient{}
	s := (&Statter{client: rc}).WithTags("stage:hash")
	s.Count("hasher.published", 3, 1, "topic:datum-b")
	s.Gauge("g", 1.5, 0.5)
	s.Histogram("h", 2, 1)
	s.Set("s", "v", 1)
	s.Timing("hasher.batch", time.Second, 1)
	test.ErrNil(t, s.Close(), "closing")

	test.MustBe(t, 5, len(rc.calls))
	test.MustBe(t, call{kind: "c", name: "hasher.published", value: "3", tags: []string{"stage:hash", "topic:datum-b"}, rate: 1}, rc.calls[0])
	test.MustBe(t, call{kind: "g", name: "g", value: "1.5", tags: []string{"stage:hash"}, rate: 0.5}, rc.calls[1])
	test.MustBe(t, "1s", rc.calls[4].value)
	test.MustBe(t, true, rc.closed)
}

func TestStatterUntagged(t *testing.T) {
	rc := &recordingClient{}
	s := &Statter{client: rc}
	s.Count("n", 1, 1)
	test.MustBe(t, []string(nil), rc.calls[0].tags)
}

func TestNewStatterSends(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	test.ErrNil(t, err, "listening")
	defer conn.Close()

	s, err := NewStatter(conn.LocalAddr().String(), "hashpipe.")
	test.ErrNil(t, err, "getting statter")
	s.Count("runner.batches", 1, 1)
	test.ErrNil(t, s.Close(), "closing")

	buf := make([]byte, 1024)
	test.ErrNil(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), "setting deadline")
	n, _, err := conn.ReadFrom(buf)
	test.ErrNil(t, err, "reading packet")
	if got := string(buf[:n]); !strings.HasPrefix(got, "hashpipe.runner.batches:1|c") {
		t.Fatalf("unexpected packet %q", got)
	}
}
