package serve

import (
	"context"
	"encoding/json"
	"io/ioutil"
	nethttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/hashpipe/http"
	"github.com/pilosa/hashpipe/mock"
	"github.com/pilosa/hashpipe/test"
)

func TestMainServes(t *testing.T) {
	bus, store := mock.NewBus(), mock.NewStore()
	started := make(chan *http.Server, 1)
	m := NewMain()
	m.Bind = "127.0.0.1:0"
	m.Publish = true
	m.Persist = true
	m.Publisher = bus
	m.Sink = store
	m.Stderr = ioutil.Discard
	m.started = started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.run(ctx) }()
	var srv *http.Server
	select {
	case srv = <-started:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	}
	base := "http://" + srv.Addr()

	resp, err := nethttp.Post(base+"/datum?chars=5&iterations=2", "", nil)
	test.ErrNil(t, err, "generating")
	resp.Body.Close()
	test.MustBe(t, nethttp.StatusCreated, resp.StatusCode)
	test.MustBe(t, 1, len(bus.Messages()))

	resp, err = nethttp.Post(base+"/data", "application/json", strings.NewReader(`[{"id":"x","payload":"abc","iterations":1}]`))
	test.ErrNil(t, err, "importing")
	var res map[string]int
	test.ErrNil(t, json.NewDecoder(resp.Body).Decode(&res), "decoding import response")
	resp.Body.Close()
	test.MustBe(t, 1, res["stored"])
	if _, ok := store.Get("x"); !ok {
		t.Fatal("imported item not stored")
	}

	resp, err = nethttp.Get(base + "/item/x")
	test.ErrNil(t, err, "getting item")
	resp.Body.Close()
	test.MustBe(t, nethttp.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		test.ErrNil(t, err, "serving")
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
