package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/fake"
	"github.com/pilosa/hashpipe/mock"
	"github.com/pkg/errors"
)

const abcDigest = "B751850B1A57168A5693CD924B6B096E08F621827444F70D884F5D0240D2712E10E116E9192AF3C91A7EC57647E3934057340B4CF408D5A56592F8274EEC53F0"

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	s, err := NewServer(append([]ServerOption{WithAddr("127.0.0.1:0")}, opts...)...)
	if err != nil {
		t.Fatalf("getting server: %v", err)
	}
	t.Cleanup(func() { s.listener.Close() })
	return s
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	res := make(map[string]interface{})
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, res
}

func TestGetDigest(t *testing.T) {
	s := newTestServer(t, WithMaxIterations(10))
	tests := []struct {
		target string
		code   int
		digest string
	}{
		{target: "/digest?payload=abc&iterations=1", code: 200, digest: abcDigest},
		{target: "/digest?payload=abc", code: 200, digest: abcDigest},
		{target: "/digest?payload=abc&iterations=3", code: 200, digest: hashpipe.ComputeDigest("abcabcabc", 1)},
		{target: "/digest?payload=abc&iterations=-1", code: 400},
		{target: "/digest?payload=abc&iterations=x", code: 400},
		{target: "/digest?payload=abc&iterations=11", code: 400},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			code, res := do(t, s, "GET", test.target, "")
			if code != test.code {
				t.Fatalf("unexpected status %d: %v", code, res)
			}
			if test.digest != "" && res["digest"] != test.digest {
				t.Fatalf("unexpected digest %v", res["digest"])
			}
		})
	}
}

func TestPostDatum(t *testing.T) {
	bus := mock.NewBus()
	s := newTestServer(t, WithPublisher(bus), WithGenerator(fake.NewDatumGenerator(1)))

	code, res := do(t, s, "POST", "/datum?chars=10&iterations=4", "")
	if code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %v", code, res)
	}
	if len(res["payload"].(string)) != 10 || res["iterations"] != 4.0 || res["digest"] != nil {
		t.Fatalf("unexpected record %v", res)
	}
	msgs := bus.Messages()
	if len(msgs) != 1 || msgs[0].Key != res["id"] {
		t.Fatalf("unexpected published messages %v", msgs)
	}
	d, err := hashpipe.Decode(msgs[0].Data)
	if err != nil {
		t.Fatalf("decoding published record: %v", err)
	}
	if d.ID() != res["id"] {
		t.Fatalf("published %s, responded %v", d.ID(), res["id"])
	}

	if code, _ := do(t, s, "POST", "/datum?chars=-1", ""); code != http.StatusBadRequest {
		t.Fatalf("negative chars gave %d", code)
	}
	if code, _ := do(t, s, "GET", "/datum", ""); code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /datum gave %d", code)
	}
}

func TestPostDatumPublishFailure(t *testing.T) {
	bus := mock.NewBus()
	bus.PublishErr = errors.New("broker down")
	s := newTestServer(t, WithPublisher(bus))
	code, res := do(t, s, "POST", "/datum", "")
	if code != http.StatusBadGateway || !strings.Contains(res["error"].(string), "broker down") {
		t.Fatalf("unexpected response %d: %v", code, res)
	}
}

func TestPostDatumUnconfigured(t *testing.T) {
	s := newTestServer(t)
	if code, _ := do(t, s, "POST", "/datum", ""); code != http.StatusNotImplemented {
		t.Fatalf("unexpected status %d", code)
	}
}

func TestPostData(t *testing.T) {
	store := mock.NewStore()
	s := newTestServer(t, WithPersister(hashpipe.NewPersister(store)), WithItems(store))

	body := `[
		{"id":"a","payload":"abc","iterations":1,"digest":null},
		{"id":"b","payload":"abc","iterations":1,"digest":"GIVEN"},
		{"id":"c","payload":"abc"},
		"nonsense"
	]`
	code, res := do(t, s, "POST", "/data", body)
	if code != http.StatusOK || res["stored"] != 2.0 {
		t.Fatalf("unexpected response %d: %v", code, res)
	}
	a, _ := store.Get("a")
	if a.Digest != abcDigest {
		t.Fatalf("unexpected digest for a: %s", a.Digest)
	}
	b, _ := store.Get("b")
	if b.Digest != "GIVEN" {
		t.Fatalf("existing digest replaced: %s", b.Digest)
	}

	code, res = do(t, s, "GET", "/item/a", "")
	if code != http.StatusOK || res["digest"] != abcDigest || res["iterations"] != 1.0 {
		t.Fatalf("unexpected item %d: %v", code, res)
	}
	if code, _ := do(t, s, "GET", "/item/zzz", ""); code != http.StatusNotFound {
		t.Fatalf("missing item gave %d", code)
	}
}

func TestPostDataErrors(t *testing.T) {
	store := mock.NewStore()
	store.Fail = func(item hashpipe.Item) error {
		if item.ID == "bad" {
			return errors.New("throttled")
		}
		return nil
	}
	s := newTestServer(t, WithPersister(hashpipe.NewPersister(store)), WithMaxIterations(5))

	if code, _ := do(t, s, "POST", "/data", `{"id":"a"}`); code != http.StatusBadRequest {
		t.Fatalf("non-array body gave %d", code)
	}
	code, res := do(t, s, "POST", "/data", `[{"id":"big","payload":"x","iterations":6},{"id":"small","payload":"x","iterations":2},{"id":"given","payload":"x","iterations":6,"digest":"D"}]`)
	if code != http.StatusOK || res["stored"] != 2.0 {
		t.Fatalf("unexpected response to oversized item %d: %v", code, res)
	}
	if _, ok := store.Get("big"); ok {
		t.Fatal("item over the iteration limit was stored")
	}
	if _, ok := store.Get("small"); !ok {
		t.Fatal("item under the iteration limit was not stored")
	}
	code, res = do(t, s, "POST", "/data", `[{"id":"ok","payload":"x","iterations":1},{"id":"bad","payload":"x","iterations":1}]`)
	if code != http.StatusInternalServerError || res["stored"] != 1.0 || !strings.Contains(res["error"].(string), "throttled") {
		t.Fatalf("unexpected response %d: %v", code, res)
	}
}

func TestServe(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/digest?payload=abc")
	if err != nil {
		t.Fatalf("getting digest: %v", err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), abcDigest) {
		t.Fatalf("unexpected body %s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serving: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
