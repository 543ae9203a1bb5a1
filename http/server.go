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

// Package http serves the pipeline over HTTP: generating records onto the
// bus, importing records into the store, and computing digests on request.
package http

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pilosa/hashpipe"
	"github.com/pilosa/hashpipe/fake"
	"github.com/pkg/errors"
)

// Defaults for the generate endpoint.
const (
	DefaultChars      = 64
	DefaultIterations = 1
)

// ServerOption is a functional option type for Server.
type ServerOption func(s *Server)

// WithAddr is an option for the Server which causes it to bind to the given
// address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithListener is an option for Server which causes it to use the given
// listener. It will infer the address from the listener.
func WithListener(l net.Listener) ServerOption {
	return func(s *Server) {
		s.listener = l
		s.addr = l.Addr().String()
	}
}

// WithPublisher enables POST /datum, which publishes generated records to p.
func WithPublisher(p hashpipe.Publisher) ServerOption {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithGenerator sets the generator used by POST /datum.
func WithGenerator(g *fake.DatumGenerator) ServerOption {
	return func(s *Server) {
		s.gen = g
	}
}

// WithPersister enables POST /data, which writes records through p.
func WithPersister(p *hashpipe.Persister) ServerOption {
	return func(s *Server) {
		s.persister = p
	}
}

// WithItems enables GET /item/{id}, which reads stored items back from g.
func WithItems(g ItemGetter) ServerOption {
	return func(s *Server) {
		s.items = g
	}
}

// WithMaxIterations bounds the iteration count a request may ask for. Zero
// means unbounded.
func WithMaxIterations(n uint64) ServerOption {
	return func(s *Server) {
		s.maxIterations = n
	}
}

// WithMaxChars bounds the payload length POST /datum may generate.
func WithMaxChars(n int) ServerOption {
	return func(s *Server) {
		s.maxChars = n
	}
}

// WithAccessLog writes a combined format access log line per request to w.
func WithAccessLog(w io.Writer) ServerOption {
	return func(s *Server) {
		s.accessLog = w
	}
}

// WithLogger sets the logger for the Server.
func WithLogger(l hashpipe.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// ItemGetter reads back stored items.
type ItemGetter interface {
	GetItem(ctx context.Context, id string) (item hashpipe.Item, ok bool, err error)
}

// Server is the pipeline's HTTP front end.
type Server struct {
	addr          string
	listener      net.Listener
	server        *http.Server
	router        *mux.Router
	publisher     hashpipe.Publisher
	persister     *hashpipe.Persister
	items         ItemGetter
	gen           *fake.DatumGenerator
	maxIterations uint64
	maxChars      int
	accessLog     io.Writer
	log           hashpipe.Logger
}

// NewServer creates a Server and starts listening. Requests are not served
// until Serve is called.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		gen:           fake.NewDatumGenerator(time.Now().UnixNano()),
		maxIterations: 1000000,
		maxChars:      1 << 20,
		accessLog:     ioutil.Discard,
		log:           hashpipe.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.listener == nil {
		var err error
		s.listener, err = net.Listen("tcp", s.addr)
		if err != nil {
			return nil, errors.Wrap(err, "listening")
		}
	}
	if tl, ok := s.listener.(*net.TCPListener); ok {
		s.listener = tcpKeepAliveListener{tl}
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/datum", s.handlePostDatum).Methods("POST")
	s.router.HandleFunc("/data", s.handlePostData).Methods("POST")
	s.router.HandleFunc("/digest", s.handleGetDigest).Methods("GET")
	s.router.HandleFunc("/item/{id}", s.handleGetItem).Methods("GET")

	s.server = &http.Server{
		Addr:           s.addr,
		Handler:        s.Handler(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s, nil
}

// Handler returns the Server's routes wrapped in access logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(s.accessLog, handlers.RecoveryHandler()(s.router))
}

// Addr gets the address that the Server is listening on.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve serves requests until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.server.Serve(s.listener)
	}()
	s.log.Printf("listening on %s", s.Addr())
	select {
	case err := <-errs:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func (s *Server) handlePostDatum(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no publisher configured"))
		return
	}
	q := r.URL.Query()
	chars, err := queryInt(q.Get("chars"), DefaultChars)
	if err != nil || chars < 0 || chars > s.maxChars {
		writeError(w, http.StatusBadRequest, errors.Errorf("chars must be an integer in [0, %d]", s.maxChars))
		return
	}
	iterations, err := s.queryIterations(q.Get("iterations"), DefaultIterations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d := s.gen.Datum(chars, iterations)
	data, err := d.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.publisher.Publish(r.Context(), []hashpipe.Message{{Key: d.ID(), Data: data}}); err != nil {
		s.log.Printf("publishing %s: %v", d.ID(), err)
		writeError(w, http.StatusBadGateway, errors.Wrap(err, "publishing"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(data)
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no store configured"))
		return
	}
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding json array"))
		return
	}
	ds := make([]*hashpipe.Datum, 0, len(raw))
	for i, msg := range raw {
		d, err := hashpipe.Decode(msg)
		if err != nil {
			s.log.Printf("skipping item %d: %v", i, err)
			continue
		}
		if _, ok := d.Digest(); !ok && s.maxIterations > 0 && d.Iterations() > s.maxIterations {
			s.log.Printf("skipping item %d (%s): iterations %d exceeds %d", i, d.ID(), d.Iterations(), s.maxIterations)
			continue
		}
		ds = append(ds, d)
	}
	n, err := s.persister.Persist(r.Context(), ds)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error(), "stored": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": n})
}

func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	iterations, err := s.queryIterations(q.Get("iterations"), DefaultIterations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"digest": hashpipe.ComputeDigest(q.Get("payload"), iterations),
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	if s.items == nil {
		writeError(w, http.StatusNotImplemented, errors.New("store is not readable"))
		return
	}
	id := mux.Vars(r)["id"]
	item, ok, err := s.items.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, errors.Errorf("no item %s", id))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) queryIterations(v string, def uint64) (uint64, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.Errorf("iterations must be a non-negative integer, got %q", v)
	}
	if s.maxIterations > 0 && n > s.maxIterations {
		return 0, errors.Errorf("iterations %d exceeds %d", n, s.maxIterations)
	}
	return n, nil
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// tcpKeepAliveListener is copied from net/http

type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
