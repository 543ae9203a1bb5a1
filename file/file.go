// Package file implements a record bus over newline delimited JSON files. A
// topic is a path: publishing appends to the file, and a source reads the
// file, or every file in the directory, from the beginning.
package file

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
)

// MaxLineSize is the longest record a Source will read.
const MaxLineSize = 16 * 1024 * 1024

// Publisher implements hashpipe.Publisher by appending one line per message
// to a file.
type Publisher struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewPublisher opens pathname for appending, creating it if needed.
func NewPublisher(pathname string) (*Publisher, error) {
	f, err := os.OpenFile(pathname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", pathname)
	}
	return &Publisher{f: f, w: bufio.NewWriter(f)}, nil
}

// Publish implements hashpipe.Publisher. The messages are flushed to the file
// before Publish returns. Keys are not recorded.
func (p *Publisher) Publish(ctx context.Context, msgs []hashpipe.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range msgs {
		if bytes.IndexByte(msg.Data, '\n') >= 0 {
			return errors.Errorf("message for key %q contains a newline", msg.Key)
		}
		if _, err := p.w.Write(msg.Data); err != nil {
			return errors.Wrap(err, "writing message")
		}
		if err := p.w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "writing message")
		}
	}
	return errors.Wrap(p.w.Flush(), "flushing")
}

// Close flushes and closes the file.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.w.Flush(); err != nil {
		p.f.Close()
		return errors.Wrap(err, "flushing")
	}
	return p.f.Close()
}

// SrcOption is a functional option type for file.Source.
type SrcOption func(s *Source)

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

// Source implements hashpipe.BatchSource over a file or a directory of
// files. Files in a directory are read in name order. A batch which has not
// been committed is returned again by the next call to Batch.
type Source struct {
	batchSize int
	log       hashpipe.Logger

	files   []string
	fileIdx int
	f       *os.File
	scanner *bufio.Scanner
	pending []hashpipe.Message
}

// NewSource gets a Source reading pathname with the options applied.
func NewSource(pathname string, opts ...SrcOption) (*Source, error) {
	s := &Source{
		batchSize: 100,
		log:       hashpipe.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		s.files = []string{pathname}
		return s, nil
	}
	infos, err := ioutil.ReadDir(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "reading directory")
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		s.files = append(s.files, filepath.Join(pathname, info.Name()))
	}
	return s, nil
}

// next opens the next file. It returns io.EOF when there are none left.
func (s *Source) next() error {
	if s.fileIdx >= len(s.files) {
		return io.EOF
	}
	name := s.files[s.fileIdx]
	s.fileIdx++
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrapf(err, "opening %s", name)
	}
	s.f = f
	s.scanner = bufio.NewScanner(f)
	s.scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	s.log.Debugf("reading %s", name)
	return nil
}

// Batch implements hashpipe.BatchSource. It returns io.EOF once every file
// has been read and committed.
func (s *Source) Batch(ctx context.Context) ([]hashpipe.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending != nil {
		return s.pending, nil
	}
	var msgs []hashpipe.Message
	for len(msgs) < s.batchSize {
		if s.scanner == nil {
			if err := s.next(); err == io.EOF {
				break
			} else if err != nil {
				return nil, err
			}
		}
		if !s.scanner.Scan() {
			err := s.scanner.Err()
			s.Close()
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", s.files[s.fileIdx-1])
			}
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

// Close closes the file currently being read.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f, s.scanner = nil, nil
	return err
}
