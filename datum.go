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

package hashpipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// Datum is an arbitrary document travelling through the pipeline. It is
// generated with an id, a payload and a target iteration count; the hashing
// stage fills in the digest; the persisting stage writes it to a store keyed
// by id.
//
// The id, payload and iteration count never change after construction. The
// digest is either unset or computed, and once computed it is never computed
// again.
type Datum struct {
	id         string
	payload    string
	iterations uint64

	digest    string
	hasDigest bool
}

// NewDatum returns a Datum with the digest unset.
func NewDatum(id, payload string, iterations uint64) *Datum {
	return &Datum{
		id:         id,
		payload:    payload,
		iterations: iterations,
	}
}

// ID returns the unique identifier of the datum, which is also its partition
// and storage key.
func (d *Datum) ID() string { return d.id }

// Payload returns the document which is hashed.
func (d *Datum) Payload() string { return d.payload }

// Iterations returns the number of times the payload is fed to the hash.
func (d *Datum) Iterations() uint64 { return d.iterations }

// Digest returns the cached digest and whether it has been set.
func (d *Datum) Digest() (string, bool) { return d.digest, d.hasDigest }

// SetDigest stores digest as the cached digest. Nothing checks that it matches
// the payload. An empty digest leaves the datum unhashed.
func (d *Datum) SetDigest(digest string) {
	d.digest = digest
	d.hasDigest = digest != ""
}

// String describes the datum for logs: the payload while the digest is unset,
// the digest afterwards.
func (d *Datum) String() string {
	if !d.hasDigest {
		return fmt.Sprintf("payload: %s", d.payload)
	}
	return fmt.Sprintf("digest: %s", d.digest)
}

// wireDatum is the JSON form of a Datum. Pointers distinguish missing fields
// from zero values on the way in.
type wireDatum struct {
	ID         *string          `json:"id"`
	Payload    *string          `json:"payload"`
	Iterations *json.RawMessage `json:"iterations"`
	Digest     *string          `json:"digest"`
}

// Decode parses the JSON form of a Datum. id, payload and iterations are
// required and iterations must be a non-negative integer; digest may be a
// string, null or missing. Any problem yields an error whose cause is
// ErrMalformed.
func Decode(data []byte) (*Datum, error) {
	d := &Datum{}
	if err := d.decode(data); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Datum) decode(data []byte) error {
	var w wireDatum
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrapf(ErrMalformed, "decoding json: %v", err)
	}
	switch {
	case w.ID == nil:
		return errors.Wrap(ErrMalformed, "missing id")
	case w.Payload == nil:
		return errors.Wrap(ErrMalformed, "missing payload")
	case w.Iterations == nil:
		return errors.Wrap(ErrMalformed, "missing iterations")
	}
	iterations, err := parseIterations(*w.Iterations)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	*d = Datum{
		id:         *w.ID,
		payload:    *w.Payload,
		iterations: iterations,
	}
	if w.Digest != nil {
		d.SetDigest(*w.Digest)
	}
	return nil
}

// parseIterations accepts any JSON number which is a whole, non-negative
// value that fits in a uint64, so 3, 3.0 and 3e0 are all three.
func parseIterations(raw json.RawMessage) (uint64, error) {
	s := string(bytes.TrimSpace(raw))
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return 0, errors.Errorf("iterations must be a number, got %s", s)
	}
	r, ok := new(big.Rat).SetString(s)
	switch {
	case !ok:
		return 0, errors.Errorf("iterations must be a number, got %s", s)
	case r.Sign() < 0:
		return 0, errors.Errorf("iterations must not be negative, got %s", s)
	case !r.IsInt():
		return 0, errors.Errorf("iterations must be a whole number, got %s", s)
	case !r.Num().IsUint64():
		return 0, errors.Errorf("iterations out of range, got %s", s)
	}
	return r.Num().Uint64(), nil
}

// Encode returns the JSON form of the datum. An unset digest is encoded as
// null. Encode never computes the digest.
func (d *Datum) Encode() ([]byte, error) {
	iterations := json.RawMessage(strconv.FormatUint(d.iterations, 10))
	w := wireDatum{
		ID:         &d.id,
		Payload:    &d.payload,
		Iterations: &iterations,
	}
	if d.hasDigest {
		w.Digest = &d.digest
	}
	data, err := json.Marshal(w)
	return data, errors.Wrap(err, "encoding datum")
}

// MarshalJSON implements json.Marshaler using Encode.
func (d *Datum) MarshalJSON() ([]byte, error) {
	return d.Encode()
}

// UnmarshalJSON implements json.Unmarshaler with the same rules as Decode.
func (d *Datum) UnmarshalJSON(data []byte) error {
	return d.decode(data)
}

// degenerate reports whether an encoded record carries no information at all.
func degenerate(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("{}")) || bytes.Equal(data, []byte("null"))
}
