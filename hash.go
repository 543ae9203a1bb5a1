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
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DigestLen is the length of a rendered digest: 512 bits in hex.
const DigestLen = 128

// ComputeDigest feeds payload into a single SHA3-512 state iterations times
// and renders the final sum as uppercase hex. The state is never reset or
// re-seeded with an intermediate sum, so the result equals the SHA3-512 of
// payload repeated iterations times. Zero iterations gives the SHA3-512 of
// empty input.
func ComputeDigest(payload string, iterations uint64) string {
	h := sha3.New512()
	for i := uint64(0); i < iterations; i++ {
		_, _ = io.WriteString(h, payload) // hash.Hash never returns an error
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Hash returns the digest of the datum, computing and caching it on the first
// call. Later calls return the cached value without hashing again.
func (d *Datum) Hash() string {
	if !d.hasDigest {
		d.SetDigest(ComputeDigest(d.payload, d.iterations))
	}
	return d.digest
}
