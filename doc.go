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

// Package hashpipe is a three stage record pipeline. Records carry an id, a
// payload, and an iteration count; the pipeline computes each record's
// SHA3-512 digest over the payload fed to the hash iterations times and
// stores the result keyed by id.
//
// There are three stages, each connected to the next by a record bus (see
// the kafka, aws/kinesis and file packages):
//
// 1. Generator
//
//    The generator (package fake and usecase/gen) produces records with random
//    ids and alphanumeric payloads and publishes them without a digest.
//
// 2. Hasher
//
//    The Hasher consumes batches of records, computes the digest of each one
//    concurrently, and publishes the hashed batch. A record which fails to
//    decode is logged and skipped; it never stops the batch.
//
// 3. Persister
//
//    The Persister consumes hashed records and writes each one to a Store
//    (DynamoDB, bolt, leveldb, redis, sqlite or an S3 archive). Records which
//    arrive without a digest are hashed before they are stored.
//
// A Runner drives a stage: it reads a batch from a BatchSource, hands it to
// the Stage, and commits the batch only after the Stage succeeds, retrying
// with backoff otherwise. Delivery is therefore at least once, and every
// write downstream is an idempotent put by id.
package hashpipe
