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

package cmd

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/pilosa/hashpipe"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewDigestCommand returns a command which prints the digest of a payload.
func NewDigestCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var iterations uint64
	digestCommand := &cobra.Command{
		Use:   "digest [payload]",
		Short: "digest - print the digest of a payload",
		Long: `Prints the uppercase hex SHA3-512 digest of the payload repeated
iterations times. The payload is read from stdin when not given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload string
			if len(args) == 1 {
				payload = args[0]
			} else {
				b, err := ioutil.ReadAll(stdin)
				if err != nil {
					return errors.Wrap(err, "reading payload")
				}
				payload = string(b)
			}
			_, err := fmt.Fprintln(stdout, hashpipe.ComputeDigest(payload, iterations))
			return err
		},
	}
	digestCommand.Flags().Uint64VarP(&iterations, "iterations", "i", 1, "Number of times the payload is fed to the hash.")
	return digestCommand
}

func init() {
	subcommandFns["digest"] = NewDigestCommand
}
