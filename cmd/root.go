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
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable hashpipe reads its flags from.
const EnvPrefix = "HASHPIPE"

var (
	// Version is set with -ldflags at build time.
	Version = "v0.0.0"
	// BuildTime is set with -ldflags at build time.
	BuildTime = "not recorded"
)

type commandFn func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command

// subcommandFns is filled in by the init funcs of the files in this package.
var subcommandFns = map[string]commandFn{}

// NewRootCommand builds the hashpipe command with every registered
// subcommand beneath it, in name order.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "hashpipe",
		Short: "hashpipe - generate, hash, and store records",
		Long: `A three stage record pipeline: gen publishes random records,
hash computes their iterated SHA3-512 digests, and persist stores them.
serve puts the pipeline behind HTTP.

Every flag may also be set through a ` + EnvPrefix + `_ environment variable
or a TOML file given with --config.`,
		Version:      Version + " (built " + BuildTime + ")",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags(), EnvPrefix)
		},
	}
	root.PersistentFlags().String("config", "", "TOML file to read configuration from.")
	root.SetOutput(stderr)

	names := make([]string, 0, len(subcommandFns))
	for name := range subcommandFns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		root.AddCommand(subcommandFns[name](stdin, stdout, stderr))
	}
	return root
}

// setAllConfig fills every flag in flags which was not given on the command
// line from, in order of preference, an environment variable and the TOML
// file named by the config flag. Nested flags such as bus.hosts map to
// HASHPIPE_BUS_HOSTS and to the hosts key of a [bus] table.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, v.GetString("config")); err != nil {
		return err
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if serr := f.Value.Set(configValue(v, f)); serr != nil {
			err = errors.Wrapf(serr, "setting %s", f.Name)
		}
	})
	return err
}

// readConfigFile merges the TOML file at path into v. An empty path is not an
// error.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading configuration file '%s': %v", path, err)
	}
	return nil
}

// configValue renders the value viper resolved for f in the form f.Value.Set
// expects. Lists from a config file come back as slices, not comma separated
// strings, and have to be joined.
func configValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return v.GetString(f.Name)
}
