// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/paxctl/cmd/util"
)

// Resolve implements subcommands.Command for the "resolve" command.
type Resolve struct {
	status string
	mode   string
	map32  bool
	out    io.Writer
}

// Name implements subcommands.Command.Name.
func (*Resolve) Name() string {
	return "resolve"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Resolve) Synopsis() string {
	return "resolve a status and an image mode into PaX flags"
}

// Usage implements subcommands.Command.Usage.
func (*Resolve) Usage() string {
	return `resolve --status=<status> [--mode=<bits>] [--map32bit] - resolve a feature status and the
note bits carried by an image into the flags the process would run with.

EXAMPLE:
    $ paxctl resolve --status=opt-out --mode=noaslr
    flags: NOASLR|NOSHLIBRANDOM
    aslr active: false
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Resolve) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.status, "status", "opt-out", "feature status: disabled, opt-in, opt-out, force-enabled or 0-3.")
	f.StringVar(&r.mode, "mode", "", "comma-separated PaX note bits carried by the image.")
	f.BoolVar(&r.map32, "map32bit", false, "resolve the MAP_32BIT restriction instead of ASLR.")
}

// Execute implements subcommands.Command.Execute.
func (r *Resolve) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := r.run(); err != nil {
		return util.Errorf("resolve failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func (r *Resolve) run() error {
	out := r.out
	if out == nil {
		out = os.Stdout
	}
	status, err := aslr.ParseStatus(r.status)
	if err != nil {
		return err
	}
	mode, err := aslr.ParseMode(r.mode)
	if err != nil {
		return err
	}

	if r.map32 {
		flags, err := aslr.ResolveDisallowMap32Bit(status, mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "flags: %v\n", flags)
		fmt.Fprintf(out, "map32bit refused: %t\n", aslr.DisallowMap32BitActive(flags, true))
		return nil
	}

	flags, err := aslr.ResolveASLR(status, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "flags: %v\n", flags)
	fmt.Fprintf(out, "aslr active: %t\n", aslr.Active(flags))
	return nil
}
