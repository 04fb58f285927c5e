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
	"text/tabwriter"

	"github.com/google/subcommands"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/paxctl/cmd/util"
	"gvisor.dev/pax/paxctl/config"
)

// Status implements subcommands.Command for the "status" command.
type Status struct {
	format string
	out    io.Writer
}

// Name implements subcommands.Command.Name.
func (*Status) Name() string {
	return "status"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Status) Synopsis() string {
	return "print the ASLR configuration and the domain tree"
}

// Usage implements subcommands.Command.Usage.
func (*Status) Usage() string {
	return `status [flags] - print the ASLR configuration and the domain tree.

With --format=yaml the domain tree is printed in the format read by --domains.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Status) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.format, "format", "text", "output format: text (default) or yaml.")
}

// Execute implements subcommands.Command.Execute.
func (s *Status) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := s.run(conf); err != nil {
		return util.Errorf("status failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func (s *Status) run(conf *config.Config) error {
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	e, err := newEngine(conf)
	if err != nil {
		return err
	}

	switch s.format {
	case "yaml":
		b, err := config.Marshal(e.Tree())
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	case "text":
	default:
		return fmt.Errorf("invalid format %q, must be 'text' or 'yaml'", s.format)
	}

	e.Config().Log(stdoutLogger(out))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tDOMAIN\tPARENT\tASLR\tCOMPAT\tDISALLOW_MAP32BIT\n")
	for _, d := range e.Tree().Domains() {
		compat, map32 := "-", "-"
		if st, err := e.Tree().StatusFor(d.ID, aslr.FeatureCompatASLR); err == nil {
			compat = st.String()
		}
		if st, err := e.Tree().StatusFor(d.ID, aslr.FeatureDisallowMap32Bit); err == nil {
			map32 = st.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n", d.ID, d.Name, d.Parent, d.Policy.ASLR, compat, map32)
	}
	return w.Flush()
}
