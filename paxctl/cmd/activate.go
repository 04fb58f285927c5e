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
	"gvisor.dev/pax/pkg/log"
	"gvisor.dev/pax/paxctl/cmd/util"
	"gvisor.dev/pax/paxctl/config"
)

// Activate implements subcommands.Command for the "activate" command.
type Activate struct {
	imageFlags
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Activate) Name() string {
	return "activate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Activate) Synopsis() string {
	return "simulate an exec and print the randomized address space"
}

// Usage implements subcommands.Command.Usage.
func (*Activate) Usage() string {
	return `activate [flags] - resolve the flags for an image executed in a domain, draw its
deltas and print where each region of the new address space lands.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Activate) SetFlags(f *flag.FlagSet) {
	a.imageFlags.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (a *Activate) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := a.run(conf, nil); err != nil {
		return util.Errorf("activate failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func (a *Activate) run(conf *config.Config, opts []aslr.Option) error {
	out := a.out
	if out == nil {
		out = os.Stdout
	}
	e, err := newEngine(conf, opts...)
	if err != nil {
		return err
	}
	id, err := lookupDomain(e, a.domain)
	if err != nil {
		return err
	}
	img, err := a.image()
	if err != nil {
		return err
	}

	s, err := e.Exec(id, img)
	if err != nil {
		return err
	}
	log.Debugf("Domain %q (%d), image %+v: %v", a.domain, id, img, s)

	fmt.Fprintf(out, "flags: %v\n", s.Flags())
	fmt.Fprintf(out, "aslr active: %t\n", s.Active())
	if !s.Active() {
		return nil
	}
	for k := aslr.RegionKind(0); k < aslr.NumRegionKinds; k++ {
		fmt.Fprintf(out, "delta %-9s %#x\n", k.String()+":", s.Delta(k))
	}
	if s.VDSOFallback() {
		fmt.Fprintf(out, "vdso: not randomized after %d attempts\n", s.VDSOAttempts())
	}

	l, err := newLayout(s, img.Personality, stackLimit())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "stack top:     %v\n", l.StackTop)
	fmt.Fprintf(out, "stack pointer: %v\n", l.StackPointer)
	fmt.Fprintf(out, "vdso:          %v\n", l.VDSOBase)
	fmt.Fprintf(out, "mmap base:     %v (%v)\n", l.BottomUpBase, l.DefaultDirection)
	fmt.Fprintf(out, "top down base: %v\n", l.TopDownBase)
	fmt.Fprintf(out, "exec base:     %v\n", l.ExecBase)
	if l.Map32BitBase != 0 {
		fmt.Fprintf(out, "map32bit base: %v\n", l.Map32BitBase)
	}
	return nil
}
