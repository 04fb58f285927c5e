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
	"gvisor.dev/pax/paxctl/specutils"
)

// Annotations implements subcommands.Command for the "annotations" command.
type Annotations struct {
	bundle string
	write  bool
	out    io.Writer
}

// Name implements subcommands.Command.Name.
func (*Annotations) Name() string {
	return "annotations"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Annotations) Synopsis() string {
	return "attach the domain described by an OCI bundle's annotations"
}

// Usage implements subcommands.Command.Usage.
func (*Annotations) Usage() string {
	return `annotations [flags] - attach a domain for the container in an OCI bundle.

The domain is named by the dev.gvisor.pax.domain annotation (default: the
container's hostname) and attached under dev.gvisor.pax.parent (default: the
root). Annotations of the form dev.gvisor.hardening.pax.<param> override the
parent's policy. Lowering a status below the parent's requires
--allow-annotation-override.

With --write the resulting tree is written back to the --domains file.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Annotations) SetFlags(f *flag.FlagSet) {
	f.StringVar(&a.bundle, "bundle", ".", "path to the root of the OCI bundle.")
	f.BoolVar(&a.write, "write", false, "write the updated domain tree to the --domains file.")
}

// Execute implements subcommands.Command.Execute.
func (a *Annotations) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := a.run(conf); err != nil {
		return util.Errorf("annotations failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func (a *Annotations) run(conf *config.Config) error {
	out := a.out
	if out == nil {
		out = os.Stdout
	}
	if a.write && conf.Domains == "" {
		return fmt.Errorf("--write requires --domains")
	}

	spec, err := specutils.ReadSpec(a.bundle)
	if err != nil {
		return err
	}
	specutils.LogSpec(spec)

	e, err := newEngine(conf)
	if err != nil {
		return err
	}
	parentName := specutils.ParentName(spec)
	parent, err := lookupDomain(e, parentName)
	if err != nil {
		return err
	}
	parentPolicy, err := e.Tree().Policy(parent)
	if err != nil {
		return err
	}

	name := specutils.DomainName(spec, a.bundle)
	o := specutils.Overrides(spec)
	if err := specutils.CheckOverrides(conf, parentPolicy, o); err != nil {
		return err
	}
	id, err := e.Tree().Attach(parent, name, o)
	if err != nil {
		return err
	}
	p, err := e.Tree().Policy(id)
	if err != nil {
		return err
	}
	log.Infof("Attached domain %q (%d) to %q: %+v", name, id, parentName, p)

	fmt.Fprintf(out, "domain: %s (%d)\n", name, id)
	fmt.Fprintf(out, "parent: %s (%d)\n", parentName, parent)
	fmt.Fprintf(out, "%s: %v\n", aslr.FeatureASLR.Param(), p.ASLR)
	for _, f := range []aslr.Feature{aslr.FeatureCompatASLR, aslr.FeatureDisallowMap32Bit} {
		if s, err := e.Tree().StatusFor(id, f); err == nil {
			fmt.Fprintf(out, "%s: %v\n", f.Param(), s)
		}
	}

	if !a.write {
		return nil
	}
	b, err := config.Marshal(e.Tree())
	if err != nil {
		return err
	}
	return os.WriteFile(conf.Domains, b, 0644)
}
