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

// Package cmd holds implementations of the paxctl commands.
package cmd

import (
	"flag"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/hostarch"
	"gvisor.dev/pax/pkg/layout"
	"gvisor.dev/pax/pkg/log"
	"gvisor.dev/pax/paxctl/config"
)

// newEngine builds an Engine from conf: the tunables are applied to the
// defaults and the domain tree, if any, is attached.
func newEngine(conf *config.Config, opts ...aslr.Option) (*aslr.Engine, error) {
	ac, err := conf.ASLR()
	if err != nil {
		return nil, err
	}
	e := aslr.NewEngine(ac, opts...)
	if conf.Domains != "" {
		f, err := config.LoadDomains(conf.Domains)
		if err != nil {
			return nil, err
		}
		if err := f.Attach(e.Tree()); err != nil {
			return nil, fmt.Errorf("attaching domains from %q: %w", conf.Domains, err)
		}
	}
	return e, nil
}

// lookupDomain returns the ID of the domain called name.
func lookupDomain(e *aslr.Engine, name string) (aslr.DomainID, error) {
	id, ok := e.Tree().Lookup(name)
	if !ok {
		return 0, fmt.Errorf("domain %q: %w", name, aslr.ErrUnknownDomain)
	}
	return id, nil
}

// imageFlags describes the image being executed on the command line.
type imageFlags struct {
	domain string
	mode   string
	compat bool
}

func (i *imageFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&i.domain, "domain", aslr.RootDomainName, "name of the domain the image is executed in.")
	f.StringVar(&i.mode, "mode", "", `comma-separated PaX note bits carried by the image, e.g. "noaslr,shlibrandom".`)
	f.BoolVar(&i.compat, "compat", false, "execute the image with the compat personality.")
}

func (i *imageFlags) image() (aslr.Image, error) {
	mode, err := aslr.ParseMode(i.mode)
	if err != nil {
		return aslr.Image{}, err
	}
	img := aslr.Image{Mode: mode, Personality: aslr.Native}
	if i.compat {
		img.Personality = aslr.Compat
	}
	return img, nil
}

// stackLimit returns the current RLIMIT_STACK soft limit.
func stackLimit() uint64 {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rl); err != nil {
		log.Warningf("Getrlimit(RLIMIT_STACK) failed, assuming 8 MiB: %v", err)
		return 8 << 20
	}
	return rl.Cur
}

// newLayout places a full address space for s.
func newLayout(s *aslr.State, p aslr.Personality, stack uint64) (layout.Layout, error) {
	return layout.New(hostarch.PageSize, ^hostarch.Addr(0), stack, p, s)
}

// stdoutLogger returns a logger that writes plain lines to w.
func stdoutLogger(w io.Writer) log.Logger {
	return &log.BasicLogger{Level: log.Info, Emitter: &log.Writer{Next: w}}
}
