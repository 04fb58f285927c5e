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
	"math/bits"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/metric"
	"gvisor.dev/pax/paxctl/cmd/util"
	"gvisor.dev/pax/paxctl/config"
)

// Sample implements subcommands.Command for the "sample" command.
type Sample struct {
	imageFlags
	count   int
	workers int
	metrics bool
	out     io.Writer
}

// Name implements subcommands.Command.Name.
func (*Sample) Name() string {
	return "sample"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Sample) Synopsis() string {
	return "draw many address spaces and report the entropy of each region"
}

// Usage implements subcommands.Command.Usage.
func (*Sample) Usage() string {
	return `sample [flags] - simulate --count execs of the same image and report, for each
region, which delta bits were ever set. Every layout is checked for overlap.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Sample) SetFlags(f *flag.FlagSet) {
	s.imageFlags.setFlags(f)
	f.IntVar(&s.count, "count", 10000, "number of execs to simulate.")
	f.IntVar(&s.workers, "workers", 8, "number of concurrent workers.")
	f.BoolVar(&s.metrics, "metrics", false, "print the ASLR metrics after sampling.")
}

// Execute implements subcommands.Command.Execute.
func (s *Sample) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := s.run(ctx, conf, nil); err != nil {
		return util.Errorf("sample failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// sampleStats aggregates the draws of all workers.
type sampleStats struct {
	mu        sync.Mutex
	active    int
	fallbacks int
	seen      [aslr.NumRegionKinds]uint64
}

func (st *sampleStats) add(s *aslr.State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !s.Active() {
		return
	}
	st.active++
	if s.VDSOFallback() {
		st.fallbacks++
	}
	for k := aslr.RegionKind(0); k < aslr.NumRegionKinds; k++ {
		st.seen[k] |= s.Delta(k)
	}
}

func (s *Sample) run(ctx context.Context, conf *config.Config, opts []aslr.Option) error {
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	if s.count <= 0 || s.workers <= 0 {
		return fmt.Errorf("--count and --workers must be positive")
	}
	e, err := newEngine(conf, opts...)
	if err != nil {
		return err
	}
	id, err := lookupDomain(e, s.domain)
	if err != nil {
		return err
	}
	img, err := s.image()
	if err != nil {
		return err
	}
	stack := stackLimit()

	var st sampleStats
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < s.count; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			state, err := e.Exec(id, img)
			if err != nil {
				return err
			}
			if state.Active() {
				if _, err := newLayout(state, img.Personality, stack); err != nil {
					return fmt.Errorf("exec %d: %v: %w", i, state, err)
				}
			}
			st.add(state)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "execs: %d, aslr active: %d, vdso fallbacks: %d\n", s.count, st.active, st.fallbacks)
	if st.active > 0 {
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "REGION\tBITS\tLOWEST\tHIGHEST\tSEEN\n")
		for k := aslr.RegionKind(0); k < aslr.NumRegionKinds; k++ {
			seen := st.seen[k]
			if seen == 0 {
				fmt.Fprintf(w, "%v\t0\t-\t-\t0x0\n", k)
				continue
			}
			fmt.Fprintf(w, "%v\t%d\t%d\t%d\t%#x\n", k, bits.OnesCount64(seen), bits.TrailingZeros64(seen), 63-bits.LeadingZeros64(seen), seen)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if s.metrics {
		for _, m := range metric.Default.Snapshot() {
			fmt.Fprintln(out, m)
		}
	}
	return nil
}
