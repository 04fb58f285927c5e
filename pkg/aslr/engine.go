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

package aslr

import (
	"fmt"
	"io"
	"time"

	"gvisor.dev/pax/pkg/log"
	"gvisor.dev/pax/pkg/rand"
)

// warnEvery bounds how often the Engine repeats a warning that an
// unprivileged workload can trigger on every exec.
const warnEvery = time.Second

// Engine ties the policy tree, the delta tables and the randomness source
// together. It is safe for concurrent use.
type Engine struct {
	cfg  Config
	tree *Tree
	src  io.Reader
	log  log.Logger

	// warn is rate limited. It is used for conditions reported on the exec
	// path.
	warn log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom sets the source deltas are drawn from. The default is
// rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.src = r }
}

// WithLogger sets the logger. The default is log.Log().
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithWarningLogger sets the logger used for warnings on the exec path,
// which is rate limited by default.
func WithWarningLogger(l log.Logger) Option {
	return func(e *Engine) { e.warn = l }
}

// NewEngine validates a copy of cfg and builds an Engine whose root domain
// takes the resulting statuses.
func NewEngine(cfg *Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: *cfg,
		src: rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.Log()
	}
	if e.warn == nil {
		e.warn = log.RateLimitedLogger(e.log, warnEvery)
	}
	e.cfg.Validate(e.log)
	e.tree = NewTree(&e.cfg, e.log)
	return e
}

// Tree returns the policy tree.
func (e *Engine) Tree() *Tree {
	return e.tree
}

// Config returns the validated configuration.
func (e *Engine) Config() *Config {
	return &e.cfg
}

// Image describes the program being executed.
type Image struct {
	// Mode holds the note bits from the image's PaX note or extended
	// attributes.
	Mode Flags

	// Personality is the ABI the image runs with.
	Personality Personality
}

// Activate resolves the flags for img executed in domain id.
//
// Compat images are resolved against the domain's compat status. The low
// address restriction is resolved too when the host supports it. A status
// that is invalid at this point is replaced with its fail-safe value and
// reported, and Activate still returns usable flags; only an unknown domain
// is an error.
func (e *Engine) Activate(id DomainID, img Image) (Flags, error) {
	policy, err := e.tree.Policy(id)
	if err != nil {
		return 0, err
	}

	feature := FeatureASLR
	if img.Personality == Compat && e.cfg.HasCompat {
		feature = FeatureCompatASLR
	}
	flags, err := ResolveASLR(policy.Get(feature), img.Mode)
	if err != nil {
		e.reportInvalid(feature, policy.Get(feature))
	}

	if e.cfg.HasMap32Bit {
		m, err := ResolveDisallowMap32Bit(policy.DisallowMap32Bit, img.Mode)
		if err != nil {
			e.reportInvalid(FeatureDisallowMap32Bit, policy.DisallowMap32Bit)
		}
		flags |= m
	}

	if Active(flags) {
		activations.Increment("aslr")
	} else {
		activations.Increment("noaslr")
	}
	return flags, nil
}

func (e *Engine) reportInvalid(f Feature, s Status) {
	policyErrors.Increment(f.String())
	fixed, _ := ValidateStatus(s)
	e.warn.Warningf("[PaX ASLR] WARNING, invalid PaX settings! (%s = %d), using %s", f.Param(), int32(s), fixed)
}

// InitRegions draws the deltas for a new address space of personality p with
// the resolved flags.
func (e *Engine) InitRegions(flags Flags, p Personality) (*State, error) {
	return InitRegions(e.src, flags, e.cfg.Table(p), e.warn)
}

// Exec resolves the flags for img in domain id and initializes the address
// space state for it.
func (e *Engine) Exec(id DomainID, img Image) (*State, error) {
	flags, err := e.Activate(id, img)
	if err != nil {
		return nil, fmt.Errorf("activating PaX for domain %d: %w", id, err)
	}
	return e.InitRegions(flags, img.Personality)
}
