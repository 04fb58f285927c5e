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
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"

	"gvisor.dev/pax/pkg/log"
)

// Feature names one of the per-domain policy values.
type Feature int

const (
	// FeatureASLR is the ASLR status for native images.
	FeatureASLR Feature = iota

	// FeatureCompatASLR is the ASLR status for compat images.
	FeatureCompatASLR

	// FeatureDisallowMap32Bit is the low address class restriction.
	FeatureDisallowMap32Bit

	numFeatures
)

var featureInfo = [numFeatures]struct {
	name  string
	param string
}{
	FeatureASLR:             {"aslr", "hardening.pax.aslr.status"},
	FeatureCompatASLR:       {"compat", "hardening.pax.aslr.compat.status"},
	FeatureDisallowMap32Bit: {"disallow_map32bit", "hardening.pax.disallow_map32bit.status"},
}

// String implements fmt.Stringer.
func (f Feature) String() string {
	if f < 0 || f >= numFeatures {
		return fmt.Sprintf("Feature(%d)", int(f))
	}
	return featureInfo[f].name
}

// Param returns the parameter name used for f in tunables and domain
// overrides.
func (f Feature) Param() string {
	if f < 0 || f >= numFeatures {
		return ""
	}
	return featureInfo[f].param
}

// paramPrefixes are the parameter namespaces owned by this package. Override
// keys under them must name a supported feature.
var paramPrefixes = []string{"hardening.pax.aslr.", "hardening.pax.disallow_map32bit."}

// Policy is the resolved policy of a domain.
type Policy struct {
	ASLR             Status `yaml:"aslr"`
	CompatASLR       Status `yaml:"compat"`
	DisallowMap32Bit Status `yaml:"disallow_map32bit"`
}

// Get returns the status of feature f.
func (p *Policy) Get(f Feature) Status {
	switch f {
	case FeatureASLR:
		return p.ASLR
	case FeatureCompatASLR:
		return p.CompatASLR
	case FeatureDisallowMap32Bit:
		return p.DisallowMap32Bit
	default:
		panic(fmt.Sprintf("unknown feature %d", int(f)))
	}
}

func (p *Policy) set(f Feature, s Status) {
	switch f {
	case FeatureASLR:
		p.ASLR = s
	case FeatureCompatASLR:
		p.CompatASLR = s
	case FeatureDisallowMap32Bit:
		p.DisallowMap32Bit = s
	default:
		panic(fmt.Sprintf("unknown feature %d", int(f)))
	}
}

// Overrides maps parameter names, such as "hardening.pax.aslr.status", to
// values given when a domain is created. Keys outside the PaX ASLR namespaces
// belong to other subsystems and are ignored.
type Overrides map[string]string

// DomainID identifies a domain in a Tree.
type DomainID uint32

// RootDomain is the ID of the root domain of every Tree.
const RootDomain DomainID = 0

// RootDomainName is the name of the root domain.
const RootDomainName = "root"

// domain is one record in the arena.
type domain struct {
	id   DomainID
	name string

	// parent is kept for auditing. Resolution never follows it: policy is
	// copied from the parent when the domain is attached.
	parent DomainID

	policy   Policy
	children int
}

// nameEntry is an item of the name index.
type nameEntry struct {
	name string
	id   DomainID
}

func nameLess(a, b nameEntry) bool {
	return a.name < b.name
}

// Tree is the hierarchy of isolation domains and their policies.
//
// Domains live in an arena indexed by DomainID. Each holds its own copy of
// its policy, taken from the parent when attached, so later changes to a
// parent never reach existing children.
type Tree struct {
	hasCompat   bool
	hasMap32Bit bool
	log         log.Logger

	// mu protects the fields below. Attach and Detach take it for writing;
	// readers only need it for reading.
	mu      sync.RWMutex
	domains []*domain
	names   *btree.BTreeG[nameEntry]
}

// NewTree returns a Tree whose root domain takes its policy from c. c should
// already have been validated.
func NewTree(c *Config, l log.Logger) *Tree {
	if l == nil {
		l = log.Log()
	}
	root := &domain{
		id:     RootDomain,
		name:   RootDomainName,
		parent: RootDomain,
		policy: Policy{
			ASLR:             c.Status,
			CompatASLR:       c.CompatStatus,
			DisallowMap32Bit: c.DisallowMap32BitStatus,
		},
	}
	t := &Tree{
		hasCompat:   c.HasCompat,
		hasMap32Bit: c.HasMap32Bit,
		log:         l,
		domains:     []*domain{root},
		names:       btree.NewG[nameEntry](2, nameLess),
	}
	t.names.ReplaceOrInsert(nameEntry{root.name, root.id})
	return t
}

// supported returns true if f exists on this host.
func (t *Tree) supported(f Feature) bool {
	switch f {
	case FeatureASLR:
		return true
	case FeatureCompatASLR:
		return t.hasCompat
	case FeatureDisallowMap32Bit:
		return t.hasMap32Bit
	default:
		return false
	}
}

// lookupLocked returns the domain for id. Preconditions: t.mu is held.
func (t *Tree) lookupLocked(id DomainID) (*domain, error) {
	if int(id) >= len(t.domains) || t.domains[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, id)
	}
	return t.domains[id], nil
}

// parseOverrides applies o on top of p. Nothing is modified on error.
func (t *Tree) parseOverrides(p Policy, o Overrides) (Policy, error) {
	for key := range o {
		owned := false
		for _, prefix := range paramPrefixes {
			if strings.HasPrefix(key, prefix) {
				owned = true
			}
		}
		if !owned {
			continue
		}
		known := false
		for f := Feature(0); f < numFeatures; f++ {
			if key == f.Param() && t.supported(f) {
				known = true
			}
		}
		if !known {
			return p, fmt.Errorf("%w: %q", ErrInvalidParam, key)
		}
	}
	for f := Feature(0); f < numFeatures; f++ {
		v, ok := o[f.Param()]
		if !ok || !t.supported(f) {
			continue
		}
		s, err := ParseStatus(v)
		if err != nil {
			return p, fmt.Errorf("%s=%q: %w", f.Param(), v, err)
		}
		p.set(f, s)
	}
	return p, nil
}

// Attach creates a domain named name under parent. The new domain starts
// with a copy of the parent's policy, and then takes any value given in o. If
// an override is malformed Attach returns an error and the tree is left as
// it was.
//
// Attach does not modify the parent's policy, so siblings may be attached
// concurrently with each other and with readers.
func (t *Tree) Attach(parent DomainID, name string, o Overrides) (DomainID, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty domain name", ErrInvalidParam)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookupLocked(parent)
	if err != nil {
		return 0, err
	}
	if _, ok := t.names.Get(nameEntry{name: name}); ok {
		return 0, fmt.Errorf("%w: %q", ErrDomainExists, name)
	}

	policy, err := t.parseOverrides(p.policy, o)
	if err != nil {
		return 0, fmt.Errorf("attaching domain %q to %q: %w", name, p.name, err)
	}

	d := &domain{
		id:     DomainID(len(t.domains)),
		name:   name,
		parent: parent,
		policy: policy,
	}
	t.domains = append(t.domains, d)
	t.names.ReplaceOrInsert(nameEntry{d.name, d.id})
	p.children++

	t.log.Debugf("[PaX ASLR] domain %q (%d) attached to %q: aslr %s, compat %s, disallow_map32bit %s",
		d.name, d.id, p.name, policy.ASLR, policy.CompatASLR, policy.DisallowMap32Bit)
	return d.id, nil
}

// Inherit is Attach with the arguments in the order used by domain creation:
// the new domain first, then the domain it inherits from.
func (t *Tree) Inherit(name string, parent DomainID, o Overrides) (DomainID, error) {
	return t.Attach(parent, name, o)
}

// Detach removes a domain without children. Its ID is never reused.
func (t *Tree) Detach(id DomainID) error {
	if id == RootDomain {
		return ErrRootDomain
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	if d.children != 0 {
		return fmt.Errorf("%w: %q has %d", ErrDomainBusy, d.name, d.children)
	}
	t.domains[id] = nil
	t.names.Delete(nameEntry{name: d.name})
	if p, err := t.lookupLocked(d.parent); err == nil {
		p.children--
	}
	return nil
}

// StatusFor returns the status of feature f in domain id.
func (t *Tree) StatusFor(id DomainID, f Feature) (Status, error) {
	if !t.supported(f) {
		return 0, fmt.Errorf("%w: feature %v", ErrInvalidParam, f)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, err := t.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return d.policy.Get(f), nil
}

// SetStatus changes the status of feature f in domain id. Only the domain
// itself changes; children keep the value they copied when attached.
func (t *Tree) SetStatus(id DomainID, f Feature, s Status) error {
	if !t.supported(f) {
		return fmt.Errorf("%w: feature %v", ErrInvalidParam, f)
	}
	if !s.Valid() {
		return fmt.Errorf("%s: %w: %d", f.Param(), ErrInvalidStatus, int32(s))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	d.policy.set(f, s)
	return nil
}

// Policy returns a copy of the policy of domain id.
func (t *Tree) Policy(id DomainID) (Policy, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, err := t.lookupLocked(id)
	if err != nil {
		return Policy{}, err
	}
	return d.policy, nil
}

// Parent returns the domain id was attached to. The root is its own parent.
func (t *Tree) Parent(id DomainID) (DomainID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, err := t.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return d.parent, nil
}

// Lookup returns the ID of the domain called name.
func (t *Tree) Lookup(name string) (DomainID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.names.Get(nameEntry{name: name})
	return e.id, ok
}

// DomainInfo describes one attached domain.
type DomainInfo struct {
	ID     DomainID
	Name   string
	Parent DomainID
	Policy Policy
}

// Domains returns every attached domain, ordered by name.
func (t *Tree) Domains() []DomainInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]DomainInfo, 0, t.names.Len())
	t.names.Ascend(func(e nameEntry) bool {
		d := t.domains[e.id]
		out = append(out, DomainInfo{
			ID:     d.id,
			Name:   d.name,
			Parent: d.parent,
			Policy: d.policy,
		})
		return true
	})
	return out
}

// Children returns the IDs of the direct children of id in attach order.
func (t *Tree) Children(id DomainID) []DomainID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []DomainID
	for _, d := range t.domains {
		if d != nil && d.id != RootDomain && d.parent == id {
			out = append(out, d.id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
