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

package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"gvisor.dev/pax/pkg/aslr"
)

// DomainSpec describes one domain of the tree.
type DomainSpec struct {
	// Name is unique within the tree.
	Name string `yaml:"name"`

	// Parent names the domain this one is attached to. Empty means the
	// root.
	Parent string `yaml:"parent,omitempty"`

	// Overrides are applied on top of the parent's policy.
	Overrides aslr.Overrides `yaml:"overrides,omitempty"`
}

// DomainFile is the contents of a domains file. Domains are attached in
// order, so a parent must be listed before its children.
//
// Example:
//
//	domains:
//	- name: web
//	  overrides:
//	    hardening.pax.aslr.status: force-enabled
//	- name: web/legacy
//	  parent: web
//	  overrides:
//	    hardening.pax.aslr.compat.status: "0"
type DomainFile struct {
	Domains []DomainSpec `yaml:"domains"`
}

// LoadDomains reads a domains file.
func LoadDomains(path string) (*DomainFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domains %q: %w", path, err)
	}
	f, err := DecodeDomains(data)
	if err != nil {
		return nil, fmt.Errorf("reading domains %q: %w", path, err)
	}
	return f, nil
}

// DecodeDomains parses a domains file held in memory. Unknown fields are an
// error.
func DecodeDomains(data []byte) (*DomainFile, error) {
	var f DomainFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Attach attaches every domain in f to tree, in order. It stops at the first
// error; domains attached before it are kept.
func (f *DomainFile) Attach(tree *aslr.Tree) error {
	for _, d := range f.Domains {
		parent := aslr.RootDomain
		if d.Parent != "" {
			id, ok := tree.Lookup(d.Parent)
			if !ok {
				return fmt.Errorf("domain %q: parent %q: %w", d.Name, d.Parent, aslr.ErrUnknownDomain)
			}
			parent = id
		}
		if _, err := tree.Attach(parent, d.Name, d.Overrides); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes the domains currently attached to tree, root excluded, in
// the format read by DecodeDomains. Every supported policy value is written
// out.
func Marshal(tree *aslr.Tree) ([]byte, error) {
	infos := tree.Domains()
	names := make(map[aslr.DomainID]string, len(infos))
	for _, d := range infos {
		names[d.ID] = d.Name
	}
	// Parents must come before children, which attach order guarantees.
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	var f DomainFile
	for _, d := range infos {
		if d.ID == aslr.RootDomain {
			continue
		}
		spec := DomainSpec{
			Name:      d.Name,
			Overrides: aslr.Overrides{},
		}
		if d.Parent != aslr.RootDomain {
			spec.Parent = names[d.Parent]
		}
		for _, feat := range []aslr.Feature{aslr.FeatureASLR, aslr.FeatureCompatASLR, aslr.FeatureDisallowMap32Bit} {
			if s, err := tree.StatusFor(d.ID, feat); err == nil {
				spec.Overrides[feat.Param()] = s.String()
			}
		}
		f.Domains = append(f.Domains, spec)
	}
	return yaml.Marshal(&f)
}
