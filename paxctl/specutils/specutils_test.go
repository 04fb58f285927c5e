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

package specutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/paxctl/config"
)

func TestOverrides(t *testing.T) {
	spec := &specs.Spec{
		Annotations: map[string]string{
			"dev.gvisor.hardening.pax.aslr.status":        "3",
			"dev.gvisor.hardening.pax.aslr.compat.status": "opt-in",
			"dev.gvisor.flag.debug":                       "true",
			"dev.gvisor.pax.domain":                       "web",
			"io.kubernetes.cri.container-type":            "sandbox",
		},
	}
	want := aslr.Overrides{
		"hardening.pax.aslr.status":        "3",
		"hardening.pax.aslr.compat.status": "opt-in",
	}
	if diff := cmp.Diff(want, Overrides(spec)); diff != "" {
		t.Errorf("Overrides mismatch (-want +got):\n%s", diff)
	}
}

func TestDomainName(t *testing.T) {
	for _, tc := range []struct {
		name string
		spec *specs.Spec
		want string
	}{
		{"annotation", &specs.Spec{Hostname: "h", Annotations: map[string]string{domainAnnotation: "d"}}, "d"},
		{"hostname", &specs.Spec{Hostname: "h"}, "h"},
		{"bundle", &specs.Spec{}, "bundle"},
	} {
		if got := DomainName(tc.spec, "/var/run/bundle/"); got != tc.want {
			t.Errorf("%s: DomainName = %q, want %q", tc.name, got, tc.want)
		}
	}
	if got := ParentName(&specs.Spec{}); got != aslr.RootDomainName {
		t.Errorf("ParentName = %q, want %q", got, aslr.RootDomainName)
	}
	if got := ParentName(&specs.Spec{Annotations: map[string]string{parentAnnotation: "web"}}); got != "web" {
		t.Errorf("ParentName = %q, want %q", got, "web")
	}
}

func TestCheckOverrides(t *testing.T) {
	parent := aslr.Policy{ASLR: aslr.OptOut, CompatASLR: aslr.OptIn, DisallowMap32Bit: aslr.OptIn}
	conf := &config.Config{}

	if err := CheckOverrides(conf, parent, aslr.Overrides{"hardening.pax.aslr.status": "force-enabled"}); err != nil {
		t.Errorf("raising status failed: %v", err)
	}
	lower := aslr.Overrides{"hardening.pax.aslr.status": "0"}
	if err := CheckOverrides(conf, parent, lower); err == nil {
		t.Errorf("lowering status succeeded, want error")
	}
	conf.AllowAnnotationOverride = true
	if err := CheckOverrides(conf, parent, lower); err != nil {
		t.Errorf("lowering status with override allowed failed: %v", err)
	}
}

func TestReadSpec(t *testing.T) {
	dir := t.TempDir()
	const spec = `{"ociVersion": "1.0.0", "hostname": "web", "annotations": {"dev.gvisor.hardening.pax.aslr.status": "1"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(spec), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSpec(dir)
	if err != nil {
		t.Fatalf("ReadSpec failed: %v", err)
	}
	if got.Hostname != "web" || got.Annotations["dev.gvisor.hardening.pax.aslr.status"] != "1" {
		t.Errorf("ReadSpec = %+v", got)
	}
	LogSpec(got)

	if _, err := ReadSpec(t.TempDir()); err == nil {
		t.Errorf("ReadSpec on empty bundle succeeded, want error")
	}
}

func TestIsDebugCommand(t *testing.T) {
	for _, tc := range []struct {
		filter, cmd string
		want        bool
	}{
		{"", "status", true},
		{"status,sample", "sample", true},
		{"status,sample", "activate", false},
		{"!status", "status", false},
		{"!status", "activate", true},
	} {
		conf := &config.Config{DebugCommand: tc.filter}
		if got := IsDebugCommand(conf, tc.cmd); got != tc.want {
			t.Errorf("IsDebugCommand(%q, %q) = %t, want %t", tc.filter, tc.cmd, got, tc.want)
		}
	}
}
