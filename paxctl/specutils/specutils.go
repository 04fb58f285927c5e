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

// Package specutils contains utility functions for working with OCI runtime
// specs.
package specutils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohae/deepcopy"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/log"
	"gvisor.dev/pax/paxctl/config"
)

const (
	// annotationPrefix marks annotations carrying domain parameters. The
	// rest of the key is the parameter name, for example
	// "dev.gvisor.hardening.pax.aslr.status".
	annotationPrefix = "dev.gvisor."

	// domainAnnotation names the domain a container runs in.
	domainAnnotation = "dev.gvisor.pax.domain"

	// parentAnnotation names the domain the container's domain is attached
	// to.
	parentAnnotation = "dev.gvisor.pax.parent"
)

// Version is the supported spec version.
var Version = specs.Version

// LogSpec logs the parts of the spec relevant to the ASLR policy.
func LogSpec(orig *specs.Spec) {
	if !log.IsLogging(log.Debug) {
		return
	}

	// Strip down parts of the spec that are not interesting.
	spec := deepcopy.Copy(orig).(*specs.Spec)
	spec.Mounts = nil
	if spec.Process != nil {
		spec.Process.Capabilities = nil
		spec.Process.Env = nil
	}
	if spec.Linux != nil {
		spec.Linux.Seccomp = nil
		spec.Linux.MaskedPaths = nil
		spec.Linux.ReadonlyPaths = nil
		if spec.Linux.Resources != nil {
			spec.Linux.Resources.Devices = nil
		}
	}

	out, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		log.Debugf("Failed to marshal spec: %v", err)
		return
	}
	log.Debugf("Spec:\n%s", out)
}

// ReadSpec reads an OCI runtime spec from the given bundle directory.
func ReadSpec(bundleDir string) (*specs.Spec, error) {
	// The spec file must be named "config.json" inside the bundle directory.
	path := filepath.Join(bundleDir, "config.json")
	specBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading spec from file %q: %v", path, err)
	}
	var spec specs.Spec
	if err := json.Unmarshal(specBytes, &spec); err != nil {
		return nil, fmt.Errorf("error unmarshaling spec from file %q: %v\n %s", path, err, string(specBytes))
	}
	return &spec, nil
}

// Overrides returns the domain parameters carried by the spec's annotations.
// Annotations that are not domain parameters are skipped.
func Overrides(spec *specs.Spec) aslr.Overrides {
	o := aslr.Overrides{}
	for annotation, val := range spec.Annotations {
		if annotation == domainAnnotation || annotation == parentAnnotation {
			continue
		}
		if !strings.HasPrefix(annotation, annotationPrefix+"hardening.") {
			continue
		}
		name := annotation[len(annotationPrefix):]
		log.Infof("Overriding domain parameter: %s=%q", name, val)
		o[name] = val
	}
	return o
}

// DomainName returns the name of the domain for the container described by
// spec, falling back to its hostname and then to the bundle directory name.
func DomainName(spec *specs.Spec, bundleDir string) string {
	if name, ok := spec.Annotations[domainAnnotation]; ok && name != "" {
		return name
	}
	if spec.Hostname != "" {
		return spec.Hostname
	}
	return filepath.Base(filepath.Clean(bundleDir))
}

// ParentName returns the name of the domain the container's domain must be
// attached to, or the root's name.
func ParentName(spec *specs.Spec) string {
	if name, ok := spec.Annotations[parentAnnotation]; ok && name != "" {
		return name
	}
	return aslr.RootDomainName
}

// CheckOverrides returns an error if o would lower any status below the
// parent's. Statuses are ordered by how much of the image population they
// randomize: disabled, opt-in, opt-out, force-enabled.
func CheckOverrides(conf *config.Config, parent aslr.Policy, o aslr.Overrides) error {
	if conf.AllowAnnotationOverride {
		return nil
	}
	for _, f := range []aslr.Feature{aslr.FeatureASLR, aslr.FeatureCompatASLR, aslr.FeatureDisallowMap32Bit} {
		v, ok := o[f.Param()]
		if !ok {
			continue
		}
		s, err := aslr.ParseStatus(v)
		if err != nil {
			return fmt.Errorf("annotation %s%s: %w", annotationPrefix, f.Param(), err)
		}
		if s < parent.Get(f) {
			return fmt.Errorf("lowering %s from %v to %v requires flag %q to be enabled", f.Param(), parent.Get(f), s, "allow-annotation-override")
		}
	}
	return nil
}

// DebugLogFile opens a log file using 'logPattern' as location. If
// 'logPattern' ends with '/', it's used as a directory with default file
// name.
// 'logPattern' can contain variables that are substituted:
//   - %TIMESTAMP%: is replaced with a timestamp using the following format:
//     <yyyymmdd-hhmmss.uuuuuu>
//   - %COMMAND%: is replaced with 'command'
func DebugLogFile(logPattern, command string) (*os.File, error) {
	if strings.HasSuffix(logPattern, "/") {
		// Default format: <debug-log>/paxctl.log.<yyyymmdd-hhmmss.uuuuuu>.<command>.txt
		logPattern += "paxctl.log.%TIMESTAMP%.%COMMAND%.txt"
	}
	logPattern = strings.Replace(logPattern, "%TIMESTAMP%", time.Now().Format("20060102-150405.000000"), -1)
	logPattern = strings.Replace(logPattern, "%COMMAND%", command, -1)

	dir := filepath.Dir(logPattern)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %v", dir, err)
	}
	return os.OpenFile(logPattern, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0664)
}

// IsDebugCommand returns true if the command should be debugged or not, based
// on the current configuration.
func IsDebugCommand(conf *config.Config, command string) bool {
	if len(conf.DebugCommand) == 0 {
		// Debug everything by default.
		return true
	}
	filter := conf.DebugCommand
	rv := true
	if filter[0] == '!' {
		// Negate the match, e.g. !status should log all, but "status".
		filter = filter[1:]
		rv = false
	}
	for _, cmd := range strings.Split(filter, ",") {
		if cmd == command {
			return rv
		}
	}
	return !rv
}
