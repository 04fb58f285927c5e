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

// Package config provides basic infrastructure to set configuration settings
// for paxctl. Each setting is registered as a command line flag; the ASLR
// tunables and the domain tree are read from files named by flags.
package config

import (
	"fmt"
	"runtime"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/log"
)

// Config holds configuration that is not part of the ASLR tunables.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name.
//  3. Register a new flag in flags.go, with the same name and add a
//     description.
//  4. Add any necessary validation into validate().
type Config struct {
	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// DebugLog is the path to log debug information to, if not empty.
	DebugLog string `flag:"debug-log"`

	// DebugCommand is a comma-separated list of commands to be debugged if
	// --debug-log is also set. Empty means debug all. "!" negates the
	// expression. E.g. "activate,sample" or "!status".
	DebugCommand string `flag:"debug-command"`

	// DebugLogFormat is the log format for debug.
	DebugLogFormat string `flag:"debug-log-format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Arch selects the default tables.
	Arch aslr.Arch `flag:"arch"`

	// Harden switches the defaults to the hardened set: low address class
	// mappings are refused unless the image opts out.
	Harden bool `flag:"harden"`

	// Tunables is the path of a TOML file overriding the ASLR defaults.
	Tunables string `flag:"tunables"`

	// Domains is the path of a YAML file describing the domain tree.
	Domains string `flag:"domains"`

	// AllowAnnotationOverride lets OCI annotations relax a domain's policy
	// below its parent's.
	AllowAnnotationOverride bool `flag:"allow-annotation-override"`
}

func (c *Config) validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"log-format", c.LogFormat},
		{"debug-log-format", c.DebugLogFormat},
	} {
		switch f.value {
		case "text", "json":
		default:
			return fmt.Errorf("invalid %s %q, must be 'text' or 'json'", f.name, f.value)
		}
	}
	switch c.Arch {
	case aslr.LP64, aslr.ILP32:
	default:
		return fmt.Errorf("invalid arch %v", c.Arch)
	}
	return nil
}

// HostArch returns the Arch of the running binary.
func HostArch() aslr.Arch {
	switch runtime.GOARCH {
	case "386", "arm", "mips", "mipsle":
		return aslr.ILP32
	default:
		return aslr.LP64
	}
}

// ASLR returns the ASLR configuration: the defaults for c.Arch, hardened if
// requested, with the tunables file applied on top.
func (c *Config) ASLR() (*aslr.Config, error) {
	ac := aslr.DefaultConfig(c.Arch)
	if c.Harden {
		ac.Harden()
	}
	if c.Tunables != "" {
		t, err := LoadTunables(c.Tunables)
		if err != nil {
			return nil, err
		}
		if err := t.Apply(ac); err != nil {
			return nil, fmt.Errorf("applying tunables from %q: %w", c.Tunables, err)
		}
	}
	return ac, nil
}

// Log logs the configuration.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.fields() {
		log.Infof("\t%s: %s", f.name, f.value)
	}
}
