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
	"flag"
	"fmt"
	"reflect"
	"strconv"

	"gvisor.dev/pax/pkg/aslr"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	// Debugging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs. If it ends with '/', log files are created inside the directory with default names. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("debug-command", "", `comma-separated list of commands to be debugged if --debug-log is also set. Empty means debug all. "!" negates the expression. E.g. "activate,sample" or "!status"`)
	flagSet.String("debug-log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr.")

	// Flags that control the ASLR policy.
	flagSet.Var(archPtr(HostArch()), "arch", "selects the default randomization tables: lp64 or ilp32. Defaults to the host's.")
	flagSet.Bool("harden", false, "use the hardened defaults: disallow MAP_32BIT mappings unless the image opts out.")
	flagSet.String("tunables", "", "path to a TOML file with hardening.pax.aslr.* and hardening.pax.disallow_map32bit.* tunables.")
	flagSet.String("domains", "", "path to a YAML file describing the domain tree.")
	flagSet.Bool("allow-annotation-override", false, "allow OCI annotations to lower a domain's policy below its parent's.")
}

// archFlag is a flag.Value for aslr.Arch.
type archFlag aslr.Arch

func archPtr(a aslr.Arch) *archFlag {
	f := archFlag(a)
	return &f
}

// Set implements flag.Value.
func (a *archFlag) Set(v string) error {
	switch v {
	case aslr.LP64.String():
		*a = archFlag(aslr.LP64)
	case aslr.ILP32.String():
		*a = archFlag(aslr.ILP32)
	default:
		return fmt.Errorf("invalid arch %q, must be %q or %q", v, aslr.LP64, aslr.ILP32)
	}
	return nil
}

// String implements flag.Value.
func (a *archFlag) String() string {
	return aslr.Arch(*a).String()
}

// Get implements flag.Getter.
func (a *archFlag) Get() any {
	return aslr.Arch(*a)
}

// NewFromFlags creates a new Config with values coming from command line flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	for _, f := range c.fields() {
		fl := flagSet.Lookup(f.name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", f.name))
		}
		if f.value == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, f.value))
	}
	return rv
}

type field struct {
	name, value string
}

// fields returns the flag name and current value of every flag field.
func (c *Config) fields() []field {
	var rv []field
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		rv = append(rv, field{name: name, value: getVal(obj.Field(i))})
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
