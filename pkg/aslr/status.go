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

// Package aslr implements the PaX address space layout randomization policy
// and the per-process random deltas it produces.
//
// Policy is expressed as a Status per isolation domain. When a process image
// is activated the domain's Status is combined with the mode bits carried by
// the image to produce a Flags value. If that marks randomization active, a
// State is generated holding one random delta per RegionKind, and the virtual
// memory code consults the State every time it is about to settle on an
// address for one of those regions.
package aslr

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the configured state of a PaX feature.
type Status int32

// Status values. The numeric values are part of the tunable and domain
// parameter interface and must not change.
const (
	// Disabled turns the feature off regardless of the image's request.
	Disabled Status = 0

	// OptIn enables the feature only for images that ask for it.
	OptIn Status = 1

	// OptOut enables the feature unless the image asks for it to be off.
	OptOut Status = 2

	// ForceEnabled turns the feature on regardless of the image's request.
	ForceEnabled Status = 3
)

var statusNames = [...]string{
	Disabled:     "disabled",
	OptIn:        "opt-in",
	OptOut:       "opt-out",
	ForceEnabled: "force-enabled",
}

// Valid returns true if s is one of the four defined states.
func (s Status) Valid() bool {
	return s >= Disabled && s <= ForceEnabled
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int32(s))
	}
	return statusNames[s]
}

// ValidateStatus returns the status that must be used in place of s, and
// whether s was valid. Anything outside the four defined states is replaced
// by ForceEnabled.
func ValidateStatus(s Status) (Status, bool) {
	if !s.Valid() {
		return ForceEnabled, false
	}
	return s, true
}

// ParseStatus parses either the numeric form ("2") or the name ("opt-out")
// of a Status. Out-of-range values are rejected with ErrInvalidStatus.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 32); err == nil {
		s := Status(n)
		if !s.Valid() {
			return s, fmt.Errorf("%w: %d", ErrInvalidStatus, n)
		}
		return s, nil
	}
	for i, name := range statusNames {
		if strings.EqualFold(v, name) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int32(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
