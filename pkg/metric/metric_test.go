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

package metric

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryNameInUse(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewUint64Metric("/foo", "a metric"); err != nil {
		t.Fatalf("NewUint64Metric got err %v want nil", err)
	}
	if _, err := r.NewUint64Metric("/foo", "another"); !errors.Is(err, ErrNameInUse) {
		t.Errorf("NewUint64Metric got err %v want %v", err, ErrNameInUse)
	}
}

func TestFieldValidation(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewUint64Metric("/empty", "", NewField("kind")); !errors.Is(err, ErrFieldHasNoAllowedValues) {
		t.Errorf("got err %v want %v", err, ErrFieldHasNoAllowedValues)
	}
	if _, err := r.NewUint64Metric("/illegal", "", NewField("kind", "a,b")); !errors.Is(err, ErrFieldValueContainsIllegalChar) {
		t.Errorf("got err %v want %v", err, ErrFieldValueContainsIllegalChar)
	}
}

func TestIncrementAndSnapshot(t *testing.T) {
	r := NewRegistry()
	plain, err := r.NewUint64Metric("/a", "plain")
	if err != nil {
		t.Fatal(err)
	}
	fielded, err := r.NewUint64Metric("/b", "fielded",
		NewField("feature", "aslr", "compat"),
		NewField("result", "on", "off"))
	if err != nil {
		t.Fatal(err)
	}

	plain.Increment()
	plain.IncrementBy(2)
	fielded.Increment("compat", "off")
	fielded.Increment("aslr", "on")
	fielded.Increment("aslr", "on")

	if got := fielded.Value("aslr", "off"); got != 0 {
		t.Errorf("Value(aslr, off) = %d, want 0", got)
	}
	want := []Sample{
		{Name: "/a", Value: 3},
		{Name: "/b", Fields: []string{"feature=aslr", "result=on"}, Value: 2},
		{Name: "/b", Fields: []string{"feature=compat", "result=off"}, Value: 1},
	}
	if diff := cmp.Diff(want, r.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupPanicsOnBadValue(t *testing.T) {
	r := NewRegistry()
	m, err := r.NewUint64Metric("/c", "", NewField("feature", "aslr"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Increment with unknown field value did not panic")
		}
	}()
	m.Increment("bogus")
}
