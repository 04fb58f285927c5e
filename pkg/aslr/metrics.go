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
	"gvisor.dev/pax/pkg/metric"
)

var (
	policyErrors = metric.MustCreateNewUint64Metric(
		"/aslr/policy_errors",
		"Number of invalid PaX statuses replaced with the fail-safe value.",
		metric.NewField("feature", FeatureASLR.String(), FeatureCompatASLR.String(), FeatureDisallowMap32Bit.String()))

	vdsoFallbacks = metric.MustCreateNewUint64Metric(
		"/aslr/vdso_fallbacks",
		"Number of address spaces whose vdso was left unrandomized.")

	activations = metric.MustCreateNewUint64Metric(
		"/aslr/activations",
		"Number of images resolved, by whether ASLR ended up active.",
		metric.NewField("result", "aslr", "noaslr"))
)
