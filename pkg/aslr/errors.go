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
	"golang.org/x/sys/unix"

	"gvisor.dev/pax/pkg/errors"
)

var (
	// ErrInvalidStatus is returned for a Status outside the four defined
	// states.
	ErrInvalidStatus = errors.New(unix.EINVAL, "invalid PaX feature status")

	// ErrInvalidParam is returned for a domain parameter that is not
	// recognized or not supported on this platform.
	ErrInvalidParam = errors.New(unix.EINVAL, "invalid PaX parameter")

	// ErrUnknownDomain is returned when a DomainID does not name an attached
	// domain.
	ErrUnknownDomain = errors.New(unix.ESRCH, "no such domain")

	// ErrDomainExists is returned when attaching a domain whose name is taken.
	ErrDomainExists = errors.New(unix.EEXIST, "domain already exists")

	// ErrDomainBusy is returned when detaching a domain that still has
	// children.
	ErrDomainBusy = errors.New(unix.EBUSY, "domain has child domains")

	// ErrRootDomain is returned for operations the root domain does not
	// support.
	ErrRootDomain = errors.New(unix.EPERM, "operation not permitted on the root domain")
)
