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

// Package errors holds the standardized error definition for the PaX
// hardening packages.
package errors

import (
	"golang.org/x/sys/unix"
)

// Error represents an errno with a descriptive message. Values are compared
// by identity, so packages declare them once as sentinels and wrap them with
// fmt.Errorf("...: %w", err) to add context.
type Error struct {
	errno   unix.Errno
	message string
}

// New creates a new *Error.
func New(err unix.Errno, message string) *Error {
	return &Error{
		errno:   err,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the underlying errno value.
func (e *Error) Errno() unix.Errno { return e.errno }

// ToErrno walks the wrap chain of err and returns the errno of the first
// *Error found. ok is false if err does not carry one.
func ToErrno(err error) (errno unix.Errno, ok bool) {
	for err != nil {
		if e, isErr := err.(*Error); isErr {
			return e.errno, true
		}
		u, canUnwrap := err.(interface{ Unwrap() error })
		if !canUnwrap {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
