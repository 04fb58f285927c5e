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
	"bytes"
	"encoding/binary"
	"io"
)

// words returns a source that yields ws in order and then io.EOF.
func words(ws ...uint64) io.Reader {
	var buf bytes.Buffer
	for _, w := range ws {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], w)
		buf.Write(b[:])
	}
	return &buf
}

// repeat is a source that yields the same word forever.
type repeat uint64

// Read implements io.Reader.Read.
func (r repeat) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(uint64(r) >> (8 * (i % 8)))
	}
	return len(p), nil
}
