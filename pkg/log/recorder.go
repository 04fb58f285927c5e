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

package log

import (
	"fmt"
	"sync"
)

// Entry is a single message captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
}

// Recorder is a Logger that keeps every message in memory. It is used by
// tests that need to assert on diagnostics.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) record(level Level, format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, v...)})
}

// Debugf implements Logger.Debugf.
func (r *Recorder) Debugf(format string, v ...any) { r.record(Debug, format, v...) }

// Infof implements Logger.Infof.
func (r *Recorder) Infof(format string, v ...any) { r.record(Info, format, v...) }

// Warningf implements Logger.Warningf.
func (r *Recorder) Warningf(format string, v ...any) { r.record(Warning, format, v...) }

// IsLogging implements Logger.IsLogging.
func (*Recorder) IsLogging(Level) bool { return true }

// Entries returns a copy of the recorded messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Warnings returns the messages recorded at Warning level.
func (r *Recorder) Warnings() []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == Warning {
			out = append(out, e.Message)
		}
	}
	return out
}
