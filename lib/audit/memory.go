// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"slices"
	"sync"
)

// MemorySink keeps records in memory. Used by tests and by callers
// that inspect traffic in-process.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	changed chan struct{}
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{changed: make(chan struct{})}
}

// Append stores a copy of record.
func (s *MemorySink) Append(record Record) error {
	record.Payload = slices.Clone(record.Payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

// Records returns a snapshot of every record appended so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Changed returns a channel that is closed on the next Append. Tests
// select on it instead of polling Records.
func (s *MemorySink) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}
