// Package monitor ingests raw chain transactions, deduplicates them,
// classifies them into trade intents and fans matches out to registered
// listeners.
package monitor

import (
	"strings"
	"sync"
)

// ProcessedSet is a bounded set of transaction hashes that have already
// been classified. The same hash commonly arrives twice (pending feed,
// then confirmed feed); the set admits it once. Eviction is approximate
// FIFO via a ring buffer. Dedup is in-process only: it does not provide
// exactly-once semantics across restarts.
type ProcessedSet struct {
	mu       sync.Mutex
	capacity int
	ring     []string
	next     int
	seen     map[string]struct{}
}

// NewProcessedSet creates a set with the given capacity.
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity < 1 {
		capacity = 1
	}
	return &ProcessedSet{
		capacity: capacity,
		ring:     make([]string, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldProcess reports true exactly once per hash until it is evicted,
// recording the hash as seen in the same critical section.
func (s *ProcessedSet) ShouldProcess(hash string) bool {
	h := strings.ToLower(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[h]; ok {
		return false
	}
	s.insertLocked(h)
	return true
}

// RecordSeen marks a hash as processed without the membership check.
func (s *ProcessedSet) RecordSeen(hash string) {
	h := strings.ToLower(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[h]; ok {
		return
	}
	s.insertLocked(h)
}

func (s *ProcessedSet) insertLocked(h string) {
	// Evict the oldest slot before admitting when full.
	if old := s.ring[s.next]; old != "" {
		delete(s.seen, old)
	}
	s.ring[s.next] = h
	s.seen[h] = struct{}{}
	s.next = (s.next + 1) % s.capacity
}

// Len returns the current number of tracked hashes.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
