// Package ledger records which booking alerts have already been delivered.
package ledger

import (
	"github.com/patrickmn/go-cache"

	"parking-lifecycle-backend/internal/lifecycle"
)

// Ledger guarantees at-most-once delivery per (booking, alert kind).
type Ledger interface {
	HasFired(bookingID string, kind lifecycle.AlertKind) bool
	MarkFired(bookingID string, kind lifecycle.AlertKind)
	// Claim atomically checks and marks the pair. It returns false if the
	// pair was already fired or claimed by a concurrent scan.
	Claim(bookingID string, kind lifecycle.AlertKind) bool
	// Release undoes a Claim whose delivery failed so a later scan retries it.
	Release(bookingID string, kind lifecycle.AlertKind)
	Len() int
}

// Memory is a process-lifetime ledger. Entries never expire.
type Memory struct {
	entries *cache.Cache
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	// A zero cleanup interval disables the janitor goroutine.
	return &Memory{entries: cache.New(cache.NoExpiration, 0)}
}

func key(bookingID string, kind lifecycle.AlertKind) string {
	return bookingID + "|" + string(kind)
}

func (m *Memory) HasFired(bookingID string, kind lifecycle.AlertKind) bool {
	_, found := m.entries.Get(key(bookingID, kind))
	return found
}

func (m *Memory) MarkFired(bookingID string, kind lifecycle.AlertKind) {
	m.entries.Set(key(bookingID, kind), struct{}{}, cache.NoExpiration)
}

// Claim relies on cache.Add failing when the key already exists; go-cache
// performs the lookup and the insert under a single lock.
func (m *Memory) Claim(bookingID string, kind lifecycle.AlertKind) bool {
	return m.entries.Add(key(bookingID, kind), struct{}{}, cache.NoExpiration) == nil
}

func (m *Memory) Release(bookingID string, kind lifecycle.AlertKind) {
	m.entries.Delete(key(bookingID, kind))
}

func (m *Memory) Len() int {
	return m.entries.ItemCount()
}
