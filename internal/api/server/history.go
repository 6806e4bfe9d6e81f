package server

import (
	"sync"
	"time"
)

// ApplyEntry records one profile application.
type ApplyEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	ProfileID   string    `json:"profile_id"`
	ProfileName string    `json:"profile_name"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Duration    int64     `json:"duration_ms"`
	ClientIP    string    `json:"client_ip"`
}

// History is a ring buffer of recent applies.
type History struct {
	mu      sync.RWMutex
	entries []ApplyEntry
	maxSize int
	nextID  int64
}

// NewHistory creates a history holding at most maxSize entries.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &History{
		entries: make([]ApplyEntry, 0, maxSize),
		maxSize: maxSize,
		nextID:  1,
	}
}

// Add stores entry, evicting the oldest one when full, and returns its ID.
func (h *History) Add(entry ApplyEntry) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.ID = h.nextID
	h.nextID++

	if len(h.entries) >= h.maxSize {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, entry)
	return entry.ID
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []ApplyEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]ApplyEntry, n)
	for i := 0; i < n; i++ {
		out[i] = h.entries[len(h.entries)-1-i]
	}
	return out
}

// Since returns the entries newer than sinceID, newest first.
func (h *History) Since(sinceID int64) []ApplyEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []ApplyEntry
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ID <= sinceID {
			break
		}
		out = append(out, h.entries[i])
	}
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
