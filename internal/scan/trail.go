package scan

import (
	"sync"
	"time"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// TrailEntry is one scan recorded for operator review.
type TrailEntry struct {
	BagNumber int              `json:"bag_number,omitempty"`
	Result    enums.ScanResult `json:"result"`
	Units     int              `json:"units"`
	ScannedAt time.Time        `json:"scanned_at"`
}

// Trail is a fixed-size, in-memory scan history. It is session scoped and
// never a source of truth; clearing it touches no persisted state.
type Trail struct {
	mu      sync.Mutex
	entries []TrailEntry
	size    int
}

// NewTrail builds a trail keeping at most size entries.
func NewTrail(size int) *Trail {
	if size <= 0 {
		size = 50
	}
	return &Trail{size: size}
}

// Append records a scan, evicting the oldest entry once full.
func (t *Trail) Append(entry TrailEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > t.size {
		t.entries = t.entries[len(t.entries)-t.size:]
	}
}

// Entries returns the trail newest first.
func (t *Trail) Entries() []TrailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrailEntry, len(t.entries))
	for i, entry := range t.entries {
		out[len(t.entries)-1-i] = entry
	}
	return out
}

// Reset clears the trail.
func (t *Trail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
