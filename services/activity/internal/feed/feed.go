// Package feed keeps the most recent platform events in memory for the admin activity view.
package feed

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rrucricket/attendance/pkg/events"
)

type Entry struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Feed is a fixed-size ring of entries. Safe for concurrent use.
type Feed struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 200
	}
	return &Feed{entries: make([]Entry, capacity)}
}

// Append stores msg, evicting the oldest entry when the feed is full.
// Payloads that are not JSON are kept as a JSON string.
func (f *Feed) Append(msg *events.Message) {
	payload := json.RawMessage(msg.Data)
	if !json.Valid(msg.Data) {
		payload, _ = json.Marshal(string(msg.Data))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[f.next] = Entry{
		ID:         msg.ID,
		Subject:    msg.Subject,
		Payload:    payload,
		ReceivedAt: msg.Timestamp,
	}
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to limit entries, newest first. A non-empty prefix keeps
// only subjects starting with it.
func (f *Feed) Recent(limit int, prefix string) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	size := f.next
	if f.full {
		size = len(f.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= size && len(out) < limit; i++ {
		e := f.entries[(f.next-i+len(f.entries))%len(f.entries)]
		if prefix != "" && !strings.HasPrefix(e.Subject, prefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}
