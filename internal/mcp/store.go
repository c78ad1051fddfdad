package mcp

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/aicanvas/internal/page"
)

// Snapshot is one rendered page.
type Snapshot struct {
	ID        string     `json:"id"`
	Page      *page.Page `json:"page"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// PageStore holds the last rendered page.
type PageStore interface {
	// Current returns the last snapshot, or nil before the first render.
	Current() *Snapshot
	// Replace stores p as the current page and returns the new snapshot.
	Replace(p *page.Page) *Snapshot
}

// MemoryStore is a process-wide PageStore. Writes are last-write-wins;
// overlapping replaces are not merged.
type MemoryStore struct {
	cur atomic.Pointer[Snapshot]
	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Current() *Snapshot {
	return s.cur.Load()
}

func (s *MemoryStore) Replace(p *page.Page) *Snapshot {
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Page:      p,
		UpdatedAt: s.now().UTC(),
	}
	s.cur.Store(snap)
	return snap
}

// CurrentPage returns the stored page or nil.
func CurrentPage(s PageStore) *page.Page {
	if snap := s.Current(); snap != nil {
		return snap.Page
	}
	return nil
}
