// Package upload tracks parsed uploads that are waiting for confirmation.
package upload

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrExpired is returned for ids that were never registered, were already
// confirmed, or aged out.
var ErrExpired = errors.New("upload not found or expired")

// Pending is an upload that has been parsed but not yet confirmed.
type Pending struct {
	ID           string
	OwnerID      string
	OriginalName string
	SpoolPath    string
	Size         int64
	Workbook     *sheet.Workbook
	CreatedAt    time.Time

	// state decides who owns the spool file: Take moves it to claimed, the
	// eviction callback to evicted. Only the first transition wins.
	state atomic.Int32
}

const (
	statePending int32 = iota
	stateClaimed
	stateEvicted
)

// Registry holds pending uploads with bounded size and age. When an entry
// is evicted or expires its spool file is removed.
type Registry struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, *Pending]
}

// NewRegistry keeps at most size uploads, each for at most ttl.
func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{lru: expirable.NewLRU[string, *Pending](size, onEvict, ttl)}
}

func onEvict(id string, p *Pending) {
	if !p.state.CompareAndSwap(statePending, stateEvicted) || p.SpoolPath == "" {
		return
	}
	if err := os.Remove(p.SpoolPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("upload: remove spool file", "id", id, "path", p.SpoolPath, "error", err)
		return
	}
	slog.Debug("upload: discarded", "id", id, "name", p.OriginalName)
}

// Put registers p, assigning ID and CreatedAt when unset, and returns the id.
func (r *Registry) Put(p *Pending) string {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Add(p.ID, p)
	return p.ID
}

// Get returns the pending upload without consuming it.
func (r *Registry) Get(id string) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lru.Get(id)
	if !ok {
		return nil, ErrExpired
	}
	return p, nil
}

// Take removes the pending upload and hands its spool file to the caller.
// A second Take for the same id fails, as does a Take racing the entry's
// expiry once the spool file has been removed.
func (r *Registry) Take(id string) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lru.Peek(id)
	if !ok || !p.state.CompareAndSwap(statePending, stateClaimed) {
		return nil, ErrExpired
	}
	r.lru.Remove(id)
	return p, nil
}

// Discard drops the pending upload and deletes its spool file.
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Remove(id)
}

// Len reports how many uploads are pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// Close discards every pending upload.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Purge()
}
