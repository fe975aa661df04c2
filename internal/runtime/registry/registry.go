// Package registry is the authoritative map from management name to managed
// object.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// Handle is the capability surface of a managed object. Implementations
// dispatch on a fixed table per kind.
type Handle interface {
	Kind() naming.Kind
	AttributeNames() []string
	Attribute(name string) (any, error)
	Invoke(ctx context.Context, op string, args ...any) (any, error)
}

// Record is one registration. Records are immutable once stored.
type Record struct {
	Name         naming.Name
	Kind         naming.Kind
	Handle       Handle
	Stats        *stats.Statistics
	RegisteredAt time.Time
}

// Registry is safe for concurrent use. Readers never observe a record that
// is not fully built.
type Registry struct {
	mu      sync.RWMutex
	records map[naming.Name]*Record
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[naming.Name]*Record),
		now:     time.Now,
	}
}

// Register stores rec under rec.Name. Registering the same handle twice is an
// idempotent success returning the existing record; a different handle under
// a taken name fails with ErrNameClash.
func (r *Registry) Register(rec Record) (*Record, error) {
	if rec.Handle == nil {
		return nil, fmt.Errorf("register %s: %w: nil handle", rec.Name, flowerrors.ErrInvalidArgument)
	}
	if rec.Name.Kind != rec.Handle.Kind() {
		return nil, fmt.Errorf("register %s: %w: handle is %s", rec.Name, flowerrors.ErrCapabilityMismatch, rec.Handle.Kind())
	}
	rec.Kind = rec.Name.Kind
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = r.now()
	}
	stored := &rec

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[rec.Name]; ok {
		if existing.Handle == rec.Handle {
			return existing, nil
		}
		return nil, fmt.Errorf("register %s: %w", rec.Name, flowerrors.ErrNameClash)
	}
	r.records[rec.Name] = stored
	return stored, nil
}

// Unregister removes name. It reports whether a record was removed; removing
// an absent name is a no-op.
func (r *Registry) Unregister(name naming.Name) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[name]; !ok {
		return false
	}
	delete(r.records, name)
	return true
}

// UnregisterContext removes every record of the given context and returns how
// many were removed.
func (r *Registry) UnregisterContext(contextName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name := range r.records {
		if name.Context == contextName {
			delete(r.records, name)
			removed++
		}
	}
	return removed
}

// IsRegistered reports whether name is present.
func (r *Registry) IsRegistered(name naming.Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[name]
	return ok
}

// Lookup returns the record stored under name.
func (r *Registry) Lookup(name naming.Name) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Records returns every record ordered by name.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Record) int {
		return strings.Compare(a.Name.String(), b.Name.String())
	})
	return out
}

// Query returns the names matching p in order. The result is never nil.
func (r *Registry) Query(p Pattern) []naming.Name {
	r.mu.RLock()
	out := make([]naming.Name, 0)
	for name := range r.records {
		if p.Matches(name) {
			out = append(out, name)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b naming.Name) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}
