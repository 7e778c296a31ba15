// Package store keeps document records: where the original upload lives,
// the current artifact and the placement that produced it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Common errors
var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// Status is the embedding status of a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEmbedding Status = "embedding"
	StatusEmbedded  Status = "embedded"
	StatusFailed    Status = "failed"
)

// Record is one stored document.
type Record struct {
	ID           string               `json:"id" bson:"_id"`
	SourcePath   string               `json:"source_path" bson:"source_path"`
	ArtifactPath string               `json:"artifact_path,omitempty" bson:"artifact_path,omitempty"`
	Placement    *placement.Canonical `json:"placement,omitempty" bson:"placement,omitempty"`
	Status       Status               `json:"status" bson:"status"`
	Digest       string               `json:"digest,omitempty" bson:"digest,omitempty"`
	Strategy     string               `json:"strategy,omitempty" bson:"strategy,omitempty"`
	DeletedAt    *time.Time           `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at" bson:"updated_at"`
}

// Deleted reports whether the record is soft-deleted.
func (r *Record) Deleted() bool { return r.DeletedAt != nil }

// Commit is the result of a successful embed. It is applied in full or not
// at all.
type Commit struct {
	ArtifactPath string
	Placement    placement.Canonical
	Digest       string
	Strategy     string
}

// Store persists document records.
type Store interface {
	// Get returns a record, including soft-deleted ones.
	Get(ctx context.Context, id string) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	// Restore clears the soft-delete marker.
	Restore(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) error
	// Commit atomically sets the artifact, placement, digest and status
	// embedded. It returns the artifact path it replaced.
	Commit(ctx context.Context, id string, c Commit) (string, error)
	SoftDelete(ctx context.Context, id string) error
}

// Error is a failed store operation.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind implements errkind.Kinded.
func (e *Error) Kind() errkind.Kind {
	if errors.Is(e.Err, ErrNotFound) {
		return errkind.NotFound
	}
	return errkind.Storage
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), now: time.Now}
}

func (m *Memory) update(op, id string, fn func(*Record) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return &Error{Op: op, ID: id, Err: ErrNotFound}
	}
	if err := fn(&rec); err != nil {
		return &Error{Op: op, ID: id, Err: err}
	}
	rec.UpdatedAt = m.now()
	m.records[id] = rec
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, &Error{Op: "get", ID: id, Err: ErrNotFound}
	}
	if rec.Placement != nil {
		p := *rec.Placement
		rec.Placement = &p
	}
	return &rec, nil
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return &Error{Op: "create", ID: rec.ID, Err: ErrExists}
	}
	r := *rec
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.UpdatedAt = m.now()
	m.records[r.ID] = r
	return nil
}

// Restore implements Store.
func (m *Memory) Restore(_ context.Context, id string) error {
	return m.update("restore", id, func(r *Record) error {
		r.DeletedAt = nil
		return nil
	})
}

// SetStatus implements Store.
func (m *Memory) SetStatus(_ context.Context, id string, status Status) error {
	return m.update("set status", id, func(r *Record) error {
		r.Status = status
		return nil
	})
}

// Commit implements Store.
func (m *Memory) Commit(_ context.Context, id string, c Commit) (string, error) {
	var previous string
	err := m.update("commit", id, func(r *Record) error {
		previous = r.ArtifactPath
		p := c.Placement
		r.ArtifactPath = c.ArtifactPath
		r.Placement = &p
		r.Digest = c.Digest
		r.Strategy = c.Strategy
		r.Status = StatusEmbedded
		return nil
	})
	return previous, err
}

// SoftDelete implements Store.
func (m *Memory) SoftDelete(_ context.Context, id string) error {
	return m.update("soft delete", id, func(r *Record) error {
		now := m.now()
		r.DeletedAt = &now
		return nil
	})
}
