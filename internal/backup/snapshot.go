// Package backup takes and restores full-dataset snapshots: scheduled
// auto-backups with bounded retention, manual exports and imports.
package backup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/diewo77/foodcore/internal/models"
)

// ErrSnapshotNotFound is returned when a snapshot id is unknown.
var ErrSnapshotNotFound = errors.New("backup: snapshot not found")

// Snapshot is one auto-backup. ID is the capture time in unix milliseconds.
type Snapshot struct {
	ID   int64          `json:"id"`
	Data models.Dataset `json:"data"`
}

// CapturedAt converts the id back to a time.
func (s Snapshot) CapturedAt() time.Time { return time.UnixMilli(s.ID).UTC() }

// Summary is the listing view of a snapshot.
type Summary struct {
	ID          int64            `json:"id"`
	CapturedAt  models.Timestamp `json:"capturedAt"`
	Restaurants int              `json:"restaurants"`
	Orders      int              `json:"orders"`
}

func (s Snapshot) Summary() Summary {
	return Summary{
		ID:          s.ID,
		CapturedAt:  models.At(s.CapturedAt()),
		Restaurants: len(s.Data.Restaurants),
		Orders:      len(s.Data.Orders),
	}
}

// SnapshotStore is an append-only keyed store of snapshots.
type SnapshotStore interface {
	Add(ctx context.Context, snap Snapshot) error
	// List returns every snapshot, newest first.
	List(ctx context.Context) ([]Snapshot, error)
	Get(ctx context.Context, id int64) (Snapshot, error)
	Delete(ctx context.Context, id int64) error
	// PruneBefore deletes snapshots whose id is strictly less than cutoff
	// and reports how many were removed.
	PruneBefore(ctx context.Context, cutoff int64) (int, error)
}

// MemoryStore keeps snapshots in process memory. Used in tests and when no
// durable backend is available.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[int64]models.Dataset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[int64]models.Dataset)}
}

func (m *MemoryStore) Add(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap.Data.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.snaps))
	for id, data := range m.snaps {
		out = append(out, Snapshot{ID: id, Data: data.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snaps[id]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return Snapshot{ID: id, Data: data.Clone()}, nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func (m *MemoryStore) PruneBefore(_ context.Context, cutoff int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id := range m.snaps {
		if id < cutoff {
			delete(m.snaps, id)
			n++
		}
	}
	return n, nil
}
