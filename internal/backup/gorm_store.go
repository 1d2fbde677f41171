package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is the auto_backups row.
type Record struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

func (Record) TableName() string { return "auto_backups" }

// GormStore keeps snapshots in the application database.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormStore{db: db, log: log.Named("snapshots")}
}

func (s *GormStore) Add(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("backup: encode snapshot: %w", err)
	}
	rec := Record{ID: snap.ID, Data: datatypes.JSON(b), CreatedAt: snap.CapturedAt()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("backup: insert snapshot %d: %w", snap.ID, err)
	}
	return nil
}

// List returns the snapshots newest first. Records that cannot be decoded
// are logged and skipped.
func (s *GormStore) List(ctx context.Context) ([]Snapshot, error) {
	var recs []Record
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("backup: list snapshots: %w", err)
	}
	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		snap, err := rec.snapshot()
		if err != nil {
			s.log.Error("skipping unreadable snapshot", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (Snapshot, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: get snapshot %d: %w", id, err)
	}
	return rec.snapshot()
}

func (s *GormStore) Delete(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&Record{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("backup: delete snapshot %d: %w", id, err)
	}
	return nil
}

func (s *GormStore) PruneBefore(ctx context.Context, cutoff int64) (int, error) {
	res := s.db.WithContext(ctx).Where("id < ?", cutoff).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("backup: prune snapshots: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r Record) snapshot() (Snapshot, error) {
	data := models.NewDataset()
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return Snapshot{}, fmt.Errorf("backup: decode snapshot %d: %w", r.ID, err)
	}
	return Snapshot{ID: r.ID, Data: data.Clone()}, nil
}
