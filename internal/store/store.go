// Package store is the durable key/value layer. Each logical dataset
// (restaurants, orders, ...) is one row holding its JSON encoding.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Logical keys of the persisted layout.
const (
	KeyRestaurants               = "restaurants"
	KeySystemSettings            = "systemSettings"
	KeyCurrentRestaurantID       = "currentRestaurantId"
	KeyUsers                     = "users"
	KeyMenuItems                 = "menuItems"
	KeyOrders                    = "orders"
	KeyCustomers                 = "customers"
	KeyInventoryItems            = "inventoryItems"
	KeySuppliers                 = "suppliers"
	KeyPurchases                 = "purchases"
	KeyLastManualBackupTimestamp = "lastManualBackupTimestamp"
)

// Entry is one persisted dataset. Value is a text column: SQLite gives a
// JSON column numeric affinity and would turn a bare number into an INTEGER.
type Entry struct {
	Key       string         `gorm:"column:entry_key;primaryKey;size:64"`
	Value     datatypes.JSON `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// Store reads and writes entries through gorm.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

// Save encodes v and upserts it under key. The write is durable once Save returns.
func (s *Store) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	entry := Entry{Key: key, Value: datatypes.JSON(raw), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}

// Load decodes the value stored under key into dest. found is false when
// the key has never been written; dest is left untouched in that case.
func (s *Store) Load(ctx context.Context, key string, dest any) (found bool, err error) {
	var entry Entry
	err = s.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

// LoadOr is Load for callers that must not fail: any storage or decoding
// error is logged and dest is reset to fallback.
func LoadOr[T any](ctx context.Context, s *Store, key string, dest *T, fallback T) {
	var decoded T
	found, err := s.Load(ctx, key, &decoded)
	if err != nil {
		s.log.Error("load failed, using default", zap.String("key", key), zap.Error(err))
	}
	if err != nil || !found {
		*dest = fallback
		return
	}
	*dest = decoded
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in alphabetical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&Entry{}).Order("entry_key").Pluck("entry_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("store: keys: %w", err)
	}
	return keys, nil
}
