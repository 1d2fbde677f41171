package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidBackup rejects import files that lack the required collections.
var ErrInvalidBackup = errors.New("backup: invalid backup file")

// requiredKeys must be present, as arrays, in every imported file.
var requiredKeys = []string{store.KeyUsers, store.KeyMenuItems, store.KeyOrders}

// Payload is a possibly partial dataset. Nil fields were absent from the
// source and are left untouched by Restore.
type Payload struct {
	Restaurants    *[]models.Restaurant    `json:"restaurants,omitempty"`
	Users          *[]models.User          `json:"users,omitempty"`
	MenuItems      *[]models.MenuItem      `json:"menuItems,omitempty"`
	Orders         *[]models.Order         `json:"orders,omitempty"`
	Customers      *[]models.Customer      `json:"customers,omitempty"`
	InventoryItems *[]models.InventoryItem `json:"inventoryItems,omitempty"`
	Suppliers      *[]models.Supplier      `json:"suppliers,omitempty"`
	Purchases      *[]models.Purchase      `json:"purchases,omitempty"`
	SystemSettings *models.SystemSettings  `json:"systemSettings,omitempty"`
}

// FullPayload wraps a complete dataset.
func FullPayload(d models.Dataset) Payload {
	d = d.Clone()
	return Payload{
		Restaurants:    &d.Restaurants,
		Users:          &d.Users,
		MenuItems:      &d.MenuItems,
		Orders:         &d.Orders,
		Customers:      &d.Customers,
		InventoryItems: &d.InventoryItems,
		Suppliers:      &d.Suppliers,
		Purchases:      &d.Purchases,
		SystemSettings: &d.SystemSettings,
	}
}

// Service implements manual export, import and restore.
type Service struct {
	state     *state.State
	snapshots SnapshotStore
	log       *zap.Logger

	mu           sync.Mutex
	invalidators []func(ctx context.Context)
}

func NewService(st *state.State, snapshots SnapshotStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: st, snapshots: snapshots, log: log.Named("backup")}
}

// OnRestore registers fn to run after every restore, e.g. to log the user out.
func (s *Service) OnRestore(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.invalidators = append(s.invalidators, fn)
	s.mu.Unlock()
}

// Filename is the export file name for the given day.
func Filename(day models.Timestamp) string {
	return "foodcore_backup_" + day.UTC().Format("2006-01-02") + ".json"
}

// Export writes the full dataset as indented JSON and records the manual
// backup time. It returns the suggested file name.
func (s *Service) Export(ctx context.Context, w io.Writer) (string, error) {
	now := s.state.Now()
	data := s.state.Snapshot()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		metrics.Backups.WithLabelValues("manual", "error").Inc()
		return "", fmt.Errorf("backup: export: %w", err)
	}
	s.state.SetLastManualBackup(ctx, now)
	metrics.Backups.WithLabelValues("manual", "ok").Inc()
	s.log.Info("manual backup exported")
	return Filename(models.At(now)), nil
}

// ParseImport validates and decodes an import file. Files whose users,
// menuItems or orders keys are missing or not arrays are rejected with
// ErrInvalidBackup.
func ParseImport(r io.Reader) (Payload, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("backup: read import: %w", err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return Payload{}, ErrInvalidBackup
	}
	for _, key := range requiredKeys {
		v, ok := top[key]
		if !ok || !isArray(v) {
			return Payload{}, fmt.Errorf("%w: %s must be an array", ErrInvalidBackup, key)
		}
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return p, nil
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

// Restore overwrites the collections present in p, persists them, then
// clears the selected tenant and runs the OnRestore callbacks.
func (s *Service) Restore(ctx context.Context, p Payload) error {
	keys := payloadKeys(p)
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		if p.Restaurants != nil {
			d.Restaurants = nonNil(*p.Restaurants)
		}
		if p.Users != nil {
			d.Users = nonNil(*p.Users)
		}
		if p.MenuItems != nil {
			d.MenuItems = nonNil(*p.MenuItems)
		}
		if p.Orders != nil {
			d.Orders = nonNil(*p.Orders)
		}
		if p.Customers != nil {
			d.Customers = nonNil(*p.Customers)
		}
		if p.InventoryItems != nil {
			d.InventoryItems = nonNil(*p.InventoryItems)
		}
		if p.Suppliers != nil {
			d.Suppliers = nonNil(*p.Suppliers)
		}
		if p.Purchases != nil {
			d.Purchases = nonNil(*p.Purchases)
		}
		if p.SystemSettings != nil {
			d.SystemSettings = *p.SystemSettings
		}
		return nil
	}, keys...)
	if err != nil {
		return err
	}
	s.state.ObserveIDs()
	s.state.SetCurrentRestaurantID(ctx, "")

	s.mu.Lock()
	invalidators := append([]func(context.Context){}, s.invalidators...)
	s.mu.Unlock()
	for _, fn := range invalidators {
		fn(ctx)
	}
	s.log.Info("dataset restored", zap.Strings("keys", keys))
	return nil
}

// RestoreSnapshot restores a stored auto-backup.
func (s *Service) RestoreSnapshot(ctx context.Context, id int64) error {
	snap, err := s.snapshots.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Restore(ctx, FullPayload(snap.Data))
}

// Snapshots lists stored auto-backups, newest first.
func (s *Service) Snapshots(ctx context.Context) ([]Summary, error) {
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Summary())
	}
	return out, nil
}

func payloadKeys(p Payload) []string {
	var keys []string
	add := func(present bool, key string) {
		if present {
			keys = append(keys, key)
		}
	}
	add(p.Restaurants != nil, store.KeyRestaurants)
	add(p.Users != nil, store.KeyUsers)
	add(p.MenuItems != nil, store.KeyMenuItems)
	add(p.Orders != nil, store.KeyOrders)
	add(p.Customers != nil, store.KeyCustomers)
	add(p.InventoryItems != nil, store.KeyInventoryItems)
	add(p.Suppliers != nil, store.KeySuppliers)
	add(p.Purchases != nil, store.KeyPurchases)
	add(p.SystemSettings != nil, store.KeySystemSettings)
	return keys
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
