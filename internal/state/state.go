// Package state holds the single application-state container. Every
// component receives the same *State; tenant isolation is done by filtering
// on restaurant id at read time.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/store"
	"go.uber.org/zap"
)

// State guards the dataset and the terminal-wide selections.
type State struct {
	mu   sync.RWMutex
	data models.Dataset

	currentRestaurantID string
	lastManualBackup    *int64 // unix milliseconds

	restaurantIndex map[string]int

	store *store.Store
	ids   *models.IDSource
	log   *zap.Logger
	now   func() time.Time
}

// New returns an empty State. Call Load to hydrate it from the store.
func New(st *store.Store, log *zap.Logger, now func() time.Time) *State {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	s := &State{
		data:  models.NewDataset(),
		store: st,
		ids:   models.NewIDSource(now),
		log:   log,
		now:   now,
	}
	s.reindex()
	return s
}

// Load hydrates every logical key independently. A key that cannot be read
// keeps its default so one corrupt dataset never blocks the others.
func (s *State) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := models.NewDataset()
	store.LoadOr(ctx, s.store, store.KeyRestaurants, &d.Restaurants, []models.Restaurant{})
	store.LoadOr(ctx, s.store, store.KeyUsers, &d.Users, []models.User{})
	store.LoadOr(ctx, s.store, store.KeyMenuItems, &d.MenuItems, []models.MenuItem{})
	store.LoadOr(ctx, s.store, store.KeyOrders, &d.Orders, []models.Order{})
	store.LoadOr(ctx, s.store, store.KeyCustomers, &d.Customers, []models.Customer{})
	store.LoadOr(ctx, s.store, store.KeyInventoryItems, &d.InventoryItems, []models.InventoryItem{})
	store.LoadOr(ctx, s.store, store.KeySuppliers, &d.Suppliers, []models.Supplier{})
	store.LoadOr(ctx, s.store, store.KeyPurchases, &d.Purchases, []models.Purchase{})
	store.LoadOr(ctx, s.store, store.KeySystemSettings, &d.SystemSettings, models.DefaultSettings())
	store.LoadOr(ctx, s.store, store.KeyCurrentRestaurantID, &s.currentRestaurantID, "")
	store.LoadOr(ctx, s.store, store.KeyLastManualBackupTimestamp, &s.lastManualBackup, nil)

	// a stored null decodes to a nil slice
	s.data = d.Clone()
	s.ids.Observe(s.data.MaxID())
	s.reindex()

	s.log.Info("state loaded",
		zap.Int("restaurants", len(s.data.Restaurants)),
		zap.Int("users", len(s.data.Users)),
		zap.Int("orders", len(s.data.Orders)),
	)
}

// Mutate runs fn with exclusive access to the dataset and then persists the
// listed keys. fn must validate before it changes anything: when it returns
// an error nothing is persisted and the error is returned as is.
//
// Persistence failures are logged and do not fail the call; the in-memory
// state stays authoritative for the running process.
func (s *State) Mutate(ctx context.Context, fn func(d *models.Dataset) error, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.data); err != nil {
		return err
	}
	s.reindex()
	s.persistLocked(ctx, keys...)
	return nil
}

// View gives read-only access to the dataset. fn must not retain or modify it.
func (s *State) View(fn func(d *models.Dataset)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// Snapshot returns a deep copy that is safe to serialize without holding the lock.
func (s *State) Snapshot() models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// NextID returns a fresh entity id.
func (s *State) NextID() int64 { return s.ids.Next() }

// ObserveIDs moves the id source past every id in the dataset, e.g. after
// a restore brought in entities created later than anything seen so far.
func (s *State) ObserveIDs() {
	s.mu.RLock()
	highest := s.data.MaxID()
	s.mu.RUnlock()
	s.ids.Observe(highest)
}

// Now is the clock every component shares.
func (s *State) Now() time.Time { return s.now() }

// Restaurant looks a tenant up through the id index.
func (s *State) Restaurant(id string) (models.Restaurant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.restaurantIndex[id]
	if !ok {
		return models.Restaurant{}, false
	}
	return s.data.Restaurants[i], true
}

// RestaurantIndex returns the position of id in d.Restaurants. It must be
// called from inside Mutate or View.
func (s *State) RestaurantIndex(id string) (int, bool) {
	i, ok := s.restaurantIndex[id]
	return i, ok
}

// CurrentRestaurantID is the tenant selected on this terminal, "" when none.
func (s *State) CurrentRestaurantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRestaurantID
}

// SetCurrentRestaurantID selects (or clears, with "") the active tenant.
func (s *State) SetCurrentRestaurantID(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRestaurantID = id
	s.persistLocked(ctx, store.KeyCurrentRestaurantID)
}

// LastManualBackup returns when the last manual export happened.
func (s *State) LastManualBackup() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastManualBackup == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.lastManualBackup), true
}

// SetLastManualBackup records a manual export.
func (s *State) SetLastManualBackup(ctx context.Context, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := at.UnixMilli()
	s.lastManualBackup = &ms
	s.persistLocked(ctx, store.KeyLastManualBackupTimestamp)
}

func (s *State) reindex() {
	idx := make(map[string]int, len(s.data.Restaurants))
	for i, r := range s.data.Restaurants {
		idx[r.ID] = i
	}
	s.restaurantIndex = idx
}

func (s *State) persistLocked(ctx context.Context, keys ...string) {
	for _, key := range keys {
		v, ok := s.valueFor(key)
		if !ok {
			s.log.Warn("unknown state key", zap.String("key", key))
			continue
		}
		if err := s.store.Save(ctx, key, v); err != nil {
			s.log.Error("persist failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *State) valueFor(key string) (any, bool) {
	switch key {
	case store.KeyRestaurants:
		return s.data.Restaurants, true
	case store.KeyUsers:
		return s.data.Users, true
	case store.KeyMenuItems:
		return s.data.MenuItems, true
	case store.KeyOrders:
		return s.data.Orders, true
	case store.KeyCustomers:
		return s.data.Customers, true
	case store.KeyInventoryItems:
		return s.data.InventoryItems, true
	case store.KeySuppliers:
		return s.data.Suppliers, true
	case store.KeyPurchases:
		return s.data.Purchases, true
	case store.KeySystemSettings:
		return s.data.SystemSettings, true
	case store.KeyCurrentRestaurantID:
		if s.currentRestaurantID == "" {
			return nil, true
		}
		return s.currentRestaurantID, true
	case store.KeyLastManualBackupTimestamp:
		return s.lastManualBackup, true
	}
	return nil, false
}
