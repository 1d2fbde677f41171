package backup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&store.Entry{}, &Record{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupTestState(t *testing.T, db *gorm.DB, now func() time.Time) *state.State {
	st := state.New(store.New(db, zap.NewNop()), zap.NewNop(), now)
	st.Load(context.Background())
	return st
}

func seed(t *testing.T, st *state.State) {
	err := st.Mutate(context.Background(), func(d *models.Dataset) error {
		d.Restaurants = append(d.Restaurants, models.Restaurant{ID: "r1", Name: "Grill", IsActivated: true})
		d.Users = append(d.Users, models.User{ID: 10, RestaurantID: "r1", Username: "ali", Password: "pw", Role: models.RoleAdmin})
		d.MenuItems = append(d.MenuItems, models.MenuItem{ID: 20, RestaurantID: "r1", Name: "Shawarma", Price: 10})
		return nil
	}, store.KeyRestaurants, store.KeyUsers, store.KeyMenuItems)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func snapshotIDs(snaps []Snapshot) []int64 {
	ids := make([]int64, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	return ids
}

func TestSnapshotStores(t *testing.T) {
	stores := map[string]func(t *testing.T) SnapshotStore{
		"memory": func(*testing.T) SnapshotStore { return NewMemoryStore() },
		"gorm":   func(t *testing.T) SnapshotStore { return NewGormStore(setupTestDB(t), zap.NewNop()) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			for _, id := range []int64{200, 100, 300} {
				data := models.NewDataset()
				data.Orders = append(data.Orders, models.Order{ID: id, Status: models.StatusServed, Timestamp: models.At(fixedNow)})
				if err := s.Add(ctx, Snapshot{ID: id, Data: data}); err != nil {
					t.Fatalf("add %d: %v", id, err)
				}
			}

			snaps, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got := snapshotIDs(snaps); len(got) != 3 || got[0] != 300 || got[1] != 200 || got[2] != 100 {
				t.Fatalf("expected newest first, got %v", got)
			}
			if !snaps[0].Data.Orders[0].Timestamp.Equal(fixedNow) {
				t.Errorf("timestamp not preserved: %v", snaps[0].Data.Orders[0].Timestamp)
			}

			n, err := s.PruneBefore(ctx, 200)
			if err != nil || n != 1 {
				t.Fatalf("prune: n=%d err=%v", n, err)
			}
			if _, err := s.Get(ctx, 100); !errors.Is(err, ErrSnapshotNotFound) {
				t.Fatalf("expected pruned snapshot gone, got %v", err)
			}
			if _, err := s.Get(ctx, 200); err != nil {
				t.Fatalf("snapshot at cutoff must survive: %v", err)
			}

			if err := s.Delete(ctx, 300); err != nil {
				t.Fatalf("delete: %v", err)
			}
			snaps, _ = s.List(ctx)
			if len(snaps) != 1 {
				t.Fatalf("expected 1 snapshot left, got %d", len(snaps))
			}
		})
	}
}

func TestGormStore_ListSkipsUnreadableRecords(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	s := NewGormStore(db, zap.New(core))
	ctx := context.Background()

	if err := s.Add(ctx, Snapshot{ID: 100, Data: models.NewDataset()}); err != nil {
		t.Fatalf("add: %v", err)
	}
	bad := Record{ID: 200, Data: datatypes.JSON(`{"orders": 5}`), CreatedAt: fixedNow}
	if err := db.Create(&bad).Error; err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	snaps, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := snapshotIDs(snaps); len(got) != 1 || got[0] != 100 {
		t.Fatalf("expected only the readable snapshot, got %v", got)
	}
	if logs.FilterField(zap.Int64("id", 200)).Len() != 1 {
		t.Errorf("corrupt record was not logged: %v", logs.All())
	}
}

func TestMongoConversion_RoundTrip(t *testing.T) {
	data := models.NewDataset()
	end := models.At(fixedNow.Add(30 * 24 * time.Hour))
	data.Restaurants = append(data.Restaurants, models.Restaurant{ID: "r1", Name: "Grill", SubscriptionEndDate: &end})
	data.MenuItems = append(data.MenuItems, models.MenuItem{ID: 1709640000123, RestaurantID: "r1", Name: "Tea", Price: 1.25})

	doc, err := toBSON(data)
	if err != nil {
		t.Fatalf("toBSON: %v", err)
	}
	snap, err := mongoRecord{ID: 7, Data: doc}.snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got := snap.Data
	if got.MenuItems[0].ID != 1709640000123 || got.MenuItems[0].Price != 1.25 {
		t.Errorf("menu item changed: %+v", got.MenuItems[0])
	}
	if got.Restaurants[0].SubscriptionEndDate == nil || !got.Restaurants[0].SubscriptionEndDate.Equal(end.Time) {
		t.Errorf("subscription end changed: %v", got.Restaurants[0].SubscriptionEndDate)
	}
	if got.SystemSettings != models.DefaultSettings() {
		t.Errorf("settings changed: %+v", got.SystemSettings)
	}
}

func TestScheduler_SweepHorizon(t *testing.T) {
	st := setupTestState(t, setupTestDB(t), func() time.Time { return fixedNow })
	mem := NewMemoryStore()
	sched := NewScheduler(st, mem, SchedulerConfig{}, zap.NewNop())
	ctx := context.Background()

	horizon := fixedNow.Add(-48 * time.Hour)
	tooOld := horizon.Add(-time.Millisecond).UnixMilli()
	atHorizon := horizon.UnixMilli()
	young := fixedNow.Add(-time.Hour).UnixMilli()
	for _, id := range []int64{tooOld, atHorizon, young} {
		_ = mem.Add(ctx, Snapshot{ID: id, Data: models.NewDataset()})
	}

	n, err := sched.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	snaps, _ := mem.List(ctx)
	if got := snapshotIDs(snaps); len(got) != 2 || got[0] != young || got[1] != atHorizon {
		t.Fatalf("unexpected survivors: %v", got)
	}
}

func TestScheduler_BackupNowCopiesDataset(t *testing.T) {
	st := setupTestState(t, setupTestDB(t), func() time.Time { return fixedNow })
	seed(t, st)
	mem := NewMemoryStore()
	sched := NewScheduler(st, mem, SchedulerConfig{}, zap.NewNop())

	snap, err := sched.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if snap.ID != fixedNow.UnixMilli() {
		t.Errorf("id = %d, want capture ms", snap.ID)
	}
	stored, err := mem.Get(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Data.Users) != 1 || len(stored.Data.MenuItems) != 1 {
		t.Fatalf("snapshot incomplete: %+v", stored.Data)
	}
}

func TestScheduler_CheckStale(t *testing.T) {
	now := fixedNow
	st := setupTestState(t, setupTestDB(t), func() time.Time { return now })
	sched := NewScheduler(st, NewMemoryStore(), SchedulerConfig{}, zap.NewNop())
	ctx := context.Background()

	if !sched.CheckStale() {
		t.Fatalf("no manual backup should be stale")
	}
	st.SetLastManualBackup(ctx, fixedNow.Add(-time.Hour))
	if sched.CheckStale() || sched.Stale() {
		t.Fatalf("recent manual backup should not be stale")
	}
	now = fixedNow.Add(6 * time.Hour)
	if !sched.CheckStale() {
		t.Fatalf("7h old manual backup should be stale")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	st := setupTestState(t, setupTestDB(t), nil)
	mem := NewMemoryStore()
	sched := NewScheduler(st, mem, SchedulerConfig{
		Interval:           5 * time.Millisecond,
		RetentionInterval:  time.Hour,
		StaleCheckInterval: time.Hour,
	}, zap.NewNop())

	sched.Start(context.Background())
	sched.Start(context.Background())
	if !sched.Running() {
		t.Fatalf("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snaps, _ := mem.List(context.Background())
		if len(snaps) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no auto-backup taken")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sched.Stop()
	if sched.Running() {
		t.Fatalf("expected stopped")
	}
	before, _ := mem.List(context.Background())
	time.Sleep(30 * time.Millisecond)
	after, _ := mem.List(context.Background())
	if len(after) != len(before) {
		t.Fatalf("backups continued after Stop: %d -> %d", len(before), len(after))
	}
	sched.Stop()
}

func TestExport(t *testing.T) {
	st := setupTestState(t, setupTestDB(t), func() time.Time { return fixedNow })
	seed(t, st)
	svc := NewService(st, NewMemoryStore(), zap.NewNop())

	var buf bytes.Buffer
	name, err := svc.Export(context.Background(), &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "foodcore_backup_2024-03-05.json" {
		t.Errorf("filename = %q", name)
	}
	if !strings.HasPrefix(buf.String(), "{\n  \"restaurants\": [") {
		t.Errorf("export is not 2-space indented:\n%s", buf.String()[:40])
	}
	last, ok := st.LastManualBackup()
	if !ok || !last.Equal(fixedNow) {
		t.Errorf("last manual backup = %v %v", last, ok)
	}

	p, err := ParseImport(&buf)
	if err != nil {
		t.Fatalf("exported file must import: %v", err)
	}
	if p.Users == nil || len(*p.Users) != 1 || p.SystemSettings == nil {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestParseImport_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "hello"},
		{"null", "null"},
		{"array", "[]"},
		{"missing orders", `{"users": [], "menuItems": []}`},
		{"users not array", `{"users": {}, "menuItems": [], "orders": []}`},
		{"orders null", `{"users": [], "menuItems": [], "orders": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseImport(strings.NewReader(tt.input)); !errors.Is(err, ErrInvalidBackup) {
				t.Fatalf("expected ErrInvalidBackup, got %v", err)
			}
		})
	}
}

func TestRestore_PartialLeavesOtherCollections(t *testing.T) {
	db := setupTestDB(t)
	st := setupTestState(t, db, func() time.Time { return fixedNow })
	seed(t, st)
	ctx := context.Background()
	st.SetCurrentRestaurantID(ctx, "r1")

	svc := NewService(st, NewMemoryStore(), zap.NewNop())
	invalidated := false
	svc.OnRestore(func(context.Context) { invalidated = true })

	orders := []models.Order{{ID: 99, RestaurantID: "r1", Status: models.StatusServed, Timestamp: models.At(fixedNow)}}
	if err := svc.Restore(ctx, Payload{Orders: &orders}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	d := st.Snapshot()
	if len(d.Orders) != 1 || d.Orders[0].ID != 99 {
		t.Fatalf("orders not restored: %+v", d.Orders)
	}
	if len(d.Users) != 1 || len(d.MenuItems) != 1 || len(d.Restaurants) != 1 {
		t.Fatalf("absent collections must be untouched: %+v", d)
	}
	if st.CurrentRestaurantID() != "" {
		t.Errorf("current restaurant not cleared")
	}
	if !invalidated {
		t.Errorf("restore callbacks not run")
	}

	reloaded := setupTestState(t, db, nil)
	if got := reloaded.Snapshot().Orders; len(got) != 1 || got[0].ID != 99 {
		t.Fatalf("restored orders not persisted: %+v", got)
	}
	if reloaded.CurrentRestaurantID() != "" {
		t.Errorf("cleared tenant not persisted")
	}
	if id := st.NextID(); id <= 99 {
		t.Errorf("ids must move past restored entities, got %d", id)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	st := setupTestState(t, setupTestDB(t), func() time.Time { return fixedNow })
	mem := NewMemoryStore()
	svc := NewService(st, mem, zap.NewNop())
	ctx := context.Background()

	if err := svc.RestoreSnapshot(ctx, 1); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	data := models.NewDataset()
	data.Restaurants = append(data.Restaurants, models.Restaurant{ID: "old", Name: "Old"})
	_ = mem.Add(ctx, Snapshot{ID: 5, Data: data})
	if err := svc.RestoreSnapshot(ctx, 5); err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}
	if _, ok := st.Restaurant("old"); !ok {
		t.Fatalf("snapshot restaurant missing after restore")
	}
	sums, err := svc.Snapshots(ctx)
	if err != nil || len(sums) != 1 || sums[0].Restaurants != 1 {
		t.Fatalf("summaries: %+v %v", sums, err)
	}
}
