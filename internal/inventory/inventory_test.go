package inventory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	flourID    int64 = 10
	supplierID int64 = 20
)

func setupTestLedger(t *testing.T) (*Ledger, *state.State) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&store.Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	st := state.New(store.New(db, zap.NewNop()), zap.NewNop(), now)
	st.Load(context.Background())
	err = st.Mutate(context.Background(), func(d *models.Dataset) error {
		d.InventoryItems = append(d.InventoryItems,
			models.InventoryItem{ID: flourID, RestaurantID: "r1", Name: "Flour", Unit: "kg", Stock: 10, CostPerUnit: 2},
			models.InventoryItem{ID: flourID + 1, RestaurantID: "r2", Name: "Flour", Unit: "kg", Stock: 1},
		)
		d.Suppliers = append(d.Suppliers, models.Supplier{ID: supplierID, RestaurantID: "r1", Name: "Mill"})
		return nil
	}, store.KeyInventoryItems, store.KeySuppliers)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewLedger(st, zap.NewNop()), st
}

func stockOf(l *Ledger, restaurantID string, id int64) float64 {
	for _, it := range l.Items(restaurantID) {
		if it.ID == id {
			return it.Stock
		}
	}
	return -1
}

func TestRecordPurchase_IncrementsStock(t *testing.T) {
	l, _ := setupTestLedger(t)
	before := testutil.ToFloat64(metrics.PurchasesRecorded)

	p, err := l.RecordPurchase(context.Background(), "r1", NewPurchase{
		SupplierID: supplierID,
		Items:      []models.PurchaseItem{{InventoryItemID: flourID, Quantity: 5, Cost: 12.5}},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := stockOf(l, "r1", flourID); got != 15 {
		t.Fatalf("stock = %v, want 15", got)
	}
	if p.TotalCost != 12.5 || p.Date.IsZero() {
		t.Fatalf("unexpected purchase: %+v", p)
	}
	if testutil.ToFloat64(metrics.PurchasesRecorded)-before != 1 {
		t.Fatalf("purchases metric not incremented")
	}
}

func TestRecordPurchase_UnmatchedLineSkipped(t *testing.T) {
	l, _ := setupTestLedger(t)
	before := testutil.ToFloat64(metrics.PurchaseLinesUnmatched)

	p, err := l.RecordPurchase(context.Background(), "r1", NewPurchase{
		SupplierID: supplierID,
		Items: []models.PurchaseItem{
			{InventoryItemID: 999, Quantity: 3, Cost: 4},
			// belongs to another restaurant
			{InventoryItemID: flourID + 1, Quantity: 3, Cost: 4},
		},
	})
	if err != nil {
		t.Fatalf("unmatched lines must not fail: %v", err)
	}
	if got := stockOf(l, "r1", flourID); got != 10 {
		t.Fatalf("stock changed: %v", got)
	}
	if got := stockOf(l, "r2", flourID+1); got != 1 {
		t.Fatalf("other tenant stock changed: %v", got)
	}
	if p.TotalCost != 8 || len(l.Purchases("r1")) != 1 {
		t.Fatalf("purchase not recorded as submitted: %+v", p)
	}
	if testutil.ToFloat64(metrics.PurchaseLinesUnmatched)-before != 2 {
		t.Fatalf("unmatched metric not incremented")
	}
}

func TestRecordPurchase_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    NewPurchase
		field string
	}{
		{"unknown supplier", NewPurchase{SupplierID: 1, Items: []models.PurchaseItem{{InventoryItemID: flourID, Quantity: 1}}}, "supplierId"},
		{"no lines", NewPurchase{SupplierID: supplierID}, "items"},
		{"zero quantity", NewPurchase{SupplierID: supplierID, Items: []models.PurchaseItem{{InventoryItemID: flourID}}}, "items.0.quantity"},
		{"negative cost", NewPurchase{SupplierID: supplierID, Items: []models.PurchaseItem{{InventoryItemID: flourID, Quantity: 1, Cost: -1}}}, "items.0.cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := setupTestLedger(t)
			_, err := l.RecordPurchase(context.Background(), "r1", tt.in)
			var v validation.Violations
			if !errors.As(err, &v) || v[tt.field] == "" {
				t.Fatalf("expected violation on %s, got %v", tt.field, err)
			}
			if got := stockOf(l, "r1", flourID); got != 10 {
				t.Fatalf("stock changed on rejected purchase: %v", got)
			}
			if len(l.Purchases("r1")) != 0 {
				t.Fatalf("rejected purchase stored")
			}
		})
	}
}

func TestRecordPurchase_ExplicitDate(t *testing.T) {
	l, _ := setupTestLedger(t)
	when := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	p, err := l.RecordPurchase(context.Background(), "r1", NewPurchase{
		SupplierID: supplierID,
		Date:       &when,
		Items:      []models.PurchaseItem{{InventoryItemID: flourID, Quantity: 1, Cost: 1}},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !p.Date.Equal(when) {
		t.Fatalf("date = %v, want %v", p.Date, when)
	}
}

func TestItemCRUD(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddItem(ctx, "r1", ItemInput{Unit: "kg"}); err == nil {
		t.Fatalf("item without name accepted")
	}
	it, err := l.AddItem(ctx, "r1", ItemInput{Name: " Sugar ", Unit: "kg", Stock: 2, CostPerUnit: 1.5})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if it.Name != "Sugar" || it.RestaurantID != "r1" {
		t.Fatalf("unexpected item: %+v", it)
	}
	if _, err := l.UpdateItem(ctx, "r2", it.ID, ItemInput{Name: "x", Unit: "kg"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant update: got %v", err)
	}
	if it, err = l.UpdateItem(ctx, "r1", it.ID, ItemInput{Name: "Sugar", Unit: "g", Stock: 4}); err != nil || it.Unit != "g" {
		t.Fatalf("update: %+v %v", it, err)
	}
	if err := l.DeleteItem(ctx, "r1", it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.DeleteItem(ctx, "r1", it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	if n := len(l.Items("r1")); n != 1 {
		t.Fatalf("items = %d, want 1", n)
	}
}
