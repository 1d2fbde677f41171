// Package inventory is the stock ledger. Stock only grows, through recorded
// purchases; sales never decrement it.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("inventory: item not found")

type Ledger struct {
	state *state.State
	log   *zap.Logger
}

func NewLedger(st *state.State, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{state: st, log: log.Named("inventory")}
}

// NewPurchase is a purchase as submitted. Date defaults to now.
type NewPurchase struct {
	SupplierID int64                 `json:"supplierId"`
	Date       *time.Time            `json:"date,omitempty"`
	Items      []models.PurchaseItem `json:"items"`
}

func (p NewPurchase) validate(d *models.Dataset, restaurantID string) validation.Violations {
	v := make(validation.Violations)
	if !hasSupplier(d, restaurantID, p.SupplierID) {
		v["supplierId"] = "unknown_supplier"
	}
	if len(p.Items) == 0 {
		v["items"] = "required"
	}
	for i, line := range p.Items {
		field := fmt.Sprintf("items.%d", i)
		validation.PositiveFloat(field+".quantity", line.Quantity, v)
		validation.NonNegativeFloat(field+".cost", line.Cost, v)
	}
	return v
}

// RecordPurchase appends the purchase and adds each line quantity to the
// matching inventory item of the restaurant. Lines that match no item are
// kept on the purchase but move no stock.
func (l *Ledger) RecordPurchase(ctx context.Context, restaurantID string, in NewPurchase) (models.Purchase, error) {
	var (
		purchase  models.Purchase
		unmatched []int64
	)
	date := l.state.Now()
	if in.Date != nil {
		date = *in.Date
	}
	err := l.state.Mutate(ctx, func(d *models.Dataset) error {
		if v := in.validate(d, restaurantID); !v.Empty() {
			return v
		}
		purchase = models.Purchase{
			ID:           l.state.NextID(),
			RestaurantID: restaurantID,
			SupplierID:   in.SupplierID,
			Date:         models.At(date),
			Items:        append([]models.PurchaseItem(nil), in.Items...),
		}
		for _, line := range in.Items {
			purchase.TotalCost += line.Cost
			i := indexOf(d, restaurantID, line.InventoryItemID)
			if i < 0 {
				unmatched = append(unmatched, line.InventoryItemID)
				continue
			}
			d.InventoryItems[i].Stock += line.Quantity
		}
		d.Purchases = append(d.Purchases, purchase)
		return nil
	}, store.KeyPurchases, store.KeyInventoryItems)
	if err != nil {
		return models.Purchase{}, err
	}

	metrics.PurchasesRecorded.Inc()
	for _, id := range unmatched {
		metrics.PurchaseLinesUnmatched.Inc()
		l.log.Debug("purchase line matches no inventory item",
			zap.String("restaurant_id", restaurantID),
			zap.Int64("purchase_id", purchase.ID),
			zap.Int64("inventory_item_id", id),
		)
	}
	l.log.Info("purchase recorded",
		zap.String("restaurant_id", restaurantID),
		zap.Int64("purchase_id", purchase.ID),
		zap.Float64("total_cost", purchase.TotalCost),
	)
	return purchase, nil
}

// ItemInput is the editable part of an inventory item.
type ItemInput struct {
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Stock       float64 `json:"stock"`
	CostPerUnit float64 `json:"costPerUnit"`
}

func (in ItemInput) validate() error {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("unit", in.Unit, v)
	validation.NonNegativeFloat("stock", in.Stock, v)
	validation.NonNegativeFloat("costPerUnit", in.CostPerUnit, v)
	return v.Err()
}

func (in ItemInput) apply(it *models.InventoryItem) {
	it.Name = strings.TrimSpace(in.Name)
	it.Unit = strings.TrimSpace(in.Unit)
	it.Stock = in.Stock
	it.CostPerUnit = in.CostPerUnit
}

func (l *Ledger) AddItem(ctx context.Context, restaurantID string, in ItemInput) (models.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return models.InventoryItem{}, err
	}
	item := models.InventoryItem{ID: l.state.NextID(), RestaurantID: restaurantID}
	in.apply(&item)
	err := l.state.Mutate(ctx, func(d *models.Dataset) error {
		d.InventoryItems = append(d.InventoryItems, item)
		return nil
	}, store.KeyInventoryItems)
	return item, err
}

// UpdateItem edits an item. Setting Stock here is a manual count correction.
func (l *Ledger) UpdateItem(ctx context.Context, restaurantID string, id int64, in ItemInput) (models.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return models.InventoryItem{}, err
	}
	var item models.InventoryItem
	err := l.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexOf(d, restaurantID, id)
		if i < 0 {
			return ErrNotFound
		}
		in.apply(&d.InventoryItems[i])
		item = d.InventoryItems[i]
		return nil
	}, store.KeyInventoryItems)
	return item, err
}

func (l *Ledger) DeleteItem(ctx context.Context, restaurantID string, id int64) error {
	return l.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexOf(d, restaurantID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.InventoryItems = append(d.InventoryItems[:i], d.InventoryItems[i+1:]...)
		return nil
	}, store.KeyInventoryItems)
}

func (l *Ledger) Items(restaurantID string) []models.InventoryItem {
	var out []models.InventoryItem
	l.state.View(func(d *models.Dataset) {
		out = models.ForTenant(d.InventoryItems, restaurantID)
	})
	return out
}

// Purchases returns the restaurant's purchases, most recent first.
func (l *Ledger) Purchases(restaurantID string) []models.Purchase {
	out := make([]models.Purchase, 0)
	l.state.View(func(d *models.Dataset) {
		for i := len(d.Purchases) - 1; i >= 0; i-- {
			p := d.Purchases[i]
			if p.RestaurantID == restaurantID {
				p.Items = append([]models.PurchaseItem(nil), p.Items...)
				out = append(out, p)
			}
		}
	})
	return out
}

func indexOf(d *models.Dataset, restaurantID string, id int64) int {
	for i, it := range d.InventoryItems {
		if it.ID == id && it.RestaurantID == restaurantID {
			return i
		}
	}
	return -1
}

func hasSupplier(d *models.Dataset, restaurantID string, id int64) bool {
	for _, s := range d.Suppliers {
		if s.ID == id && s.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}
