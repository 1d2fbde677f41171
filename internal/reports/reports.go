// Package reports computes the sales and stock figures shown to managers.
// Only SERVED orders count as sales.
package reports

import (
	"errors"
	"sort"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
)

type Window string

const (
	Today Window = "today"
	Week  Window = "week"
	Month Window = "month"
	All   Window = "all"
)

var ErrUnknownWindow = errors.New("reports: unknown window")

func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case Today, Week, Month, All:
		return w, nil
	case "":
		return Today, nil
	}
	return "", ErrUnknownWindow
}

// Contains reports whether t falls between the window start and the end of
// the current day, both in now's location.
func (w Window) Contains(t, now time.Time) bool {
	if w == All {
		return true
	}
	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	endOfToday := startOfToday.AddDate(0, 0, 1)
	start := startOfToday
	switch w {
	case Week:
		start = startOfToday.AddDate(0, 0, -6)
	case Month:
		start = startOfToday.AddDate(0, -1, 0)
	}
	return !t.Before(start) && t.Before(endOfToday)
}

type Financials struct {
	Window  Window  `json:"window"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

// Sales returns the served orders inside the window, newest first.
func Sales(orders []models.Order, w Window, now time.Time) []models.Order {
	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.Status == models.StatusServed && w.Contains(o.Timestamp.Time, now) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp.Time) })
	return out
}

// ComputeFinancials sums revenue (after discount), item cost and profit.
func ComputeFinancials(orders []models.Order, w Window, now time.Time) Financials {
	f := Financials{Window: w}
	for _, o := range Sales(orders, w, now) {
		f.Orders++
		f.Revenue += o.TotalAmount
		for _, it := range o.Items {
			f.Cost += it.Cost * float64(it.Quantity)
		}
	}
	f.Profit = f.Revenue - f.Cost
	return f
}

// ItemSales aggregates one menu item (by name) across orders. Revenue
// spreads the order discount proportionally over its lines.
type ItemSales struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
	Cost     float64 `json:"cost"`
	Profit   float64 `json:"profit"`
}

// TopItems returns per-item sales ordered by quantity sold, highest first.
// limit <= 0 returns every item.
func TopItems(orders []models.Order, w Window, now time.Time, limit int) []ItemSales {
	byName := make(map[string]*ItemSales)
	var names []string
	for _, o := range Sales(orders, w, now) {
		ratio := 1.0
		if sub := o.Subtotal(); o.Discount > 0 && sub > 0 {
			ratio = 1 - o.Discount/sub
		}
		for _, it := range o.Items {
			s, ok := byName[it.Name]
			if !ok {
				s = &ItemSales{Name: it.Name}
				byName[it.Name] = s
				names = append(names, it.Name)
			}
			revenue := it.LineTotal() * ratio
			cost := it.Cost * float64(it.Quantity)
			s.Quantity += it.Quantity
			s.Revenue += revenue
			s.Cost += cost
			s.Profit += revenue - cost
		}
	}
	out := make([]ItemSales, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// InventoryValue is the sum of stock times unit cost.
func InventoryValue(items []models.InventoryItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Stock * it.CostPerUnit
	}
	return sum
}

// Position is the simple financial position: stock value plus revenue in the window.
type Position struct {
	InventoryValue float64 `json:"inventoryValue"`
	Revenue        float64 `json:"revenue"`
	TotalAssets    float64 `json:"totalAssets"`
}

// Service reads one restaurant's data from state.
type Service struct {
	state *state.State
}

func NewService(st *state.State) *Service {
	return &Service{state: st}
}

func (s *Service) tenant(restaurantID string) ([]models.Order, []models.InventoryItem) {
	var (
		orders []models.Order
		items  []models.InventoryItem
	)
	s.state.View(func(d *models.Dataset) {
		for _, o := range d.Orders {
			if o.RestaurantID == restaurantID {
				orders = append(orders, o.Clone())
			}
		}
		items = models.ForTenant(d.InventoryItems, restaurantID)
	})
	return orders, items
}

func (s *Service) Financials(restaurantID string, w Window) Financials {
	orders, _ := s.tenant(restaurantID)
	return ComputeFinancials(orders, w, s.state.Now())
}

func (s *Service) TopItems(restaurantID string, w Window, limit int) []ItemSales {
	orders, _ := s.tenant(restaurantID)
	return TopItems(orders, w, s.state.Now(), limit)
}

func (s *Service) Position(restaurantID string, w Window) Position {
	orders, items := s.tenant(restaurantID)
	p := Position{
		InventoryValue: InventoryValue(items),
		Revenue:        ComputeFinancials(orders, w, s.state.Now()).Revenue,
	}
	p.TotalAssets = p.InventoryValue + p.Revenue
	return p
}
