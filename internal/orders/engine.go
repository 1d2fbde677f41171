// Package orders is the order lifecycle: placement, kitchen status updates,
// driver assignment and menu price edits.
//
// Status updates are permissive by default: any status may follow any
// other, as long as the order is not served yet and OUT_FOR_DELIVERY is
// only set on delivery orders that have a driver. Strict mode enforces the
// full graph PENDING -> PREPARING -> READY -> SERVED | OUT_FOR_DELIVERY -> SERVED.
package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

type Options struct {
	StrictTransitions bool
}

type Engine struct {
	state  *state.State
	log    *zap.Logger
	strict bool
}

func NewEngine(st *state.State, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{state: st, log: log.Named("orders"), strict: opts.StrictTransitions}
}

// Line is one draft line. The price and cost always come from the
// restaurant's menu at placement time.
type Line struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

type Draft struct {
	Items         []Line           `json:"items"`
	OrderType     models.OrderType `json:"orderType"`
	TableNumber   *int             `json:"tableNumber,omitempty"`
	CustomerID    *int64           `json:"customerId,omitempty"`
	SalespersonID *int64           `json:"salespersonId,omitempty"`
	Discount      float64          `json:"discount"`
}

// PlaceOrder validates the draft, snapshots the menu items and stores a
// PENDING order. Nothing changes when validation fails.
func (e *Engine) PlaceOrder(ctx context.Context, restaurantID string, draft Draft) (models.Order, error) {
	var order models.Order
	now := e.state.Now()
	err := e.state.Mutate(ctx, func(d *models.Dataset) error {
		items, v := e.validate(d, restaurantID, draft)
		if !v.Empty() {
			return &ValidationError{Violations: v}
		}
		order = models.Order{
			ID:            e.state.NextID(),
			RestaurantID:  restaurantID,
			Items:         items,
			Status:        models.StatusPending,
			Timestamp:     models.At(now),
			OrderType:     draft.OrderType,
			SalespersonID: draft.SalespersonID,
			Discount:      draft.Discount,
			TotalAmount:   models.OrderTotal(items, draft.Discount),
		}
		if draft.OrderType == models.OrderDineIn {
			order.TableNumber = draft.TableNumber
		} else {
			order.CustomerID = draft.CustomerID
		}
		d.Orders = append(d.Orders, order.Clone())
		return nil
	}, store.KeyOrders)
	if err != nil {
		return models.Order{}, err
	}
	metrics.OrdersPlaced.WithLabelValues(string(order.OrderType)).Inc()
	e.log.Info("order placed",
		zap.String("restaurant_id", restaurantID),
		zap.Int64("order_id", order.ID),
		zap.String("type", string(order.OrderType)),
		zap.Float64("total", order.TotalAmount),
	)
	return order, nil
}

func (e *Engine) validate(d *models.Dataset, restaurantID string, draft Draft) ([]models.OrderItem, validation.Violations) {
	v := make(validation.Violations)
	if len(draft.Items) == 0 {
		v["items"] = "required"
	}
	validation.OneOf("orderType", string(draft.OrderType),
		[]string{string(models.OrderDineIn), string(models.OrderDelivery)}, v)
	validation.NonNegativeFloat("discount", draft.Discount, v)

	switch draft.OrderType {
	case models.OrderDineIn:
		if draft.TableNumber == nil || *draft.TableNumber <= 0 {
			v["tableNumber"] = "table_required"
		}
	case models.OrderDelivery:
		if draft.CustomerID == nil || !hasCustomer(d, restaurantID, *draft.CustomerID) {
			v["customerId"] = "customer_required"
		}
	}

	items := make([]models.OrderItem, 0, len(draft.Items))
	for i, line := range draft.Items {
		field := fmt.Sprintf("items.%d", i)
		validation.PositiveInt(field+".quantity", line.Quantity, v)
		item, ok := findMenuItem(d, restaurantID, line.MenuItemID)
		if !ok {
			v[field] = "unknown_menu_item"
			continue
		}
		if item.Price < 0 {
			v[field+".price"] = "must_not_be_negative"
		}
		items = append(items, models.OrderItem{MenuItem: item, Quantity: line.Quantity})
	}
	return items, v
}

// UpdateStatus moves an order to next. See the package doc for the rules.
func (e *Engine) UpdateStatus(ctx context.Context, restaurantID string, orderID int64, next models.OrderStatus) (models.Order, error) {
	var (
		order   models.Order
		changed bool
	)
	now := e.state.Now()
	err := e.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := findOrder(d, restaurantID, orderID)
		if !ok {
			return ErrOrderNotFound
		}
		o := &d.Orders[i]
		if o.Status == next && next.Valid() && !next.Terminal() {
			order = o.Clone()
			return nil
		}
		if err := checkStatus(*o, next, e.strict); err != nil {
			return err
		}
		o.Status = next
		if next == models.StatusServed {
			o.CompletedAt = models.AtPtr(now)
		}
		order = o.Clone()
		changed = true
		return nil
	}, store.KeyOrders)
	if err != nil {
		return models.Order{}, err
	}
	if changed {
		metrics.OrderStatusChanges.WithLabelValues(string(next)).Inc()
		e.log.Info("order status changed",
			zap.String("restaurant_id", restaurantID),
			zap.Int64("order_id", orderID),
			zap.String("status", string(next)),
		)
	}
	return order, nil
}

// AssignDriver sets the driver and forces OUT_FOR_DELIVERY in one update,
// whatever the previous status was. In strict mode the order must be READY.
func (e *Engine) AssignDriver(ctx context.Context, restaurantID string, orderID, driverID int64) (models.Order, error) {
	var order models.Order
	err := e.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := findOrder(d, restaurantID, orderID)
		if !ok {
			return ErrOrderNotFound
		}
		if !isDriver(d, restaurantID, driverID) {
			return ErrDriverNotFound
		}
		o := &d.Orders[i]
		if o.OrderType != models.OrderDelivery {
			return ErrNotDelivery
		}
		if e.strict && o.Status != models.StatusReady {
			return ErrIllegalTransition
		}
		id := driverID
		o.DriverID = &id
		o.Status = models.StatusOutForDelivery
		o.CompletedAt = nil
		order = o.Clone()
		return nil
	}, store.KeyOrders)
	if err != nil {
		return models.Order{}, err
	}
	metrics.OrderStatusChanges.WithLabelValues(string(models.StatusOutForDelivery)).Inc()
	e.log.Info("driver assigned",
		zap.String("restaurant_id", restaurantID),
		zap.Int64("order_id", orderID),
		zap.Int64("driver_id", driverID),
	)
	return order, nil
}

// EditPrice changes a menu price for future orders. Placed orders keep
// the price they were snapshotted with.
func (e *Engine) EditPrice(ctx context.Context, restaurantID string, itemID int64, price float64) (models.MenuItem, error) {
	v := make(validation.Violations)
	validation.NonNegativeFloat("price", price, v)
	if !v.Empty() {
		return models.MenuItem{}, &ValidationError{Violations: v}
	}
	var item models.MenuItem
	err := e.state.Mutate(ctx, func(d *models.Dataset) error {
		for i := range d.MenuItems {
			m := &d.MenuItems[i]
			if m.ID == itemID && m.RestaurantID == restaurantID {
				m.Price = price
				item = *m
				return nil
			}
		}
		return ErrMenuItemNotFound
	}, store.KeyMenuItems)
	return item, err
}

// Elapsed is the age of an order. It grows with now until the order is
// served and is fixed afterwards.
func Elapsed(o models.Order, now time.Time) time.Duration {
	if o.Status.Terminal() {
		if o.CompletedAt == nil {
			return 0
		}
		return o.CompletedAt.Sub(o.Timestamp.Time)
	}
	return now.Sub(o.Timestamp.Time)
}

// Get returns one order of the restaurant.
func (e *Engine) Get(restaurantID string, orderID int64) (models.Order, error) {
	var (
		order models.Order
		ok    bool
	)
	e.state.View(func(d *models.Dataset) {
		var i int
		if i, ok = findOrder(d, restaurantID, orderID); ok {
			order = d.Orders[i].Clone()
		}
	})
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// List returns every order of the restaurant, newest first.
func (e *Engine) List(restaurantID string) []models.Order {
	out := e.filter(restaurantID, func(models.Order) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp.Time) })
	return out
}

// Active returns the orders not served yet, oldest first (kitchen queue).
func (e *Engine) Active(restaurantID string) []models.Order {
	out := e.filter(restaurantID, func(o models.Order) bool { return !o.Status.Terminal() })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp.Time) })
	return out
}

// DriverOrders returns the delivery orders assigned to driverID.
func (e *Engine) DriverOrders(restaurantID string, driverID int64) []models.Order {
	return e.filter(restaurantID, func(o models.Order) bool {
		return o.OrderType == models.OrderDelivery && o.DriverID != nil && *o.DriverID == driverID
	})
}

// ActiveDeliveries returns the driver's orders currently out for delivery.
func (e *Engine) ActiveDeliveries(restaurantID string, driverID int64) []models.Order {
	return e.filter(restaurantID, func(o models.Order) bool {
		return o.Status == models.StatusOutForDelivery && o.DriverID != nil && *o.DriverID == driverID
	})
}

func (e *Engine) filter(restaurantID string, keep func(models.Order) bool) []models.Order {
	out := make([]models.Order, 0)
	e.state.View(func(d *models.Dataset) {
		for _, o := range d.Orders {
			if o.RestaurantID == restaurantID && keep(o) {
				out = append(out, o.Clone())
			}
		}
	})
	return out
}

func findOrder(d *models.Dataset, restaurantID string, id int64) (int, bool) {
	for i, o := range d.Orders {
		if o.ID == id && o.RestaurantID == restaurantID {
			return i, true
		}
	}
	return 0, false
}

func findMenuItem(d *models.Dataset, restaurantID string, id int64) (models.MenuItem, bool) {
	for _, m := range d.MenuItems {
		if m.ID == id && m.RestaurantID == restaurantID {
			return m, true
		}
	}
	return models.MenuItem{}, false
}

func hasCustomer(d *models.Dataset, restaurantID string, id int64) bool {
	for _, c := range d.Customers {
		if c.ID == id && c.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}

func isDriver(d *models.Dataset, restaurantID string, id int64) bool {
	for _, u := range d.Users {
		if u.ID == id && u.RestaurantID == restaurantID && u.Role == models.RoleDriver {
			return true
		}
	}
	return false
}

// ParseStatus accepts canonical and legacy status labels from clients.
func ParseStatus(s string) (models.OrderStatus, error) {
	st, err := models.ParseOrderStatus(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidStatus
	}
	return st, nil
}
