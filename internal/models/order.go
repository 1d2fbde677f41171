package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReady          OrderStatus = "READY"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusServed         OrderStatus = "SERVED"
)

// legacyStatusLabels maps the display labels older exports stored as status values.
var legacyStatusLabels = map[string]OrderStatus{
	"قيد الانتظار": StatusPending,
	"قيد التحضير":  StatusPreparing,
	"جاهز":         StatusReady,
	"قيد التوصيل":  StatusOutForDelivery,
	"مقدّم":        StatusServed,
}

// ParseOrderStatus accepts canonical values and legacy labels.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if st.Valid() {
		return st, nil
	}
	if legacy, ok := legacyStatusLabels[s]; ok {
		return legacy, nil
	}
	return "", fmt.Errorf("models: unknown order status %q", s)
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusOutForDelivery, StatusServed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool { return s == StatusServed }

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OrderType distinguishes table service from delivery.
type OrderType string

const (
	OrderDineIn   OrderType = "dine-in"
	OrderDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool { return t == OrderDineIn || t == OrderDelivery }

// OrderItem is a value copy of a menu item taken when the order was placed.
type OrderItem struct {
	MenuItem
	Quantity int `json:"quantity"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Order is a placed order. Items never change after placement.
type Order struct {
	ID            int64       `json:"id"`
	RestaurantID  string      `json:"restaurantId"`
	Items         []OrderItem `json:"items"`
	Status        OrderStatus `json:"status"`
	Timestamp     Timestamp   `json:"timestamp"`
	OrderType     OrderType   `json:"orderType"`
	TableNumber   *int        `json:"tableNumber,omitempty"`
	CustomerID    *int64      `json:"customerId,omitempty"`
	DriverID      *int64      `json:"driverId,omitempty"`
	SalespersonID *int64      `json:"salespersonId,omitempty"`
	Discount      float64     `json:"discount,omitempty"`
	TotalAmount   float64     `json:"totalAmount"`
	// CompletedAt is set when the order reaches SERVED.
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
}

func (o Order) GetRestaurantID() string { return o.RestaurantID }

// Subtotal sums the line totals before discount.
func (o Order) Subtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.LineTotal()
	}
	return sum
}

// OrderTotal computes max(0, subtotal - discount).
func OrderTotal(items []OrderItem, discount float64) float64 {
	var sum float64
	for _, it := range items {
		sum += it.LineTotal()
	}
	return math.Max(0, sum-discount)
}

// Clone returns a copy that shares no memory with o.
func (o Order) Clone() Order { return o.clone() }

func (o Order) clone() Order {
	out := o
	out.Items = cloneSlice(o.Items)
	out.TableNumber = clonePtr(o.TableNumber)
	out.CustomerID = clonePtr(o.CustomerID)
	out.DriverID = clonePtr(o.DriverID)
	out.SalespersonID = clonePtr(o.SalespersonID)
	out.CompletedAt = clonePtr(o.CompletedAt)
	return out
}
