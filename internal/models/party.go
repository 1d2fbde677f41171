package models

// Customer is a delivery recipient.
type Customer struct {
	ID           int64  `json:"id"`
	RestaurantID string `json:"restaurantId"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

func (c Customer) GetRestaurantID() string { return c.RestaurantID }

// Supplier is the counterparty of a purchase.
type Supplier struct {
	ID            int64  `json:"id"`
	RestaurantID  string `json:"restaurantId"`
	Name          string `json:"name"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

func (s Supplier) GetRestaurantID() string { return s.RestaurantID }
