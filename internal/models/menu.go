package models

// MenuItem is a sellable catalogue entry.
type MenuItem struct {
	ID           int64   `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Cost         float64 `json:"cost"`
	Category     string  `json:"category"`
	IconName     string  `json:"iconName"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Description  string  `json:"description,omitempty"`
}

func (m MenuItem) GetRestaurantID() string { return m.RestaurantID }
