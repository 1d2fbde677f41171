package models

// InventoryItem is a stock-keeping unit. Stock only grows through purchases.
type InventoryItem struct {
	ID           int64   `json:"id"`
	RestaurantID string  `json:"restaurantId"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Stock        float64 `json:"stock"`
	CostPerUnit  float64 `json:"costPerUnit"`
}

func (i InventoryItem) GetRestaurantID() string { return i.RestaurantID }

// PurchaseItem is one line of a purchase; Cost is the line total.
type PurchaseItem struct {
	InventoryItemID int64   `json:"inventoryItemId"`
	Quantity        float64 `json:"quantity"`
	Cost            float64 `json:"cost"`
}

// Purchase records goods received from a supplier.
type Purchase struct {
	ID           int64          `json:"id"`
	RestaurantID string         `json:"restaurantId"`
	SupplierID   int64          `json:"supplierId"`
	Date         Timestamp      `json:"date"`
	Items        []PurchaseItem `json:"items"`
	TotalCost    float64        `json:"totalCost"`
}

func (p Purchase) GetRestaurantID() string { return p.RestaurantID }

func (p Purchase) clone() Purchase {
	out := p
	out.Items = cloneSlice(p.Items)
	return out
}
