package models

// Tenanted is implemented by every entity scoped to one restaurant.
type Tenanted interface {
	GetRestaurantID() string
}

// ForTenant returns the items that belong to restaurantID, preserving order.
func ForTenant[T Tenanted](items []T, restaurantID string) []T {
	out := make([]T, 0)
	for _, it := range items {
		if it.GetRestaurantID() == restaurantID {
			out = append(out, it)
		}
	}
	return out
}

// Dataset is the full tenant-spanning state: every collection plus settings.
// It is also the backup and export payload.
type Dataset struct {
	Restaurants    []Restaurant    `json:"restaurants"`
	Users          []User          `json:"users"`
	MenuItems      []MenuItem      `json:"menuItems"`
	Orders         []Order         `json:"orders"`
	Customers      []Customer      `json:"customers"`
	InventoryItems []InventoryItem `json:"inventoryItems"`
	Suppliers      []Supplier      `json:"suppliers"`
	Purchases      []Purchase      `json:"purchases"`
	SystemSettings SystemSettings  `json:"systemSettings"`
}

// NewDataset returns an empty dataset with default settings.
func NewDataset() Dataset {
	return Dataset{
		Restaurants:    []Restaurant{},
		Users:          []User{},
		MenuItems:      []MenuItem{},
		Orders:         []Order{},
		Customers:      []Customer{},
		InventoryItems: []InventoryItem{},
		Suppliers:      []Supplier{},
		Purchases:      []Purchase{},
		SystemSettings: DefaultSettings(),
	}
}

// Clone returns a deep copy. Collections are never nil in the copy.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Restaurants:    make([]Restaurant, len(d.Restaurants)),
		Users:          cloneSlice(d.Users),
		MenuItems:      cloneSlice(d.MenuItems),
		Orders:         make([]Order, len(d.Orders)),
		Customers:      cloneSlice(d.Customers),
		InventoryItems: cloneSlice(d.InventoryItems),
		Suppliers:      cloneSlice(d.Suppliers),
		Purchases:      make([]Purchase, len(d.Purchases)),
		SystemSettings: d.SystemSettings,
	}
	for i, r := range d.Restaurants {
		out.Restaurants[i] = r.clone()
	}
	for i, o := range d.Orders {
		out.Orders[i] = o.clone()
	}
	for i, p := range d.Purchases {
		out.Purchases[i] = p.clone()
	}
	return out
}

// MaxID returns the largest numeric id across all collections.
func (d Dataset) MaxID() int64 {
	var highest int64
	see := func(id int64) {
		if id > highest {
			highest = id
		}
	}
	for _, u := range d.Users {
		see(u.ID)
	}
	for _, m := range d.MenuItems {
		see(m.ID)
	}
	for _, o := range d.Orders {
		see(o.ID)
	}
	for _, c := range d.Customers {
		see(c.ID)
	}
	for _, i := range d.InventoryItems {
		see(i.ID)
	}
	for _, s := range d.Suppliers {
		see(s.ID)
	}
	for _, p := range d.Purchases {
		see(p.ID)
	}
	return highest
}

func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
