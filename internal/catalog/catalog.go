// Package catalog manages the reference data of a restaurant: menu items,
// customers and suppliers, plus the process-wide system settings.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("catalog: not found")

type Service struct {
	state *state.State
	log   *zap.Logger
}

func NewService(st *state.State, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: st, log: log.Named("catalog")}
}

// indexIn finds the entity with id inside restaurantID.
func indexIn[T models.Tenanted](items []T, restaurantID string, id func(T) int64, want int64) int {
	for i, it := range items {
		if id(it) == want && it.GetRestaurantID() == restaurantID {
			return i
		}
	}
	return -1
}

func list[T models.Tenanted](st *state.State, pick func(d *models.Dataset) []T, restaurantID string) []T {
	var out []T
	st.View(func(d *models.Dataset) {
		out = models.ForTenant(pick(d), restaurantID)
	})
	return out
}

// MenuInput is the editable part of a menu item.
type MenuInput struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Category    string  `json:"category"`
	IconName    string  `json:"iconName"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (in MenuInput) validate() error {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("category", in.Category, v)
	validation.NonNegativeFloat("price", in.Price, v)
	validation.NonNegativeFloat("cost", in.Cost, v)
	return v.Err()
}

func (in MenuInput) apply(m *models.MenuItem) {
	m.Name = strings.TrimSpace(in.Name)
	m.Price = in.Price
	m.Cost = in.Cost
	m.Category = strings.TrimSpace(in.Category)
	m.IconName = in.IconName
	m.ImageURL = in.ImageURL
	m.Description = in.Description
}

func menuID(m models.MenuItem) int64 { return m.ID }

func (s *Service) AddMenuItem(ctx context.Context, restaurantID string, in MenuInput) (models.MenuItem, error) {
	if err := in.validate(); err != nil {
		return models.MenuItem{}, err
	}
	item := models.MenuItem{ID: s.state.NextID(), RestaurantID: restaurantID}
	in.apply(&item)
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		d.MenuItems = append(d.MenuItems, item)
		return nil
	}, store.KeyMenuItems)
	return item, err
}

func (s *Service) UpdateMenuItem(ctx context.Context, restaurantID string, id int64, in MenuInput) (models.MenuItem, error) {
	if err := in.validate(); err != nil {
		return models.MenuItem{}, err
	}
	var item models.MenuItem
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.MenuItems, restaurantID, menuID, id)
		if i < 0 {
			return ErrNotFound
		}
		in.apply(&d.MenuItems[i])
		item = d.MenuItems[i]
		return nil
	}, store.KeyMenuItems)
	return item, err
}

func (s *Service) DeleteMenuItem(ctx context.Context, restaurantID string, id int64) error {
	return s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.MenuItems, restaurantID, menuID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.MenuItems = append(d.MenuItems[:i], d.MenuItems[i+1:]...)
		return nil
	}, store.KeyMenuItems)
}

func (s *Service) MenuItems(restaurantID string) []models.MenuItem {
	return list(s.state, func(d *models.Dataset) []models.MenuItem { return d.MenuItems }, restaurantID)
}

// CustomerInput is the editable part of a customer.
type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (in CustomerInput) validate() error {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("phone", in.Phone, v)
	return v.Err()
}

func customerID(c models.Customer) int64 { return c.ID }

func (s *Service) AddCustomer(ctx context.Context, restaurantID string, in CustomerInput) (models.Customer, error) {
	if err := in.validate(); err != nil {
		return models.Customer{}, err
	}
	c := models.Customer{
		ID:           s.state.NextID(),
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      in.Address,
	}
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		d.Customers = append(d.Customers, c)
		return nil
	}, store.KeyCustomers)
	return c, err
}

func (s *Service) UpdateCustomer(ctx context.Context, restaurantID string, id int64, in CustomerInput) (models.Customer, error) {
	if err := in.validate(); err != nil {
		return models.Customer{}, err
	}
	var c models.Customer
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.Customers, restaurantID, customerID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.Customers[i].Name = strings.TrimSpace(in.Name)
		d.Customers[i].Phone = strings.TrimSpace(in.Phone)
		d.Customers[i].Address = in.Address
		c = d.Customers[i]
		return nil
	}, store.KeyCustomers)
	return c, err
}

func (s *Service) DeleteCustomer(ctx context.Context, restaurantID string, id int64) error {
	return s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.Customers, restaurantID, customerID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.Customers = append(d.Customers[:i], d.Customers[i+1:]...)
		return nil
	}, store.KeyCustomers)
}

func (s *Service) Customers(restaurantID string) []models.Customer {
	return list(s.state, func(d *models.Dataset) []models.Customer { return d.Customers }, restaurantID)
}

// SupplierInput is the editable part of a supplier.
type SupplierInput struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

func supplierID(s models.Supplier) int64 { return s.ID }

func (s *Service) AddSupplier(ctx context.Context, restaurantID string, in SupplierInput) (models.Supplier, error) {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	if err := v.Err(); err != nil {
		return models.Supplier{}, err
	}
	sup := models.Supplier{
		ID:            s.state.NextID(),
		RestaurantID:  restaurantID,
		Name:          strings.TrimSpace(in.Name),
		ContactPerson: in.ContactPerson,
		Phone:         in.Phone,
	}
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		d.Suppliers = append(d.Suppliers, sup)
		return nil
	}, store.KeySuppliers)
	return sup, err
}

func (s *Service) UpdateSupplier(ctx context.Context, restaurantID string, id int64, in SupplierInput) (models.Supplier, error) {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	if err := v.Err(); err != nil {
		return models.Supplier{}, err
	}
	var sup models.Supplier
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.Suppliers, restaurantID, supplierID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.Suppliers[i].Name = strings.TrimSpace(in.Name)
		d.Suppliers[i].ContactPerson = in.ContactPerson
		d.Suppliers[i].Phone = in.Phone
		sup = d.Suppliers[i]
		return nil
	}, store.KeySuppliers)
	return sup, err
}

func (s *Service) DeleteSupplier(ctx context.Context, restaurantID string, id int64) error {
	return s.state.Mutate(ctx, func(d *models.Dataset) error {
		i := indexIn(d.Suppliers, restaurantID, supplierID, id)
		if i < 0 {
			return ErrNotFound
		}
		d.Suppliers = append(d.Suppliers[:i], d.Suppliers[i+1:]...)
		return nil
	}, store.KeySuppliers)
}

func (s *Service) Suppliers(restaurantID string) []models.Supplier {
	return list(s.state, func(d *models.Dataset) []models.Supplier { return d.Suppliers }, restaurantID)
}

func (s *Service) Settings() models.SystemSettings {
	var out models.SystemSettings
	s.state.View(func(d *models.Dataset) { out = d.SystemSettings })
	return out
}

func (s *Service) UpdateSettings(ctx context.Context, in models.SystemSettings) (models.SystemSettings, error) {
	v := make(validation.Violations)
	validation.Required("appName", in.AppName, v)
	validation.OneOf("receiptTemplate", string(in.ReceiptTemplate),
		[]string{string(models.ReceiptStandard), string(models.ReceiptCompact)}, v)
	if err := v.Err(); err != nil {
		return models.SystemSettings{}, err
	}
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		d.SystemSettings = in
		return nil
	}, store.KeySystemSettings)
	return in, err
}
