// Package tenant is the restaurant registry.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("tenant: restaurant not found")

// NewRestaurant is the input of Add. ID is generated when empty.
type NewRestaurant struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Directory struct {
	state *state.State
	log   *zap.Logger
}

func NewDirectory(st *state.State, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{state: st, log: log.Named("tenant")}
}

// Add registers an unactivated restaurant without code and with a
// perpetual subscription.
func (d *Directory) Add(ctx context.Context, in NewRestaurant) (models.Restaurant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	r := models.Restaurant{ID: in.ID, Name: in.Name}

	err := d.state.Mutate(ctx, func(ds *models.Dataset) error {
		v := make(validation.Violations)
		validation.Required("name", in.Name, v)
		if _, exists := d.state.RestaurantIndex(in.ID); exists {
			v["id"] = "duplicate"
		}
		if err := v.Err(); err != nil {
			return err
		}
		ds.Restaurants = append(ds.Restaurants, r)
		return nil
	}, store.KeyRestaurants)
	if err != nil {
		return models.Restaurant{}, err
	}
	d.log.Info("restaurant added", zap.String("restaurant_id", r.ID), zap.String("name", r.Name))
	return r, nil
}

// List returns every restaurant in registration order.
func (d *Directory) List() []models.Restaurant {
	return d.state.Snapshot().Restaurants
}

func (d *Directory) Get(id string) (models.Restaurant, error) {
	r, ok := d.state.Restaurant(id)
	if !ok {
		return models.Restaurant{}, ErrNotFound
	}
	return r, nil
}

// Activated returns the restaurants that redeemed a code.
func (d *Directory) Activated() []models.Restaurant {
	var out []models.Restaurant
	for _, r := range d.List() {
		if r.IsActivated {
			out = append(out, r)
		}
	}
	return out
}

// UpdateSubscription sets the subscription end; nil makes it perpetual.
func (d *Directory) UpdateSubscription(ctx context.Context, id string, end *time.Time) (models.Restaurant, error) {
	return d.update(ctx, id, func(r *models.Restaurant) error {
		if end == nil {
			r.SubscriptionEndDate = nil
		} else {
			r.SubscriptionEndDate = models.AtPtr(*end)
		}
		return nil
	})
}

func (d *Directory) Rename(ctx context.Context, id, name string) (models.Restaurant, error) {
	name = strings.TrimSpace(name)
	return d.update(ctx, id, func(r *models.Restaurant) error {
		v := make(validation.Violations)
		validation.Required("name", name, v)
		if err := v.Err(); err != nil {
			return err
		}
		r.Name = name
		return nil
	})
}

func (d *Directory) update(ctx context.Context, id string, fn func(r *models.Restaurant) error) (models.Restaurant, error) {
	var out models.Restaurant
	err := d.state.Mutate(ctx, func(ds *models.Dataset) error {
		i, ok := d.state.RestaurantIndex(id)
		if !ok {
			return ErrNotFound
		}
		r := ds.Restaurants[i]
		if err := fn(&r); err != nil {
			return err
		}
		ds.Restaurants[i] = r
		out = r
		return nil
	}, store.KeyRestaurants)
	return out, err
}
