package models

import "time"

// Restaurant is a tenant. Every other entity points back to it through RestaurantID.
type Restaurant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// SubscriptionEndDate nil means a perpetual license.
	SubscriptionEndDate *Timestamp `json:"subscriptionEndDate"`
	ActivationCode      string     `json:"activationCode,omitempty"`
	IsActivated         bool       `json:"isActivated"`
	ActivationDate      *Timestamp `json:"activationDate,omitempty"`
}

// SubscriptionExpired reports whether the subscription ended strictly before now.
func (r Restaurant) SubscriptionExpired(now time.Time) bool {
	return r.SubscriptionEndDate != nil && r.SubscriptionEndDate.Before(now)
}

func (r Restaurant) clone() Restaurant {
	out := r
	if r.SubscriptionEndDate != nil {
		end := *r.SubscriptionEndDate
		out.SubscriptionEndDate = &end
	}
	if r.ActivationDate != nil {
		at := *r.ActivationDate
		out.ActivationDate = &at
	}
	return out
}
