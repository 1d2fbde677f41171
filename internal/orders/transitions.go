package orders

import "github.com/diewo77/foodcore/internal/models"

// legalNext is the full lifecycle graph, enforced in strict mode only.
var legalNext = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:        {models.StatusPreparing},
	models.StatusPreparing:      {models.StatusReady},
	models.StatusReady:          {models.StatusServed, models.StatusOutForDelivery},
	models.StatusOutForDelivery: {models.StatusServed},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
// Delivery-only edges also depend on the order type.
func CanTransition(o models.Order, to models.OrderStatus) bool {
	for _, next := range legalNext[o.Status] {
		if next != to {
			continue
		}
		if to == models.StatusOutForDelivery {
			return o.OrderType == models.OrderDelivery
		}
		return true
	}
	return false
}

// checkStatus applies the guards that hold in every mode, plus the graph
// in strict mode.
func checkStatus(o models.Order, next models.OrderStatus, strict bool) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if o.Status.Terminal() {
		return ErrTerminal
	}
	if next == models.StatusOutForDelivery {
		if o.OrderType != models.OrderDelivery {
			return ErrNotDelivery
		}
		if o.DriverID == nil {
			return ErrDriverRequired
		}
	}
	if strict && !CanTransition(o, next) {
		return ErrIllegalTransition
	}
	return nil
}
