package licensing

// Phase is where a terminal has to be routed.
type Phase string

const (
	// System-wide phases
	PhaseNoRestaurants           Phase = "NO_RESTAURANTS"
	PhaseAwaitingFirstActivation Phase = "AWAITING_FIRST_ACTIVATION"
	PhaseReady                   Phase = "READY"

	// Per-restaurant phases
	PhaseUnactivated          Phase = "UNACTIVATED"
	PhasePendingAdminCreation Phase = "PENDING_ADMIN_CREATION"
	PhaseActive               Phase = "ACTIVE"
	PhaseSubscriptionExpired  Phase = "SUBSCRIPTION_EXPIRED"
)

// Result is the outcome of a licensing transition. Failures are values,
// not errors, so callers can pick their own messaging.
type Result string

const (
	ResultSuccess      Result = "SUCCESS"
	ResultInvalidCode  Result = "INVALID_CODE"
	ResultAlreadyUsed  Result = "ALREADY_USED"
	ResultNotFound     Result = "NOT_FOUND"
	ResultInvalidState Result = "INVALID_STATE"
	ResultStorageError Result = "STORAGE_ERROR"
)

func (r Result) OK() bool { return r == ResultSuccess }
