package subscription

// Status is the lifecycle state of a subscription row.
//
//	pending -> {incomplete, trialing, active} -> {active <-> past_due} -> canceled
type Status string

const (
	StatusPending    Status = "pending" // created locally at checkout, not yet confirmed by the provider
	StatusIncomplete Status = "incomplete"
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled" // terminal
)

// currentStatuses is the set that entitles a user to the product.
var currentStatuses = []Status{StatusPending, StatusActive, StatusTrialing, StatusIncomplete}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// IsCurrent reports whether a row in this status counts as the user's current subscription.
func (s Status) IsCurrent() bool {
	for _, c := range currentStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a row in status s may move to next.
// Canceled is terminal and pending is only ever an entry state.
// Everything else is last-write-wins.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() {
		return false
	}
	if s == StatusCanceled {
		return next == StatusCanceled
	}
	if next == StatusPending {
		return s == StatusPending
	}
	return true
}

// FromStripeStatus maps a Stripe subscription status onto the local lifecycle.
// Statuses with no local equivalent deny access without being terminal.
func FromStripeStatus(s string) Status {
	switch s {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "incomplete":
		return StatusIncomplete
	case "past_due", "unpaid", "paused":
		return StatusPastDue
	case "canceled", "incomplete_expired":
		return StatusCanceled
	default:
		return StatusPastDue
	}
}
