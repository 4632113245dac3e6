package subscription

import "time"

// Subscription is one row of the subscriptions table. Rows are never hard-deleted;
// a user may have many historical rows but at most one that is not canceled.
type Subscription struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	ExternalCustomerID     string     `json:"-"`
	ExternalSubscriptionID string     `json:"-"`
	PlanID                 string     `json:"planId"`
	Status                 Status     `json:"status"`
	CurrentPeriodStart     *time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd       *time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd      bool       `json:"cancelAtPeriodEnd"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// IsCurrent reports whether the subscription entitles its user to the product.
func (s *Subscription) IsCurrent() bool {
	return s != nil && s.Status.IsCurrent()
}

// ProviderFields carries the provider-reported state applied by UpsertFromProviderEvent.
// Nil period bounds leave the stored values untouched.
type ProviderFields struct {
	SubscriptionID     string
	PlanID             string
	Status             Status
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// apply merges f into s.
func (f ProviderFields) apply(s *Subscription) {
	if f.SubscriptionID != "" {
		s.ExternalSubscriptionID = f.SubscriptionID
	}
	if f.PlanID != "" {
		s.PlanID = f.PlanID
	}
	s.Status = f.Status
	if f.CurrentPeriodStart != nil {
		t := *f.CurrentPeriodStart
		s.CurrentPeriodStart = &t
	}
	if f.CurrentPeriodEnd != nil {
		t := *f.CurrentPeriodEnd
		s.CurrentPeriodEnd = &t
	}
	s.CancelAtPeriodEnd = f.CancelAtPeriodEnd
}
