package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription rows.
type Store interface {
	// GetCurrentSubscription returns the newest row whose status is current
	// (pending, active, trialing, incomplete), or ErrSubscriptionNotFound.
	GetCurrentSubscription(ctx context.Context, userID string) (*Subscription, error)

	// GetLatestOpen returns the newest non-canceled row, or ErrSubscriptionNotFound.
	GetLatestOpen(ctx context.Context, userID string) (*Subscription, error)

	// GetLatest returns the newest row of any status, or ErrSubscriptionNotFound.
	GetLatest(ctx context.Context, userID string) (*Subscription, error)

	// CountByPlan counts every row the user ever had on planID, regardless of status.
	CountByPlan(ctx context.Context, userID, planID string) (int, error)

	// CreatePending inserts a pending row. Failures wrap ErrPersistence.
	CreatePending(ctx context.Context, userID, externalCustomerID, planID string) (*Subscription, error)

	// UpsertFromProviderEvent applies provider state to the row matched by, in order:
	// the same external subscription id, the newest non-canceled row for
	// (userID, externalCustomerID), the user's newest non-canceled row.
	// Without a match a new row is inserted. A matched canceled row is left unchanged.
	UpsertFromProviderEvent(ctx context.Context, userID, externalCustomerID string, fields ProviderFields) (*Subscription, error)

	// MarkStatus moves the row carrying externalSubscriptionID to status.
	// Returns ErrSubscriptionNotFound when no row carries that id.
	// A canceled row is returned unchanged.
	MarkStatus(ctx context.Context, externalSubscriptionID string, status Status) (*Subscription, error)
}

// MemoryStore is an in-process Store. Rows live until the process exits.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []*Subscription // insertion order, oldest first
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func cloneSubscription(s *Subscription) *Subscription {
	c := *s
	if s.CurrentPeriodStart != nil {
		t := *s.CurrentPeriodStart
		c.CurrentPeriodStart = &t
	}
	if s.CurrentPeriodEnd != nil {
		t := *s.CurrentPeriodEnd
		c.CurrentPeriodEnd = &t
	}
	return &c
}

// newest returns the last inserted row matching keep.
func (m *MemoryStore) newest(keep func(*Subscription) bool) *Subscription {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if keep(m.rows[i]) {
			return m.rows[i]
		}
	}
	return nil
}

func (m *MemoryStore) find(keep func(*Subscription) bool) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s := m.newest(keep); s != nil {
		return cloneSubscription(s), nil
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) GetCurrentSubscription(_ context.Context, userID string) (*Subscription, error) {
	return m.find(func(s *Subscription) bool { return s.UserID == userID && s.Status.IsCurrent() })
}

func (m *MemoryStore) GetLatestOpen(_ context.Context, userID string) (*Subscription, error) {
	return m.find(func(s *Subscription) bool { return s.UserID == userID && s.Status != StatusCanceled })
}

func (m *MemoryStore) GetLatest(_ context.Context, userID string) (*Subscription, error) {
	return m.find(func(s *Subscription) bool { return s.UserID == userID })
}

func (m *MemoryStore) CountByPlan(_ context.Context, userID, planID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.rows {
		if s.UserID == userID && s.PlanID == planID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreatePending(_ context.Context, userID, externalCustomerID, planID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if open := m.newest(func(s *Subscription) bool { return s.UserID == userID && s.Status != StatusCanceled }); open != nil {
		return nil, ErrPersistence
	}

	now := m.now()
	s := &Subscription{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ExternalCustomerID: externalCustomerID,
		PlanID:             planID,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.rows = append(m.rows, s)
	return cloneSubscription(s), nil
}

func (m *MemoryStore) UpsertFromProviderEvent(_ context.Context, userID, externalCustomerID string, fields ProviderFields) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var row *Subscription
	if fields.SubscriptionID != "" {
		row = m.newest(func(s *Subscription) bool { return s.ExternalSubscriptionID == fields.SubscriptionID })
	}
	if row == nil {
		row = m.newest(func(s *Subscription) bool {
			return s.UserID == userID && s.ExternalCustomerID == externalCustomerID && s.Status != StatusCanceled
		})
	}
	if row == nil {
		row = m.newest(func(s *Subscription) bool { return s.UserID == userID && s.Status != StatusCanceled })
	}

	now := m.now()
	if row == nil {
		row = &Subscription{
			ID:                 uuid.NewString(),
			UserID:             userID,
			ExternalCustomerID: externalCustomerID,
			CreatedAt:          now,
		}
		fields.apply(row)
		row.UpdatedAt = now
		m.rows = append(m.rows, row)
		return cloneSubscription(row), nil
	}

	if !row.Status.CanTransitionTo(fields.Status) {
		return cloneSubscription(row), nil
	}
	row.ExternalCustomerID = externalCustomerID
	fields.apply(row)
	row.UpdatedAt = now
	return cloneSubscription(row), nil
}

func (m *MemoryStore) MarkStatus(_ context.Context, externalSubscriptionID string, status Status) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.newest(func(s *Subscription) bool { return s.ExternalSubscriptionID == externalSubscriptionID })
	if row == nil {
		return nil, ErrSubscriptionNotFound
	}
	if row.Status.CanTransitionTo(status) && row.Status != status {
		row.Status = status
		row.UpdatedAt = m.now()
	}
	return cloneSubscription(row), nil
}

// All returns a snapshot of every row, oldest first.
func (m *MemoryStore) All() []Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Subscription, 0, len(m.rows))
	for _, s := range slices.Clone(m.rows) {
		out = append(out, *cloneSubscription(s))
	}
	return out
}
