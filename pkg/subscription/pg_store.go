package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

// pgPool is satisfied by *pgxpool.Pool.
type pgPool interface {
	pg.DB
	pg.TxBeginner
}

// PGStore is the Postgres Store over the subscriptions table.
type PGStore struct {
	db pgPool
}

// NewPGStore returns a Store backed by db.
func NewPGStore(db pgPool) *PGStore {
	if db == nil {
		panic("subscription: db cannot be nil")
	}
	return &PGStore{db: db}
}

const subscriptionColumns = `id::text, user_id, external_customer_id, external_subscription_id, plan_id, status,
	current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		s      Subscription
		extSub *string
		status string
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.ExternalCustomerID, &extSub, &s.PlanID, &status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrPersistence, err)
	}
	if extSub != nil {
		s.ExternalSubscriptionID = *extSub
	}
	s.Status = Status(status)
	return &s, nil
}

func (s *PGStore) GetCurrentSubscription(ctx context.Context, userID string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status IN ('pending', 'active', 'trialing', 'incomplete')
		ORDER BY created_at DESC
		LIMIT 1`, userID))
}

func (s *PGStore) GetLatestOpen(ctx context.Context, userID string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1`, userID))
}

func (s *PGStore) GetLatest(ctx context.Context, userID string) (*Subscription, error) {
	return scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, userID))
}

func (s *PGStore) CountByPlan(ctx context.Context, userID, planID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM subscriptions WHERE user_id = $1 AND plan_id = $2`,
		userID, planID,
	).Scan(&n); err != nil {
		return 0, errors.Join(ErrPersistence, err)
	}
	return n, nil
}

func (s *PGStore) CreatePending(ctx context.Context, userID, externalCustomerID, planID string) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, external_customer_id, plan_id, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+subscriptionColumns,
		userID, externalCustomerID, planID))
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, errors.Join(ErrPersistence, err)
		}
		return nil, err
	}
	return sub, nil
}

func (s *PGStore) UpsertFromProviderEvent(ctx context.Context, userID, externalCustomerID string, fields ProviderFields) (*Subscription, error) {
	var result *Subscription
	err := pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row, err := s.matchForUpsert(ctx, tx, userID, externalCustomerID, fields.SubscriptionID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			result, err = insertFromProvider(ctx, tx, userID, externalCustomerID, fields)
			return err
		case err != nil:
			return err
		}

		if !row.Status.CanTransitionTo(fields.Status) {
			result = row
			return nil
		}

		result, err = scanSubscription(tx.QueryRow(ctx, `
			UPDATE subscriptions SET
				external_customer_id     = $2,
				external_subscription_id = COALESCE(NULLIF($3, ''), external_subscription_id),
				plan_id                  = COALESCE(NULLIF($4, ''), plan_id),
				status                   = $5,
				current_period_start     = COALESCE($6, current_period_start),
				current_period_end       = COALESCE($7, current_period_end),
				cancel_at_period_end     = $8,
				updated_at               = now()
			WHERE id = $1
			RETURNING `+subscriptionColumns,
			row.ID, externalCustomerID, fields.SubscriptionID, fields.PlanID, string(fields.Status),
			fields.CurrentPeriodStart, fields.CurrentPeriodEnd, fields.CancelAtPeriodEnd))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert subscription for user %s: %w", userID, err)
	}
	return result, nil
}

// matchForUpsert locks the row an upsert should modify.
func (s *PGStore) matchForUpsert(ctx context.Context, tx pgx.Tx, userID, customerID, subscriptionID string) (*Subscription, error) {
	if subscriptionID != "" {
		row, err := scanSubscription(tx.QueryRow(ctx, `
			SELECT `+subscriptionColumns+`
			FROM subscriptions
			WHERE external_subscription_id = $1
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE`, subscriptionID))
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return row, err
		}
	}

	row, err := scanSubscription(tx.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND external_customer_id = $2 AND status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, userID, customerID))
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return row, err
	}

	return scanSubscription(tx.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, userID))
}

func insertFromProvider(ctx context.Context, tx pgx.Tx, userID, customerID string, f ProviderFields) (*Subscription, error) {
	return scanSubscription(tx.QueryRow(ctx, `
		INSERT INTO subscriptions (
			user_id, external_customer_id, external_subscription_id, plan_id, status,
			current_period_start, current_period_end, cancel_at_period_end
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		RETURNING `+subscriptionColumns,
		userID, customerID, f.SubscriptionID, f.PlanID, string(f.Status),
		f.CurrentPeriodStart, f.CurrentPeriodEnd, f.CancelAtPeriodEnd))
}

func (s *PGStore) MarkStatus(ctx context.Context, externalSubscriptionID string, status Status) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, `
		UPDATE subscriptions
		SET status = $2, updated_at = now()
		WHERE id = (
			SELECT id FROM subscriptions
			WHERE external_subscription_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		) AND status <> 'canceled' AND status <> $2
		RETURNING `+subscriptionColumns,
		externalSubscriptionID, string(status)))
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return sub, err
	}

	// Nothing updated: either no such row, or it is terminal or already in status.
	return scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE external_subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, externalSubscriptionID))
}
