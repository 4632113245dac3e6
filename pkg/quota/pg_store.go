package quota

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

// PGStore keeps counters in the message_usage table, one row per user.
type PGStore struct {
	db pg.DB
}

func NewPGStore(db pg.DB) *PGStore {
	if db == nil {
		panic("quota: db cannot be nil")
	}
	return &PGStore{db: db}
}

const resetQuery = `
INSERT INTO message_usage (user_id, message_count, month, last_reset)
VALUES ($1, 0, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET message_count = 0, month = EXCLUDED.month, last_reset = EXCLUDED.last_reset
WHERE message_usage.month <> EXCLUDED.month`

func (s *PGStore) Current(ctx context.Context, userID, month string, now time.Time) (Usage, error) {
	if _, err := s.db.Exec(ctx, resetQuery, userID, month, now); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}

	u := Usage{UserID: userID}
	if err := s.db.QueryRow(ctx,
		`SELECT message_count, month, last_reset FROM message_usage WHERE user_id = $1`, userID,
	).Scan(&u.Count, &u.Month, &u.LastReset); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	return u, nil
}

// incrementQuery is the conditional increment. The WHERE clause of the
// conflict branch makes "below the limit" and "add one" a single atomic step.
const incrementQuery = `
INSERT INTO message_usage (user_id, message_count, month, last_reset)
VALUES ($1, 1, $2, $4)
ON CONFLICT (user_id) DO UPDATE
SET message_count = CASE WHEN message_usage.month = EXCLUDED.month THEN message_usage.message_count + 1 ELSE 1 END,
    last_reset    = CASE WHEN message_usage.month = EXCLUDED.month THEN message_usage.last_reset ELSE EXCLUDED.last_reset END,
    month         = EXCLUDED.month
WHERE message_usage.month <> EXCLUDED.month OR $3::int < 0 OR message_usage.message_count < $3::int
RETURNING message_count`

func (s *PGStore) Increment(ctx context.Context, userID, month string, limit int, now time.Time) (int, bool, error) {
	var count int
	err := s.db.QueryRow(ctx, incrementQuery, userID, month, limit, now).Scan(&count)
	switch {
	case pg.IsNotFoundError(err):
		return 0, false, nil
	case err != nil:
		return 0, false, errors.Join(ErrStoreUnavailable, err)
	}
	return count, true, nil
}
