package conversation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

type pgPool interface {
	pg.DB
	pg.TxBeginner
}

// PGStore keeps conversations in the saved_conversations table.
type PGStore struct {
	db pgPool
}

func NewPGStore(db pgPool) *PGStore {
	if db == nil {
		panic("conversation: db cannot be nil")
	}
	return &PGStore{db: db}
}

const conversationColumns = `id::text, user_id, title,
	vehicle_year, vehicle_make, vehicle_model, vehicle_engine_type, vehicle_engine_size,
	messages, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c                                      Conversation
		year, vmake, model, engineType, engine *string
		messages                               []byte
	)
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Title,
		&year, &vmake, &model, &engineType, &engine,
		&messages, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrPersistence, err)
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	v := Vehicle{
		Year:       deref(year),
		Make:       deref(vmake),
		Model:      deref(model),
		EngineType: deref(engineType),
		EngineSize: deref(engine),
	}
	if !v.IsZero() {
		c.Vehicle = &v
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *PGStore) Insert(ctx context.Context, c Conversation, limit int) (*Conversation, error) {
	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	var v Vehicle
	if c.Vehicle != nil {
		v = *c.Vehicle
	}

	var result *Conversation
	err = pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		// Serializes saves per user so the count below stays accurate until commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "saved_conversations:"+c.UserID); err != nil {
			return errors.Join(ErrPersistence, err)
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM saved_conversations WHERE user_id = $1`, c.UserID,
		).Scan(&count); err != nil {
			return errors.Join(ErrPersistence, err)
		}
		if count >= limit {
			return &LimitError{Limit: limit, Count: count}
		}

		result, err = scanConversation(tx.QueryRow(ctx, `
			INSERT INTO saved_conversations (
				user_id, title,
				vehicle_year, vehicle_make, vehicle_model, vehicle_engine_type, vehicle_engine_size,
				messages
			) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
			RETURNING `+conversationColumns,
			c.UserID, c.Title, v.Year, v.Make, v.Model, v.EngineType, v.EngineSize, messages))
		return err
	})
	switch {
	case errors.Is(err, ErrLimitReached), errors.Is(err, ErrPersistence):
		return nil, err
	case err != nil:
		return nil, errors.Join(ErrPersistence, err)
	}
	return result, nil
}

func (s *PGStore) List(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM saved_conversations
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return out, nil
}

func (s *PGStore) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanConversation(s.db.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM saved_conversations
		WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *PGStore) Rename(ctx context.Context, userID, id, title string) (*Conversation, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanConversation(s.db.QueryRow(ctx, `
		UPDATE saved_conversations
		SET title = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+conversationColumns, id, userID, title))
}

func (s *PGStore) Delete(ctx context.Context, userID, id string) error {
	if uuid.Validate(id) != nil {
		return nil
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM saved_conversations WHERE id = $1 AND user_id = $2`, id, userID,
	); err != nil {
		return errors.Join(ErrPersistence, err)
	}
	return nil
}
