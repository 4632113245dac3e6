package subscription_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
)

type failingStore struct {
	subscription.Store
}

func (failingStore) GetCurrentSubscription(context.Context, string) (*subscription.Subscription, error) {
	return nil, errors.Join(subscription.ErrPersistence, errors.New("connection refused"))
}

func serveGate(gate *subscription.Gate, userID string, next http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	gate.Middleware(next).ServeHTTP(rec, req)
	return rec
}

func TestGate_AdmitsCurrentStatuses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := subscription.NewMemoryStore()
	_, err := store.CreatePending(ctx, "u1", "cus_1", "starter")
	require.NoError(t, err)

	var seen *subscription.Subscription
	rec := serveGate(subscription.NewGate(store), "u1", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = subscription.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, subscription.StatusPending, seen.Status)
}

func TestGate_Denies(t *testing.T) {
	t.Parallel()
	never := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }

	t.Run("without subscription", func(t *testing.T) {
		t.Parallel()
		rec := serveGate(subscription.NewGate(subscription.NewMemoryStore()), "u1", never)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Active subscription required","code":"subscription_required","needsSubscription":true}`, rec.Body.String())
	})

	t.Run("without identity", func(t *testing.T) {
		t.Parallel()
		rec := serveGate(subscription.NewGate(subscription.NewMemoryStore()), "", never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		rec := serveGate(subscription.NewGate(failingStore{}), "u1", never)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
