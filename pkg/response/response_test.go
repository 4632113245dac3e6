package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/binder"
	"github.com/dmitrymomot/mymechanic/pkg/response"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	response.JSON(rec, http.StatusOK, map[string]bool{"received": true})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, true, decode(t, rec)["received"])
}

func TestError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	response.Error(rec, response.ErrForbidden.WithMessage("Active subscription required"), map[string]any{
		"needsSubscription": true,
		"code":              "overridden",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Active subscription required", body["error"])
	assert.Equal(t, "forbidden", body["code"], "code cannot be overridden by extra fields")
	assert.Equal(t, true, body["needsSubscription"])
}

func TestFromError(t *testing.T) {
	t.Parallel()

	t.Run("typed error", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		response.FromError(rec, fmt.Errorf("wrapped: %w", response.ErrNotFound))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decode(t, rec)["code"])
	})

	t.Run("untyped error hides details", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		response.FromError(rec, errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "internal_error", body["code"])
		assert.NotContains(t, body["error"], "pq")
	})
}

func TestBindError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	response.BindError(rec, binder.ValidationErrors{"planId": "required"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation_failed", body["code"])
	assert.Equal(t, map[string]any{"planId": "required"}, body["fields"])

	rec = httptest.NewRecorder()
	response.BindError(rec, fmt.Errorf("%w: text/plain", binder.ErrUnsupportedMediaType))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	response.BindError(rec, binder.ErrFailedToParseJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode(t, rec)["code"])
}
