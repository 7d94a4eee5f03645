package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/barstock-backend/pkg/actor"
	"github.com/barstock/barstock-backend/pkg/errors"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.InsufficientStock("item-1", "only 2 left"))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Equal(t, "item-1", resp.Error.Details["item_id"])
}

func TestError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, context.DeadlineExceeded)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	// Internal details never leak to the client
	assert.NotContains(t, resp.Error.Message, "deadline")
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Rack A"}`))

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, "Rack A", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	err := DecodeJSON(req, &body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestValidate(t *testing.T) {
	type input struct {
		Name   string `validate:"required"`
		Pieces int    `validate:"gt=0"`
	}

	require.NoError(t, Validate(input{Name: "bar", Pieces: 3}))

	err := Validate(input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "Name")
	assert.Contains(t, appErr.Details, "Pieces")
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// An inbound ID is propagated instead of replaced
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestActorContext(t *testing.T) {
	var got actor.Actor
	handler := ActorContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = actor.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Actor-ID", "user-42")
	req.Header.Set("X-Actor-Name", "T. Sato")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-42", got.ID)
	assert.Equal(t, "T. Sato", got.Name)

	// No headers falls back to the system actor
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, actor.System.ID, got.ID)
}
