package serverutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
	"github.com/jdholdren/popcorn/internal/popcorn"
)

func TestHandlerFuncE_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "structured",
			err:        poperrs.E("nope", http.StatusConflict),
			wantStatus: http.StatusConflict,
			wantMsg:    "nope",
		},
		{
			name:       "not found",
			err:        fmt.Errorf("error fetching show: %w", popcorn.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantMsg:    "not found",
		},
		{
			name:       "invalid",
			err:        popcorn.ErrInvalid,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid input",
		},
		{
			name:       "anything else",
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HandlerFuncE(func(w http.ResponseWriter, r *http.Request) error {
				return tt.err
			})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body struct {
				Message string `json:"message"`
				Status  int    `json:"status"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

type named struct {
	Name string `json:"name"`
}

func (n named) Validate() error {
	if n.Name == "" {
		return poperrs.E("invalid request", http.StatusBadRequest, poperrs.Detail{Field: "name", Error: "required"})
	}
	return nil
}

func TestDecodeValid(t *testing.T) {
	got, err := DecodeValid[named](bytes.NewBufferString(`{"name":"popcorn"}`))
	require.NoError(t, err)
	assert.Equal(t, "popcorn", got.Name)

	_, err = DecodeValid[named](bytes.NewBufferString(`{}`))
	pErr := &poperrs.Error{}
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, []poperrs.Detail{{Field: "name", Error: "required"}}, pErr.Details)

	_, err = DecodeValid[named](bytes.NewBufferString(`not json`))
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, http.StatusBadRequest, pErr.Status)
}

func TestAccessLogMiddleware_RequestID(t *testing.T) {
	r := ErrRouter{Router: mux.NewRouter()}
	r.Use(AccessLogMiddleware)
	r.HandleFuncE("/ping", func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get(RequestIDHeader))
}
