package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/kirana/internal/domain"
)

type sampleAddress struct {
	City    string `json:"city" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required,max=10"`
}

type sampleRequest struct {
	Quantity int           `json:"quantity" validate:"min=1"`
	Method   string        `json:"method" validate:"omitempty,oneof=card upi cod"`
	Address  sampleAddress `json:"address"`
}

func decodeBody(t *testing.T, body string) (sampleRequest, error) {
	t.Helper()
	var req sampleRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return req, DecodeJSON(r, "test.decode", &req)
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req, err := decodeBody(t, `{"quantity":2,"method":"upi","address":{"city":"Pune","zipCode":"411001"}}`)
		require.NoError(t, err)
		assert.Equal(t, 2, req.Quantity)
		assert.Equal(t, "Pune", req.Address.City)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := decodeBody(t, "")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, "Request body is required", domain.ErrorMessage(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := decodeBody(t, `{"quantity":`)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := decodeBody(t, `{"quantity":1,"price":1,"address":{"city":"a","zipCode":"b"}}`)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("rule failures keyed by json path", func(t *testing.T) {
		_, err := decodeBody(t, `{"quantity":0,"method":"cash","address":{"zipCode":"12345678901"}}`)
		require.True(t, domain.IsValidationError(err))

		fields := domain.GetValidationFields(err)
		assert.Equal(t, "must be at least 1", fields["quantity"])
		assert.Equal(t, "must be one of: card upi cod", fields["method"])
		assert.Equal(t, "is required", fields["address.city"])
		assert.Equal(t, "must be at most 10", fields["address.zipCode"])
	})
}

func TestPathUUID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders/abc", nil)
	r.SetPathValue("id", "abc")
	_, err := PathUUID(r, "id", "order.get")
	assert.True(t, domain.IsValidationError(err))

	r.SetPathValue("id", "9b2f4c1e-8a3d-4f7e-9c61-2d5e7a1b3c4d")
	id, err := PathUUID(r, "id", "order.get")
	require.NoError(t, err)
	assert.Equal(t, "9b2f4c1e-8a3d-4f7e-9c61-2d5e7a1b3c4d", id.String())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "healthy", wantStatus: http.StatusOK},
		{name: "store down", pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Health(pingerFunc(func(ctx context.Context) error { return tt.pingErr }))
			rr := httptest.NewRecorder()
			h(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
