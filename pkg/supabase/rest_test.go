package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/pkg/models"
)

func newRESTServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "anon-key", zap.NewNop())
}

func TestStoreByDisplayID(t *testing.T) {
	client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/stores", r.URL.Path)
		assert.Equal(t, "eq.12345678", r.URL.Query().Get("display_id"))
		assert.Equal(t, "id,name,display_id", r.URL.Query().Get("select"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"store-1","name":"Kopi Kita","display_id":"12345678"}]`))
	})

	store, err := client.StoreByDisplayID(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, models.Store{ID: "store-1", Name: "Kopi Kita", DisplayID: "12345678"}, *store)
}

func TestStoreByIDNoRows(t *testing.T) {
	client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.store-404", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.StoreByID(context.Background(), "store-404")

	assert.ErrorIs(t, err, models.ErrStoreNotFound)
}

func TestMalformedIDMatchesNothing(t *testing.T) {
	client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"22P02","details":null,"hint":null,"message":"invalid input syntax for type uuid: \"kopi-kita\""}`))
	})

	_, err := client.StoreByID(context.Background(), "kopi-kita")
	assert.ErrorIs(t, err, models.ErrStoreNotFound)

	cashiers, err := client.CashiersByStore(context.Background(), "kopi-kita")
	require.NoError(t, err)
	assert.Empty(t, cashiers)
}

func TestCashiersByStore(t *testing.T) {
	client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/employees", r.URL.Path)
		assert.Equal(t, "eq.store-1", r.URL.Query().Get("store_id"))
		assert.Equal(t, "name.asc", r.URL.Query().Get("order"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"emp-1","name":"Budi","employee_id":"K-001","avatar_url":null},
			{"id":"emp-2","name":"Sari","employee_id":"K-002","avatar_url":"https://cdn.example/sari.png"}
		]`))
	})

	cashiers, err := client.CashiersByStore(context.Background(), "store-1")

	require.NoError(t, err)
	assert.Equal(t, []models.Cashier{
		{ID: "emp-1", Name: "Budi", EmployeeCode: "K-001"},
		{ID: "emp-2", Name: "Sari", EmployeeCode: "K-002", AvatarURL: "https://cdn.example/sari.png"},
	}, cashiers)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		unauthorized bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"forbidden", http.StatusForbidden, true},
		{"bad request", http.StatusBadRequest, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := client.StoreByDisplayID(context.Background(), "12345678")

			require.Error(t, err)
			assert.NotErrorIs(t, err, models.ErrStoreNotFound)
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))

			var apiErr *APIError
			if !tt.unauthorized {
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.Contains(t, apiErr.Error(), "nope")
			}
		})
	}
}

func TestPublish(t *testing.T) {
	var body map[string][]map[string]json.RawMessage
	client := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/realtime/v1/api/broadcast", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.Publish(context.Background(), "store-1-employee-1", models.EventPaymentSuccess, models.PaymentSuccess{Change: 15000})

	require.NoError(t, err)
	require.Len(t, body["messages"], 1)
	msg := body["messages"][0]
	assert.JSONEq(t, `"store-1-employee-1"`, string(msg["topic"]))
	assert.JSONEq(t, `"payment-success"`, string(msg["event"]))
	assert.JSONEq(t, `{"change":15000}`, string(msg["payload"]))
}
