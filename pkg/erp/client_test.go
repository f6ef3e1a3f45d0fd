package erp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filotex/ordermind/pkg/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "service-token", 2*time.Second, nil)
}

func TestSearchCustomers_UsesContextToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/sales/customer", r.URL.Path)
		require.Equal(t, "acme", r.URL.Query().Get("search"))
		_ = json.NewEncoder(w).Encode([]Customer{{ID: "c-1", Name: "ACME SPA"}})
	})

	ctx := auth.WithToken(context.Background(), "user-token")
	customers, err := c.SearchCustomers(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Bearer user-token", gotAuth)
}

func TestSearchCustomers_ServiceTokenFallback(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Customer{})
	})

	_, err := c.SearchCustomers(context.Background(), "acme", 10)
	require.NoError(t, err)
	require.Equal(t, "Bearer service-token", gotAuth)
}

func TestClient_NoCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the ERP without a credential")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	_, err := c.GetCustomer(context.Background(), "c-1")
	require.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetCustomer(context.Background(), "c-1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetProduct(context.Background(), "p-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	c.httpClient.Timeout = 20 * time.Millisecond

	_, err := c.SearchProducts(context.Background(), "x", 5)
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestCreateSalesOrder_SubmitsDraftStatus(t *testing.T) {
	var got SalesOrder
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/sales/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(CreatedOrder{ID: "o-1", InternalID: "SO-2026/0042"})
	})

	created, err := c.CreateSalesOrder(context.Background(), SalesOrder{
		CustomerID: "c-1",
		Status:     "draft",
		Products:   []OrderLine{{ExtraID: "CRISP 18", Quantity: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, "SO-2026/0042", created.InternalID)
	require.Equal(t, "draft", got.Status)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(LoginResult{AccessToken: "tok"})
	})

	res, err := c.Login(context.Background(), "mario", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok", res.AccessToken)

	_, err = c.Login(context.Background(), "mario", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	c2 := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err = c2.SearchCustomers(context.Background(), "x", 1)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
}
