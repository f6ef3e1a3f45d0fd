// Package erp is the client for the external catalog/order-management system
// (the system of record for customers, products and transactions).
//
// Every call carries a bearer credential: the per-request token bound to the
// context by pkg/auth, or the service-level token as a fallback. Responses
// and failures are surfaced as typed errors so handlers can distinguish
// authorization failures from network faults.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/filotex/ordermind/pkg/auth"
)

// Sentinel errors callers branch on.
var (
	// ErrUnauthorized covers 401/403 from the ERP.
	ErrUnauthorized = errors.New("erp: unauthorized")
	// ErrNotFound covers 404 from the ERP.
	ErrNotFound = errors.New("erp: not found")
	// ErrUnreachable covers timeouts and transport failures.
	ErrUnreachable = errors.New("erp: unreachable")
)

// APIError is a non-2xx ERP response that is not covered by a sentinel.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("erp: status %d: %s", e.Status, e.Body)
}

// Client talks to the ERP over HTTP.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates an ERP client. serviceToken may be empty; then only
// requests with a context-bound credential can succeed.
func NewClient(baseURL, serviceToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if tok := auth.TokenFrom(ctx); tok != "" {
		return tok, nil
	}
	if c.serviceToken != "" {
		return c.serviceToken, nil
	}
	return "", auth.ErrNoCredential
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erp: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("erp: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("erp.request_failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("erp.error_response", "method", method, "path", path, "status", resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		case http.StatusNotFound:
			return ErrNotFound
		default:
			return &APIError{Status: resp.StatusCode, Body: string(raw)}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("erp: decode response: %w", err)
	}
	return nil
}

func listQuery(search string, limit, offset int) string {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if enc := q.Encode(); enc != "" {
		return "?" + enc
	}
	return ""
}

// SearchCustomers looks up customers by free-text name match.
func (c *Client) SearchCustomers(ctx context.Context, search string, limit int) ([]Customer, error) {
	var out []Customer
	if err := c.do(ctx, http.MethodGet, "/sales/customer"+listQuery(search, limit, 0), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCustomer fetches one customer by id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodGet, "/sales/customer/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchProducts looks up catalog products by free-text match.
func (c *Client) SearchProducts(ctx context.Context, search string, limit int) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/product/product"+listQuery(search, limit, 0), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches one catalog product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/product/product/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSalesOrder submits a sales order. The order's status must be "draft":
// confirmation is a human action inside the ERP, never this system's.
func (c *Client) CreateSalesOrder(ctx context.Context, order SalesOrder) (*CreatedOrder, error) {
	var out CreatedOrder
	if err := c.do(ctx, http.MethodPut, "/sales/order", order, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWarehouses fetches all warehouses.
func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var out []Warehouse
	if err := c.do(ctx, http.MethodGet, "/iam/warehouse", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListInventory fetches a page of stock positions.
func (c *Client) ListInventory(ctx context.Context, limit, offset int) ([]InventoryItem, error) {
	var out []InventoryItem
	if err := c.do(ctx, http.MethodGet, "/product/inventory/product"+listQuery("", limit, offset), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges user credentials for an ERP bearer token. It is the one
// call that carries no Authorization header.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	raw, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("erp: marshal login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("erp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var out LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("erp: decode login response: %w", err)
	}
	return &out, nil
}
