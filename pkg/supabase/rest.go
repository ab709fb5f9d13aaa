// Package supabase talks to a Supabase project: PostgREST for the store
// directory and Realtime for cashier channels.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/pkg/models"
)

var ErrUnauthorized = errors.New("supabase unauthorized")

// Postgres SQLSTATE for a value that does not parse as the column type.
const invalidTextRepresentation = "22P02"

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("supabase api error: %s", e.Status)
	}
	return fmt.Sprintf("supabase api error: %s: %s", e.Status, e.Body)
}

// Client is a PostgREST directory and broadcast publisher.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL, anonKey string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("apikey", anonKey).
		SetTimeout(10 * time.Second)
	if anonKey != "" {
		httpClient.SetAuthScheme("Bearer")
		httpClient.SetAuthToken(anonKey)
	}

	return &Client{
		http:   httpClient,
		logger: logger.Named("supabase"),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	var rows []models.Store
	return c.doGet(ctx, "/rest/v1/stores", map[string]string{"select": "id", "limit": "1"}, &rows)
}

func (c *Client) StoreByDisplayID(ctx context.Context, code string) (*models.Store, error) {
	return c.findStore(ctx, "display_id", code)
}

func (c *Client) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	return c.findStore(ctx, "id", id)
}

func (c *Client) findStore(ctx context.Context, column, value string) (*models.Store, error) {
	var rows []models.Store
	query := map[string]string{
		"select": "id,name,display_id",
		column:   "eq." + value,
		"limit":  "1",
	}
	if err := c.doGet(ctx, "/rest/v1/stores", query, &rows); err != nil {
		if isInvalidInput(err) {
			return nil, models.ErrStoreNotFound
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrStoreNotFound
	}
	return &rows[0], nil
}

func (c *Client) CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error) {
	cashiers := []models.Cashier{}
	query := map[string]string{
		"select":   "id,name,employee_id,avatar_url",
		"store_id": "eq." + storeID,
		"order":    "name.asc",
	}
	if err := c.doGet(ctx, "/rest/v1/employees", query, &cashiers); err != nil {
		if isInvalidInput(err) {
			return []models.Cashier{}, nil
		}
		return nil, err
	}
	return cashiers, nil
}

type broadcastMessage struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Publish sends one broadcast to channel through the Realtime REST endpoint.
func (c *Client) Publish(ctx context.Context, channel, event string, payload any) error {
	body := map[string][]broadcastMessage{
		"messages": {{Topic: channel, Event: event, Payload: payload}},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/realtime/v1/api/broadcast")
	if err != nil {
		return fmt.Errorf("supabase broadcast: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string, query map[string]string, result any) error {
	req := c.http.R().SetContext(ctx).SetResult(result)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	return nil
}

// isInvalidInput reports a filter value Postgres could not cast to the column
// type, e.g. a non-uuid store id. No row can match such a value.
func isInvalidInput(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	return strings.Contains(apiErr.Body, invalidTextRepresentation) || strings.Contains(apiErr.Body, "invalid input syntax")
}

func apiErrorFromResponse(resp *resty.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       strings.TrimSpace(resp.String()),
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error())
	default:
		return apiErr
	}
}
