package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/pkg/circuitbreaker"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
	"github.com/flowsync/flowsync-api/pkg/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceName    = "webflow"
	defaultBaseURL = "https://api.webflow.com/v2"
	pageSize       = 100
)

// Options are the process-wide settings shared by every per-user client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	Pool              *limiter.Pool
	Breaker           *gobreaker.CircuitBreaker
}

// Client is a Webflow Data API v2 client bound to one access token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	pool       *limiter.Pool
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a client for the given access token.
func NewClient(token string, opts Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ConfigurationError("webflow access token")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	pool := opts.Pool
	if pool == nil {
		pool = limiter.NewPool(serviceName, 1, 0)
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(serviceName))
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
		pool:       pool,
		breaker:    breaker,
	}, nil
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// do performs one request with pacing, transient retries and the breaker.
// out may be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
	}

	start := time.Now()
	err := retry.Do(ctx, retry.WebflowConfig(), serviceName+"."+operation, func() error {
		_, err := circuitbreaker.Execute(c.breaker, func() (struct{}, error) {
			return struct{}{}, c.roundTrip(ctx, method, path, payload, out)
		})
		return err
	})
	duration := metrics.MeasureDuration(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveAPICall(serviceName, operation, status, duration)
	if err != nil {
		logger.LogAPICall(serviceName, operation, status, duration, zap.String("path", path), zap.Error(err))
	} else {
		logger.LogAPICall(serviceName, operation, status, duration, zap.String("path", path))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamError(serviceName, http.StatusBadGateway, "transport", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read webflow response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiErrorBody
		message := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Message != "" {
				message = apiErr.Message
			} else if apiErr.Msg != "" {
				message = apiErr.Msg
			}
		}
		return &apperrors.APIError{
			Service:    serviceName,
			Status:     resp.StatusCode,
			Code:       apiErr.Code,
			Message:    message,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode webflow response: %w", err)
	}
	return nil
}

// ListCollections returns the collections of a site.
func (c *Client) ListCollections(ctx context.Context, siteID string) ([]models.CollectionSummary, error) {
	var resp struct {
		Collections []models.CollectionSummary `json:"collections"`
	}
	path := "/sites/" + url.PathEscape(siteID) + "/collections"
	if err := c.do(ctx, "list_collections", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// GetCollection returns a collection with its fields.
func (c *Client) GetCollection(ctx context.Context, collectionID string) (*models.Collection, error) {
	var collection models.Collection
	path := "/collections/" + url.PathEscape(collectionID)
	if err := c.do(ctx, "get_collection", http.MethodGet, path, nil, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// ListItems returns every staged item of a collection, following pagination.
func (c *Client) ListItems(ctx context.Context, collectionID string) ([]models.Item, error) {
	var items []models.Item
	for offset := 0; ; {
		var resp struct {
			Items      []models.Item `json:"items"`
			Pagination struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
				Total  int `json:"total"`
			} `json:"pagination"`
		}
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		path := "/collections/" + url.PathEscape(collectionID) + "/items?" + q.Encode()
		if err := c.do(ctx, "list_items", http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
		offset += len(resp.Items)
		if len(resp.Items) == 0 || offset >= resp.Pagination.Total {
			return items, nil
		}
	}
}

// GetItem returns one staged item.
func (c *Client) GetItem(ctx context.Context, collectionID, itemID string) (*models.Item, error) {
	var item models.Item
	path := "/collections/" + url.PathEscape(collectionID) + "/items/" + url.PathEscape(itemID)
	if err := c.do(ctx, "get_item", http.MethodGet, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

type itemWrite struct {
	IsArchived *bool          `json:"isArchived,omitempty"`
	IsDraft    *bool          `json:"isDraft,omitempty"`
	FieldData  map[string]any `json:"fieldData"`
}

// CreateItem creates a staged item.
func (c *Client) CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, isDraft bool) (*models.Item, error) {
	var item models.Item
	path := "/collections/" + url.PathEscape(collectionID) + "/items"
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, "create_item", http.MethodPost, path, itemWrite{IsDraft: &isDraft, FieldData: fieldData}, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem patches the given fields of a staged item.
func (c *Client) UpdateItem(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*models.Item, error) {
	var item models.Item
	path := "/collections/" + url.PathEscape(collectionID) + "/items/" + url.PathEscape(itemID)
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, "update_item", http.MethodPatch, path, itemWrite{FieldData: fieldData}, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem deletes a staged item.
func (c *Client) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	path := "/collections/" + url.PathEscape(collectionID) + "/items/" + url.PathEscape(itemID)
	return c.pool.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, "delete_item", http.MethodDelete, path, nil, nil)
	})
}

// CreateField adds a field to a collection and returns it with the slug
// Webflow assigned.
func (c *Client) CreateField(ctx context.Context, collectionID string, spec models.FieldSpec) (*models.Field, error) {
	var field models.Field
	path := "/collections/" + url.PathEscape(collectionID) + "/fields"
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, "create_field", http.MethodPost, path, spec, &field)
	})
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// parseRetryAfter reads the delta-seconds form Webflow sends on 429.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
