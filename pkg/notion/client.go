package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/flowsync/flowsync-api/pkg/circuitbreaker"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
	"github.com/flowsync/flowsync-api/pkg/retry"
	"github.com/jomei/notionapi"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	serviceName = "notion"

	// MaxBlocksPerRequest is the most children one create or append call accepts.
	MaxBlocksPerRequest = 100
)

// Options are the process-wide settings shared by every per-user client.
type Options struct {
	// BaseURL overrides scheme and host of every request
	BaseURL         string
	Version         string
	Timeout         time.Duration
	Pool            *limiter.Pool
	Breaker         *gobreaker.CircuitBreaker
	ConflictBackoff time.Duration
	AppendBatchSize int
	AppendDelay     time.Duration
}

// Client talks to the Notion API on behalf of one user. Mutations go through
// the shared write pool; creates are paced and retried once on conflict.
type Client struct {
	api         *notionapi.Client
	pool        *limiter.Pool
	breaker     *gobreaker.CircuitBreaker
	conflict    retry.Config
	appendBatch int
	appendDelay time.Duration
}

// NewClient creates a client for the given integration token.
func NewClient(token string, opts Options) (*Client, error) {
	if token == "" {
		return nil, apperrors.ConfigurationError("notion access token")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if opts.BaseURL != "" {
		target, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid notion base url: %w", err)
		}
		if target.Host != "api.notion.com" {
			httpClient.Transport = &hostRewriter{target: target, next: http.DefaultTransport}
		}
	}

	clientOpts := []notionapi.ClientOption{notionapi.WithHTTPClient(httpClient)}
	if opts.Version != "" {
		clientOpts = append(clientOpts, notionapi.WithVersion(opts.Version))
	}

	pool := opts.Pool
	if pool == nil {
		pool = limiter.NewPool(serviceName, 2, 350*time.Millisecond)
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(serviceName))
	}
	backoff := opts.ConflictBackoff
	if backoff <= 0 {
		backoff = 1500 * time.Millisecond
	}
	batch := opts.AppendBatchSize
	if batch <= 0 || batch > MaxBlocksPerRequest {
		batch = MaxBlocksPerRequest
	}

	return &Client{
		api:         notionapi.NewClient(notionapi.Token(token), clientOpts...),
		pool:        pool,
		breaker:     breaker,
		conflict:    retry.ConflictConfig(backoff),
		appendBatch: batch,
		appendDelay: opts.AppendDelay,
	}, nil
}

// invoke runs one API call with transient retries behind the breaker and
// records its outcome.
func invoke[T any](ctx context.Context, c *Client, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := retry.DoWithResult(ctx, retry.NotionConfig(), serviceName+"."+operation, func() (T, error) {
		return circuitbreaker.Execute(c.breaker, func() (T, error) {
			res, callErr := fn(ctx)
			return res, translateError(callErr)
		})
	})
	duration := metrics.MeasureDuration(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveAPICall(serviceName, operation, status, duration)
	if err != nil {
		logger.LogAPICall(serviceName, operation, status, duration, zap.Error(err))
	} else {
		logger.LogAPICall(serviceName, operation, status, duration)
	}
	return result, err
}

// create runs a paced create and retries it once when Notion reports a
// conflicting concurrent create.
func create[T any](ctx context.Context, c *Client, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithResult(ctx, c.conflict, serviceName+"."+operation+".conflict", func() (T, error) {
		var out T
		err := c.pool.DoPaced(ctx, func(ctx context.Context) error {
			res, err := invoke(ctx, c, operation, fn)
			out = res
			return err
		})
		return out, err
	})
}

// write runs a non-create mutation inside the pool.
func write[T any](ctx context.Context, c *Client, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		res, err := invoke(ctx, c, operation, fn)
		out = res
		return err
	})
	return out, err
}

// translateError maps notionapi errors onto the shared error taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apperrors.UpstreamError(serviceName, apiErr.Status, string(apiErr.Code), apiErr.Message)
	}
	return err
}

// CreateDatabase creates a database under a parent page.
func (c *Client) CreateDatabase(ctx context.Context, parentPageID, title string, props notionapi.PropertyConfigs) (*notionapi.Database, error) {
	req := &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentPageID),
		},
		Title:      []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: title}}},
		Properties: props,
	}
	return create(ctx, c, "create_database", func(ctx context.Context) (*notionapi.Database, error) {
		return c.api.Database.Create(ctx, req)
	})
}

// GetDatabase fetches a database with its current property schema.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error) {
	return invoke(ctx, c, "get_database", func(ctx context.Context) (*notionapi.Database, error) {
		return c.api.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	})
}

// UpdateDatabaseProperties patches the named properties of a database.
func (c *Client) UpdateDatabaseProperties(ctx context.Context, databaseID string, props notionapi.PropertyConfigs) (*notionapi.Database, error) {
	req := &notionapi.DatabaseUpdateRequest{Properties: props}
	return write(ctx, c, "update_database", func(ctx context.Context) (*notionapi.Database, error) {
		return c.api.Database.Update(ctx, notionapi.DatabaseID(databaseID), req)
	})
}

// CreatePage creates a page in a database. Children beyond the per-request
// limit are appended after the page exists.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties, children []notionapi.Block) (*notionapi.Page, error) {
	first, rest := children, []notionapi.Block(nil)
	if len(children) > MaxBlocksPerRequest {
		first, rest = children[:MaxBlocksPerRequest], children[MaxBlocksPerRequest:]
	}
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: props,
		Children:   first,
	}
	page, err := create(ctx, c, "create_page", func(ctx context.Context) (*notionapi.Page, error) {
		return c.api.Page.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if err := c.AppendBlocks(ctx, string(page.ID), rest); err != nil {
			return page, fmt.Errorf("page %s created without its full content: %w", page.ID, err)
		}
	}
	return page, nil
}

// UpdatePageProperties overwrites the given properties of a page.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{Properties: props}
	return write(ctx, c, "update_page", func(ctx context.Context) (*notionapi.Page, error) {
		return c.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}

// ArchivePage moves a page to the trash, which is how Notion deletes pages.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{Properties: notionapi.Properties{}, Archived: true}
	_, err := write(ctx, c, "archive_page", func(ctx context.Context) (*notionapi.Page, error) {
		return c.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
	return err
}

// AppendBlocks appends children in batches with a pause between batches.
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []notionapi.Block) error {
	for start := 0; start < len(blocks); start += c.appendBatch {
		if start > 0 && c.appendDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.appendDelay):
			}
		}
		end := start + c.appendBatch
		if end > len(blocks) {
			end = len(blocks)
		}
		req := &notionapi.AppendBlockChildrenRequest{Children: blocks[start:end]}
		_, err := write(ctx, c, "append_blocks", func(ctx context.Context) (*notionapi.AppendBlockChildrenResponse, error) {
			return c.api.Block.AppendChildren(ctx, notionapi.BlockID(blockID), req)
		})
		if err != nil {
			return fmt.Errorf("append batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// ChildIDs lists the IDs of the top-level children of a block.
func (c *Client) ChildIDs(ctx context.Context, blockID string) ([]string, error) {
	var ids []string
	pagination := &notionapi.Pagination{PageSize: MaxBlocksPerRequest}
	for {
		resp, err := invoke(ctx, c, "get_children", func(ctx context.Context) (*notionapi.GetChildrenResponse, error) {
			return c.api.Block.GetChildren(ctx, notionapi.BlockID(blockID), pagination)
		})
		if err != nil {
			return nil, err
		}
		for _, b := range resp.Results {
			ids = append(ids, string(b.GetID()))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return ids, nil
		}
		pagination = &notionapi.Pagination{StartCursor: notionapi.Cursor(resp.NextCursor), PageSize: MaxBlocksPerRequest}
	}
}

// ReplaceContent removes the existing top-level blocks of a page and appends
// blocks in their place.
func (c *Client) ReplaceContent(ctx context.Context, pageID string, blocks []notionapi.Block) error {
	ids, err := c.ChildIDs(ctx, pageID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := write(ctx, c, "delete_block", func(ctx context.Context) (notionapi.Block, error) {
			return c.api.Block.Delete(ctx, notionapi.BlockID(id))
		})
		if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("delete block %s: %w", id, err)
		}
	}
	return c.AppendBlocks(ctx, pageID, blocks)
}

// QueryByRichText returns the pages whose rich text property equals value.
func (c *Client) QueryByRichText(ctx context.Context, databaseID, property, value string) ([]notionapi.Page, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: &notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
		PageSize: 10,
	}
	resp, err := invoke(ctx, c, "query_database", func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		return c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
