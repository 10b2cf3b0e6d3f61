package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.requests = append(r.requests, req.Method+" "+req.URL.Path)
	r.bodies = append(r.bodies, body)
}

func (r *recorder) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.requests {
		if c == call {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func conflict(w http.ResponseWriter) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"object": "error", "status": 409, "code": "conflict_error", "message": "Conflict occurred while saving.",
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("secret_test", Options{
		BaseURL:         server.URL,
		Version:         "2022-06-28",
		Pool:            limiter.NewPool("notion-test", 2, 0),
		ConflictBackoff: 10 * time.Millisecond,
		AppendBatchSize: 100,
	})
	require.NoError(t, err)
	return client
}

func paragraphs(n int) []notionapi.Block {
	blocks := make([]notionapi.Block, n)
	for i := range blocks {
		blocks[i] = &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
			Paragraph: notionapi.Paragraph{RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: "p"}},
			}},
		}
	}
	return blocks
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("", Options{})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestCreatePage_RetriesConflictOnce(t *testing.T) {
	rec := &recorder{}
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		attempts++
		if attempts == 1 {
			conflict(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": "page-1", "properties": map[string]any{}})
	})

	page, err := client.CreatePage(context.Background(), "db-1", notionapi.Properties{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "page-1", string(page.ID))
	assert.Equal(t, 2, rec.count("POST /v1/pages"))
}

func TestCreatePage_SecondConflictIsTerminal(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		conflict(w)
	})

	_, err := client.CreatePage(context.Background(), "db-1", notionapi.Properties{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 2, rec.count("POST /v1/pages"))
}

func TestCreatePage_ValidationErrorNotRetried(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"object": "error", "status": 400, "code": "validation_error", "message": "Tags is not a property that exists.",
		})
	})

	_, err := client.CreatePage(context.Background(), "db-1", notionapi.Properties{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 1, rec.count("POST /v1/pages"))
}

func TestCreatePage_AppendsOverflowBlocks(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.URL.Path {
		case "/v1/pages":
			writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": "page-1", "properties": map[string]any{}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": []any{}})
		}
	})

	_, err := client.CreatePage(context.Background(), "db-1", notionapi.Properties{}, paragraphs(150))
	require.NoError(t, err)

	require.Equal(t, 1, rec.count("PATCH /v1/blocks/page-1/children"))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.bodies[0]["children"], 100)
	assert.Len(t, rec.bodies[1]["children"], 50)
}

func TestQueryByRichText(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"object":   "list",
			"results":  []any{map[string]any{"object": "page", "id": "page-9", "properties": map[string]any{}}},
			"has_more": false,
		})
	})

	pages, err := client.QueryByRichText(context.Background(), "db-1", "Webflow Item ID", "item-1")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "page-9", string(pages[0].ID))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "POST /v1/databases/db-1/query", rec.requests[0])
	filter := rec.bodies[0]["filter"].(map[string]any)
	assert.Equal(t, "Webflow Item ID", filter["property"])
	assert.Equal(t, "item-1", filter["rich_text"].(map[string]any)["equals"])
}

func TestArchivePage_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"object": "error", "status": 404, "code": "object_not_found", "message": "Could not find page",
		})
	})

	err := client.ArchivePage(context.Background(), "gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHostRewriter(t *testing.T) {
	var gotHost, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client, err := NewClient("secret_test", Options{BaseURL: server.URL})
	require.NoError(t, err)
	_, _ = client.GetDatabase(context.Background(), "db-1")

	assert.Equal(t, "/v1/databases/db-1", gotPath)
	assert.NotEqual(t, "api.notion.com", gotHost)
}
