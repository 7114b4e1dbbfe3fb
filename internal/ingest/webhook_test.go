package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/config"
	"pumpwatch/internal/domain"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func newTestClient(t *testing.T, url string, maxPages int) *Client {
	t.Helper()
	c, err := NewClient(newTestLogger(), &config.IngestConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		MaxPages:    maxPages,
		HTTPTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func item(uuid string) domain.WebhookItem {
	return domain.WebhookItem{
		UUID:      uuid,
		CreatedAt: time.Now().UTC(),
		Method:    "POST",
		Content:   "[]",
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(newTestLogger(), &config.IngestConfig{})
	assert.Error(t, err)

	_, err = NewClient(newTestLogger(), nil)
	assert.Error(t, err)
}

func TestFetchSince_StopsOnLastPage(t *testing.T) {
	t.Parallel()

	var pagesServed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		page := r.URL.Query().Get("page")
		pagesServed = append(pagesServed, page)

		pg := domain.WebhookPage{
			Data:       []domain.WebhookItem{item("u-" + page)},
			IsLastPage: page == "3",
		}
		_ = json.NewEncoder(w).Encode(pg)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 15)

	items, next, err := c.FetchSince(context.Background(), 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, []string{"1", "2", "3"}, pagesServed)
	assert.Equal(t, 1, next, "cursor resets after a full read")
}

func TestFetchSince_RespectsMaxPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.WebhookPage{
			Data: []domain.WebhookItem{item(r.URL.Query().Get("page"))},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)

	items, next, err := c.FetchSince(context.Background(), 2, time.Now())
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 6, next, "cursor continues where the cycle stopped")
}

// A failed page keeps the cursor on that page and returns the pages already
// merged.
func TestFetchSince_ErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.WebhookPage{
			Data: []domain.WebhookItem{item("u1")},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 15)

	items, next, err := c.FetchSince(context.Background(), 1, time.Now())
	require.Error(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, next)
}

func TestFetchSince_SendsAfterParam(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("%d", since.UnixMilli()), r.URL.Query().Get("after"))
		_ = json.NewEncoder(w).Encode(domain.WebhookPage{IsLastPage: true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 15)
	_, _, err := c.FetchSince(context.Background(), 1, since)
	require.NoError(t, err)
}

// The after param is advisory; stale and non-POST items a provider serves
// anyway are dropped client-side.
func TestFetchSince_DropsIneligibleItems(t *testing.T) {
	t.Parallel()

	since := time.Now().Add(-time.Minute)

	stale := item("u-stale")
	stale.CreatedAt = since.Add(-time.Hour)
	wrongMethod := item("u-get")
	wrongMethod.Method = "GET"
	good := item("u-good")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.WebhookPage{
			Data:       []domain.WebhookItem{stale, wrongMethod, good},
			IsLastPage: true,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 15)

	items, next, err := c.FetchSince(context.Background(), 1, since)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u-good", items[0].UUID)
	assert.Equal(t, 1, next)
}

func TestParseTransactions(t *testing.T) {
	t.Parallel()

	it := item("u1")
	it.Content = `[{"accountData":[{"account":"acc1"}],"tokenTransfers":[{"mint":"7x pump"}],"description":"x transferred 1 FOO to y"}]`

	txs, err := ParseTransactions(&it)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "acc1", txs[0].Originator())
	assert.True(t, txs[0].Valid())

	it.Content = `{"not":"an array"}`
	_, err = ParseTransactions(&it)
	assert.Error(t, err)
}
