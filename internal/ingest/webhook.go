package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/config"
	"pumpwatch/internal/domain"
)

// Polls the webhook provider's captured-requests endpoint. Pages are pulled
// in order from a caller-owned cursor; a failed page ends the fetch early
// and the cursor stays on the failed page for the next cycle.
type Client struct {
	log      logger.Logger
	baseURL  string
	apiKey   string
	maxPages int
	http     *http.Client
}

func NewClient(log logger.Logger, cfg *config.IngestConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("ingest config is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("ingest base_url is required")
	}

	return &Client{
		log:      log,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		maxPages: cfg.MaxPages,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// Pulls up to maxPages pages starting at startPage, keeping only items
// created at or after since. Returns the accumulated items, the page the
// next cycle should start from (1 after a full read) and the first fetch
// error if one ended the read early.
func (c *Client) FetchSince(ctx context.Context, startPage int, since time.Time) ([]domain.WebhookItem, int, error) {
	if startPage < 1 {
		startPage = 1
	}

	var all []domain.WebhookItem
	page := startPage

	for i := 0; i < c.maxPages; i++ {
		c.log.Debugf("Fetching page %d...", page)

		pg, err := c.fetchPage(ctx, page, since)
		if err != nil {
			// cursor stays on the failed page; already merged pages are kept
			return all, page, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		kept := 0
		for i := range pg.Data {
			// not every provider honors the after param, filter here too
			if pg.Data[i].Eligible(since) {
				all = append(all, pg.Data[i])
				kept++
			}
		}
		c.log.Debugf("Received %d items from page %d, kept %d", len(pg.Data), page, kept)

		if pg.IsLastPage {
			return all, 1, nil
		}
		page++
	}

	return all, page, nil
}

func (c *Client) fetchPage(ctx context.Context, page int, since time.Time) (*domain.WebhookPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("after", strconv.FormatInt(since.UnixMilli(), 10))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pg domain.WebhookPage
	if err = json.NewDecoder(resp.Body).Decode(&pg); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &pg, nil
}

// Parses one item's content into transactions. Malformed content is an
// error for the caller to log and skip, never to abort the cycle on.
func ParseTransactions(item *domain.WebhookItem) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := json.Unmarshal([]byte(item.Content), &txs); err != nil {
		return nil, fmt.Errorf("failed to parse item %s content: %w", item.UUID, err)
	}
	return txs, nil
}
