package domain

import "time"

// One request captured by the webhook provider; content is a raw JSON array
// of transactions
type WebhookItem struct {
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
	Method    string    `json:"method"`
	Content   string    `json:"content"`
}

// Eligible reports whether the item counts for the current epoch: only
// captured POST bodies created at or after since do, regardless of what the
// provider returned for the after cursor.
func (w *WebhookItem) Eligible(since time.Time) bool {
	return w.Method == "POST" && !w.CreatedAt.Before(since)
}

// One page of webhook items from the provider
type WebhookPage struct {
	Data       []WebhookItem `json:"data"`
	IsLastPage bool          `json:"is_last_page"`
}

// Transaction-shaped record embedded in a webhook item content
type Transaction struct {
	AccountData    []AccountEntry  `json:"accountData"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
	Description    string          `json:"description"`
}

type AccountEntry struct {
	Account string `json:"account"`
}

type TokenTransfer struct {
	Mint string `json:"mint"`
}

// Originating account of the transaction (first accountData entry); empty
// string when the structure is malformed
func (t *Transaction) Originator() string {
	if len(t.AccountData) == 0 {
		return ""
	}
	return t.AccountData[0].Account
}

// Minimal structure check before the transaction is allowed into the engine
func (t *Transaction) Valid() bool {
	return len(t.AccountData) > 0 && len(t.TokenTransfers) > 0
}

// One row of a ranked board
type RankingEntry struct {
	Mint  string `json:"mint"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Ranked boards for the three trailing windows, computed once per cycle from
// a single consistent store view
type Rankings struct {
	GeneratedAt time.Time      `json:"generated_at"`
	W1m         []RankingEntry `json:"w1m"`
	W3m         []RankingEntry `json:"w3m"`
	W5m         []RankingEntry `json:"w5m"`
}

// Durable record of the highest rates ever observed for a token; outlives
// epoch resets
type PeakRecord struct {
	Mint   string    `json:"mint"`
	Name   string    `json:"name"`
	PeakAt time.Time `json:"peak_at"`
	Rate1m int       `json:"rate_1m"`
	Rate3m int       `json:"rate_3m"`
	Rate5m int       `json:"rate_5m"`
}

// Emitted when the 1-minute leader crosses the alert threshold
type AlertEvent struct {
	Name      string    `json:"name"`
	Rate      int       `json:"rate"`
	StartedAt time.Time `json:"started_at"`
}
