//go:build ignore

// Mock webhook provider for local runs. Serves the paged webhook-requests
// API with synthetic pump.fun-style transactions so the monitor has
// something to chew on without a real provider key.
//
// Run: go run ./build-tools/loadgen.go -addr :8546 -eps 20 -tokens PEPE,DOGE,WIF -spammer

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const pageSize = 100

type webhookItem struct {
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
	Method    string    `json:"method"`
	Content   string    `json:"content"`
}

type page struct {
	Data       []webhookItem `json:"data"`
	IsLastPage bool          `json:"is_last_page"`
}

type feed struct {
	mu    sync.Mutex
	items []webhookItem
}

func (f *feed) add(it webhookItem) {
	f.mu.Lock()
	f.items = append(f.items, it)
	f.mu.Unlock()
}

// after filters by created_at; pages are 1-based
func (f *feed) page(n int, after time.Time) page {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]webhookItem, 0, len(f.items))
	for _, it := range f.items {
		if it.CreatedAt.After(after) {
			matched = append(matched, it)
		}
	}

	start := (n - 1) * pageSize
	if start >= len(matched) {
		return page{Data: []webhookItem{}, IsLastPage: true}
	}

	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return page{Data: matched[start:end], IsLastPage: end == len(matched)}
}

func main() {
	var (
		addr    = flag.String("addr", ":8546", "listen address")
		eps     = flag.Int("eps", 10, "synthetic events per second")
		tokens  = flag.String("tokens", "PEPE,DOGE,WIF,BONK", "comma-separated token names")
		wallets = flag.Int("wallets", 200, "size of the wallet pool")
		spammer = flag.Bool("spammer", false, "add one hyperactive account to exercise the spam guard")
	)
	flag.Parse()

	names := splitTrim(*tokens)
	if len(names) == 0 {
		fmt.Println("no tokens provided")
		os.Exit(1)
	}

	mints := make([]string, len(names))
	for i := range names {
		mints[i] = fmt.Sprintf("%s%dpump", strings.ToLower(names[i]), i+1)
	}

	f := &feed{}

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(*eps))
		defer ticker.Stop()

		for range ticker.C {
			idx := mrand.Intn(len(names))
			wallet := fmt.Sprintf("wallet%d", mrand.Intn(*wallets))
			if *spammer && mrand.Intn(4) == 0 {
				wallet = "spammer1"
			}

			tx := []map[string]any{{
				"accountData":    []map[string]string{{"account": wallet}},
				"tokenTransfers": []map[string]string{{"mint": mints[idx]}},
				"description": fmt.Sprintf("%s transferred %d.%02d %s to pool",
					wallet, mrand.Intn(500)+1, mrand.Intn(100), names[idx]),
			}}
			content, _ := json.Marshal(tx)

			f.add(webhookItem{
				UUID:      uuid.NewString(),
				CreatedAt: time.Now(),
				Method:    "POST",
				Content:   string(content),
			})
		}
	}()

	http.HandleFunc("/webhook-requests", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n < 1 {
			n = 1
		}

		var after time.Time
		if ms, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64); err == nil {
			after = time.UnixMilli(ms)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.page(n, after))
	})

	fmt.Printf("mock webhook provider on %s, %d events/sec, tokens %v\n", *addr, *eps, names)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
