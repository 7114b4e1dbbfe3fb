package resolve

import (
	"fmt"
	"regexp"
	"sync"
)

// Extracts a display name from the free-text description of a transaction;
// returns "" when nothing recognizable is found
type ExtractFunc func(description string) string

var (
	transferRe = regexp.MustCompile(`transferred \d+(\.\d+)? (\w+) to`)
	mintRe     = regexp.MustCompile(`minted \d+(\.\d+)? (\w+) to`)
)

// Default extractor over the provider's "X transferred 12.5 FOO to Y" /
// "minted" description formats
func ExtractTokenName(description string) string {
	if m := transferRe.FindStringSubmatch(description); m != nil {
		return m[2]
	}
	if m := mintRe.FindStringSubmatch(description); m != nil {
		return m[2]
	}
	return ""
}

// Memoizing adapter around the extractor. A name is immutable once assigned:
// later descriptions for the same mint are ignored even if they contain a
// different apparent name. Extraction failures get an Unknown<N> placeholder
// where N is the cache size at resolution time plus one; the placeholder is
// cached too, so the name stays stable for the process lifetime.
type Resolver struct {
	extract ExtractFunc

	mu    sync.Mutex
	names map[string]string
}

func NewResolver(extract ExtractFunc) *Resolver {
	if extract == nil {
		extract = ExtractTokenName
	}
	return &Resolver{
		extract: extract,
		names:   make(map[string]string, 256),
	}
}

func (r *Resolver) Resolve(mint, description string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.names[mint]; ok {
		return name
	}

	name := r.extract(description)
	if name == "" {
		name = fmt.Sprintf("Unknown%d", len(r.names)+1)
	}
	r.names[mint] = name
	return name
}

// Whether the mint already has a cached name
func (r *Resolver) Known(mint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[mint]
	return ok
}

func (r *Resolver) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
