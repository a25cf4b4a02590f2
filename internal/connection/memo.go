package connection

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/datacite/lupo-sub003/internal/elasticsearch"
)

type memoKey struct{}

// Memo caches executed searches for the lifetime of one request, keyed by
// index and request body. It is safe for concurrent field resolution.
type Memo struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
}

type memoEntry struct {
	once   sync.Once
	result *elasticsearch.SearchResult
	err    error
}

// WithMemo returns a context carrying a fresh Memo.
func WithMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoKey{}, &Memo{entries: map[string]*memoEntry{}})
}

func memoFrom(ctx context.Context) *Memo {
	m, _ := ctx.Value(memoKey{}).(*Memo)
	return m
}

func (m *Memo) entry(key string) *memoEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry{}
		m.entries[key] = e
	}
	return e
}

// search runs fn once per distinct (index, body) within the memo's request.
// Without a memo in ctx every call executes.
func memoSearch(
	ctx context.Context,
	index string,
	body map[string]any,
	fn func() (*elasticsearch.SearchResult, error),
) (*elasticsearch.SearchResult, error) {
	m := memoFrom(ctx)
	if m == nil {
		return fn()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fn()
	}
	e := m.entry(index + "\x00" + string(raw))
	e.once.Do(func() {
		e.result, e.err = fn()
	})
	return e.result, e.err
}
