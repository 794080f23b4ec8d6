package sqlite

import (
	"context"
	"database/sql"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStatementCacheSize is the number of prepared statements kept per
// connection when Config.StatementCacheSize is zero.
const DefaultStatementCacheSize = 64

// stmtCache keeps prepared statements keyed by SQL text. Evicted statements
// are closed.
type stmtCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *sql.Stmt]
}

func newStmtCache(size int) *stmtCache {
	if size <= 0 {
		size = DefaultStatementCacheSize
	}
	// NewWithEvict only fails for size <= 0.
	cache, _ := lru.NewWithEvict(size, func(_ string, stmt *sql.Stmt) {
		stmt.Close() //nolint:errcheck // Evicted statement, nothing to report to
	})
	return &stmtCache{cache: cache}
}

// prepare returns a cached statement for query, preparing it on c on a miss.
func (s *stmtCache) prepare(ctx context.Context, c *sql.Conn, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.cache.Get(query); ok {
		return stmt, nil
	}

	stmt, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.cache.Add(query, stmt)
	return stmt, nil
}

func (s *stmtCache) forget(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(query)
}

func (s *stmtCache) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// purge closes every cached statement.
func (s *stmtCache) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}
