package app

import (
	"context"
	"crypto/sha256"

	"pymeta/internal/engine/parser"
	"pymeta/internal/shared/observability"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DocumentCache maps a source content hash to its extracted document.
// Cached documents are shared and must be treated as read-only.
type DocumentCache struct {
	entries *lru.Cache[[sha256.Size]byte, *parser.Document]
}

func NewDocumentCache(size int) (*DocumentCache, error) {
	if size <= 0 {
		size = 512
	}
	entries, err := lru.New[[sha256.Size]byte, *parser.Document](size)
	if err != nil {
		return nil, err
	}
	return &DocumentCache{entries: entries}, nil
}

func (c *DocumentCache) Get(sum [sha256.Size]byte) (*parser.Document, bool) {
	doc, ok := c.entries.Get(sum)
	if ok {
		observability.CacheHitsTotal.Inc()
	}
	return doc, ok
}

func (c *DocumentCache) Add(sum [sha256.Size]byte, doc *parser.Document) {
	c.entries.Add(sum, doc)
}

func (c *DocumentCache) Len() int {
	return c.entries.Len()
}

// extractCached returns the document for source, reusing a cached result
// when the same bytes were extracted before. Failures are not cached.
func (a *App) extractCached(ctx context.Context, name string, source []byte) (*parser.Document, [sha256.Size]byte, error) {
	sum := sha256.Sum256(source)
	if doc, ok := a.cache.Get(sum); ok {
		return doc, sum, nil
	}
	doc, err := a.Parser.Parse(ctx, name, source)
	if err != nil {
		return nil, sum, err
	}
	a.cache.Add(sum, doc)
	return doc, sum, nil
}
