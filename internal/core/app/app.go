package app

import (
	"context"
	"sync"

	"pymeta/internal/core/config"
	"pymeta/internal/data/index"
	"pymeta/internal/engine/parser"
	"pymeta/internal/shared/util"
)

// App wires the extractor to the directory scanner, the content cache, the
// optional persistent index and watch mode.
type App struct {
	Config *config.Config
	Parser *parser.Parser
	Store  *index.Store

	cache   *DocumentCache
	filter  *Filter
	limiter *util.Limiter

	updateMu sync.RWMutex
	onUpdate func(FileResult)
}

// New builds an App from cfg. store may be nil when indexing is disabled.
func New(cfg *config.Config, store *index.Store) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	filter, err := NewFilter(cfg.Scan)
	if err != nil {
		return nil, err
	}
	cache, err := NewDocumentCache(cfg.Scan.CacheSize)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(ParserOptions(cfg.Extract))
	p.SetMaxSourceBytes(cfg.Extract.MaxSourceBytes)

	return &App{
		Config:  cfg,
		Parser:  p,
		Store:   store,
		cache:   cache,
		filter:  filter,
		limiter: util.NewLimiter(cfg.Watch.RateLimit, cfg.Watch.Burst),
	}, nil
}

// ParserOptions maps the [extract] section onto extractor options.
func ParserOptions(cfg config.Extract) parser.Options {
	return parser.Options{
		DecoratorStrategy: parser.DecoratorStrategy(cfg.DecoratorStrategy),
		ModuleSentinel:    cfg.ModuleSentinel,
	}
}

// Extract runs the extractor over a single source text. name only labels
// errors.
func (a *App) Extract(ctx context.Context, name string, source []byte) (*parser.Document, error) {
	doc, _, err := a.extractCached(ctx, name, source)
	return doc, err
}

// SetUpdateHandler registers a callback invoked for every file processed in
// watch mode.
func (a *App) SetUpdateHandler(fn func(FileResult)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = fn
}

func (a *App) emitUpdate(result FileResult) {
	a.updateMu.RLock()
	fn := a.onUpdate
	a.updateMu.RUnlock()
	if fn != nil {
		fn(result)
	}
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
