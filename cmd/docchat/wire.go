package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/docchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driven/fetch"
	"github.com/custodia-labs/docchat/internal/adapters/driven/session/redis"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/corpus"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/keyword"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/logger"
	"github.com/custodia-labs/docchat/internal/normalisers"
	"github.com/custodia-labs/docchat/internal/normalisers/html"
	"github.com/custodia-labs/docchat/internal/normalisers/markdown"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
)

// wiring builds the services a command needs from the stored settings.
type wiring struct {
	home     string
	settings *services.SettingsService
}

func newWiring(home string) (*wiring, error) {
	store, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return &wiring{
		home:     home,
		settings: services.NewSettingsService(store, ai.NewConfigValidator()),
	}, nil
}

// closers releases opened resources in reverse order.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// connect opens only what the command's access level requires, so crawling
// needs no API keys and serving never writes the index.
func (w *wiring) connect(ctx context.Context, opts cli.ConnectOptions) (svc *cli.Services, err error) {
	settings, err := w.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var cs closers
	defer func() {
		if err != nil {
			_ = cs.close()
		}
	}()

	svc = &cli.Services{Settings: w.settings}

	switch opts.Access {
	case cli.AccessCrawl:
		err = w.connectCrawl(settings, opts, svc)
	case cli.AccessIngest:
		err = w.connectIngest(settings, svc, &cs)
	case cli.AccessServe:
		err = w.connectServe(ctx, settings, svc, &cs)
	case cli.AccessNone:
	}
	if err != nil {
		return nil, err
	}

	svc.Close = cs.close
	return svc, nil
}

func (w *wiring) connectCrawl(settings *domain.Settings, opts cli.ConnectOptions, svc *cli.Services) error {
	store, err := corpus.NewStore(w.path(settings.Storage.CorpusPath))
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}

	cfg := fetch.ConfigFromSettings(settings.Crawl)
	if opts.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = opts.RequestsPerSecond
	}

	svc.Corpus = store
	svc.Crawler = services.NewCrawlService(fetch.New(cfg), normalisers.NewRegistry(html.New(), markdown.New()), store, settings.Crawl.ControlTokens)
	return nil
}

func (w *wiring) connectIngest(settings *domain.Settings, svc *cli.Services, cs *closers) error {
	store, err := corpus.NewStore(w.path(settings.Storage.CorpusPath))
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}

	ch, err := chunker.New(
		chunker.WithChunkSize(settings.Chunk.Size),
		chunker.WithOverlap(settings.Chunk.Overlap),
	)
	if err != nil {
		return err
	}

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return fmt.Errorf("ingest needs an embedding provider: %w", err)
	}
	cs.add(embedder.Close)

	indexPath := w.path(settings.Storage.IndexPath)
	vectors, err := sqlite.Open(indexPath, sqlite.ReadWrite)
	if err != nil {
		return err
	}
	cs.add(vectors.Close)

	keywords, err := keyword.Open(filepath.Join(indexPath, keyword.DirName), false)
	if err != nil {
		return err
	}
	cs.add(keywords.Close)

	svc.Corpus = store
	svc.Ingester = services.NewIngestService(
		store, ch, embedder, vectors, keywords, settings.Ingest, settings.Embedding.MaxRetries,
	)
	return nil
}

func (w *wiring) connectServe(ctx context.Context, settings *domain.Settings, svc *cli.Services, cs *closers) error {
	indexPath := w.path(settings.Storage.IndexPath)
	vectors, err := sqlite.Open(indexPath, sqlite.ReadOnly)
	if err != nil {
		return err
	}
	cs.add(vectors.Close)

	keywords, err := keyword.Open(filepath.Join(indexPath, keyword.DirName), true)
	if err != nil {
		return err
	}
	cs.add(keywords.Close)

	// Keyword-only retrieval works without an embedding provider, and
	// search works without an LLM, so both are optional here.
	var embedder driven.EmbeddingService
	if e, err := ai.CreateEmbeddingService(&settings.Embedding); err != nil {
		logger.Debug("Embedding provider unavailable: %v", err)
	} else {
		embedder = e
		cs.add(e.Close)
	}

	var llm driven.LLMService
	if l, err := ai.CreateLLMService(&settings.LLM); err != nil {
		logger.Debug("LLM provider unavailable: %v", err)
	} else {
		llm = l
		cs.add(l.Close)
	}

	sessions, err := w.openSessions(ctx, settings.Session, cs)
	if err != nil {
		return err
	}

	prompts, err := file.NewPromptStore(filepath.Join(w.home, "prompts"))
	if err != nil {
		return err
	}

	search := services.NewSearchService(vectors, keywords, embedder, settings.Retrieval.Mode)
	svc.Search = search
	svc.Ingester = services.NewIngestService(nil, nil, nil, vectors, keywords, settings.Ingest, 0)
	svc.Answer = services.NewAnswerEngine(sessions, search, llm, prompts, services.AnswerConfig{
		Retrieval: settings.Retrieval,
		LLM:       settings.LLM,
		Memory:    settings.Memory,
	})
	return nil
}

func (w *wiring) openSessions(
	ctx context.Context, cfg domain.SessionSettings, cs *closers,
) (driven.SessionStore, error) {
	if cfg.Backend != domain.SessionBackendRedis {
		return memory.NewSessionStore(), nil
	}

	store, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisDB, time.Duration(cfg.TTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	cs.add(store.Close)
	return store, nil
}

// path resolves a storage path against the docchat home.
func (w *wiring) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.home, p)
}
