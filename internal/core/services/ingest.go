package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingester = (*IngestService)(nil)

// defaultRetryBase is the first backoff interval for rate-limited embedding calls.
const defaultRetryBase = 500 * time.Millisecond

// IngestService chunks the corpus, embeds every chunk and commits the
// result to the indexes in a single all-or-nothing step.
type IngestService struct {
	artifacts    driven.ArtifactStore
	chunker      driven.Chunker
	embedder     driven.EmbeddingService
	vectorIndex  driven.VectorIndex
	keywordIndex driven.KeywordIndex

	concurrency int
	batchSize   int
	maxRetries  int
	retryBase   time.Duration
	now         func() time.Time
}

// NewIngestService creates an ingest service.
// keywordIndex is optional; without it only the vector index is built.
func NewIngestService(
	artifacts driven.ArtifactStore,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	vectorIndex driven.VectorIndex,
	keywordIndex driven.KeywordIndex,
	settings domain.IngestSettings,
	maxRetries int,
) *IngestService {
	concurrency := settings.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	batchSize := settings.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &IngestService{
		artifacts:    artifacts,
		chunker:      chunker,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		concurrency:  concurrency,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		retryBase:    defaultRetryBase,
		now:          time.Now,
	}
}

// Ingest embeds every chunk of every artifact and commits them together.
// Any embedding failure aborts the run before anything is written.
func (s *IngestService) Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error) {
	if s.chunker == nil {
		return nil, fmt.Errorf("%w: no chunker configured", domain.ErrConfiguration)
	}
	cfg := domain.ChunkSettings{Size: s.chunker.Size(), Overlap: s.chunker.Overlap()}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.artifacts == nil || s.vectorIndex == nil {
		return nil, errors.New("ingest service not fully configured")
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrEmbeddingService)
	}

	start := s.now()
	logger.Section("Ingest")

	ids, err := s.artifacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: corpus at %s has no artifacts", domain.ErrInvalidInput, s.artifacts.Path())
	}
	logger.Info("Ingesting %d artifacts (chunk size %d, overlap %d, concurrency %d, batch %d)",
		len(ids), cfg.Size, cfg.Overlap, s.concurrency, s.batchSize)

	entries, err := s.embedAll(ctx, ids)
	if err != nil {
		logger.Warn("Ingestion aborted, nothing committed: %v", err)
		return nil, err
	}

	dims, err := checkDimensions(entries)
	if err != nil {
		return nil, err
	}
	if want := s.embedder.Dimensions(); want > 0 && dims > 0 && dims != want {
		logger.Warn("Model %s advertises %d dimensions but returned %d", s.embedder.ModelName(), want, dims)
	}

	if err := s.commit(ctx, entries, opts.Reset); err != nil {
		return nil, err
	}

	report := &domain.IngestReport{
		Artifacts:  len(ids),
		Chunks:     len(entries),
		Dimensions: dims,
		Model:      s.embedder.ModelName(),
		Duration:   s.now().Sub(start),
	}
	logger.Info("Committed %d chunks from %d artifacts (%d dimensions) in %s",
		report.Chunks, report.Artifacts, report.Dimensions, report.Duration)

	return report, nil
}

// Stats summarises the current index.
func (s *IngestService) Stats(ctx context.Context) (domain.IndexStats, error) {
	if s.vectorIndex == nil {
		return domain.IndexStats{}, fmt.Errorf("%w: vector index not open", domain.ErrIndexUnavailable)
	}
	return s.vectorIndex.Stats(ctx)
}

// embedAll streams batches of chunks from a producer goroutine into a
// bounded pool of embedding calls. The returned entries are sorted by
// chunk ID.
func (s *IngestService) embedAll(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	batches := make(chan []domain.Chunk)
	var produceErr error

	go func() {
		defer close(batches)
		batch := make([]domain.Chunk, 0, s.batchSize)
		for _, id := range ids {
			artifact, err := s.artifacts.Get(gctx, id)
			if err != nil {
				produceErr = fmt.Errorf("load artifact %s: %w", id, err)
				return
			}
			for chunk := range s.chunker.Chunks(*artifact) {
				batch = append(batch, chunk)
				if len(batch) < s.batchSize {
					continue
				}
				select {
				case batches <- batch:
				case <-gctx.Done():
					return
				}
				batch = make([]domain.Chunk, 0, s.batchSize)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
			}
		}
	}()

	var (
		mu      sync.Mutex
		entries []domain.Chunk
	)
	for batch := range batches {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Content
			}
			vectors, err := s.embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %s..%s: %w", batch[0].ID, batch[len(batch)-1].ID, err)
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}

			mu.Lock()
			entries = append(entries, batch...)
			mu.Unlock()

			logger.Debug("Embedded %d chunks %s..%s", len(batch), batch[0].ID, batch[len(batch)-1].ID)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if produceErr != nil {
		return nil, produceErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// embed embeds texts in one batch call, retrying rate-limited calls with
// exponential backoff up to maxRetries times.
func (s *IngestService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	backoff := retry.WithMaxRetries(uint64(s.maxRetries), retry.NewExponential(s.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				logger.Debug("Embedding rate limited, backing off")
				return retry.RetryableError(err)
			}
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingService) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbeddingService, len(vectors), len(texts))
	}
	return vectors, nil
}

// commit stages the keyword index, commits the vector index in one
// transaction and only then publishes the staged keyword index.
func (s *IngestService) commit(ctx context.Context, entries []domain.Chunk, reset bool) error {
	var staged driven.StagedIndex
	if s.keywordIndex != nil {
		var err error
		staged, err = s.keywordIndex.Stage(ctx, entries, reset)
		if err != nil {
			return fmt.Errorf("stage keyword index: %w", err)
		}
	}

	opts := driven.CommitOptions{Reset: reset, Model: s.embedder.ModelName()}
	if err := s.vectorIndex.Commit(ctx, entries, opts); err != nil {
		if staged != nil {
			if derr := staged.Discard(); derr != nil {
				logger.Warn("Failed to discard staged keyword index: %v", derr)
			}
		}
		return fmt.Errorf("commit vector index: %w", err)
	}

	if staged != nil {
		if err := staged.Publish(); err != nil {
			// The vector index is authoritative; keyword search stays on the
			// previous generation until the next run.
			logger.Warn("Keyword index not updated: %v", err)
		}
	}
	return nil
}

// checkDimensions ensures every vector has the same length.
func checkDimensions(entries []domain.Chunk) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	dims := len(entries[0].Embedding)
	for _, e := range entries[1:] {
		if len(e.Embedding) != dims {
			return 0, fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
				domain.ErrEmbeddingService, e.ID, len(e.Embedding), dims)
		}
	}
	return dims, nil
}
