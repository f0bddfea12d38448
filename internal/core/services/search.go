package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// rrfK is the reciprocal rank fusion constant.
const rrfK = 60

// scoredChunk holds intermediate search results before hydration.
type scoredChunk struct {
	chunkID    string
	score      float64
	highlights []string
}

// SearchService retrieves chunks by vector similarity, keyword relevance,
// or both fused with reciprocal rank fusion.
type SearchService struct {
	vectorIndex      driven.VectorIndex
	keywordIndex     driven.KeywordIndex
	embeddingService driven.EmbeddingService
	defaultMode      domain.SearchMode
}

// NewSearchService creates a new search service.
// keywordIndex is optional; without it keyword and hybrid queries fall back to vector search.
func NewSearchService(
	vectorIndex driven.VectorIndex,
	keywordIndex driven.KeywordIndex,
	embeddingService driven.EmbeddingService,
	defaultMode domain.SearchMode,
) *SearchService {
	if !defaultMode.IsValid() {
		defaultMode = domain.SearchModeVector
	}
	return &SearchService{
		vectorIndex:      vectorIndex,
		keywordIndex:     keywordIndex,
		embeddingService: embeddingService,
		defaultMode:      defaultMode,
	}
}

// Search returns the chunks most relevant to query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.vectorIndex == nil {
		return nil, fmt.Errorf("%w: vector index not open", domain.ErrIndexUnavailable)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 4
	}

	mode := s.effectiveMode(opts.Mode)
	logger.Info("Search mode: %s, limit %d", mode.Description(), limit)

	var chunks []scoredChunk
	var err error

	switch mode {
	case domain.SearchModeKeyword:
		chunks, err = s.keywordSearch(ctx, query, limit)
	case domain.SearchModeHybrid:
		chunks, err = s.hybridSearch(ctx, query, limit)
	default:
		chunks, err = s.vectorSearch(ctx, query, limit)
	}
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, err
	}

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	results, err := s.hydrateResults(ctx, chunks, query)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	logger.Info("Retrieved %d chunks", len(results))

	return results, nil
}

// effectiveMode resolves the requested mode against available indexes.
func (s *SearchService) effectiveMode(requested domain.SearchMode) domain.SearchMode {
	mode := requested
	if !mode.IsValid() {
		mode = s.defaultMode
	}
	if mode != domain.SearchModeVector && s.keywordIndex == nil {
		logger.Debug("Keyword index unavailable, using vector search")
		return domain.SearchModeVector
	}
	return mode
}

// keywordSearch performs BM25 search using the keyword index.
func (s *SearchService) keywordSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.keywordIndex == nil {
		return nil, fmt.Errorf("%w: keyword index not open", domain.ErrIndexUnavailable)
	}

	hits, err := s.keywordIndex.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Score, highlights: hit.Highlights}
	}
	return results, nil
}

// vectorSearch embeds the query and searches the vector index.
func (s *SearchService) vectorSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.embeddingService == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrEmbeddingService)
	}

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingService) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrEmbeddingService, err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := s.vectorIndex.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Similarity}
	}
	return results, nil
}

// hybridSearch runs both searches in parallel and fuses them.
// A keyword failure degrades to vector results; a vector failure is returned.
func (s *SearchService) hybridSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	var keywordResults, vectorResults []scoredChunk
	var keywordErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keywordSearch(ctx, query, limit*2)
	}()

	go func() {
		defer wg.Done()
		vectorResults, vectorErr = s.vectorSearch(ctx, query, limit*2)
	}()

	wg.Wait()

	if vectorErr != nil {
		return nil, vectorErr
	}
	if keywordErr != nil {
		logger.Warn("Hybrid search: keyword search failed, using vector results only: %v", keywordErr)
		return vectorResults, nil
	}

	merged := reciprocalRankFusion(keywordResults, vectorResults, rrfK)
	logger.Debug("Hybrid search: merged %d keyword + %d vector into %d",
		len(keywordResults), len(vectorResults), len(merged))
	return merged, nil
}

// reciprocalRankFusion merges ranked lists. Ties keep first-seen order.
func reciprocalRankFusion(list1, list2 []scoredChunk, k int) []scoredChunk {
	scores := make(map[string]float64)
	highlights := make(map[string][]string)
	var order []string

	for _, list := range [][]scoredChunk{list1, list2} {
		for rank, chunk := range list {
			if _, ok := scores[chunk.chunkID]; !ok {
				order = append(order, chunk.chunkID)
			}
			scores[chunk.chunkID] += 1.0 / float64(k+rank+1)
			if len(chunk.highlights) > 0 {
				highlights[chunk.chunkID] = chunk.highlights
			}
		}
	}

	results := make([]scoredChunk, 0, len(order))
	for _, id := range order {
		results = append(results, scoredChunk{chunkID: id, score: scores[id], highlights: highlights[id]})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	return results
}

// hydrateResults loads chunk text for the scored IDs, preserving rank order.
func (s *SearchService) hydrateResults(
	ctx context.Context, chunks []scoredChunk, query string,
) ([]domain.SearchResult, error) {
	if len(chunks) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]string, len(chunks))
	for i, sc := range chunks {
		ids[i] = sc.chunkID
	}

	stored, err := s.vectorIndex.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Chunk, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, sc := range chunks {
		chunk, ok := byID[sc.chunkID]
		if !ok {
			logger.Debug("Chunk %s missing from index, skipping", sc.chunkID)
			continue
		}
		chunk.Embedding = nil

		highlights := sc.highlights
		if len(highlights) == 0 {
			highlights = generateHighlights(chunk.Content, query)
		}

		results = append(results, domain.SearchResult{
			Chunk:      chunk,
			Score:      sc.score,
			Highlights: highlights,
		})
	}

	return results, nil
}

// generateHighlights picks up to three sentences containing query terms.
func generateHighlights(content, query string) []string {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	var highlights []string
	for _, sentence := range splitSentences(content) {
		sentenceLower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if len(term) < 3 {
				continue
			}
			if strings.Contains(sentenceLower, term) {
				highlight := sentence
				if len(highlight) > 200 {
					highlight = truncateRunes(highlight, 200) + "..."
				}
				highlights = append(highlights, highlight)
				break
			}
		}
		if len(highlights) >= 3 {
			break
		}
	}

	return highlights
}

// splitSentences splits content on sentence terminators and newlines.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
