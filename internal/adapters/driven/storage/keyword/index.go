// Package keyword provides the BM25 keyword index over chunks, built on bleve.
//
// A new generation is staged in a sibling directory and only replaces the
// live index when published, so a failed ingestion never disturbs the
// index being served.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.KeywordIndex = (*Index)(nil)

// DirName is the index directory below index.path.
const DirName = "keyword.bleve"

const (
	batchSize    = 500
	stagingExt   = ".staging"
	retiredExt   = ".old"
	contentField = "content"
)

// document is the indexed form of a chunk.
type document struct {
	Content    string `json:"content"`
	URL        string `json:"url"`
	ArtifactID string `json:"artifact_id"`
	Position   int    `json:"position"`
}

// Index is a bleve index that is swapped atomically on publish.
type Index struct {
	dir      string
	readOnly bool

	mu   sync.RWMutex
	live bleve.Index
}

// Open opens the index at dir. A missing index is not an error: searches
// report domain.ErrIndexUnavailable until a generation is published.
func Open(dir string, readOnly bool) (*Index, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: keyword index path is empty", domain.ErrConfiguration)
	}

	idx := &Index{dir: dir, readOnly: readOnly}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("Keyword index %s does not exist yet", dir)
			return idx, nil
		}
		return nil, fmt.Errorf("stat keyword index: %w", err)
	}

	live, err := idx.openLive()
	if err != nil {
		return nil, err
	}
	idx.live = live
	return idx, nil
}

func (i *Index) openLive() (bleve.Index, error) {
	var (
		live bleve.Index
		err  error
	)
	if i.readOnly {
		live, err = bleve.OpenUsing(i.dir, map[string]interface{}{"read_only": true})
	} else {
		live, err = bleve.Open(i.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open keyword index: %v", domain.ErrIndexUnavailable, err)
	}
	return live, nil
}

// Stage builds a new generation in a staging directory.
func (i *Index) Stage(ctx context.Context, chunks []domain.Chunk, reset bool) (driven.StagedIndex, error) {
	if i.readOnly {
		return nil, fmt.Errorf("%w: keyword index opened read-only", domain.ErrInvalidInput)
	}

	path := i.dir + stagingExt
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear staging directory: %w", err)
	}

	staged, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create staged keyword index: %w", err)
	}
	s := &stagedIndex{parent: i, index: staged, path: path}

	if !reset {
		if err := i.copyLive(ctx, staged); err != nil {
			_ = s.Discard()
			return nil, err
		}
	}

	batch := staged.NewBatch()
	for _, chunk := range chunks {
		doc := document{
			Content:    chunk.Content,
			URL:        chunk.SourceURL,
			ArtifactID: chunk.ArtifactID,
			Position:   chunk.Position,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			_ = s.Discard()
			return nil, fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := flushBatch(ctx, staged, batch); err != nil {
				_ = s.Discard()
				return nil, err
			}
			batch = staged.NewBatch()
		}
	}
	if err := flushBatch(ctx, staged, batch); err != nil {
		_ = s.Discard()
		return nil, err
	}

	logger.Debug("Staged keyword index with %d chunks at %s", len(chunks), path)
	return s, nil
}

func flushBatch(ctx context.Context, idx bleve.Index, batch *bleve.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("write keyword batch: %w", err)
	}
	return nil
}

// copyLive re-indexes every stored document of the live generation into dst.
func (i *Index) copyLive(ctx context.Context, dst bleve.Index) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.live == nil {
		return nil
	}

	for from := 0; ; from += batchSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), batchSize, from, false)
		req.Fields = []string{"*"}
		req.SortBy([]string{"_id"})

		res, err := i.live.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("read live keyword index: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := dst.NewBatch()
		for _, hit := range res.Hits {
			if err := batch.Index(hit.ID, documentFromFields(hit.Fields)); err != nil {
				return fmt.Errorf("copy chunk %s: %w", hit.ID, err)
			}
		}
		if err := flushBatch(ctx, dst, batch); err != nil {
			return err
		}
	}
}

func documentFromFields(fields map[string]interface{}) document {
	var doc document
	if v, ok := fields["content"].(string); ok {
		doc.Content = v
	}
	if v, ok := fields["url"].(string); ok {
		doc.URL = v
	}
	if v, ok := fields["artifact_id"].(string); ok {
		doc.ArtifactID = v
	}
	if v, ok := fields["position"].(float64); ok {
		doc.Position = int(v)
	}
	return doc
}

// Search runs a BM25 match query over chunk content.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.live == nil {
		return nil, fmt.Errorf("%w: keyword index not built", domain.ErrIndexUnavailable)
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []driven.SearchHit{}, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField(contentField)

	req := bleve.NewSearchRequestOptions(match, limit, 0, false)
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(contentField)

	res, err := i.live.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]driven.SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, driven.SearchHit{
			ChunkID:    hit.ID,
			Score:      hit.Score,
			Highlights: plainFragments(hit.Fragments[contentField]),
		})
	}
	return hits, nil
}

// plainFragments removes the highlighter's markup.
func plainFragments(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.NewReplacer("<mark>", "", "</mark>", "").Replace(f)
		out = append(out, strings.TrimSpace(html.UnescapeString(f)))
	}
	return out
}

// DocCount returns the number of chunks in the live generation.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.live == nil {
		return 0, nil
	}
	return i.live.DocCount()
}

// Close releases the live generation.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.live == nil {
		return nil
	}
	err := i.live.Close()
	i.live = nil
	return err
}

// publish swaps the staged directory in for the live one.
func (i *Index) publish(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.live != nil {
		if err := i.live.Close(); err != nil {
			return fmt.Errorf("close live keyword index: %w", err)
		}
		i.live = nil
	}

	retired := i.dir + retiredExt
	if err := os.RemoveAll(retired); err != nil {
		return fmt.Errorf("clear retired keyword index: %w", err)
	}
	if _, err := os.Stat(i.dir); err == nil {
		if err := os.Rename(i.dir, retired); err != nil {
			return fmt.Errorf("retire keyword index: %w", err)
		}
	}
	if err := os.Rename(path, i.dir); err != nil {
		// Put the previous generation back.
		_ = os.Rename(retired, i.dir)
		if live, openErr := i.openLive(); openErr == nil {
			i.live = live
		}
		return fmt.Errorf("publish keyword index: %w", err)
	}
	if err := os.RemoveAll(retired); err != nil {
		logger.Warn("Could not remove retired keyword index %s: %v", retired, err)
	}

	live, err := i.openLive()
	if err != nil {
		return err
	}
	i.live = live
	return nil
}

// stagedIndex is one unpublished generation.
type stagedIndex struct {
	parent *Index
	index  bleve.Index
	path   string

	once sync.Once
	done bool
}

func (s *stagedIndex) close() error {
	var err error
	s.once.Do(func() {
		err = s.index.Close()
	})
	return err
}

// Publish makes the staged generation live.
func (s *stagedIndex) Publish() error {
	if s.done {
		return errors.New("staged keyword index already published or discarded")
	}
	if err := s.close(); err != nil {
		return fmt.Errorf("close staged keyword index: %w", err)
	}
	s.done = true
	return s.parent.publish(s.path)
}

// Discard deletes the staged generation.
func (s *stagedIndex) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.close()
	return os.RemoveAll(s.path)
}
