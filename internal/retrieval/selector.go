package retrieval

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/physical-ai/textbook-assistant/internal/corpus"
)

// ErrNoRelevantContext means every retrieval strategy came up empty. The
// caller decides whether to answer from general knowledge or surface the
// miss to the user.
var ErrNoRelevantContext = errors.New("no relevant context found")

var locationPattern = regexp.MustCompile(`/modules/([\w-]+)/([\w-]+)`)

// ModuleFromLocation extracts the curriculum module id from a location
// string such as "/docs/modules/02-ros2/chapter-01-intro". An empty return
// means no scoping.
func ModuleFromLocation(location string) string {
	m := locationPattern.FindStringSubmatch(location)
	if m == nil {
		return ""
	}
	return m[1]
}

// SelectorOptions configure context selection.
type SelectorOptions struct {
	TopK              int  // chunks requested from each ranking path
	UseChapterContext bool // scope retrieval to the reader's current module
}

// Selector orchestrates context retrieval as an ordered chain of
// strategies: vector search, keyword search, then raw current-chapter
// chunks. Each strategy's failure falls through to the next; only total
// exhaustion is escalated.
type Selector struct {
	store   *corpus.Store
	keyword *KeywordRanker
	opts    SelectorOptions
}

func NewSelector(store *corpus.Store, keyword *KeywordRanker, opts SelectorOptions) *Selector {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Selector{store: store, keyword: keyword, opts: opts}
}

type strategy struct {
	name string
	run  func(ctx context.Context, query, location string) ([]ContextChunk, error)
}

// GetContext returns the context chunks for a query, scoped to the module
// identified by location when chapter scoping is enabled.
func (s *Selector) GetContext(ctx context.Context, query, location string) ([]ContextChunk, error) {
	strategies := []strategy{
		{name: "vector", run: s.vectorSearch},
		{name: "keyword", run: s.keywordSearch},
		{name: "chapter", run: s.chapterContext},
	}

	for _, st := range strategies {
		chunks, err := st.run(ctx, query, location)
		if err != nil {
			log.Debug().Err(err).Str("strategy", st.name).Msg("Retrieval strategy failed, falling through")
			continue
		}
		if len(chunks) > 0 {
			return chunks, nil
		}
	}
	return nil, ErrNoRelevantContext
}

func (s *Selector) moduleFilter(location string) string {
	if !s.opts.UseChapterContext {
		return ""
	}
	return ModuleFromLocation(location)
}

func (s *Selector) vectorSearch(ctx context.Context, query, location string) ([]ContextChunk, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	queryVector := Embed(query, ds.EmbeddingDim)
	results, err := RankByVector(queryVector, ds, s.opts.TopK, s.moduleFilter(location))
	if err != nil {
		return nil, err
	}
	return toContextChunks(results), nil
}

func (s *Selector) keywordSearch(ctx context.Context, query, location string) ([]ContextChunk, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := s.keyword.Rank(query, ds, s.opts.TopK, s.moduleFilter(location))
	return toContextChunks(results), nil
}

// chapterContext is the last resort: up to 2 chunks of the chapter the
// reader is currently viewing, unranked, in corpus order.
func (s *Selector) chapterContext(ctx context.Context, _ string, location string) ([]ContextChunk, error) {
	if !s.opts.UseChapterContext {
		return nil, nil
	}
	m := locationPattern.FindStringSubmatch(location)
	if m == nil {
		return nil, nil
	}
	module, chapterSlug := m[1], m[2]

	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var chunks []ContextChunk
	for i := range ds.Chunks {
		chunk := &ds.Chunks[i]
		if chunk.Module != module || !strings.Contains(chunk.URL, chapterSlug) {
			continue
		}
		chunks = append(chunks, ContextChunk{
			Content: chunk.Content,
			Chapter: chunk.Chapter,
			Section: chunk.Section,
			URL:     chunk.URL,
		})
		if len(chunks) == 2 {
			break
		}
	}
	return chunks, nil
}
