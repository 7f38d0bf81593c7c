package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/physical-ai/textbook-assistant/internal/corpus"
)

// stopWords are English and Urdu function words dropped from keyword
// queries before scoring.
var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {}, "what": {}, "how": {}, "why": {},
	"کیا": {}, "ہے": {}, "میں": {}, "کے": {}, "اور": {}, "یا": {}, "سے": {},
	"کو": {}, "پر": {},
}

// KeywordConfig holds the scoring constants of the TF-IDF fallback ranker.
// The defaults were tuned empirically against the textbook corpus; treat
// them as tunable parameters, not invariants.
type KeywordConfig struct {
	ContentWeight float64 // weight of matches in chunk content
	ChapterWeight float64 // weight of matches in the chapter label
	SectionWeight float64 // weight of matches in the section label
	PhraseBonus   float64 // flat bonus when the full query appears verbatim
	CoverageBonus float64 // scaled by the fraction of distinct tokens matched
	ScoreDivisor  float64 // maps the raw score into [0, 1]
	MinScore      float64 // results at or below this are dropped
	MinResults    int     // floor on how many relevant results are returned
}

// DefaultKeywordConfig returns the tuned defaults.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		ContentWeight: 1.0,
		ChapterWeight: 2.0,
		SectionWeight: 3.0,
		PhraseBonus:   5.0,
		CoverageBonus: 0.5,
		ScoreDivisor:  10.0,
		MinScore:      0.05,
		MinResults:    5,
	}
}

// KeywordRanker scores chunks with a TF-IDF style heuristic when vector
// search is unavailable. Plain term counting is dominated by chunk length
// and common words; inverse document frequency, field weighting and the
// phrase/coverage bonuses approximate what an embedding captures without a
// trained model.
type KeywordRanker struct {
	cfg KeywordConfig
}

func NewKeywordRanker(cfg KeywordConfig) *KeywordRanker {
	return &KeywordRanker{cfg: cfg}
}

// Rank returns up to max(topK, MinResults) chunks relevant to the query,
// scored in [0, 1] and ranked from 1. An empty result means no valid search
// terms or no chunk above the relevance threshold.
func (r *KeywordRanker) Rank(query string, ds *corpus.Dataset, topK int, moduleFilter string) []Result {
	normalized := strings.ToLower(strings.TrimSpace(query))

	var tokens []string
	for _, t := range strings.Fields(normalized) {
		if utf8.RuneCountInString(t) > 2 {
			tokens = append(tokens, t)
		}
	}

	var meaningful []string
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			meaningful = append(meaningful, t)
		}
	}
	// Keep stop words when they are all the query has.
	searchTokens := meaningful
	if len(searchTokens) == 0 {
		searchTokens = tokens
	}
	if len(searchTokens) == 0 {
		return nil
	}

	var chunks []*corpus.Chunk
	for i := range ds.Chunks {
		if moduleFilter == "" || ds.Chunks[i].Module == moduleFilter {
			chunks = append(chunks, &ds.Chunks[i])
		}
	}

	idf := r.documentFrequencies(searchTokens, chunks)

	var results []Result
	for _, chunk := range chunks {
		score := r.scoreChunk(chunk, normalized, searchTokens, idf)
		if score > r.cfg.MinScore {
			results = append(results, Result{Chunk: chunk, Similarity: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	// Callers asking for very few results still get enough to work with
	// when that many relevant chunks exist.
	limit := topK
	if limit < r.cfg.MinResults {
		limit = r.cfg.MinResults
	}
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// documentFrequencies computes ln((N+1)/(df+1)) per token over the filtered
// chunk set.
func (r *KeywordRanker) documentFrequencies(tokens []string, chunks []*corpus.Chunk) map[string]float64 {
	idf := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		df := 0
		for _, chunk := range chunks {
			if strings.Contains(strings.ToLower(chunk.Content), token) {
				df++
			}
		}
		idf[token] = math.Log(float64(len(chunks)+1) / float64(df+1))
	}
	return idf
}

func (r *KeywordRanker) scoreChunk(chunk *corpus.Chunk, normalizedQuery string, tokens []string, idf map[string]float64) float64 {
	content := strings.ToLower(chunk.Content)
	section := strings.ToLower(chunk.Section)
	chapter := strings.ToLower(chunk.Chapter)

	var score float64
	for _, token := range tokens {
		tokenIdf, ok := idf[token]
		if !ok {
			tokenIdf = 1.0
		}
		score += float64(strings.Count(content, token)) * tokenIdf * r.cfg.ContentWeight
		score += float64(strings.Count(section, token)) * tokenIdf * r.cfg.SectionWeight
		score += float64(strings.Count(chapter, token)) * tokenIdf * r.cfg.ChapterWeight
	}
	if strings.Contains(content, normalizedQuery) {
		score += r.cfg.PhraseBonus
	}

	// Normalize by content length so long chunks don't dominate, with a
	// floor of 1 so very short chunks aren't inflated.
	lengthNorm := math.Sqrt(float64(utf8.RuneCountInString(chunk.Content)) / 100)
	score /= math.Max(lengthNorm, 1)

	matched := 0
	for _, token := range tokens {
		if strings.Contains(content, token) {
			matched++
		}
	}
	score += float64(matched) / float64(len(tokens)) * r.cfg.CoverageBonus

	score /= r.cfg.ScoreDivisor
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
