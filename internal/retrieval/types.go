package retrieval

import "github.com/physical-ai/textbook-assistant/internal/corpus"

// Result is a scored chunk from one ranking pass. Rank is the 1-based
// position after sorting and is recomputed whenever results are resorted or
// truncated.
type Result struct {
	Chunk      *corpus.Chunk
	Similarity float64
	Rank       int
}

// ContextChunk is the slice of a chunk that is forwarded to the generation
// step. The embedding is deliberately stripped.
type ContextChunk struct {
	Content string `json:"content"`
	Chapter string `json:"chapter"`
	Section string `json:"section"`
	URL     string `json:"url"`
}

// Language selects prompt and suggestion localization.
type Language string

const (
	LangEnglish Language = "en"
	LangUrdu    Language = "ur"
)

func toContextChunks(results []Result) []ContextChunk {
	chunks := make([]ContextChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, ContextChunk{
			Content: r.Chunk.Content,
			Chapter: r.Chunk.Chapter,
			Section: r.Chunk.Section,
			URL:     r.Chunk.URL,
		})
	}
	return chunks
}
