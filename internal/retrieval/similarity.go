package retrieval

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/physical-ai/textbook-assistant/internal/corpus"
)

// ErrDimensionMismatch means a query vector's length differs from the corpus
// embedding dimension. This is a programmer error, fatal to the call.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity returns the normalized dot product of a and b. If either
// vector has zero norm the similarity is 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (normA * normB), nil
}

// RankByVector scores every chunk against queryVector by cosine similarity
// and returns the topK best, ranked from 1. A non-empty moduleFilter
// restricts scoring to chunks of that curriculum module. Ties keep the
// original corpus order.
func RankByVector(queryVector []float32, ds *corpus.Dataset, topK int, moduleFilter string) ([]Result, error) {
	if len(queryVector) != ds.EmbeddingDim {
		return nil, fmt.Errorf("%w: query has %d dimensions, corpus has %d",
			ErrDimensionMismatch, len(queryVector), ds.EmbeddingDim)
	}

	var results []Result
	for i := range ds.Chunks {
		chunk := &ds.Chunks[i]
		if moduleFilter != "" && chunk.Module != moduleFilter {
			continue
		}
		similarity, err := CosineSimilarity(queryVector, chunk.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Chunk: chunk, Similarity: similarity})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
