package retrieval

import (
	"math"
	"strings"
)

// DefaultDimension matches the corpus embedding dimension produced by the
// offline indexer.
const DefaultDimension = 384

// Embed turns a query into a fixed-dimension pseudo-embedding without a
// server round trip. This is a deterministic hash-based stand-in for a
// trained embedding model: it carries no semantic meaning, only
// reproducibility, so cosine similarity against real chunk embeddings acts
// as an approximate relevance signal. A hosted embedding API can replace it
// as long as it keeps the same contract: fixed dimension, L2-normalized.
//
// An empty query yields the all-zero vector; cosine similarity against it is
// defined as 0 for every chunk.
func Embed(query string, dimension int) []float32 {
	embedding := make([]float32, dimension)

	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(tokens) == 0 {
		return embedding
	}

	scale := 1 / math.Sqrt(float64(len(tokens)))
	for _, token := range tokens {
		hash := tokenHash(token)
		// Spread the token's influence across every slot.
		for j := 0; j < dimension; j++ {
			index := (hash + int64(j)) % int64(dimension)
			embedding[index] += float32(math.Sin(float64(hash+int64(j))) * scale)
		}
	}

	normalize(embedding)
	return embedding
}

// tokenHash is an order-preserving 31-polynomial accumulation over the
// token's characters, wrapped to 32 bits, absolute value taken.
func tokenHash(token string) int64 {
	var hash int32
	for _, r := range token {
		hash = hash*31 + int32(r)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return h
}

// normalize scales vec to unit length. A zero vector is left untouched.
func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
