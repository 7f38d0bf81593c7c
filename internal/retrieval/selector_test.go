package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physical-ai/textbook-assistant/internal/corpus"
)

func corpusServer(t *testing.T, ds *corpus.Dataset) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(ds))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func selectorDataset() *corpus.Dataset {
	return &corpus.Dataset{
		EmbeddingDim: 4,
		Chunks: []corpus.Chunk{
			{
				Module:    "02-ros2",
				Chapter:   "ROS 2",
				Section:   "Nodes",
				Content:   "ROS 2 nodes publish topics",
				URL:       "/docs/modules/02-ros2/chapter-01-intro#nodes",
				Embedding: []float32{0.5, 0.5, 0.5, 0.5},
			},
			{
				Module:    "02-ros2",
				Chapter:   "ROS 2",
				Section:   "Launch Files",
				Content:   "Launch files start many nodes at once",
				URL:       "/docs/modules/02-ros2/chapter-01-intro#launch",
				Embedding: []float32{0.1, 0.2, 0.3, 0.4},
			},
			{
				Module:    "03-simulation",
				Chapter:   "Gazebo",
				Section:   "Worlds",
				Content:   "Gazebo simulates physics worlds",
				URL:       "/docs/modules/03-simulation/chapter-01-gazebo",
				Embedding: []float32{0.9, 0.1, 0.1, 0.1},
			},
		},
	}
}

func TestModuleFromLocation(t *testing.T) {
	assert.Equal(t, "02-ros2", ModuleFromLocation("/docs/modules/02-ros2/chapter-01-intro"))
	assert.Equal(t, "", ModuleFromLocation("/docs/dashboard"))
	assert.Equal(t, "", ModuleFromLocation(""))
}

func TestSelectorVectorPath(t *testing.T) {
	srv := corpusServer(t, selectorDataset())
	store := corpus.NewStore(srv.URL, "")
	selector := NewSelector(store, NewKeywordRanker(DefaultKeywordConfig()), SelectorOptions{TopK: 3, UseChapterContext: true})

	chunks, err := selector.GetContext(context.Background(), "how do nodes work", "/docs/modules/02-ros2/chapter-01-intro")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.Contains(t, c.URL, "/modules/02-ros2/", "results are scoped to the reader's module")
		assert.NotEmpty(t, c.Content)
	}
}

func TestSelectorUnscopedWhenLocationUnknown(t *testing.T) {
	srv := corpusServer(t, selectorDataset())
	store := corpus.NewStore(srv.URL, "")
	selector := NewSelector(store, NewKeywordRanker(DefaultKeywordConfig()), SelectorOptions{TopK: 3, UseChapterContext: true})

	chunks, err := selector.GetContext(context.Background(), "gazebo physics", "/docs/dashboard")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestSelectorExhaustion(t *testing.T) {
	srv := corpusServer(t, selectorDataset())
	store := corpus.NewStore(srv.URL, "")
	selector := NewSelector(store, NewKeywordRanker(DefaultKeywordConfig()), SelectorOptions{TopK: 3, UseChapterContext: true})

	// The location names a module with no chunks, so every scoped strategy
	// comes up empty.
	_, err := selector.GetContext(context.Background(), "how do nodes work", "/docs/modules/99-missing/chapter-01")
	assert.ErrorIs(t, err, ErrNoRelevantContext)
}

func TestSelectorCorpusUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	store := corpus.NewStore(srv.URL, "")
	selector := NewSelector(store, NewKeywordRanker(DefaultKeywordConfig()), SelectorOptions{TopK: 3, UseChapterContext: true})

	_, err := selector.GetContext(context.Background(), "how do nodes work", "/docs/modules/02-ros2/chapter-01-intro")
	assert.ErrorIs(t, err, ErrNoRelevantContext)
}

func TestSelectorChapterContext(t *testing.T) {
	srv := corpusServer(t, selectorDataset())
	store := corpus.NewStore(srv.URL, "")
	selector := NewSelector(store, NewKeywordRanker(DefaultKeywordConfig()), SelectorOptions{TopK: 3, UseChapterContext: true})

	chunks, err := selector.chapterContext(context.Background(), "", "/docs/modules/02-ros2/chapter-01-intro")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "at most two chapter chunks, in corpus order")
	assert.Equal(t, "Nodes", chunks[0].Section)
	assert.Equal(t, "Launch Files", chunks[1].Section)

	chunks, err = selector.chapterContext(context.Background(), "", "/docs/dashboard")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
