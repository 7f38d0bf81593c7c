package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnavailable means the corpus could not be fetched. Callers fall
	// back to keyword search rather than treating this as fatal.
	ErrUnavailable = errors.New("corpus unavailable")

	// ErrInvalidData means the corpus payload was fetched but is malformed.
	// The store is left empty; a partial dataset is never cached.
	ErrInvalidData = errors.New("invalid corpus data")
)

// Store loads and caches the static corpus dataset. The dataset is fetched at
// most once per process: concurrent callers before the first load completes
// share a single in-flight fetch.
type Store struct {
	url    string
	path   string
	client *http.Client

	mu      sync.RWMutex
	dataset *Dataset
	group   singleflight.Group
}

// NewStore creates a store that fetches from url when set, otherwise reads
// the local file at path.
func NewStore(url, path string) *Store {
	return &Store{
		url:    url,
		path:   path,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Load returns the cached dataset, fetching it on first use.
func (s *Store) Load(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	ds := s.dataset
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	v, err, _ := s.group.Do("corpus", func() (interface{}, error) {
		// Re-check under the lock: a previous flight may have completed
		// between the fast path and joining this one.
		s.mu.RLock()
		cached := s.dataset
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := validate(loaded); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.dataset = loaded
		s.mu.Unlock()

		log.Info().
			Int("chunks", loaded.TotalChunks).
			Int("dim", loaded.EmbeddingDim).
			Str("model", loaded.Model).
			Msg("Corpus loaded")
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// IsLoaded reports whether the dataset has been cached.
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset != nil
}

// Clear drops the cached dataset. Test and debug use only.
func (s *Store) Clear() {
	s.mu.Lock()
	s.dataset = nil
	s.mu.Unlock()
}

func (s *Store) fetch(ctx context.Context) (*Dataset, error) {
	var raw []byte
	if s.url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: fetch returned status %d", ErrUnavailable, resp.StatusCode)
		}
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else {
		var err error
		raw, err = os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &ds, nil
}

// validate enforces the dataset invariants before it is cached: at least one
// chunk, non-empty content, and a uniform embedding dimension.
func validate(ds *Dataset) error {
	if len(ds.Chunks) == 0 {
		return fmt.Errorf("%w: dataset contains no chunks", ErrInvalidData)
	}

	dim := ds.EmbeddingDim
	if dim == 0 {
		dim = len(ds.Chunks[0].Embedding)
	}
	for i := range ds.Chunks {
		c := &ds.Chunks[i]
		if c.Content == "" {
			return fmt.Errorf("%w: chunk %d has empty content", ErrInvalidData, i)
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d embedding has dimension %d, want %d",
				ErrInvalidData, i, len(c.Embedding), dim)
		}
	}

	ds.EmbeddingDim = dim
	if ds.TotalChunks != len(ds.Chunks) {
		ds.TotalChunks = len(ds.Chunks)
	}
	return nil
}
