package corpus

// Chunk is one retrievable excerpt of the textbook, pre-chunked and
// pre-embedded by the offline indexing pipeline. Chunks are immutable after
// load; other packages borrow them by pointer and must not modify them.
type Chunk struct {
	Module     string    `json:"module"`
	Chapter    string    `json:"chapter"`
	Section    string    `json:"section"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	FilePath   string    `json:"file_path"`
	URL        string    `json:"url"`
	Embedding  []float32 `json:"embedding"`
}

// Dataset is the full corpus file as published by the indexer.
type Dataset struct {
	Model        string  `json:"model"`
	EmbeddingDim int     `json:"embedding_dim"`
	ChunkSize    int     `json:"chunk_size"`
	Overlap      int     `json:"overlap"`
	TotalChunks  int     `json:"total_chunks"`
	Chunks       []Chunk `json:"chunks"`
}
