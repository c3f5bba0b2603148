package models

// ChunkingConfig echoes the active splitter settings in stats output
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size"`
	Overlap      int `json:"overlap"`
	MinChunkSize int `json:"min_chunk_size"`
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	TotalEntries       int64          `json:"total_entries"`
	TotalTextEntries   int64          `json:"total_text_entries"`
	TotalImages        int64          `json:"total_images"`
	UniqueDocuments    int64          `json:"unique_documents"`
	ChunkedDocuments   int64          `json:"chunked_documents"`
	TotalChunks        int64          `json:"total_chunks"`
	StorageBackend     string         `json:"storage_backend"`
	CollectionName     string         `json:"collection_name"`
	EmbeddingDimension int            `json:"embedding_dimension"`
	ChunkingConfig     ChunkingConfig `json:"chunking_config"`
}
