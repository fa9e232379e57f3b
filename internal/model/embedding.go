package model

type EmbeddingCollection struct {
	Name      string `json:"name"`
	Space     string `json:"space"`
	Dimension int    `json:"dimension"`
	Ctime     int64  `json:"ctime"`
}

type VectorRecord struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"embedding"`
	Metadata  EntryMetadata `json:"metadata"`
}
