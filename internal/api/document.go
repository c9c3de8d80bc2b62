package api

type DocumentPage struct {
	Index int
	Text  string
}

type DocumentContent struct {
	Pages []DocumentPage
}

type ScoredChunk struct {
	// Required
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`

	// Optional
	Metadata map[string]string `json:"metadata,omitempty"`
}
