package api

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DocumentMeta carries the caller-supplied tags attached to every
// vector produced from an uploaded document.
type DocumentMeta struct {
	UserID   string `json:"user_id"`
	Grade    string `json:"grade"`
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	Filename string `json:"filename"`
}

type ProcessResponse struct {
	Success             bool     `json:"success"`
	Message             string   `json:"message"`
	ProcessingID        string   `json:"processing_id"`
	SessionID           string   `json:"session_id"`
	ExtractedTextLength int      `json:"extracted_text_length"`
	Chunks              []string `json:"chunks,omitempty"`
}

type StatusResponse struct {
	ProcessingID  string `json:"processing_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	Filename      string `json:"filename,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	ChunkCount    int    `json:"chunk_count"`
	UploadedCount int    `json:"uploaded_count"`
	FailedCount   int    `json:"failed_count"`
	StartedAt     int64  `json:"started_at,omitempty"`
	CompletedAt   int64  `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SearchRequest struct {
	Query   string `json:"query"`
	UserID  string `json:"user_id,omitempty"`
	Grade   string `json:"grade,omitempty"`
	Subject string `json:"subject,omitempty"`
	TopK    uint   `json:"top_k,omitempty"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []*ScoredChunk `json:"results"`
}
