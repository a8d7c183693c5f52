package chi

import "time"

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeInvalidQuery      ErrorCode = "invalid_query"
	ErrorCodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	ErrorCodeRetrievalFailed   ErrorCode = "retrieval_failed"
	ErrorCodeGenerationFailed  ErrorCode = "generation_failed"
	ErrorCodeSchema            ErrorCode = "schema_error"
	ErrorCodeConfiguration     ErrorCode = "configuration_error"
	ErrorCodeTimeout           ErrorCode = "timeout"
	ErrorCodeInternal          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// ChatResponse is the answer to a chat question.
type ChatResponse struct {
	Response string `json:"response"`
}

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Match is one retrieved record.
type Match struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// RetrieveResponse lists matches per category, every configured category present.
type RetrieveResponse struct {
	Results map[string][]Match `json:"results"`
}

// HistoryItem is one stored transcript.
type HistoryItem struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse lists recent transcripts, newest first.
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
}

// RefreshResponse reports a finished catalog reload.
type RefreshResponse struct {
	Categories map[string]CategoryHealth `json:"categories"`
}

// CategoryHealth is the index state of one category.
type CategoryHealth struct {
	Status  string     `json:"status"`
	Size    int        `json:"size"`
	BuiltAt *time.Time `json:"built_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                    `json:"status"`
	Checks     map[string]string         `json:"checks"`
	Categories map[string]CategoryHealth `json:"categories"`
}
