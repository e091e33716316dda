package models

// ErrorResponse wraps an ErrorDetail for failed API calls.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// NewErrorResponse builds a failed response for code and message.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   &ErrorDetail{Code: code, Message: message},
	}
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "busy"
	Uptime  string `json:"uptime"`
	Running bool   `json:"running"`
	Version string `json:"version"`
}

// InfoResponse is the response for GET /.
type InfoResponse struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Categories []Category        `json:"categories"`
	Endpoints  map[string]string `json:"endpoints"`
}

// RecordsResponse is the response for GET /api/v1/records.
type RecordsResponse struct {
	Success bool              `json:"success"`
	Total   int               `json:"total"`
	Result  *ExtractionResult `json:"result"`
}
