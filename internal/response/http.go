package response

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ResultsResponse wraps the outcome of a triggered job.
type ResultsResponse[T any] struct {
	Results T `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
