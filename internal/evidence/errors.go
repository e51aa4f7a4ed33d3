package evidence

import "fmt"

// APIError is returned for a non-2xx response from the search service.
type APIError struct {
	operation  string
	statusCode int
	message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, message string) *APIError {
	return &APIError{operation: operation, statusCode: statusCode, message: message}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }
