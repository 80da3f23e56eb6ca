// Package providers holds the thin HTTP clients for the external AI services
// the pipeline stages call. Failures surface as *APIError so the error
// classifier can read the upstream HTTP status.
package providers

import "fmt"

const maxErrorBodyLen = 512

// APIError is a non-2xx response from an upstream provider.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func NewAPIError(service string, statusCode int, body []byte) *APIError {
	b := string(body)
	if len(b) > maxErrorBodyLen {
		b = b[:maxErrorBodyLen]
	}
	return &APIError{Service: service, StatusCode: statusCode, Body: b}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// HTTPStatus satisfies the classifier's status-bearing error interface.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Usage reports what a single provider invocation consumed, for cost
// recording. Token counts are zero for providers that bill per request; the
// TTS client reports characters as input tokens since that is its billing
// unit.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}
