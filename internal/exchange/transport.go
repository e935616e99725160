package exchange

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// ResponseError carries a non-2xx provider response.
type ResponseError struct {
	Status  int
	Payload string
	URL     string
}

func (e *ResponseError) Error() string {
	if e.Payload == "" {
		return fmt.Sprintf("binance api error (%d)", e.Status)
	}
	return fmt.Sprintf("binance api error (%d): %s", e.Status, e.Payload)
}

// StatusCode returns the HTTP status of the response.
func (e *ResponseError) StatusCode() int { return e.Status }

// Body returns the raw response body.
func (e *ResponseError) Body() string { return e.Payload }

// statusTransport turns error responses into *ResponseError before the client
// library decodes them, so the status code and raw body survive.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &ResponseError{
		Status:  resp.StatusCode,
		Payload: strings.TrimSpace(string(payload)),
		URL:     req.URL.Path,
	}
}
