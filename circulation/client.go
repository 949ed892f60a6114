// Package circulation submits scanned codes to the library dashboard
// backend, e.g. to record a returned book. Interpreting and submitting
// payloads is caller-side work; the scanner itself never talks to the
// backend.
package circulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	libscan "github.com/soumya-jain123/libscan-go"
)

// BaseURL is the default URL for the dashboard backend.
var BaseURL = "http://localhost:8080"

// Submission is one scanned code to record at the backend.
type Submission struct {
	SessionID string      `json:"sessionId"` // Scan session that produced the payload.
	Ref       libscan.Ref `json:"ref"`
	Station   string      `json:"station,omitempty"` // Optional desk/terminal name.
	ScannedAt time.Time   `json:"scannedAt"`
}

// response is the ReqResp-style envelope the backend wraps every reply in.
type response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// Client holds backend details and allows submitting scans.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	apiKey string
}

// NewClient makes a new Client. The base URL is taken from environment
// variable LIBRARY_API_HOST if set, otherwise defaulting to BaseURL.
// If you need custom HTTP handling, e.g. for proxy settings, you can
// override the default HTTPClient.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key must not be empty")
	}
	baseURL := BaseURL
	if host := os.Getenv("LIBRARY_API_HOST"); host != "" {
		baseURL = "http://" + host
	}
	return &Client{http.DefaultClient, baseURL, apiKey}, nil
}

// SubmitReturn records sub as a book return at the backend, and returns the
// backend's confirmation message. For HTTP-related errors, the (wrapped)
// underlying errors from net/http or an HTTPError can be returned.
func (c *Client) SubmitReturn(ctx context.Context, sub Submission) (string, error) {
	if sub.ScannedAt.IsZero() {
		sub.ScannedAt = time.Now()
	}
	buf, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("marshal submission to JSON: %v", err)
	}

	url := c.BaseURL + "/librarian/return-book"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("new HTTP request: %v", err)
	}
	req.Header.Add("x-api-key", c.apiKey)
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		// Attempt to read a response message to use in error message,
		// otherwise use http status message.
		msg := resp.Status
		buf, err := io.ReadAll(resp.Body)
		if err == nil && len(buf) > 0 {
			msg = string(buf)
		}
		return "", HTTPError{resp.StatusCode, msg}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("reading response message: %w", err)
	}
	// The backend reports application errors inside a 200 envelope.
	if r.StatusCode != 200 {
		msg := r.Message
		if r.Error != "" {
			msg = r.Error
		}
		return "", HTTPError{r.StatusCode, msg}
	}
	return r.Message, nil
}

// HTTPError represents an HTTP error code and message.
type HTTPError struct {
	Code   int    // HTTP status code, eg 401 or 500.
	Status string // Status message, either from body or the HTTP response status line.
}

// Error returns a human-readable description of the HTTP error.
func (e HTTPError) Error() string {
	return fmt.Sprintf("http response error, code %d: %s", e.Code, e.Status)
}

// Ensure HTTPError implements the error interface.
var _ error = HTTPError{}
