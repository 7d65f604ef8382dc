package schemas

import (
	"fmt"
	"time"
)

// ResponseType classifies what the HTTP layer detected in a response body.
// The two platforms serve HTML, JSON, or redirects interchangeably at any
// endpoint, so callers must branch on the detected type before assuming
// structure.
type ResponseType string

const (
	ResponseJSON     ResponseType = "json"
	ResponseHTML     ResponseType = "html"
	ResponseText     ResponseType = "text"
	ResponseRedirect ResponseType = "redirect"
)

// Error codes carried by failure envelopes.
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeParseError   = "PARSE_ERROR"
	CodeInvalidToken = "INVALID_TOKEN"
)

// HTTPErrorCode builds the code for a non-2xx, non-redirect status.
func HTTPErrorCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// ResponseError describes why a request failed. NeedsRefresh is set when the
// platform rejected the credentials (401/403): the caller should prompt for a
// session recapture instead of retrying.
type ResponseError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	NeedsRefresh bool   `json:"needs_refresh,omitempty"`
}

// Error implements the error interface so coded failures can travel through
// ordinary error returns in the platform clients.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response is the discriminated outcome of one logical HTTP request.
// Exactly one of Data/Error is meaningful: OK selects the variant. Metadata
// (Status, Type, URL, Duration) is always present. Transient failures always
// surface here as a failure envelope, never as a Go error, so callers branch
// uniformly on OK.
type Response struct {
	OK bool `json:"ok"`

	// Data holds the decoded JSON value when Type is json, otherwise the raw
	// body text. Body always carries the raw text regardless of Type.
	Data any    `json:"data,omitempty"`
	Body string `json:"-"`

	Error *ResponseError `json:"error,omitempty"`

	Status   int           `json:"status"`
	Type     ResponseType  `json:"type"`
	URL      string        `json:"url"`
	Duration time.Duration `json:"duration"`

	// Location is the redirect target for 301/302 responses. Redirects are
	// reported, not followed: both platforms encode success and failure in
	// redirect target paths.
	Location string `json:"location,omitempty"`
}

// NeedsRefresh reports whether the failure indicates expired credentials.
func (r *Response) NeedsRefresh() bool {
	return r.Error != nil && r.Error.NeedsRefresh
}

// JSONMap returns the decoded body as a JSON object, or nil when the
// response was not a JSON object.
func (r *Response) JSONMap() map[string]any {
	m, _ := r.Data.(map[string]any)
	return m
}
