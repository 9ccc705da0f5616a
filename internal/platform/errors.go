package platform

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxRawDetail bounds, in bytes, a non-JSON error body kept as Detail.
const maxRawDetail = 200

// APIError is a non-2xx answer from the backend. Detail carries the
// FastAPI "detail" message when there is one.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Endpoint, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("%s: request failed with status %d", e.Endpoint, e.StatusCode)
}

// Unauthorized reports a 401.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// AsAPIError finds an *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Unauthorized()
}

// validationIssue is one entry of a FastAPI 422 detail list.
type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func newAPIError(endpoint string, resp *Response) *APIError {
	apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = truncate(strings.TrimSpace(string(resp.Body)), maxRawDetail)
		return apiErr
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}

	var issues []validationIssue
	if err := json.Unmarshal(envelope.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if len(issue.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", issue.Loc[len(issue.Loc)-1], issue.Msg))
			} else {
				msgs = append(msgs, issue.Msg)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	}
	return apiErr
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
