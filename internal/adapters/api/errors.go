package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError describes a failed API call. StatusCode is 0 for transport
// failures; Body holds the raw error payload when the server sent one.
type RequestError struct {
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	default:
		return e.Op
	}
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError converts a non-2xx response into a *RequestError.
func StatusError(op string, resp *Response) error {
	if resp == nil || resp.OK() {
		return nil
	}
	return &RequestError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Err:        fmt.Errorf("request failed with status code %d", resp.StatusCode),
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Message picks the text shown to a user for err: the server's message
// field, then its detail field, then the error text, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if msg := serverMessage(reqErr.Body); msg != "" {
			return msg
		}
		if reqErr.Err != nil && reqErr.Err.Error() != "" {
			return reqErr.Err.Error()
		}
	}
	if text := err.Error(); text != "" {
		return text
	}
	return fallback
}

type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(eb.Message); msg != "" {
		return msg
	}
	return detailMessage(eb.Detail)
}

// detail is either a string or a list of {msg} validation entries.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if m := strings.TrimSpace(item.Msg); m != "" {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, "; ")
}
