package api

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// NetworkError means the backend could not be reached at all.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: cannot reach %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UserMessage tells the user how to get the backend reachable again.
func (e *NetworkError) UserMessage() string {
	host := e.URL
	if u, err := url.Parse(e.URL); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	return fmt.Sprintf("Cannot connect to the server at %s. Make sure the backend is running (cetcompare serve) and try again.", host)
}

// ServerError is any response the backend produced that is not a
// success, including timeouts.
type ServerError struct {
	Op      string
	Status  int
	Message string
	Timeout bool
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, msg)
}

// UserMessage returns the message the server sent, if any.
func (e *ServerError) UserMessage() string { return e.Message }

// IsNetworkError reports whether err is a connectivity failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// errorMessage pulls a message out of an error body. It prefers
// "error", then "message", and returns "" for bodies that are not JSON.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, field := range []string{"error", "message"} {
		if v := gjson.GetBytes(body, field); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
