package clients

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx answer from a remote API
type APIError struct {
	Method  string
	URL     string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status=%d: %s", e.Method, e.URL, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from a remote API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func newAPIError(method, url string, status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
				msg = r.String()
				break
			}
		}
	}
	if msg == "" {
		msg = string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
	}
	return &APIError{Method: method, URL: url, Status: status, Message: msg}
}
