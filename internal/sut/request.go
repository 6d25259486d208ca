package sut

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Request is the server's view of an in-flight request. Fields fill in as the
// lifecycle progresses, so overrides see exactly what is known at their point.
type Request struct {
	ID     string
	Method string
	Path   string
	Header http.Header

	// Known once the route is found
	Route  string
	Params map[string]string
	Query  url.Values
	State  map[string]string

	// Known once authentication and payload parsing ran
	Credentials *Credentials
	Payload     map[string]any

	// Set by the handler or by a point taking over
	Response *Response

	raw *http.Request
}

func newRequest(r *http.Request) *Request {
	return &Request{
		ID:     uuid.New().String(),
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		raw:    r,
	}
}

// Snapshot returns the request state as a nested map suitable for a bullet dump
func (r *Request) Snapshot() map[string]any {
	snap := map[string]any{
		"id":      r.ID,
		"method":  r.Method,
		"path":    r.Path,
		"route":   r.Route,
		"params":  stringMap(r.Params),
		"query":   valuesMap(r.Query),
		"state":   stringMap(r.State),
		"headers": valuesMap(url.Values(r.Header)),
		"payload": r.Payload,
	}
	if r.Credentials != nil {
		snap["auth"] = map[string]any{
			"name":  r.Credentials.Name,
			"scope": strings.Join(r.Credentials.Scope, ","),
		}
	}
	if r.Response != nil {
		snap["response"] = map[string]any{
			"status":  r.Response.Status,
			"payload": r.Response.Body,
		}
	}
	return snap
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func valuesMap(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

// Response is what the server transmits
type Response struct {
	Status int
	Body   any

	// Set when the response was produced from an error
	Err *HTTPError
}

// OK wraps body in a 200 response
func OK(body any) *Response {
	return &Response{Status: http.StatusOK, Body: body}
}

// HTTPError is an error with an HTTP status. Plain errors reaching the top
// of the lifecycle become 500s with their message hidden from the client.
type HTTPError struct {
	Status  int
	Message string
	cause   error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

// IsServer reports whether the error is a server side failure
func (e *HTTPError) IsServer() bool {
	return e.Status >= http.StatusInternalServerError
}

// Body returns the JSON payload sent to the client
func (e *HTTPError) Body() map[string]any {
	return map[string]any{
		"statusCode": e.Status,
		"error":      http.StatusText(e.Status),
		"message":    e.Message,
	}
}

// Unauthorized returns a 401 error
func Unauthorized(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Message: message}
}

// BadRequest returns a 400 error
func BadRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message}
}

// NotFound returns a 404 error
func NotFound() *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: "Not Found"}
}

// AsHTTPError converts err into an HTTPError, hiding the message of errors
// that carry no status
func AsHTTPError(err error) *HTTPError {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Message: "An internal server error occurred",
		cause:   err,
	}
}
