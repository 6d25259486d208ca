package sut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Call describes a request sent by the Client
type Call struct {
	Method  string
	Path    string
	Query   url.Values
	Cookies map[string]string
	Header  http.Header
	Payload any
}

// Reply is a decoded response
type Reply struct {
	Status    int
	RequestID string
	Header    http.Header
	Body      map[string]any
	Raw       []byte
}

// Client talks to a running Server
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Do sends call and decodes the JSON response
func (c *Client) Do(ctx context.Context, call Call) (*Reply, error) {
	u := c.baseURL + call.Path
	if len(call.Query) > 0 {
		u += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Payload != nil {
		data, err := json.Marshal(call.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range call.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s %s: %w", method, call.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	reply := &Reply{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get("X-Request-Id"),
		Header:    resp.Header,
		Raw:       raw,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply.Body); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return reply, nil
}

// Get sends a GET request to path
func (c *Client) Get(ctx context.Context, path string) (*Reply, error) {
	return c.Do(ctx, Call{Method: http.MethodGet, Path: path})
}

// Dial opens a websocket connection to path
func (c *Client) Dial(ctx context.Context, path string) (*websocket.Conn, error) {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + path
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to websocket: %w", err)
	}
	return conn, nil
}
