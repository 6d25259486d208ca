package sut

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrNotStarted is returned when stopping a server that is not running
var ErrNotStarted = errors.New("server not started")

// Route describes an endpoint and the lifecycle features it uses
type Route struct {
	Method string
	Path   string // display form, e.g. /validation/{param?}

	Auth        bool // run the auth scheme
	PayloadAuth bool // run the payload step of the auth scheme
	Validate    bool // validate params, query, payload and cookies
	Extensions  bool // fire route level extension points
	WebSocket   bool // upgrade and echo instead of the request lifecycle

	patterns []string
}

func (r *Route) String() string {
	return r.Method + " " + r.Path
}

func defaultRoutes() []*Route {
	return []*Route{
		{Method: http.MethodGet, Path: "/", patterns: []string{"GET /{$}"}},
		{Method: http.MethodGet, Path: "/auth", Auth: true, patterns: []string{"GET /auth"}},
		{
			Method: http.MethodPost, Path: "/validation/{param?}",
			Auth: true, PayloadAuth: true, Validate: true,
			patterns: []string{"POST /validation", "POST /validation/{param}"},
		},
		{Method: http.MethodGet, Path: "/auth/ext", Auth: true, Extensions: true, patterns: []string{"GET /auth/ext"}},
		{Method: http.MethodPost, Path: "/full-request/lifecycle", Auth: true, PayloadAuth: true, patterns: []string{"POST /full-request/lifecycle"}},
		{Method: http.MethodGet, Path: "/ws", WebSocket: true, patterns: []string{"GET /ws"}},
	}
}

// Server is the system under test
type Server struct {
	addr   string
	store  *Store
	gate   Gate
	report Reporter

	routes    []*Route
	mux       *http.ServeMux
	byPattern map[string]*Route
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	conns    map[*websocket.Conn]struct{}
}

// New creates a server listening on addr once started. Port 0 picks a free port.
func New(addr string, store *Store, gate Gate, report Reporter) *Server {
	s := &Server{
		addr:      addr,
		store:     store,
		gate:      gate,
		report:    report,
		routes:    defaultRoutes(),
		mux:       http.NewServeMux(),
		byPattern: make(map[string]*Route),
		conns:     make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	// The mux only resolves routes; the lifecycle runs in ServeHTTP
	for _, rt := range s.routes {
		for _, p := range rt.patterns {
			s.byPattern[p] = rt
			s.mux.Handle(p, http.NotFoundHandler())
		}
	}

	return s
}

// Store returns the store steering the server
func (s *Server) Store() *Store {
	return s.store
}

// Routes returns the registered routes
func (s *Server) Routes() []*Route {
	return s.routes
}

// URL returns the base URL of the running server
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Running reports whether the server is listening
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Start runs onPreStart, starts listening and runs onPostStart
func (s *Server) Start(ctx context.Context) error {
	if s.Running() {
		return errors.New("server already started")
	}

	if err := s.serverExt(ctx, OnPreStart); err != nil {
		return fmt.Errorf("%s: %w", OnPreStart, err)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = listener
	s.mu.Unlock()

	for _, rt := range s.routes {
		s.report.Event("route", nil, map[string]any{"path": rt.String()})
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", listener.Addr().String()).Msg("server stopped unexpectedly")
		}
	}()

	log.Debug().Str("addr", listener.Addr().String()).Msg("server listening")
	s.report.Event("start", nil, nil)

	if err := s.serverExt(ctx, OnPostStart); err != nil {
		return fmt.Errorf("%s: %w", OnPostStart, err)
	}
	return nil
}

// Stop runs onPreStop, shuts the listener down gracefully and runs onPostStop
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return ErrNotStarted
	}

	if err := s.serverExt(ctx, OnPreStop); err != nil {
		return fmt.Errorf("%s: %w", OnPreStop, err)
	}

	s.report.Event("closing", nil, nil)
	s.closeConns()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.mu.Lock()
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	s.report.Event("stop", nil, nil)

	if err := s.serverExt(ctx, OnPostStop); err != nil {
		return fmt.Errorf("%s: %w", OnPostStop, err)
	}
	return nil
}

func (s *Server) serverExt(ctx context.Context, p Point) error {
	if s.store.Ignore.Has(p) {
		s.report.Ignore(string(p))
		return nil
	}

	if err := s.gate.Next(ctx, fmt.Sprintf("Server extension point %s is next", p)); err != nil {
		return err
	}

	if err := s.injectedError(p); err != nil {
		return err
	}

	s.report.Ext("server", string(p), "")

	if fn := s.store.ServerExt(p); fn != nil {
		return fn(ctx, s)
	}
	return nil
}

// injectedError returns the failure a scenario asked for at p, if any
func (s *Server) injectedError(p Point) error {
	if s.store.ThrowOn.Has(p) {
		s.report.Err(string(p))
		return fmt.Errorf("thrown error on %s", p)
	}
	if s.store.ReturnErrorOn.Has(p) {
		s.report.Err(string(p))
		if p == Authenticate || p == AuthenticatePayload {
			return Unauthorized(strings.TrimPrefix(string(p), "_"))
		}
		return fmt.Errorf("returned error on %s", p)
	}
	return nil
}

// lookup finds the route serving r and its path parameters
func (s *Server) lookup(r *http.Request) (*Route, map[string]string) {
	_, pattern := s.mux.Handler(r)
	rt, ok := s.byPattern[pattern]
	if !ok {
		return nil, nil
	}
	return rt, pathParams(pattern, r.URL.Path)
}

// pathParams extracts {name} segments of a mux pattern from path
func pathParams(pattern, path string) map[string]string {
	params := make(map[string]string)
	if i := strings.Index(pattern, " "); i >= 0 {
		pattern = pattern[i+1:]
	}
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range want {
		if !strings.HasPrefix(seg, "{") || seg == "{$}" || i >= len(got) {
			continue
		}
		params[strings.Trim(seg, "{}.")] = got[i]
	}
	return params
}
