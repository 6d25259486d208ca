package sut

import (
	"context"
	"sync"
)

// Credentials is what the auth scheme attaches to an authenticated request
type Credentials struct {
	Name  string   `json:"name"`
	Scope []string `json:"scope"`
}

// ServerExtFunc overrides a server extension point
type ServerExtFunc func(ctx context.Context, srv *Server) error

// ExtFunc overrides a request, route or custom point. Returning a non-nil
// Response takes over the request and jumps to onPreResponse; the handler
// override supplies the route's response this way.
type ExtFunc func(ctx context.Context, req *Request) (*Response, error)

// Store holds everything a scenario can change about the server's behaviour
type Store struct {
	mu     sync.RWMutex
	auth   *Credentials
	server map[Point]ServerExtFunc
	points map[Point]ExtFunc
	routes map[Point]ExtFunc

	// Points that are bypassed entirely
	Ignore *PointSet
	// Points that fail as if the code there panicked or threw
	ThrowOn *PointSet
	// Points that fail by returning an error value
	ReturnErrorOn *PointSet
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		server:        make(map[Point]ServerExtFunc),
		points:        make(map[Point]ExtFunc),
		routes:        make(map[Point]ExtFunc),
		Ignore:        newPointSet(),
		ThrowOn:       newPointSet(),
		ReturnErrorOn: newPointSet(),
	}
}

// SetAuth sets the credentials the auth scheme grants. nil rejects every
// authenticated route.
func (s *Store) SetAuth(c *Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = c
}

// Auth returns a copy of the configured credentials
func (s *Store) Auth() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return nil
	}
	c := *s.auth
	return &c
}

// SetServerExt overrides a server extension point
func (s *Store) SetServerExt(p Point, fn ServerExtFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server[p] = fn
}

// ServerExt returns the override for a server extension point
func (s *Store) ServerExt(p Point) ServerExtFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server[p]
}

// SetExt overrides a request extension point or a custom point
func (s *Store) SetExt(p Point, fn ExtFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p] = fn
}

// Ext returns the override for a request extension point or a custom point
func (s *Store) Ext(p Point) ExtFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points[p]
}

// SetRouteExt overrides a route level extension point. Route level points
// only fire on routes that accept extensions and only while overridden.
func (s *Store) SetRouteExt(p Point, fn ExtFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[p] = fn
}

// RouteExt returns the override for a route level extension point
func (s *Store) RouteExt(p Point) ExtFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes[p]
}

// Restore drops every override. Credentials and the point sets are left
// alone; scenarios manage those explicitly.
func (s *Store) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.server)
	clear(s.points)
	clear(s.routes)
}
