package sut

import (
	"slices"
	"sync"
)

// Point names a place in the server or request lifecycle where behaviour can
// be observed, paused, overridden or broken on purpose.
type Point string

// Server extension points
const (
	OnPreStart  Point = "onPreStart"
	OnPostStart Point = "onPostStart"
	OnPreStop   Point = "onPreStop"
	OnPostStop  Point = "onPostStop"
)

// Request extension points
const (
	OnRequest      Point = "onRequest"
	OnPreAuth      Point = "onPreAuth"
	OnCredentials  Point = "onCredentials"
	OnPostAuth     Point = "onPostAuth"
	OnPreHandler   Point = "onPreHandler"
	OnPostHandler  Point = "onPostHandler"
	OnPreResponse  Point = "onPreResponse"
	OnPostResponse Point = "onPostResponse"
)

// Custom points inside the route handler and the auth scheme
const (
	Handler             Point = "_handler"
	Authenticate        Point = "_authenticate"
	AuthenticatePayload Point = "_authenticatePayload"
)

// ServerPoints lists the server extension points in firing order
func ServerPoints() []Point {
	return []Point{OnPreStart, OnPostStart, OnPreStop, OnPostStop}
}

// RequestPoints lists the request extension points in firing order
func RequestPoints() []Point {
	return []Point{
		OnRequest,
		OnPreAuth,
		OnCredentials,
		OnPostAuth,
		OnPreHandler,
		OnPostHandler,
		OnPreResponse,
		OnPostResponse,
	}
}

// RoutePoints lists the points a route can extend. onRequest fires before the
// route is known so it has no route level counterpart.
func RoutePoints() []Point {
	return RequestPoints()[1:]
}

// PointSet is a concurrency safe set of points
type PointSet struct {
	mu     sync.RWMutex
	points map[Point]struct{}
}

func newPointSet() *PointSet {
	return &PointSet{points: make(map[Point]struct{})}
}

// Add inserts points into the set
func (s *PointSet) Add(points ...Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p] = struct{}{}
	}
}

// Delete removes points from the set
func (s *PointSet) Delete(points ...Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		delete(s.points, p)
	}
}

// Has reports whether p is in the set
func (s *PointSet) Has(p Point) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.points[p]
	return ok
}

// Clear empties the set
func (s *PointSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.points)
}

// List returns the members in sorted order
func (s *PointSet) List() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point, 0, len(s.points))
	for p := range s.points {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
