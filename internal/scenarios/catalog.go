package scenarios

import (
	"fmt"
	"strings"

	"github.com/tomatool/walkthrough/internal/registry"
)

// Names of the scenarios wrapping every selection
const (
	PreHooks  = "Pre hooks"
	PostHooks = "Post hooks"
)

// Entry is a named scenario of the catalog
type Entry struct {
	Name        string // command line name
	Title       string // scenario name shown while running
	Description string

	declare func(env *Env) registry.Body
}

var catalog = []Entry{
	{
		Name:        "no-auth",
		Title:       "Route with no auth",
		Description: "errors returned from every request point of a public route",
		declare:     routeWithNoAuth,
	},
	{
		Name:        "auth",
		Title:       "Route with auth",
		Description: "the auth scheme and errors around authentication",
		declare:     routeWithAuth,
	},
	{
		Name:        "validation",
		Title:       "Route with auth and validation",
		Description: "validation order of params, query, payload and cookies",
		declare:     routeWithValidation,
	},
	{
		Name:        "lifecycle",
		Title:       "Full request lifecycle",
		Description: "request state as seen from every extension point",
		declare:     fullRequestLifecycle,
	},
	{
		Name:        "route-ext",
		Title:       "Route extension points",
		Description: "route level extension points on top of server level ones",
		declare:     routeExtensions,
	},
	{
		Name:        "server-ext",
		Title:       "Server extension points",
		Description: "server start and stop hooks, including a failing start",
		declare:     serverExtensions,
	},
	{
		Name:        "ignore",
		Title:       "Ignored extension points",
		Description: "bypassing request points, the handler and the auth scheme",
		declare:     ignoredPoints,
	},
	{
		Name:        "throws",
		Title:       "Thrown errors",
		Description: "errors thrown from inside the request lifecycle",
		declare:     thrownErrors,
	},
	{
		Name:        "websocket",
		Title:       "Websocket echo",
		Description: "a websocket connection tracked until it closes",
		declare:     websocketEcho,
	},
	{
		Name:        "concurrent",
		Title:       "Concurrent requests",
		Description: "parallel requests and post response work settling",
		declare:     concurrentRequests,
	},
}

// Entries returns the catalog in run order
func Entries() []Entry {
	out := make([]Entry, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the command line names in run order
func Names() []string {
	names := make([]string, len(catalog))
	for i, e := range catalog {
		names[i] = e.Name
	}
	return names
}

// Lookup finds an entry by command line name
func Lookup(name string) (Entry, bool) {
	name = strings.TrimPrefix(name, "--")
	for _, e := range catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// UnknownError lists scenario names missing from the catalog
type UnknownError struct {
	Names []string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown scenarios: %s", strings.Join(e.Names, ", "))
}

// Validate checks that every name is in the catalog
func Validate(names []string) error {
	var unknown []string
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return &UnknownError{Names: unknown}
	}
	return nil
}

// Register declares the selected scenarios on reg, wrapped by the always
// running Pre hooks and Post hooks scenarios that start and stop the server
func Register(reg *registry.Registry, env *Env, names []string) error {
	if err := Validate(names); err != nil {
		return err
	}

	reg.GivenAlways(PreHooks, preHooks(env))
	for _, n := range names {
		e, _ := Lookup(n)
		reg.Given(e.Title, e.declare(env))
	}
	reg.GivenAlways(PostHooks, postHooks(env))

	return nil
}
