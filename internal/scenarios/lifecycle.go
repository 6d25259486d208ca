package scenarios

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/sut"
)

// What is known about the request at each point
var lifecycleNotes = []struct {
	point sut.Point
	notes []string
}{
	{sut.OnRequest, []string{
		"Route is not yet found",
		"Cookies, Params, Payload, and Auth are not yet parsed",
	}},
	{sut.OnPreAuth, []string{
		"Route is found",
		"Params, Cookies (state) are parsed",
		"Payload and Auth are not yet parsed",
	}},
	{sut.Authenticate, []string{
		"Authentication is now being performed",
		"Payload is not yet parsed",
	}},
	{sut.AuthenticatePayload, []string{
		"Auth is now parsed",
		"Payload is now being parsed and authenticated",
	}},
	{sut.OnCredentials, []string{
		"Credentials are now available on the Auth object",
	}},
	{sut.OnPostAuth, []string{
		"Authentication is completed",
		"Nothing has been validated yet",
	}},
	{sut.OnPreHandler, []string{
		"Headers, Params, Query, Payload, and Cookies have now been validated",
		"Prerequisites have not been run yet",
	}},
	{sut.Handler, []string{
		"Prerequisites are now available",
		"Handler is now being executed",
	}},
	{sut.OnPostHandler, []string{
		"Response is now available",
		"Response has not been validated yet",
	}},
	{sut.OnPreResponse, []string{
		"Response was validated",
		"This is always called despite errors in the lifecycle",
		"No events have been triggered yet",
		"The response is not yet transmitted",
	}},
	{sut.OnPostResponse, []string{
		"Response was transmitted",
		"All response events have been triggered",
		"Request error events have not been triggered yet",
	}},
}

// logStateOf returns an override that describes the request at point p
func logStateOf(env *Env, p sut.Point, notes []string) sut.ExtFunc {
	return func(ctx context.Context, req *sut.Request) (*sut.Response, error) {
		env.Report.Comments(notes...)
		env.Report.Bullets(progress.StyleInfo, "", req.Snapshot())

		switch p {
		case sut.Authenticate:
			req.Credentials = env.Store.Auth()
		case sut.Handler:
			return sut.OK(map[string]any{
				"firstName": req.Query.Get("firstName"),
				"lastName":  req.Payload["lastName"],
			}), nil
		}
		return nil, nil
	}
}

func fullRequestLifecycle(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.Before(func(ctx context.Context) error {
			env.Store.Ignore.Clear()
			env.Store.SetAuth(env.credentials())
			for _, n := range lifecycleNotes {
				env.Store.SetExt(n.point, logStateOf(env, n.point, n.notes))
			}
			return nil
		})

		s.After(func(ctx context.Context) error {
			env.Store.Restore()
			return nil
		})

		s.It("walks a request through every extension point", func(ctx context.Context) error {
			reply, err := env.Client().Do(ctx, sut.Call{
				Method:  http.MethodPost,
				Path:    "/full-request/lifecycle",
				Query:   url.Values{"firstName": {"john"}},
				Cookies: map[string]string{"sid": "123456"},
				Payload: map[string]any{"lastName": "doe"},
			})
			if err != nil {
				return err
			}
			env.respond(reply)
			return expectStatus(reply, http.StatusOK)
		})
		return nil
	}
}

func routeExtensions(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.Before(func(ctx context.Context) error {
			env.Store.SetAuth(env.credentials())
			return nil
		})

		s.BeforeEach(func(ctx context.Context) error {
			env.Store.Restore()
			return nil
		})

		s.After(func(ctx context.Context) error {
			env.Store.Restore()
			return nil
		})

		for _, p := range sut.RoutePoints() {
			s.It("fires route extension "+string(p), func(ctx context.Context) error {
				env.Store.SetRouteExt(p, func(ctx context.Context, req *sut.Request) (*sut.Response, error) {
					env.Report.Comments("route " + req.Route + " extends " + string(p))
					return nil, nil
				})
				return env.send(ctx, sut.Call{Path: "/auth/ext"})
			})
		}

		s.It("skips route extensions on routes without them", func(ctx context.Context) error {
			env.Store.SetRouteExt(sut.OnPreHandler, func(ctx context.Context, req *sut.Request) (*sut.Response, error) {
				return nil, errors.New("route extension fired on " + req.Route)
			})
			reply, err := env.Client().Get(ctx, "/auth")
			if err != nil {
				return err
			}
			env.respond(reply)
			return expectStatus(reply, http.StatusOK)
		})
		return nil
	}
}

func serverExtensions(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.After(func(ctx context.Context) error {
			env.Store.ReturnErrorOn.Delete(sut.ServerPoints()...)
			env.Store.Restore()
			if env.Server.Running() {
				return nil
			}
			return env.start(ctx)
		})

		s.It("restarts the server with every server point overridden", func(ctx context.Context) error {
			for _, p := range sut.ServerPoints() {
				env.Store.SetServerExt(p, func(ctx context.Context, srv *sut.Server) error {
					env.Report.Comments(string(p) + " override ran")
					return nil
				})
			}
			if err := env.stop(ctx); err != nil {
				return err
			}
			return env.start(ctx)
		})

		s.It("fails to start when onPreStart returns an error", func(ctx context.Context) error {
			if err := env.stop(ctx); err != nil {
				return err
			}
			env.Store.ReturnErrorOn.Add(sut.OnPreStart)

			err := env.start(ctx)
			if err == nil {
				return errors.New("expected the server to refuse to start")
			}
			env.Report.Err("start failed:", err.Error())

			env.Store.ReturnErrorOn.Delete(sut.OnPreStart)
			return env.start(ctx)
		})
		return nil
	}
}
