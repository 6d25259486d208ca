package scenarios

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/seq"
	"github.com/tomatool/walkthrough/internal/sut"
)

func routeWithNoAuth(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.BeforeEach(func(ctx context.Context) error {
			env.Store.SetAuth(nil)
			env.Store.ReturnErrorOn.Clear()
			env.Store.ThrowOn.Clear()
			return nil
		})

		s.After(func(ctx context.Context) error {
			env.Store.ReturnErrorOn.Clear()
			return nil
		})

		s.It("doesnt throw errors on route without auth", env.get("/"))

		// The handler sits between onPreAuth and onCredentials on a public route
		for _, p := range seq.Insert(sut.RequestPoints(), 2, sut.Handler) {
			s.It("returns error on "+string(p), func(ctx context.Context) error {
				env.Store.ReturnErrorOn.Add(p)
				return env.send(ctx, sut.Call{Path: "/"})
			})
		}
		return nil
	}
}

func routeWithAuth(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.After(func(ctx context.Context) error {
			env.Store.Ignore.Clear()
			env.Store.ReturnErrorOn.Clear()
			return nil
		})

		s.BeforeEach(func(ctx context.Context) error {
			env.Store.SetAuth(env.credentials())
			env.Store.ReturnErrorOn.Clear()
			env.Store.Restore()
			return nil
		})

		s.It("doesnt throw errors on route with auth", env.get("/auth"))

		for _, p := range sut.RequestPoints()[1:4] {
			s.It("returns error on "+string(p), func(ctx context.Context) error {
				env.Store.ReturnErrorOn.Add(p)
				return env.send(ctx, sut.Call{Path: "/auth"})
			})
		}

		s.It("returns error on "+string(sut.Authenticate), func(ctx context.Context) error {
			env.Store.ReturnErrorOn.Add(sut.Authenticate)
			return env.send(ctx, sut.Call{Path: "/auth"})
		})

		s.It("rejects a request without credentials", func(ctx context.Context) error {
			env.Store.SetAuth(nil)
			reply, err := env.Client().Get(ctx, "/auth")
			if err != nil {
				return err
			}
			env.respond(reply)
			return expectStatus(reply, http.StatusUnauthorized)
		})
		return nil
	}
}

// validationCall builds a request for the validation route. Without params
// the url lacks the required path parameter.
type validationCall struct {
	param   string
	query   url.Values
	payload map[string]any
	cookies map[string]string
}

func (v validationCall) call() sut.Call {
	path := "/validation"
	if v.param != "" {
		path += "/" + v.param
	}
	c := sut.Call{
		Method:  http.MethodPost,
		Path:    path,
		Query:   v.query,
		Cookies: v.cookies,
	}
	if v.payload != nil {
		c.Payload = v.payload
	}
	return c
}

func routeWithValidation(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		query := url.Values{"query": {"test"}}
		payload := map[string]any{"payload": "test"}
		cookies := map[string]string{"state": "test"}

		sendIt := func(v validationCall, want int) func(ctx context.Context) error {
			return func(ctx context.Context) error {
				reply, err := env.Client().Do(ctx, v.call())
				if err != nil {
					return err
				}
				env.respond(reply)
				return expectStatus(reply, want)
			}
		}

		s.Before(func(ctx context.Context) error {
			env.Store.SetAuth(env.credentials())
			return nil
		})

		s.AfterEach(func(ctx context.Context) error {
			env.Store.Restore()
			return nil
		})

		s.It("validates the request payload", sendIt(validationCall{
			param: "test", query: query, payload: payload, cookies: cookies,
		}, http.StatusOK))

		s.It("fails on invalid payload", func(ctx context.Context) error {
			// Payload authentication runs before validation
			env.Store.SetExt(sut.AuthenticatePayload, func(ctx context.Context, req *sut.Request) (*sut.Response, error) {
				return nil, errors.New("authenticate payload")
			})
			return sendIt(validationCall{payload: map[string]any{"name": "test"}}, http.StatusInternalServerError)(ctx)
		})

		s.It("validates params first", sendIt(validationCall{}, http.StatusBadRequest))
		s.It("validates query next", sendIt(validationCall{param: "test"}, http.StatusBadRequest))
		s.It("validates payload next", sendIt(validationCall{param: "test", query: query}, http.StatusBadRequest))
		s.It("validates cookie last", sendIt(validationCall{
			param: "test", query: query, payload: payload,
		}, http.StatusBadRequest))
		return nil
	}
}
