package sut

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tomatool/walkthrough/internal/progress"
)

const maxPayloadBytes = 1 << 20

// stage is one step of the request lifecycle. A non-nil response takes the
// request over and skips to onPreResponse.
type stage func(ctx context.Context) (*Response, error)

// ServeHTTP runs the request lifecycle. The request is tracked as pending work
// from arrival until onPostResponse has finished, which happens after the
// client already has its response.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := newRequest(r)
	handle := s.gate.Track(req.Method + " " + req.Path)
	defer handle.Done()

	ctx := r.Context()
	log.Debug().Str("id", req.ID).Str("method", req.Method).Str("path", req.Path).Msg("request received")

	var rt *Route
	res, err := s.requestPoint(ctx, OnRequest, req, nil)
	if err == nil && res == nil {
		var params map[string]string
		rt, params = s.lookup(r)
		if rt == nil {
			err = NotFound()
		} else {
			req.Route = rt.String()
			req.Params = params
			req.Query = r.URL.Query()
			req.State = cookies(r)

			if rt.WebSocket {
				s.serveWebSocket(ctx, w, r, req)
				return
			}

			res, err = s.routeLifecycle(ctx, req, rt)
		}
	}
	if err != nil {
		res = s.errorResponse(req, err)
	}

	res = s.preResponse(ctx, req, rt, res)
	s.transmit(w, req, res)

	// The client may hang up once it has the response
	s.postResponse(context.WithoutCancel(ctx), req, rt)
}

func (s *Server) routeLifecycle(ctx context.Context, req *Request, rt *Route) (*Response, error) {
	stages := []stage{
		func(ctx context.Context) (*Response, error) { return s.requestPoint(ctx, OnPreAuth, req, rt) },
		func(ctx context.Context) (*Response, error) { return s.authenticate(ctx, req, rt) },
		func(ctx context.Context) (*Response, error) { return nil, s.parsePayload(req) },
		func(ctx context.Context) (*Response, error) { return s.authenticatePayload(ctx, req, rt) },
		func(ctx context.Context) (*Response, error) { return s.requestPoint(ctx, OnCredentials, req, rt) },
		func(ctx context.Context) (*Response, error) { return s.requestPoint(ctx, OnPostAuth, req, rt) },
		func(ctx context.Context) (*Response, error) { return nil, s.validate(ctx, req, rt) },
		func(ctx context.Context) (*Response, error) { return s.requestPoint(ctx, OnPreHandler, req, rt) },
		func(ctx context.Context) (*Response, error) { return nil, s.handle(ctx, req) },
		func(ctx context.Context) (*Response, error) { return s.requestPoint(ctx, OnPostHandler, req, rt) },
	}

	for _, run := range stages {
		res, err := run(ctx)
		if err != nil || res != nil {
			return res, err
		}
	}
	return req.Response, nil
}

// requestPoint fires the server level extension point p and then the route
// level one when the route accepts extensions
func (s *Server) requestPoint(ctx context.Context, p Point, req *Request, rt *Route) (*Response, error) {
	res, err := s.requestExt(ctx, p, req)
	if err != nil || res != nil {
		return res, err
	}
	if rt != nil && rt.Extensions {
		return s.routeExt(ctx, p, req, rt)
	}
	return nil, nil
}

func (s *Server) requestExt(ctx context.Context, p Point, req *Request) (*Response, error) {
	if s.store.Ignore.Has(p) {
		s.report.Ignore(string(p))
		return nil, nil
	}

	if err := s.gate.Next(ctx, fmt.Sprintf("Request extension point %s is next", p)); err != nil {
		return nil, err
	}

	if err := s.injectedError(p); err != nil {
		return nil, err
	}

	s.report.Ext("request", string(p), "")

	if fn := s.store.Ext(p); fn != nil {
		return fn(ctx, req)
	}
	return nil, nil
}

func (s *Server) routeExt(ctx context.Context, p Point, req *Request, rt *Route) (*Response, error) {
	fn := s.store.RouteExt(p)
	if fn == nil {
		return nil, nil
	}

	from := rt.String()
	if err := s.gate.Next(ctx, fmt.Sprintf("Route extension point %s is next from %s", p, from)); err != nil {
		return nil, err
	}

	s.report.Ext("route", string(p), from)
	return fn(ctx, req)
}

func (s *Server) authenticate(ctx context.Context, req *Request, rt *Route) (*Response, error) {
	if !rt.Auth {
		return nil, nil
	}
	if s.store.Ignore.Has(Authenticate) {
		s.report.Ignore("authenticate")
		return nil, nil
	}

	if err := s.gate.Next(ctx, "Auth scheme authenticate is next"); err != nil {
		return nil, err
	}
	if err := s.injectedError(Authenticate); err != nil {
		return nil, err
	}

	s.report.Action("authenticate")

	if fn := s.store.Ext(Authenticate); fn != nil {
		res, err := fn(ctx, req)
		if err != nil || res != nil {
			return res, err
		}
	} else {
		req.Credentials = s.store.Auth()
	}

	if req.Credentials == nil {
		return nil, Unauthorized("Missing authentication")
	}
	return nil, nil
}

func (s *Server) authenticatePayload(ctx context.Context, req *Request, rt *Route) (*Response, error) {
	if !rt.PayloadAuth {
		return nil, nil
	}
	if s.store.Ignore.Has(AuthenticatePayload) {
		s.report.Ignore("authenticate payload")
		return nil, nil
	}

	if err := s.gate.Next(ctx, "Auth scheme authenticate payload is next"); err != nil {
		return nil, err
	}
	if err := s.injectedError(AuthenticatePayload); err != nil {
		return nil, err
	}

	s.report.Action("authenticate payload")

	if fn := s.store.Ext(AuthenticatePayload); fn != nil {
		return fn(ctx, req)
	}
	return nil, nil
}

func (s *Server) parsePayload(req *Request) error {
	body := req.raw.Body
	if body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(body, maxPayloadBytes))
	if err != nil {
		return BadRequest("Invalid request payload")
	}
	if len(data) == 0 {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return BadRequest("Invalid request payload JSON format")
	}
	req.Payload = payload
	return nil
}

func (s *Server) validate(ctx context.Context, req *Request, rt *Route) error {
	if !rt.Validate {
		return nil
	}
	if err := validateRequest(req); err != nil {
		return s.failAction(ctx, err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req *Request) error {
	if s.store.Ignore.Has(Handler) {
		s.report.Ignore(string(Handler))
		req.Response = OK(map[string]any{"ignored": true})
		return nil
	}

	if err := s.gate.Next(ctx, "Handler call is next"); err != nil {
		return err
	}
	if s.store.ThrowOn.Has(Handler) {
		s.report.Err(string(Handler))
		return errors.New("thrown error on handler")
	}
	if s.store.ReturnErrorOn.Has(Handler) {
		s.report.Err(string(Handler))
		return errors.New("returned error on handler")
	}

	s.report.Action("handler", req.Path)

	if fn := s.store.Ext(Handler); fn != nil {
		res, err := fn(ctx, req)
		if err != nil {
			return err
		}
		if res != nil {
			req.Response = res
			return nil
		}
	}

	req.Response = OK(map[string]any{"success": true})
	return nil
}

// failAction reports a lifecycle error before it becomes the response
func (s *Server) failAction(ctx context.Context, err error) error {
	if nerr := s.gate.Next(ctx, "Fail action is next"); nerr != nil {
		return nerr
	}
	s.report.Err("Error caught in fail action:", err.Error())
	return err
}

func (s *Server) errorResponse(req *Request, err error) *Response {
	herr := AsHTTPError(err)
	if herr.IsServer() {
		s.report.Event("request", []string{"error"}, map[string]any{"args": []string{"error " + err.Error()}})
		log.Debug().Err(err).Str("id", req.ID).Msg("request failed")
	}
	return &Response{Status: herr.Status, Body: herr.Body(), Err: herr}
}

// preResponse fires onPreResponse, which runs whatever happened before, and
// then inspects the final response
func (s *Server) preResponse(ctx context.Context, req *Request, rt *Route, res *Response) *Response {
	req.Response = res

	override, err := s.requestPoint(ctx, OnPreResponse, req, rt)
	switch {
	case err != nil:
		req.Response = s.errorResponse(req, err)
	case override != nil:
		req.Response = override
	}

	s.inspectResponse(ctx, req)
	return req.Response
}

func (s *Server) inspectResponse(ctx context.Context, req *Request) {
	if err := s.gate.Next(ctx, "Fail action is next"); err != nil {
		return
	}

	herr := req.Response.Err
	if herr == nil {
		return
	}

	s.report.Err("Response is an error")
	s.report.Bullets(progress.StyleFail, "", map[string]any{
		"method":   req.Method,
		"path":     req.Path,
		"msg":      herr.Message,
		"code":     herr.Status,
		"isServer": herr.IsServer(),
	})
}

func (s *Server) transmit(w http.ResponseWriter, req *Request, res *Response) {
	body, err := json.Marshal(res.Body)
	if err != nil {
		log.Error().Err(err).Str("id", req.ID).Msg("encoding response")
		res = s.errorResponse(req, fmt.Errorf("encoding response: %w", err))
		body, _ = json.Marshal(res.Body)
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("X-Request-Id", req.ID)
	w.WriteHeader(res.Status)
	if _, err := w.Write(body); err != nil {
		log.Debug().Err(err).Str("id", req.ID).Msg("writing response")
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	route := req.Route
	if route == "" {
		route = req.Method + " " + req.Path
	}
	s.report.Event("response", nil, map[string]any{"status": res.Status, "path": route})
}

func (s *Server) postResponse(ctx context.Context, req *Request, rt *Route) {
	if _, err := s.requestPoint(ctx, OnPostResponse, req, rt); err != nil {
		log.Debug().Err(err).Str("id", req.ID).Msg("post response extension failed")
	}
}

func cookies(r *http.Request) map[string]string {
	state := make(map[string]string)
	for _, c := range r.Cookies() {
		state[c.Name] = c.Value
	}
	return state
}
