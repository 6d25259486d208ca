// Package scenarios holds the built-in scenario catalog. Every scenario drives
// the sut server and reports what happens along the way.
package scenarios

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/sut"
)

// Reporter is the part of the progress reporter scenarios write to
type Reporter interface {
	Action(message string, args ...any)
	Err(message string, args ...any)
	Comments(messages ...string)
	Bullets(style progress.Style, title string, fields map[string]any)
}

// Env is what scenario bodies and steps act on
type Env struct {
	Server *sut.Server
	Store  *sut.Store
	Report Reporter
	Auth   sut.Credentials

	mu     sync.Mutex
	client *sut.Client
}

// Client returns a client for the running server
func (e *Env) Client() *sut.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		e.client = sut.NewClient(e.Server.URL())
	}
	return e.client
}

func (e *Env) credentials() *sut.Credentials {
	c := e.Auth
	return &c
}

// start starts the server and points the client at it
func (e *Env) start(ctx context.Context) error {
	if err := e.Server.Start(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.client = sut.NewClient(e.Server.URL())
	e.mu.Unlock()

	e.Report.Action("server started at", e.Server.URL())
	return nil
}

func (e *Env) stop(ctx context.Context) error {
	if err := e.Server.Stop(ctx); err != nil {
		return err
	}
	e.Report.Action("server stopped")
	return nil
}

// send performs call and reports the response
func (e *Env) send(ctx context.Context, call sut.Call) error {
	reply, err := e.Client().Do(ctx, call)
	if err != nil {
		return err
	}
	e.respond(reply)
	return nil
}

// get returns a step sending GET path
func (e *Env) get(path string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return e.send(ctx, sut.Call{Method: http.MethodGet, Path: path})
	}
}

func (e *Env) respond(reply *sut.Reply) {
	log.Debug().Int("status", reply.Status).Str("id", reply.RequestID).Msg("response received")

	style := progress.StyleSuccess
	if reply.Status >= http.StatusBadRequest {
		style = progress.StyleFail
	}
	fields := map[string]any{"status": reply.Status}
	for k, v := range reply.Body {
		fields[k] = v
	}
	e.Report.Bullets(style, "response transmitted", fields)
}

// expectStatus wraps a failed expectation about a reply
func expectStatus(reply *sut.Reply, want int) error {
	if reply.Status != want {
		return fmt.Errorf("expected status %d, got %d", want, reply.Status)
	}
	return nil
}
