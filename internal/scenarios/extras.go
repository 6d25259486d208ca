package scenarios

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/tomatool/walkthrough/internal/registry"
	"github.com/tomatool/walkthrough/internal/sut"
)

const parallelRequests = 3

func ignoredPoints(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		reset := func(ctx context.Context) error {
			env.Store.Ignore.Clear()
			env.Store.SetAuth(env.credentials())
			return nil
		}
		s.BeforeEach(reset)
		s.After(reset)

		s.It("ignores every request extension point", func(ctx context.Context) error {
			env.Store.Ignore.Add(sut.RequestPoints()...)
			return env.send(ctx, sut.Call{Path: "/"})
		})

		s.It("ignores the handler", func(ctx context.Context) error {
			env.Store.Ignore.Add(sut.Handler)
			return env.send(ctx, sut.Call{Path: "/"})
		})

		s.It("ignores the auth scheme", func(ctx context.Context) error {
			env.Store.SetAuth(nil)
			env.Store.Ignore.Add(sut.Authenticate)
			return env.send(ctx, sut.Call{Path: "/auth"})
		})
		return nil
	}
}

func thrownErrors(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.Before(func(ctx context.Context) error {
			env.Store.SetAuth(env.credentials())
			return nil
		})

		clearThrows := func(ctx context.Context) error {
			env.Store.ThrowOn.Clear()
			return nil
		}
		s.BeforeEach(clearThrows)
		s.After(clearThrows)

		points := append(sut.RequestPoints(), sut.Authenticate, sut.Handler)
		for _, p := range points {
			s.It("throws on "+string(p), func(ctx context.Context) error {
				env.Store.ThrowOn.Add(p)
				return env.send(ctx, sut.Call{Path: "/auth"})
			})
		}
		return nil
	}
}

func websocketEcho(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.It("echoes a message", func(ctx context.Context) error {
			conn, err := env.Client().Dial(ctx, "/ws")
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
				return fmt.Errorf("sending message: %w", err)
			}

			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("reading echo: %w", err)
			}
			env.Report.Action("received", string(msg))

			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
				return fmt.Errorf("closing websocket: %w", err)
			}
			return nil
		})
		return nil
	}
}

func concurrentRequests(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		fanOut := func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			replies := make([]*sut.Reply, parallelRequests)

			for i := range parallelRequests {
				g.Go(func() error {
					reply, err := env.Client().Get(gctx, "/")
					if err != nil {
						return err
					}
					replies[i] = reply
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, reply := range replies {
				env.respond(reply)
				if err := expectStatus(reply, http.StatusOK); err != nil {
					return err
				}
			}
			return nil
		}

		s.After(func(ctx context.Context) error {
			env.Store.Restore()
			return nil
		})

		s.It("sends requests in parallel", fanOut)

		s.It("waits for post response work", func(ctx context.Context) error {
			var mu sync.Mutex
			finished := 0
			env.Store.SetExt(sut.OnPostResponse, func(ctx context.Context, req *sut.Request) (*sut.Response, error) {
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				finished++
				n := finished
				mu.Unlock()
				env.Report.Comments(fmt.Sprintf("post response work %d of %d finished", n, parallelRequests))
				return nil, nil
			})

			if err := fanOut(ctx); err != nil {
				return err
			}
			env.Report.Comments("all responses received")
			return nil
		})
		return nil
	}
}
