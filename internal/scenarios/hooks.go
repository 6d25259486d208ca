package scenarios

import (
	"context"

	"github.com/tomatool/walkthrough/internal/registry"
)

func preHooks(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.It("starts the server", env.start)
		return nil
	}
}

func postHooks(env *Env) registry.Body {
	return func(ctx context.Context, s *registry.Scope) error {
		s.It("stops the server", func(ctx context.Context) error {
			if !env.Server.Running() {
				env.Report.Comments("server is not running")
				return nil
			}
			return env.stop(ctx)
		})
		return nil
	}
}
