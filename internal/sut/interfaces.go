// Package sut is a small HTTP server whose every lifecycle point reports
// progress, can be paused by the stepper, overridden through a Store and made
// to fail on demand. Scenarios drive it to show how a request travels through
// the server.
package sut

import (
	"context"

	"github.com/tomatool/walkthrough/internal/progress"
	"github.com/tomatool/walkthrough/internal/stepper"
)

// Gate suspends lifecycle points and tracks requests as pending work
type Gate interface {
	Next(ctx context.Context, message string) error
	Track(label string) *stepper.Handle
}

// Reporter receives what the server observes
type Reporter interface {
	Action(message string, args ...any)
	Ignore(message string, args ...any)
	Err(message string, args ...any)
	Event(name string, tags []string, fields map[string]any)
	Ext(scope, point, from string)
	Comments(messages ...string)
	Bullets(style progress.Style, title string, fields map[string]any)
}

// Ensure the production types satisfy the interfaces
var (
	_ Gate     = (*stepper.Stepper)(nil)
	_ Reporter = (*progress.Reporter)(nil)
)
