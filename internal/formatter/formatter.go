// Package formatter renders progress events. The pretty sink prints colored,
// indented lines for an operator following along in a terminal; the events
// sink prints one JSON document per line for tools.
package formatter

import (
	"fmt"
	"io"

	"github.com/tomatool/walkthrough/internal/progress"
)

// Output formats
const (
	FormatPretty = "pretty"
	FormatEvents = "events"
)

// Formats lists every supported output format
func Formats() []string {
	return []string{FormatPretty, FormatEvents}
}

// DefaultDumpDepth is the dump depth used for a negative DumpDepth
const DefaultDumpDepth = 2

// Options tune the rendering
type Options struct {
	// DumpDepth limits how many nested levels a bullet dump prints. Zero
	// prints top level keys only, a negative value uses DefaultDumpDepth.
	DumpDepth int
}

// New returns the sink for format writing to out
func New(format string, out io.Writer, opts Options) (progress.Sink, error) {
	switch format {
	case FormatPretty, "":
		return NewPretty(out, opts), nil
	case FormatEvents:
		return NewEvents(out), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// Summarizer is implemented by sinks that print a closing summary
type Summarizer interface {
	Summary()
}
