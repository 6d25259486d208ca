package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tomatool/walkthrough/internal/progress"
)

// Pretty renders events as indented, colored lines
type Pretty struct {
	out       io.Writer
	dumpDepth int

	mu sync.Mutex

	magenta lipgloss.Style
	blue    lipgloss.Style
	gray    lipgloss.Style
	red     lipgloss.Style
	green   lipgloss.Style
	yellow  lipgloss.Style
	pause   lipgloss.Style
	comment lipgloss.Style
}

// NewPretty creates a pretty sink. Colors follow the capabilities of out.
func NewPretty(out io.Writer, opts Options) *Pretty {
	r := lipgloss.NewRenderer(out)
	depth := opts.DumpDepth
	if depth < 0 {
		depth = DefaultDumpDepth
	}

	return &Pretty{
		out:       out,
		dumpDepth: depth,
		magenta:   r.NewStyle().Foreground(lipgloss.Color("5")),
		blue:      r.NewStyle().Foreground(lipgloss.Color("4")),
		gray:      r.NewStyle().Foreground(lipgloss.Color("8")),
		red:       r.NewStyle().Foreground(lipgloss.Color("1")),
		green:     r.NewStyle().Foreground(lipgloss.Color("2")),
		yellow:    r.NewStyle().Foreground(lipgloss.Color("3")),
		pause:     r.NewStyle().Foreground(lipgloss.Color("#BF4321")),
		comment:   r.NewStyle().Foreground(lipgloss.Color("#B5D1A5")).Italic(true),
	}
}

// tab returns the indentation for nesting level n
func tab(n int) string {
	return strings.Repeat(" ", n*3-1)
}

func pad(s string) string {
	return fmt.Sprintf("%-4s", s)
}

func (p *Pretty) elapsed(d time.Duration) string {
	return p.gray.Render(fmt.Sprintf("%gs", d.Seconds()))
}

func joinArgs(msg string, args []any) string {
	parts := make([]string, 0, len(args)+1)
	if msg != "" {
		parts = append(parts, msg)
	}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

func (p *Pretty) line(parts ...string) {
	var kept []string
	for _, s := range parts {
		if s != "" {
			kept = append(kept, s)
		}
	}
	fmt.Fprintln(p.out, strings.Join(kept, " "))
}

// Emit renders ev
func (p *Pretty) Emit(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	number := pad(fmt.Sprintf("%d.", ev.EventNo))

	switch ev.Kind {
	case progress.KindScenario:
		if ev.Skipped {
			p.line(p.gray.Render(fmt.Sprintf("%d. [skip] %s", ev.ScenarioNo, ev.Scenario)))
			return
		}
		p.line(p.magenta.Render(fmt.Sprintf("%d. %s", ev.ScenarioNo, ev.Scenario)))

	case progress.KindStep:
		if ev.Skipped {
			p.line(tab(1), p.gray.Render(fmt.Sprintf("%d. [skip] %s", ev.StepNo, ev.Step)))
			return
		}
		p.line(tab(1), p.blue.Render(fmt.Sprintf("%d. %s", ev.StepNo, ev.Step)))

	case progress.KindPause:
		p.line(tab(1), p.pause.Render("[pause]"), ev.Message)

	case progress.KindInstruct, progress.KindDone:
		p.line(p.gray.Render("[instructions]"), ev.Message)

	case progress.KindUsage:
		p.line(p.red.Render("[usage]"), ev.Message)

	case progress.KindAction:
		p.line(tab(2), number, p.green.Render("[step]"), joinArgs(ev.Message, ev.Args), p.elapsed(ev.Elapsed))

	case progress.KindSkip:
		p.line(tab(2), number, p.red.Render("[skip]"), joinArgs(ev.Message, ev.Args))

	case progress.KindIgnore:
		p.line(tab(2), pad(" "), p.gray.Render("[ignore]"), joinArgs(ev.Message, ev.Args))

	case progress.KindError:
		p.line(tab(2), number, p.red.Render("[err]"), joinArgs(ev.Message, ev.Args), p.elapsed(ev.Elapsed))

	case progress.KindEvent:
		detail := ""
		if len(ev.Tags) > 0 {
			detail = fmt.Sprint(ev.Tags)
		}
		if len(ev.Fields) > 0 {
			detail = strings.TrimSpace(detail + " " + inline(ev.Fields))
		}
		p.line(tab(2), number, p.blue.Render("[event]"), ev.Message, detail, p.elapsed(ev.Elapsed))

	case progress.KindExt:
		tag := p.yellow.Render("[ext]")
		if ev.Scope == "server" {
			tag = p.magenta.Render("[ext]")
		}
		p.line(tab(2), number, tag, ev.Message, ev.From, p.elapsed(ev.Elapsed))

	case progress.KindLog:
		p.line(tab(2), pad(" "), p.gray.Render("[log]"), joinArgs(ev.Message, ev.Args))

	case progress.KindComment:
		p.line(tab(2), pad(" "), p.gray.Render("-"), p.comment.Render(ev.Message))

	case progress.KindBullets:
		p.bullets(ev)
	}
}

func (p *Pretty) styleFor(s progress.Style) lipgloss.Style {
	switch s {
	case progress.StyleSuccess:
		return p.green
	case progress.StyleFail:
		return p.red
	default:
		return p.blue
	}
}

func (p *Pretty) bullets(ev progress.Event) {
	color := p.styleFor(ev.Style)

	if ev.Message != "" {
		p.line(tab(2), pad("--"), color.Render("["+ev.Message+"]"), p.elapsed(ev.Elapsed))
	}

	if ev.Fields == nil {
		p.line(tab(4), pad(" "), color.Render("[no bullets]"))
		return
	}

	p.dump(4, ev.Fields, color)
}

// dump prints the keys of obj, descending into nested maps until the
// configured depth is reached.
func (p *Pretty) dump(level int, obj map[string]any, color lipgloss.Style) {
	if level > 4+p.dumpDepth*2 {
		return
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := obj[k]
		nested, isMap := val.(map[string]any)

		var rendered string
		switch v := val.(type) {
		case nil:
			rendered = p.yellow.Render("null")
		case map[string]any:
			if len(v) == 0 {
				rendered = p.gray.Render("{}")
			} else {
				rendered = p.gray.Render("{...}")
			}
		case []any, []string, []int:
			rendered = p.gray.Render("[...]")
		default:
			rendered = color.Render(fmt.Sprint(v))
		}

		p.line(tab(level), pad(">"), p.gray.Render(k), rendered)

		if isMap {
			p.dump(level+2, nested, color)
		}
	}
}

func inline(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
