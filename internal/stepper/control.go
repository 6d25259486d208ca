package stepper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrOperatorExit is returned when the operator asks to leave the program
var ErrOperatorExit = errors.New("operator requested exit")

// Command is an operator instruction read from the control channel
type Command int

const (
	CommandAdvance Command = iota
	CommandFinish
	CommandExit
	CommandSkip
)

func (c Command) String() string {
	switch c {
	case CommandAdvance:
		return "advance"
	case CommandFinish:
		return "finish"
	case CommandExit:
		return "exit"
	case CommandSkip:
		return "skip"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Operator tokens
var (
	AdvanceTokens = []string{"enter", "return"}
	FinishTokens  = []string{"complete", "finish", "done", "f"}
	ExitTokens    = []string{"exit", "quit", "q"}
	SkipTokens    = []string{"skip", "s"}
)

// ParseCommand maps a line typed by the operator to a command. A bare
// newline and any unrecognised line advance the gate.
func ParseCommand(line string) Command {
	token := strings.ToLower(strings.TrimSpace(line))
	switch {
	case slices.Contains(FinishTokens, token):
		return CommandFinish
	case slices.Contains(ExitTokens, token):
		return CommandExit
	case slices.Contains(SkipTokens, token):
		return CommandSkip
	default:
		return CommandAdvance
	}
}

// Control applies operator commands to a stepper
type Control struct {
	stepper *Stepper
	in      io.Reader
}

// NewControl creates a control channel reading lines from in
func NewControl(s *Stepper, in io.Reader) *Control {
	return &Control{stepper: s, in: in}
}

// Apply executes cmd. Every command but exit also advances the gate.
func (c *Control) Apply(cmd Command) error {
	log.Debug().Stringer("command", cmd).Msg("operator command")

	switch cmd {
	case CommandFinish:
		c.stepper.Disable()
	case CommandSkip:
		c.stepper.SkipScenario()
	case CommandExit:
		return ErrOperatorExit
	}

	c.stepper.Advance()
	return nil
}

// Announce prints the operator instructions
func (c *Control) Announce() {
	if c.stepper.notify == nil {
		return
	}
	for _, line := range Instructions() {
		c.stepper.notify.Instruct(line)
	}
}

// Instructions describes the control tokens
func Instructions() []string {
	return []string{
		"Running in step mode",
		"Every step will pause the program and wait for your input so that you can inspect the logs",
		fmt.Sprintf("Press %s to step through the tests", joinTokens(AdvanceTokens)),
		fmt.Sprintf("Write %s to exit step mode", joinTokens(FinishTokens)),
		fmt.Sprintf("Write %s to exit the program", joinTokens(ExitTokens)),
		fmt.Sprintf("Write %s to skip the given scenario", joinTokens(SkipTokens)),
	}
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " or ")
}

// Listen reads commands until the input ends, the operator exits or ctx is
// done. It returns ErrOperatorExit for an exit command and nil at end of input.
func (c *Control) Listen(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("reading operator input: %w", err)
			}
			return nil
		case line := <-lines:
			if err := c.Apply(ParseCommand(line)); err != nil {
				return err
			}
		}
	}
}
