package command

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tomatool/walkthrough/internal/config"
	"github.com/tomatool/walkthrough/internal/scenarios"
	"github.com/tomatool/walkthrough/internal/seq"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate the configuration file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "config file path",
		},
	},
	Action: runValidate,
}

type status string

const (
	statusOK      status = "ok"
	statusWarning status = "warning"
	statusError   status = "error"
)

// ValidationResult holds the result of a validation check
type ValidationResult struct {
	Item       string
	Status     status
	Message    string
	Suggestion string
}

// Validator performs all validation checks
type Validator struct {
	configPath string
	config     *config.Config
	results    []ValidationResult
}

func runValidate(c *cli.Context) error {
	v := &Validator{configPath: c.String("config")}
	v.validate()
	return v.print(c.App.Writer)
}

func (v *Validator) add(r ValidationResult) {
	v.results = append(v.results, r)
}

func (v *Validator) validate() {
	v.validateConfig()
	if v.config == nil {
		return
	}
	v.validateServer()
	v.validateScenarios()
}

func (v *Validator) validateConfig() {
	cfg, err := config.Load(v.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		v.add(ValidationResult{
			Item:       v.configPath,
			Status:     statusError,
			Message:    "config file not found",
			Suggestion: "Run walkthrough init or pass --config",
		})
		return
	}
	if err != nil {
		v.add(ValidationResult{
			Item:       v.configPath,
			Status:     statusError,
			Message:    err.Error(),
			Suggestion: "Check the config file syntax and structure",
		})
		return
	}

	v.config = cfg
	v.add(ValidationResult{Item: v.configPath, Status: statusOK, Message: "valid configuration"})
}

func (v *Validator) validateServer() {
	if _, _, err := net.SplitHostPort(v.config.Server.Addr); err != nil {
		v.add(ValidationResult{
			Item:       "server.addr",
			Status:     statusError,
			Message:    err.Error(),
			Suggestion: "Use host:port, for example localhost:3000",
		})
		return
	}
	v.add(ValidationResult{Item: "server.addr", Status: statusOK, Message: v.config.Server.Addr})
}

func (v *Validator) validateScenarios() {
	if v.config.RunAll() {
		v.add(ValidationResult{Item: "scenarios", Status: statusOK, Message: "all scenarios"})
		return
	}

	names := seq.Omit(v.config.Scenarios, "all", "*")
	if len(names) == 0 {
		v.add(ValidationResult{
			Item:       "scenarios",
			Status:     statusWarning,
			Message:    "no scenarios listed",
			Suggestion: "Pass scenario names to walkthrough run, or list them in the config",
		})
		return
	}

	for _, name := range names {
		if _, ok := scenarios.Lookup(name); !ok {
			v.add(ValidationResult{
				Item:       name,
				Status:     statusError,
				Message:    "unknown scenario",
				Suggestion: "Run walkthrough list to see the available scenarios",
			})
			continue
		}
		v.add(ValidationResult{Item: name, Status: statusOK})
	}
}

func (v *Validator) print(out io.Writer) error {
	var okCount, warningCount, errorCount int
	for _, r := range v.results {
		icon := successStyle.Render("✓")
		switch r.Status {
		case statusError:
			icon = errorStyle.Render("✗")
			errorCount++
		case statusWarning:
			icon = warnStyle.Render("!")
			warningCount++
		default:
			okCount++
		}

		fmt.Fprintf(out, "  %s %s", icon, r.Item)
		if r.Message != "" {
			fmt.Fprintf(out, ": %s", r.Message)
		}
		fmt.Fprintln(out)
		if r.Suggestion != "" {
			fmt.Fprintf(out, "    %s\n", mutedStyle.Render("→ "+r.Suggestion))
		}
	}

	fmt.Fprintf(out, "\nSummary: %d passed, %d warnings, %d errors\n", okCount, warningCount, errorCount)
	if errorCount > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errorCount)
	}
	return nil
}

// exists reports whether path is present on disk
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
