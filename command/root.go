package command

import (
	"io"
	"os"

	"github.com/tomatool/walkthrough/internal/version"
	"github.com/urfave/cli/v2"
)

func Run(args []string) error {
	return newApp(os.Stdin, os.Stdout, os.Stderr).Run(args)
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:    "walkthrough",
		Usage:   "Step through an HTTP server's lifecycle one extension point at a time",
		Version: version.Version,
		Description: `Walkthrough runs scenarios against a small HTTP server and reports every
lifecycle point a request passes through. In step mode every point pauses and
waits for the operator, so the output can be inspected as it happens.`,
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Commands: []*cli.Command{
			initCommand,
			runCommand,
			listCommand,
			validateCommand,
			runsCommand,
			versionCommand,
		},
	}
}
