package command

import (
	"fmt"

	"github.com/tomatool/walkthrough/internal/version"
	"github.com/urfave/cli/v2"
)

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(c *cli.Context) error {
		out := c.App.Writer
		info := version.Info()
		fmt.Fprintf(out, "walkthrough version %s\n", info["version"])
		fmt.Fprintf(out, "  Commit:     %s\n", info["commit"])
		fmt.Fprintf(out, "  Built:      %s\n", info["built"])
		fmt.Fprintf(out, "  Go version: %s\n", info["go"])
		fmt.Fprintf(out, "  OS/Arch:    %s\n", info["os/arch"])
		return nil
	},
}
