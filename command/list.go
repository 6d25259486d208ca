package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tomatool/walkthrough/internal/scenarios"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the available scenarios",
	Action: func(c *cli.Context) error {
		out := c.App.Writer
		fmt.Fprintln(out, titleStyle.Render("Scenarios"))
		fmt.Fprintln(out)
		for _, e := range scenarios.Entries() {
			fmt.Fprintf(out, "  %-12s %s\n", nameStyle.Render(e.Name), e.Title)
			if e.Description != "" {
				fmt.Fprintf(out, "  %-12s %s\n", "", mutedStyle.Render(e.Description))
			}
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, mutedStyle.Render(`Use "all" to run every scenario.`))
		return nil
	},
}
