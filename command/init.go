package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tomatool/walkthrough/internal/config"
)

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "Create a walkthrough.yml with the default settings",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "config file path",
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "overwrite existing files",
		},
	},
	Action: runInit,
}

func runInit(c *cli.Context) error {
	path := c.String("config")
	if exists(path) && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.Scenarios = []string{"all"}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%s Created %s\n", successStyle.Render("✓"), path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  walkthrough list         show the available scenarios")
	fmt.Fprintln(out, "  walkthrough run --step   step through them")
	return nil
}
