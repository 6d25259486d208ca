package command

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/tomatool/walkthrough/internal/runlog"
)

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "List recorded runs",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "dir",
			Value: runlog.DefaultRoot,
			Usage: "directory holding the recorded runs",
		},
	},
	Action: listRuns,
	Subcommands: []*cli.Command{
		{
			Name:      "show",
			Usage:     "Print a log of a recorded run, the latest one by default",
			ArgsUsage: "[run] [log]",
			Action:    showRun,
		},
		{
			Name:  "prune",
			Usage: "Remove all but the newest runs",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "keep",
					Value: 10,
					Usage: "number of runs to keep",
				},
			},
			Action: pruneRuns,
		},
	},
}

func listRuns(c *cli.Context) error {
	runs, err := runlog.Open(c.String("dir")).List()
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No recorded runs. Use walkthrough run --record."))
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s\n", nameStyle.Render(r.Name), mutedStyle.Render(humanize.Time(r.Started)))
		for _, l := range r.Logs {
			fmt.Fprintf(out, "    %-10s %s\n", l.Name, humanize.Bytes(uint64(l.Size)))
		}
	}
	return nil
}

func showRun(c *cli.Context) error {
	store := runlog.Open(c.String("dir"))

	name := c.Args().Get(0)
	if name == "" || name == "latest" {
		latest, err := store.Latest()
		if err != nil {
			return err
		}
		name = latest.Name
	}
	logName := c.Args().Get(1)
	if logName == "" {
		logName = "events"
	}

	data, err := store.Read(name, logName)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func pruneRuns(c *cli.Context) error {
	removed, err := runlog.Open(c.String("dir")).Prune(c.Int("keep"))
	for _, name := range removed {
		fmt.Fprintf(c.App.Writer, "removed %s\n", name)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintln(c.App.Writer, mutedStyle.Render("Nothing to remove."))
	}
	return nil
}
