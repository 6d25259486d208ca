package main

import (
	"fmt"
	"os"

	"github.com/tomatool/walkthrough/command"
)

func main() {
	if err := command.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
