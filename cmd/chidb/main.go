package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = append(args, "inspect")
	}

	commands := map[string]cli.CommandFactory{
		"inspect": func() (cli.Command, error) {
			return &InspectCommand{}, nil
		},
	}

	chiCLI := &cli.CLI{
		Args:     args,
		Commands: commands,
		HelpFunc: cli.BasicHelpFunc("chidb"),
	}

	exitCode, err := chiCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}
