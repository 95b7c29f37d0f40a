package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/parcelflow/internal/cli"
)

// main is the entrypoint for the parcelflow CLI.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	os.Exit(run(os.Args[1:]))
}

// run executes the command line and maps its error to an exit code.
func run(args []string) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return cli.ExitSuccess
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Error())
		return exitErr.Code
	}
	// Flag parsing and argument errors come from cobra.
	fmt.Fprintln(os.Stderr, err)
	return cli.ExitCommandError
}
