// Package main provides the rawzeo CLI entrypoint.
//
// Usage:
//
//	rawzeo <command> [subcommand] [options]
//
// Exit codes for decode, stats and frames:
//   - 0: every source was read to its end
//   - 1: transport error
//   - 2: sink failure (stdout, storage or forwarding)
//   - 3: configuration error
//   - 130: interrupted
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/cmd"
	"github.com/justapithecus/rawzeo/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "rawzeo",
		Usage:          "Decode the Zeo headband's raw serial stream",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.DecodeCommand(),
			cmd.CaptureCommand(),
			cmd.StatsCommand(),
			cmd.FramesCommand(),
			cmd.InspectCommand(),
			cmd.ListCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler prints err and exits with its code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit writes the message for err to w and returns the exit code.
// cli.Exit codes are preserved; any other error exits 1.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
