package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/render"
	"github.com/justapithecus/rawzeo/record"
)

// DecodeCommand returns the decode command.
// Decode is the main entrypoint: it reads a serial port or replay files and
// streams decoded records to stdout, storage and forwarding adapters.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a serial port or replay files into records",
		ArgsUsage: "[replay-file...]",
		Flags: concatFlags(
			sessionFlags(),
			sourceFlags(),
			decoderFlags(),
			storageFlags(),
			policyFlags(),
			forwardFlags(),
			[]cli.Flag{
				FormatFlag,
				&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not write records to stdout"},
				&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address, e.g. :9100"},
				&cli.StringFlag{Name: "report", Usage: "Write a JSON session report to this path (- for stderr)"},
			},
		),
		Action: decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}

	out := render.Output(c)
	format, err := render.ResolveFormat(cfg.Output.Format, out)
	if err != nil {
		return configExit(err)
	}

	var hooks sessionHooks
	var w *render.RecordWriter
	if !c.Bool("quiet") {
		w = render.NewRecordWriter(format, out)
		hooks.emit = func(e record.Envelope) error { return w.Write(e) }
	}

	run, err := runSession(c, cfg, hooks)
	if err != nil {
		return err
	}
	if w != nil {
		_ = w.Close()
	}

	if err := run.writeReport(c.String("report")); err != nil {
		run.pipeline.logger.Warn("failed to write session report", map[string]any{"error": err.Error()})
	}
	return exitFor(run.result.Outcome)
}
