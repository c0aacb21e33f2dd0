package cmd

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/render"
	"github.com/justapithecus/rawzeo/decoder"
	"github.com/justapithecus/rawzeo/record"
)

// FramesCommand returns the frames command.
// Frames is a diagnostic dump: one line per accepted frame or rejection, in
// stream order, with absolute offsets.
func FramesCommand() *cli.Command {
	return &cli.Command{
		Name:      "frames",
		Usage:     "Dump accepted frames and rejections with stream offsets",
		ArgsUsage: "[replay-file...]",
		Flags: concatFlags(
			sessionFlags(),
			sourceFlags(),
			decoderFlags(),
			[]cli.Flag{
				&cli.BoolFlag{Name: "rejections-only", Usage: "Only print rejections"},
			},
		),
		Action: framesAction,
	}
}

const frameLineFormat = "%10d  %-6s  %-15s  %s\n"

func framesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}
	out := render.Output(c)

	hooks := sessionHooks{onReject: func(r decoder.Rejection) { writeRejectionLine(out, r) }}
	if !c.Bool("rejections-only") {
		hooks.emit = func(e record.Envelope) error { return writeFrameLine(out, e) }
	}

	run, err := runSession(c, cfg, hooks)
	if err != nil {
		return err
	}
	return exitFor(run.result.Outcome)
}

func writeFrameLine(w io.Writer, e record.Envelope) error {
	detail := fmt.Sprintf("tag=%02X seq=%d", e.Tag, e.Sequence)
	if data := render.FormatData(e.Data); data != "" {
		detail += " " + data
	}
	_, err := fmt.Fprintf(w, frameLineFormat, e.Offset, "frame", e.Kind, detail)
	return err
}

func writeRejectionLine(w io.Writer, r decoder.Rejection) {
	detail := fmt.Sprintf("skipped=%d", r.Skipped)
	if r.HasTag {
		detail += fmt.Sprintf(" tag=%02X", r.Tag)
	}
	if r.Err != nil {
		detail += " err=" + r.Err.Error()
	}
	_, _ = fmt.Fprintf(w, frameLineFormat, r.Offset, "reject", r.Reason, detail)
}
