// Package cmd provides CLI commands for the rawzeo binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at a rawzeo.yaml or rawzeo.toml file. Without it
	// the working directory is searched.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a rawzeo.yaml or rawzeo.toml config file",
		EnvVars: []string{"RAWZEO_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// sourceFlags select the byte source. Replay files are positional.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Serial device, e.g. /dev/ttyUSB0"},
		&cli.IntFlag{Name: "baud", Usage: "Serial baud rate (default 38400)"},
		&cli.IntFlag{Name: "read-size", Usage: "Transport read buffer size in bytes"},
	}
}

// decoderFlags select and tune the protocol profile.
func decoderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "profile", Usage: "Protocol profile: zeo or synthetic"},
		&cli.IntFlag{Name: "capacity", Usage: "Reservoir capacity in bytes (default 2x max frame)"},
		&cli.StringSliceFlag{Name: "kinds", Aliases: []string{"k"}, Usage: "Only emit these record kinds (comma separated)"},
	}
}

// storageFlags select the Lode dataset.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-backend", Usage: "Lode storage backend: fs or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID (default: \"rawzeo\")"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint for S3-compatible stores"},
		&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Use path-style S3 addressing"},
		&cli.IntFlag{Name: "storage-retries", Usage: "Retries for throttled or timed out storage writes"},
		&cli.StringFlag{Name: "device", Usage: "Device partition key (default: \"zeo\")"},
	}
}

// policyFlags select the ingestion policy for storage and forwarding.
func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "policy", Usage: "Ingestion policy: strict, streaming or buffered"},
		&cli.IntFlag{Name: "flush-count", Usage: "Streaming policy: flush after N records"},
		&cli.DurationFlag{Name: "flush-interval", Usage: "Streaming policy: flush every interval"},
		&cli.IntFlag{Name: "buffer-records", Usage: "Buffered policy: maximum buffered records"},
	}
}

// forwardFlags configure an optional forwarding adapter.
func forwardFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "forward", Usage: "Forward records to an adapter: webhook or redis"},
		&cli.StringFlag{Name: "forward-url", Usage: "Webhook URL or redis://host:port/db"},
		&cli.StringFlag{Name: "forward-channel", Usage: "Redis pub/sub channel"},
		&cli.StringSliceFlag{Name: "forward-header", Usage: "Webhook header as Key=Value (repeatable)"},
		&cli.DurationFlag{Name: "forward-timeout", Usage: "Per-attempt timeout"},
		&cli.IntFlag{Name: "forward-retries", Usage: "Retries after the first attempt"},
		&cli.StringFlag{Name: "forward-encoding", Usage: "Redis payload encoding: json or msgpack"},
	}
}

// sessionFlags are the ambient flags of every decoding command.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "session-id", Usage: "Session ID (default: random UUID)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error", EnvVars: []string{"RAWZEO_LOG_LEVEL"}},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
