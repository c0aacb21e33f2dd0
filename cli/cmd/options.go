package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/config"
)

// loadConfig reads --config, or the first default config file found in the
// working directory, then applies the command's flags on top. A missing
// default file is not an error; a missing --config file is.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path = config.Discover(".")
	}

	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded.Clone()
	}

	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays explicitly set flags. Flags a command does not define
// are never set and leave the config untouched.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	setString("port", &cfg.Transport.Port)
	setInt("baud", &cfg.Transport.Baud)
	setInt("read-size", &cfg.Transport.ReadSize)
	if c.NArg() > 0 {
		cfg.Transport.Replay = c.Args().Slice()
	}

	setString("profile", &cfg.Decoder.Profile)
	setInt("capacity", &cfg.Decoder.Capacity)
	if c.IsSet("kinds") {
		cfg.Output.Kinds = c.StringSlice("kinds")
	}
	setString("format", &cfg.Output.Format)

	setString("storage-backend", &cfg.Storage.Backend)
	setString("storage-path", &cfg.Storage.Path)
	setString("storage-dataset", &cfg.Storage.Dataset)
	setString("storage-region", &cfg.Storage.Region)
	setString("storage-endpoint", &cfg.Storage.Endpoint)
	if c.IsSet("storage-s3-path-style") {
		cfg.Storage.S3PathStyle = c.Bool("storage-s3-path-style")
	}
	setInt("storage-retries", &cfg.Storage.Retries)
	setString("device", &cfg.Storage.Device)

	setString("policy", &cfg.Policy.Name)
	setInt("flush-count", &cfg.Policy.FlushCount)
	if c.IsSet("flush-interval") {
		cfg.Policy.FlushInterval.Duration = c.Duration("flush-interval")
	}
	setInt("buffer-records", &cfg.Policy.BufferRecords)

	setString("forward", &cfg.Forward.Type)
	setString("forward-url", &cfg.Forward.URL)
	setString("forward-channel", &cfg.Forward.Channel)
	setString("forward-encoding", &cfg.Forward.Encoding)
	if c.IsSet("forward-timeout") {
		cfg.Forward.Timeout.Duration = c.Duration("forward-timeout")
	}
	if c.IsSet("forward-retries") {
		n := c.Int("forward-retries")
		cfg.Forward.Retries = &n
	}
	if c.IsSet("forward-header") {
		headers, err := parseHeaders(c.StringSlice("forward-header"))
		if err != nil {
			return err
		}
		if cfg.Forward.Headers == nil {
			cfg.Forward.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Forward.Headers[k] = v
		}
	}

	setString("metrics-addr", &cfg.Metrics.Addr)
	setString("log-level", &cfg.Log.Level)
	return nil
}

// parseHeaders parses Key=Value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q (want Key=Value)", pair)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers, nil
}
