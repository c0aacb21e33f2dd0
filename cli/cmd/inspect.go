package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/config"
	"github.com/justapithecus/rawzeo/cli/render"
	"github.com/justapithecus/rawzeo/lode"
)

// inspectTimeout bounds a storage read.
const inspectTimeout = 30 * time.Second

// InspectCommand returns the inspect command with subcommands.
// Inspect reads stored sessions back from a Lode dataset.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Read stored records and session metrics from a Lode dataset",
		Subcommands: []*cli.Command{
			inspectRecordsCommand(),
			inspectMetricsCommand(),
		},
	}
}

func inspectFlags(extra ...cli.Flag) []cli.Flag {
	return concatFlags(
		[]cli.Flag{ConfigFlag},
		storageFlags(),
		[]cli.Flag{
			&cli.StringFlag{Name: "session-id", Usage: "Filter by session ID"},
		},
		extra,
		TUIReadOnlyFlags(),
	)
}

func inspectRecordsCommand() *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "List stored records in stream order",
		Flags: inspectFlags(
			&cli.StringFlag{Name: "day", Usage: "Filter by day partition (YYYY-MM-DD)"},
			&cli.StringSliceFlag{Name: "kinds", Aliases: []string{"k"}, Usage: "Filter by record kind (comma separated)"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of records to return (0 = no limit)"},
		),
		Action: inspectRecordsAction,
	}
}

func inspectRecordsAction(c *cli.Context) error {
	cfg, ds, err := inspectDataset(c)
	if err != nil {
		return err
	}
	kinds, err := config.ParseKinds(cfg.Output.Kinds)
	if err != nil {
		return configExit(err)
	}
	filter := lode.Filter{
		Device:    cfg.Storage.Device,
		Day:       c.String("day"),
		SessionID: c.String("session-id"),
		Limit:     c.Int("limit"),
	}
	for _, k := range kinds {
		filter.Kinds = append(filter.Kinds, string(k))
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, inspectTimeout)
	defer cancel()
	records, err := lode.QueryRecords(ctx, ds, filter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read records: %v", err), 1)
	}
	if records == nil {
		records = []map[string]any{}
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_records", records)
	}
	return r.Render(records)
}

func inspectMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Show the latest stored session metrics",
		Flags:  inspectFlags(),
		Action: inspectMetricsAction,
	}
}

func inspectMetricsAction(c *cli.Context) error {
	cfg, ds, err := inspectDataset(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, inspectTimeout)
	defer cancel()
	rec, err := lode.QueryLatestMetrics(ctx, ds, c.String("session-id"), cfg.Storage.Device)
	if errors.Is(err, lode.ErrNoMetricsFound) {
		return cli.Exit("no session metrics found", 1)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read metrics: %v", err), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_metrics", rec)
	}
	return r.Render(rec)
}

// inspectDataset loads config and opens the configured dataset for reading.
func inspectDataset(c *cli.Context) (*config.Config, lodelibrary.Dataset, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, configExit(err)
	}
	if cfg.Storage.Path == "" {
		return nil, nil, configExit(errors.New("--storage-path is required"))
	}
	ds, err := buildReadDataset(c.Context, cfg.Storage)
	if err != nil {
		return nil, nil, configExit(fmt.Errorf("failed to initialize storage reader: %w", err))
	}
	return cfg, ds, nil
}

// buildReadDataset creates a Lode Dataset for reading from storage config.
func buildReadDataset(ctx context.Context, sc config.StorageConfig) (lodelibrary.Dataset, error) {
	dataset := sc.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	switch storageBackend(sc) {
	case "fs":
		return lode.NewReadDatasetFS(dataset, sc.Path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, dataset, s3Config(sc))
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", sc.Backend)
	}
}
