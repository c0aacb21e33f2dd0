package lode

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/record"
)

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys device/day/session_id/kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu sync.Mutex // serializes dataset writes
}

// NewLodeClient creates a new Lode client with filesystem storage rooted
// at root. The root directory is created if missing.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, root)
	}
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store
// factory. Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	cfg = cfg.withDefaults()
	ds, err := NewReadDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// Config returns the client's partition configuration.
func (c *LodeClient) Config() Config { return c.config }

// WriteRecords writes a batch of records as one Lode snapshot.
// Each record carries its own kind partition key.
func (c *LodeClient) WriteRecords(ctx context.Context, records []record.Envelope) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]any, 0, len(records))
	for _, e := range records {
		rows = append(rows, toRecordMap(e, c.config))
	}
	return c.write(ctx, rows, "records")
}

// WriteMetrics writes the session summary to the session_metrics partition.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	rows := []any{toMetricsRecordMap(snap, completedAt, c.config)}
	return c.write(ctx, rows, metricsPartition)
}

func (c *LodeClient) write(ctx context.Context, rows []any, what string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(what))
	}
	return nil
}

// partitionPath describes the session partition for error messages.
func (c *LodeClient) partitionPath(what string) string {
	return fmt.Sprintf("%s/device=%s/day=%s/session_id=%s/%s",
		c.config.Dataset, c.config.Device, c.config.Day, c.config.SessionID, what)
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Client = (*LodeClient)(nil)
