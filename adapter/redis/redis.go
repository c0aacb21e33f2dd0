// Package redis implements a Redis pub/sub adapter.
//
// Publishes each record envelope to a configurable channel, encoded as JSON
// or msgpack. Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/rawzeo/adapter"
	"github.com/justapithecus/rawzeo/record"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "rawzeo:records"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Encoding selects the message body format.
type Encoding string

const (
	// EncodingJSON publishes JSON objects.
	EncodingJSON Encoding = "json"
	// EncodingMsgpack publishes msgpack maps.
	EncodingMsgpack Encoding = "msgpack"
)

var (
	// ErrNoURL is returned by New when Config.URL is empty.
	ErrNoURL = errors.New("redis adapter requires a URL")
	// ErrUnknownEncoding is returned for encodings other than json and
	// msgpack.
	ErrUnknownEncoding = errors.New("redis adapter: unknown encoding")
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: rawzeo:records).
	Channel string
	// Encoding is json (default) or msgpack.
	Encoding Encoding
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the first retry delay (default adapter.InitialBackoff).
	Backoff time.Duration
}

// Adapter publishes record envelopes via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
	encode func(any) ([]byte, error)
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.InitialBackoff
	}

	var encode func(any) ([]byte, error)
	switch cfg.Encoding {
	case "", EncodingJSON:
		cfg.Encoding = EncodingJSON
		encode = json.Marshal
	case EncodingMsgpack:
		encode = msgpack.Marshal
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, cfg.Encoding)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
		encode: encode,
	}, nil
}

// Publish sends each envelope as one PUBLISH to the configured channel,
// in order. A message that keeps failing after its retries stops the batch.
func (a *Adapter) Publish(ctx context.Context, records []record.Envelope) error {
	for i := range records {
		body, err := a.encode(records[i])
		if err != nil {
			return fmt.Errorf("redis: encode %s record: %w", records[i].Kind, err)
		}

		attempts := 0
		err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, func() error {
			attempts++
			publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
			defer cancel()
			return a.client.Publish(publishCtx, a.config.Channel, body).Err()
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("redis: context canceled: %w", ctxErr)
			}
			return fmt.Errorf("redis: failed after %d attempts: %w", attempts, err)
		}
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
