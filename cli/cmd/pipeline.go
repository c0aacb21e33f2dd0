package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/rawzeo/adapter"
	"github.com/justapithecus/rawzeo/adapter/redis"
	"github.com/justapithecus/rawzeo/adapter/webhook"
	"github.com/justapithecus/rawzeo/cli/config"
	"github.com/justapithecus/rawzeo/decoder"
	"github.com/justapithecus/rawzeo/lode"
	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/zeo"
)

// Policy names accepted by --policy.
const (
	policyStrict    = "strict"
	policyStreaming = "streaming"
	policyBuffered  = "buffered"
)

// pipeline is everything a decode session needs besides its sources.
type pipeline struct {
	sessionID string
	startedAt time.Time
	profile   zeo.Profile
	engine    *decoder.Engine
	clock     *zeo.Clock
	kinds     []record.Kind
	collector *metrics.Collector
	logger    *log.Logger

	policies    []policy.Policy
	policyNames []string
	// store is the Lode client when storage is configured.
	store *lode.LodeClient
}

// newPipeline resolves the profile, builds the engine and wires storage and
// forwarding policies. Every error is a configuration error.
func newPipeline(ctx context.Context, cfg *config.Config, sessionID, source string) (*pipeline, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	table, err := profile.Table()
	if err != nil {
		return nil, err
	}
	engine, err := decoder.New(decoder.Config{
		Layout:   profile.Layout,
		Tags:     table,
		Capacity: cfg.Decoder.Capacity,
	})
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := log.NewLogger(log.SessionMeta{SessionID: sessionID, Source: source, Profile: profile.Name}, level)

	policyName := cfg.Policy.Name
	if policyName == "" {
		policyName = policyStrict
	}
	backend := ""
	if cfg.Storage.Path != "" {
		backend = storageBackend(cfg.Storage)
	}

	p := &pipeline{
		sessionID: sessionID,
		startedAt: time.Now(),
		profile:   profile,
		engine:    engine,
		kinds:     kinds,
		collector: metrics.NewCollector(profile.Name, policyName, backend, sessionID),
		logger:    logger,
	}
	// Device time reconstruction only makes sense when timestamps are bound.
	if _, ok := table.TagOf(record.KindTimestamp); ok {
		p.clock = &zeo.Clock{}
	}

	if cfg.Storage.Path != "" {
		store, err := openStore(ctx, cfg, sessionID, profile.Name, p.startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create Lode client: %w", err)
		}
		p.store = store
		base := lode.NewSink(store).WithRetries(cfg.Storage.Retries, lode.DefaultRetryBackoff)
		sink := lode.NewInstrumentedSink(base, p.collector)
		if err := p.addPolicy("lode", policyName, sink, cfg.Policy); err != nil {
			return nil, err
		}
	}

	if cfg.Forward.Type != "" {
		a, err := newAdapter(cfg.Forward, sessionID)
		if err != nil {
			p.close()
			return nil, err
		}
		if err := p.addPolicy(cfg.Forward.Type, policyName, adapter.Sink(a, p.collector), cfg.Policy); err != nil {
			_ = a.Close()
			p.close()
			return nil, err
		}
	}

	return p, nil
}

func (p *pipeline) addPolicy(target, name string, sink policy.Sink, pc config.PolicyConfig) error {
	pol, err := buildPolicy(name, sink, pc, p.logger)
	if err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	p.policies = append(p.policies, pol)
	p.policyNames = append(p.policyNames, target+":"+name)
	return nil
}

// close releases policies created so far. Used when setup fails midway;
// sessions close their own policies.
func (p *pipeline) close() {
	for _, pol := range p.policies {
		_ = pol.Close()
	}
}

func buildPolicy(name string, sink policy.Sink, pc config.PolicyConfig, logger *log.Logger) (policy.Policy, error) {
	switch name {
	case policyStrict:
		return policy.NewStrictPolicy(sink), nil

	case policyStreaming:
		cfg := policy.StreamingConfig{
			FlushCount:    pc.FlushCount,
			FlushInterval: pc.FlushInterval.Duration,
			Logger:        logger,
		}
		if cfg.FlushCount == 0 && cfg.FlushInterval == 0 {
			cfg.FlushInterval = time.Second
		}
		return policy.NewStreamingPolicy(sink, cfg)

	case policyBuffered:
		cfg := policy.DefaultBufferedConfig()
		if pc.BufferRecords > 0 {
			cfg.MaxBufferRecords = pc.BufferRecords
		}
		cfg.Logger = logger
		return policy.NewBufferedPolicy(sink, cfg)

	default:
		return nil, fmt.Errorf("invalid policy: %s (must be strict, streaming or buffered)", name)
	}
}

func storageBackend(sc config.StorageConfig) string {
	if sc.Backend == "" {
		return "fs"
	}
	return sc.Backend
}

func lodeConfig(cfg *config.Config, sessionID, profile string, startedAt time.Time) lode.Config {
	return lode.Config{
		Dataset:   cfg.Storage.Dataset,
		Device:    cfg.Storage.Device,
		Day:       lode.DeriveDay(startedAt),
		SessionID: sessionID,
		Profile:   profile,
	}
}

// openStore creates a Lode client for the configured backend.
func openStore(ctx context.Context, cfg *config.Config, sessionID, profile string, startedAt time.Time) (*lode.LodeClient, error) {
	lc := lodeConfig(cfg, sessionID, profile, startedAt)
	switch storageBackend(cfg.Storage) {
	case "fs":
		return lode.NewLodeClient(lc, cfg.Storage.Path)
	case "s3":
		return lode.NewLodeS3Client(ctx, lc, s3Config(cfg.Storage))
	default:
		return nil, fmt.Errorf("unknown storage-backend: %s (must be fs or s3)", cfg.Storage.Backend)
	}
}

func s3Config(sc config.StorageConfig) lode.S3Config {
	bucket, prefix := lode.ParseS3Path(sc.Path)
	attempts := 0
	if sc.Retries > 0 {
		attempts = sc.Retries + 1
	}
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       sc.Region,
		Endpoint:     sc.Endpoint,
		UsePathStyle: sc.S3PathStyle,
		MaxAttempts:  attempts,
	}
}

// errNoForwardURL is returned when --forward is set without a URL.
var errNoForwardURL = errors.New("--forward requires --forward-url")

func newAdapter(fc config.ForwardConfig, sessionID string) (adapter.Adapter, error) {
	if fc.URL == "" {
		return nil, errNoForwardURL
	}
	retries := -1
	if fc.Retries != nil {
		retries = *fc.Retries
	}

	switch fc.Type {
	case "webhook":
		cfg := webhook.Config{
			URL:       fc.URL,
			Headers:   fc.Headers,
			Timeout:   fc.Timeout.Duration,
			Retries:   webhook.DefaultRetries,
			SessionID: sessionID,
		}
		if retries >= 0 {
			cfg.Retries = retries
		}
		return webhook.New(cfg)

	case "redis":
		cfg := redis.Config{
			URL:      fc.URL,
			Channel:  fc.Channel,
			Encoding: redis.Encoding(fc.Encoding),
			Timeout:  fc.Timeout.Duration,
			Retries:  redis.DefaultRetries,
		}
		if retries >= 0 {
			cfg.Retries = retries
		}
		return redis.New(cfg)

	default:
		return nil, fmt.Errorf("unknown forward type: %s (must be webhook or redis)", fc.Type)
	}
}
