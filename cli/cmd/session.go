package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/config"
	"github.com/justapithecus/rawzeo/decoder"
	"github.com/justapithecus/rawzeo/iox"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/runtime"
	"github.com/justapithecus/rawzeo/transport"
	"github.com/justapithecus/rawzeo/types"
)

// sessionHooks receive session output. Both are optional.
type sessionHooks struct {
	emit     func(record.Envelope) error
	onReject func(decoder.Rejection)
}

// sessionRun is a finished session with the pipeline that ran it.
type sessionRun struct {
	pipeline *pipeline
	result   *runtime.SessionResult
}

// runSession opens the configured sources, builds the pipeline and runs a
// session until the sources end or SIGINT/SIGTERM arrives. Setup failures
// are returned as cli.Exit errors; the session outcome is in the result.
func runSession(c *cli.Context, cfg *config.Config, hooks sessionHooks) (*sessionRun, error) {
	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sources, err := transport.Open(transport.Config{
		Port:     cfg.Transport.Port,
		Baud:     cfg.Transport.Baud,
		Replay:   cfg.Transport.Replay,
		ReadSize: cfg.Transport.ReadSize,
	})
	if err != nil {
		if errors.Is(err, transport.ErrNoSource) {
			return nil, configExit(fmt.Errorf("%w (use --port or pass replay files)", err))
		}
		return nil, cli.Exit(fmt.Sprintf("transport error: %v", err), runtime.ExitCodeTransportError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, sessionID, describeSources(sources))
	if err != nil {
		closeSources(sources)
		return nil, configExit(err)
	}
	defer iox.DiscardErr(p.logger.Sync)

	if cfg.Metrics.Addr != "" {
		srv, err := startMetricsServer(cfg.Metrics.Addr, p.collector, p.logger)
		if err != nil {
			p.close()
			closeSources(sources)
			return nil, configExit(fmt.Errorf("metrics server: %w", err))
		}
		defer srv.stop()
	}

	session, err := runtime.NewSession(runtime.SessionConfig{
		SessionID: sessionID,
		Sources:   sources,
		Engine:    p.engine,
		Clock:     p.clock,
		Policies:  p.policies,
		Emit:      hooks.emit,
		OnReject:  hooks.onReject,
		Kinds:     p.kinds,
		Collector: p.collector,
		Logger:    p.logger,
		ReadSize:  cfg.Transport.ReadSize,
	})
	if err != nil {
		p.close()
		closeSources(sources)
		return nil, configExit(err)
	}

	result, _ := session.Run(ctx)

	if p.store != nil {
		// The metrics summary is written even for failed or canceled sessions.
		if err := p.store.WriteMetrics(context.WithoutCancel(ctx), p.collector.Snapshot(), time.Now()); err != nil {
			p.logger.Warn("failed to write session metrics", map[string]any{"error": err.Error()})
		}
	}

	return &sessionRun{pipeline: p, result: result}, nil
}

// writeReport writes the session report when --report is set.
func (r *sessionRun) writeReport(path string) error {
	if path == "" {
		return nil
	}
	report := runtime.BuildSessionReport(r.result, r.pipeline.collector.Snapshot(), r.pipeline.profile.Name, r.pipeline.policyNames)
	return runtime.WriteSessionReport(report, path)
}

func describeSources(sources []transport.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Describe()
	}
	return strings.Join(names, ",")
}

func closeSources(sources []transport.Source) {
	_ = iox.CloseAll(sources...)
}

// configExit wraps a setup failure with the configuration exit code.
func configExit(err error) error {
	return cli.Exit(fmt.Sprintf("config error: %v", err), runtime.ExitCodeConfigError)
}

// exitFor maps a session outcome to the command result.
func exitFor(outcome types.SessionOutcome) error {
	if outcome.IsSuccess() {
		return nil
	}
	return cli.Exit(fmt.Sprintf("%s: %s", outcome.Status, outcome.Message), outcome.ExitCode)
}
