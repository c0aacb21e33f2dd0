// Package runtime runs decode sessions: it moves bytes from transport
// sources through the decoder into emitters, policies and metrics.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/rawzeo/decoder"
	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/transport"
	"github.com/justapithecus/rawzeo/types"
	"github.com/justapithecus/rawzeo/zeo"
)

// ErrNoEngine is returned by NewSession when SessionConfig.Engine is nil.
var ErrNoEngine = errors.New("runtime: decoder engine is required")

// SessionConfig configures a decode session.
type SessionConfig struct {
	// SessionID identifies the session in logs and reports.
	SessionID string
	// Sources are read in order. The engine is reset between sources.
	// The session closes each source after reading it.
	Sources []transport.Source
	// Engine decodes the byte stream (required).
	Engine *decoder.Engine
	// Clock, when set, stamps envelopes with reconstructed device time.
	Clock *zeo.Clock
	// Policies receive every emitted envelope. Optional.
	Policies []policy.Policy
	// Emit receives every emitted envelope before the policies. Optional.
	Emit func(record.Envelope) error
	// OnReject receives every rejection notice. Optional.
	OnReject func(decoder.Rejection)
	// Kinds restricts emitted kinds. Empty means all kinds.
	Kinds []record.Kind
	// Collector records session metrics. If nil, no metrics are recorded.
	Collector *metrics.Collector
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// ReadSize is the transport read buffer size (default
	// transport.DefaultReadSize).
	ReadSize int
}

// SessionResult summarizes a finished session.
type SessionResult struct {
	SessionID string
	// Sources lists the sources read, in order, by description.
	Sources []string
	// Outcome is derived from the session error.
	Outcome types.SessionOutcome
	// Duration is the wall time of Run.
	Duration time.Duration
	// Records counts decoded records, Emitted those that passed the kind
	// filter.
	Records int64
	Emitted int64
	// Rejections counts rejection notices by reason.
	Rejections map[frame.Reason]int64
	// PolicyStats holds one snapshot per policy, in configuration order.
	PolicyStats []policy.Stats
}

// Session is a single decode session. Run may be called once.
type Session struct {
	config SessionConfig
	logger *log.Logger
	kinds  map[record.Kind]bool

	result SessionResult

	// engine counters at the last sync, for metric deltas
	lastSkipped  int64
	lastRejected int64
	lastGaps     int64
}

// NewSession validates cfg and creates a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Engine == nil {
		return nil, ErrNoEngine
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = transport.DefaultReadSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Session{
		config: cfg,
		logger: logger,
		result: SessionResult{
			SessionID:  cfg.SessionID,
			Rejections: make(map[frame.Reason]int64),
		},
	}
	if len(cfg.Kinds) > 0 {
		s.kinds = make(map[record.Kind]bool, len(cfg.Kinds))
		for _, k := range cfg.Kinds {
			s.kinds[k] = true
		}
	}
	return s, nil
}

// Run reads every source to its end, then flushes and closes the policies.
// Returns:
//   - nil: all sources ended cleanly
//   - *SessionError with Kind=SessionErrorTransport: a source failed
//   - *SessionError with Kind=SessionErrorSink: emit or a policy failed
//   - *SessionError with Kind=SessionErrorCanceled: ctx was canceled
//
// The result is returned in every case.
func (s *Session) Run(ctx context.Context) (*SessionResult, error) {
	start := time.Now()
	s.config.Collector.IncSessionStarted()
	s.logger.Info("session started", map[string]any{
		"sources": len(s.config.Sources),
	})

	var runErr error
	for i, src := range s.config.Sources {
		if i > 0 {
			s.resetEngine()
		}
		s.result.Sources = append(s.result.Sources, src.Describe())
		runErr = s.consume(ctx, src)
		if cerr := src.Close(); cerr != nil {
			s.logger.Warn("source close failed", map[string]any{
				"source": src.Describe(),
				"error":  cerr.Error(),
			})
		}
		if runErr != nil {
			break
		}
	}
	for _, src := range s.config.Sources[len(s.result.Sources):] {
		_ = src.Close()
	}

	if err := s.finishPolicies(ctx); err != nil && runErr == nil {
		runErr = err
	}

	s.result.Duration = time.Since(start)
	outcome := DetermineOutcome(runErr)
	s.result.Outcome = outcome
	s.recordOutcome(runErr)

	fields := map[string]any{
		"outcome":     outcome.Status,
		"records":     s.result.Records,
		"emitted":     s.result.Emitted,
		"duration_ms": s.result.Duration.Milliseconds(),
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	s.logger.Info("session finished", fields)

	return &s.result, runErr
}

// chunk is one transport read handed from the reader goroutine.
type chunk struct {
	data []byte
	err  error
}

// consume drains one source. A reader goroutine performs the blocking
// reads; the engine is only touched from this goroutine.
func (s *Session) consume(ctx context.Context, src transport.Source) error {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunk)
	go s.read(readCtx, src, chunks)

	for {
		select {
		case <-ctx.Done():
			return &SessionError{Kind: SessionErrorCanceled, Source: src.Describe(), Err: ctx.Err()}
		case c, ok := <-chunks:
			if !ok {
				return nil
			}
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					return nil
				}
				s.config.Collector.IncTransportError()
				s.logger.Error("transport read failed", map[string]any{
					"source": src.Describe(),
					"error":  c.err.Error(),
				})
				return &SessionError{
					Kind:   SessionErrorTransport,
					Source: src.Describe(),
					Err:    fmt.Errorf("read %s: %w", src.Describe(), c.err),
				}
			}
			s.config.Collector.AddBytesRead(len(c.data))
			s.config.Engine.Push(c.data)
			if err := s.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// read forwards reads from src until it fails or ctx ends. The terminal
// error, io.EOF included, is sent as the last chunk. ctx is checked before
// every read, so a source closed after ctx ends is not read again.
func (s *Session) read(ctx context.Context, src io.Reader, out chan<- chunk) {
	defer close(out)
	buf := make([]byte, s.config.ReadSize)
	for ctx.Err() == nil {
		n, err := src.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{data: buf[:n]}:
			case <-ctx.Done():
				return
			}
			// The sent slice now belongs to the engine side.
			buf = make([]byte, s.config.ReadSize)
		}
		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// drain pulls every available output from the engine.
func (s *Session) drain(ctx context.Context) error {
	defer s.syncEngineMetrics()
	for out := range s.config.Engine.Outputs() {
		if out.Rejection != nil {
			s.handleRejection(*out.Rejection)
			continue
		}
		if err := s.handleRecord(ctx, out.Record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleRejection(r decoder.Rejection) {
	s.result.Rejections[r.Reason]++
	s.config.Collector.IncRejection(r.Reason.String(), r.Skipped)

	if r.Reason == frame.ReasonOverflow {
		s.logger.Warn("reservoir overflow", map[string]any{
			"offset":  r.Offset,
			"dropped": r.Skipped,
		})
	} else if s.logger.Enabled(zapcore.DebugLevel) {
		fields := map[string]any{
			"reason": r.Reason.String(),
			"offset": r.Offset,
		}
		if r.HasTag {
			fields["tag"] = r.Tag
		}
		if r.Err != nil {
			fields["error"] = r.Err.Error()
		}
		s.logger.Debug("frame rejected", fields)
	}

	if s.config.OnReject != nil {
		s.config.OnReject(r)
	}
}

func (s *Session) handleRecord(ctx context.Context, rec record.Record) error {
	s.result.Records++
	s.config.Collector.IncRecord(string(rec.Kind()))

	env := record.NewEnvelope(rec)
	if clock := s.config.Clock; clock != nil {
		if t, ok := clock.Observe(rec); ok {
			env.Time = t
		}
		if _, isTS := rec.(record.Timestamp); isTS && clock.LastMatch() == zeo.MatchReset {
			s.config.Collector.IncClockReset()
		}
	}

	if s.kinds != nil && !s.kinds[env.Kind] {
		return nil
	}
	s.result.Emitted++

	if s.config.Emit != nil {
		if err := s.config.Emit(env); err != nil {
			return &SessionError{Kind: SessionErrorSink, Err: fmt.Errorf("emit: %w", err)}
		}
	}
	for i, p := range s.config.Policies {
		if err := p.Ingest(ctx, env); err != nil {
			s.logger.Error("policy ingestion failed", map[string]any{
				"policy": i,
				"kind":   env.Kind,
				"offset": env.Offset,
				"error":  err.Error(),
			})
			return &SessionError{Kind: SessionErrorSink, Err: fmt.Errorf("policy failure: %w", err)}
		}
	}
	return nil
}

// syncEngineMetrics records garbage bytes and sequence gaps accumulated by
// the engine since the last sync. Rejections already account for the one
// byte each of them skips.
func (s *Session) syncEngineMetrics() {
	st := s.config.Engine.State()
	garbage := (st.Skipped - s.lastSkipped) - (st.Rejected - s.lastRejected)
	s.config.Collector.AddGarbage(garbage)
	s.config.Collector.AddSequenceGaps(st.SequenceGaps - s.lastGaps)
	s.lastSkipped, s.lastRejected, s.lastGaps = st.Skipped, st.Rejected, st.SequenceGaps
}

func (s *Session) resetEngine() {
	s.config.Engine.Reset()
	if s.config.Clock != nil {
		s.config.Clock.Reset()
	}
	s.lastSkipped, s.lastRejected, s.lastGaps = 0, 0, 0
}

// finishPolicies flushes and closes every policy, even after cancellation,
// and absorbs their stats into the collector.
func (s *Session) finishPolicies(ctx context.Context) error {
	flushCtx := context.WithoutCancel(ctx)
	var errs []error
	for i, p := range s.config.Policies {
		if err := p.Flush(flushCtx); err != nil {
			s.logger.Error("policy flush failed", map[string]any{
				"policy": i,
				"error":  err.Error(),
			})
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
		stats := p.Stats()
		s.result.PolicyStats = append(s.result.PolicyStats, stats)
		s.config.Collector.AbsorbPolicyStats(stats.TotalRecords, stats.RecordsPersisted, stats.RecordsDropped, stats.FlushCount)
	}
	if len(errs) > 0 {
		return &SessionError{Kind: SessionErrorSink, Err: errors.Join(errs...)}
	}
	return nil
}

func (s *Session) recordOutcome(err error) {
	switch {
	case err == nil:
		s.config.Collector.IncSessionCompleted()
	case IsCanceledError(err):
		s.config.Collector.IncSessionCanceled()
	default:
		s.config.Collector.IncSessionFailed()
	}
}
