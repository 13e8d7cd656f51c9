package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/glazeui/glaze/pkg/a11y"
	"github.com/glazeui/glaze/pkg/perf"
	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/telemetry"
	"github.com/glazeui/glaze/pkg/theme"
)

// Options configures an Orchestrator.
type Options struct {
	// Tree is the render tree driven by transitions. Required.
	Tree rendertree.Tree

	// Resolver produces variable sets for descriptors. Required.
	Resolver theme.Resolver

	// Config holds engine tuning. Start from DefaultConfig and override:
	// unset strings and zero sizes take defaults, while Duration and the
	// boolean toggles are used as given.
	Config Config

	// Clock overrides the frame clock. Defaults to a ticker at
	// Config.FrameRate.
	Clock FrameClock

	// Preferences supplies accessibility preferences. Defaults to a
	// static provider with everything off.
	Preferences a11y.PreferenceProvider

	// Output receives screen reader announcements. Defaults to a
	// buffered sink.
	Output a11y.Output

	// Telemetry supplies logging, metrics, tracing, and events.
	// Defaults to a disabled instance.
	Telemetry *telemetry.Telemetry

	// Policy evaluates advisory policies at finalization. Optional.
	Policy PolicyEvaluator

	// History persists finished sessions. Optional.
	History HistoryRecorder
}

// Orchestrator drives theme transitions through their phases:
// Starting, Capturing, Applying, Animating, Finalizing. At most one
// session is in flight; a new request supersedes the current one.
type Orchestrator struct {
	cfg      Config
	tree     rendertree.Tree
	resolver theme.Resolver
	cache    *theme.Cache
	sched    *Scheduler
	flip     *Flip
	access   *a11y.Coordinator
	perfMon  *perf.Monitor
	policy   PolicyEvaluator
	history  HistoryRecorder
	tel      *telemetry.Telemetry
	logger   zerolog.Logger

	ownClock *TickerClock

	mu      sync.Mutex
	current *Session
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Tree == nil {
		return nil, NewValidationError("render tree is required", nil)
	}
	if opts.Resolver == nil {
		return nil, NewValidationError("theme resolver is required", nil)
	}
	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Nop()
	}
	logger := tel.Logger.NewComponentLogger("orchestrator").Zerolog()

	var ownClock *TickerClock
	clock := opts.Clock
	if clock == nil {
		ownClock = NewTickerClock(cfg.FrameRate)
		clock = ownClock
	}

	prefs := opts.Preferences
	if prefs == nil {
		prefs = a11y.NewStaticProvider(a11y.Preferences{})
	}
	output := opts.Output
	if output == nil {
		output = a11y.NewBufferOutput()
	}

	perfMon := perf.NewMonitor(perf.Config{SlowBudget: cfg.SlowBudget}, logger, tel.Metrics, tel.Events)
	sched := NewScheduler(opts.Tree, clock, cfg.FrameBatchSize, logger, tel.Metrics, perfMon.FrameSampler())
	flip := NewFlip(opts.Tree, cfg.GeometryEpsilon, logger, tel.Metrics)
	access := a11y.NewCoordinator(opts.Tree, prefs, output, a11y.Config{
		Scanner:      a11y.ScannerConfig{Interval: cfg.ContrastInterval},
		Verbosity:    cfg.Verbosity,
		RestoreDelay: cfg.RestoreDelay,
	}, logger, tel.Metrics, tel.Events)

	cache := theme.NewCache(cfg.CacheCapacity, logger)
	cache.SetEvictionHook(func(keys []string) {
		tel.Metrics.RecordCacheEvictions(len(keys))
		tel.Events.PublishCacheEvicted(keys)
	})

	return &Orchestrator{
		cfg:      cfg,
		tree:     opts.Tree,
		resolver: opts.Resolver,
		cache:    cache,
		sched:    sched,
		flip:     flip,
		access:   access,
		perfMon:  perfMon,
		policy:   opts.Policy,
		history:  opts.History,
		tel:      tel,
		logger:   logger,
		ownClock: ownClock,
	}, nil
}

// Cache exposes the variable cache for invalidation hooks.
func (o *Orchestrator) Cache() *theme.Cache { return o.cache }

// PerformanceReport returns aggregate performance statistics.
func (o *Orchestrator) PerformanceReport() perf.Report { return o.perfMon.Report() }

// CacheStats returns variable cache statistics.
func (o *Orchestrator) CacheStats() theme.CacheStats { return o.cache.Stats() }

// IsTransitioning reports whether a session is in flight.
func (o *Orchestrator) IsTransitioning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil && !isDone(o.current)
}

// CurrentPhase returns the phase of the in-flight session, or
// PhaseIdle when none is running.
func (o *Orchestrator) CurrentPhase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || isDone(o.current) {
		return PhaseIdle
	}
	return o.current.Phase()
}

// Abort cancels the in-flight session, if any, and reports whether
// one was cancelled.
func (o *Orchestrator) Abort() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || isDone(o.current) {
		return false
	}
	o.current.markCancelled()
	o.sched.ClearSession(o.current.id)
	return true
}

// Close stops the owned frame clock. Sessions in flight are aborted.
func (o *Orchestrator) Close() {
	o.Abort()
	if o.ownClock != nil {
		o.ownClock.Stop()
	}
}

// RequestTransition starts a transition to the given descriptor. An
// in-flight session is cancelled first; its pending writes are
// discarded before the new session commits anything.
func (o *Orchestrator) RequestTransition(ctx context.Context, desc theme.Descriptor) (*Transition, error) {
	return o.request(ctx, desc, false)
}

// InstantTransition applies the descriptor without geometry capture
// or animation. Finalization still runs, so announcements, focus
// restoration, and metrics behave as in a full transition.
func (o *Orchestrator) InstantTransition(ctx context.Context, desc theme.Descriptor) (*Transition, error) {
	return o.request(ctx, desc, true)
}

func (o *Orchestrator) request(ctx context.Context, desc theme.Descriptor, instant bool) (*Transition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc.ThemeID == "" {
		return nil, NewValidationError("descriptor theme id is empty", nil)
	}
	if err := desc.ColorMode.Validate(); err != nil {
		return nil, NewValidationError("invalid color mode", err)
	}

	s := newSession(uuid.NewString(), desc, o.cfg)

	o.mu.Lock()
	if o.current != nil && !isDone(o.current) {
		prev := o.current
		prev.markCancelled()
		o.sched.ClearSession(prev.id)
		o.logger.Info().
			Str("session_id", prev.id).
			Str("superseded_by", s.id).
			Msg("superseding in-flight transition")
	}
	o.current = s
	o.mu.Unlock()

	go o.run(s, instant)
	return &Transition{session: s}, nil
}

func isDone(s *Session) bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run drives one session through its phases. It is the only goroutine
// that mutates the session's phase and result.
func (o *Orchestrator) run(s *Session, instant bool) {
	desc := s.descriptor
	descKey := desc.Key()
	log := o.logger.With().
		Str("session_id", s.id).
		Str("descriptor", descKey).
		Logger()

	ctx, span := o.tel.Tracer.StartSessionSpan(s.ctx, s.id, descKey)
	o.tel.Metrics.RecordTransitionStarted(desc.ThemeID, string(desc.ColorMode))
	o.tel.Events.PublishTransitionStarted(s.id, descKey)
	log.Info().Bool("instant", instant).Msg("transition started")

	access := o.access.Begin(s.id)
	prefs := access.Preferences()

	duration := s.cfg.Duration
	flipEnabled := s.cfg.EnableFLIP && !instant
	if prefs.ReducedMotion && s.cfg.RespectReducedMotion {
		duration = 0
		flipEnabled = false
		log.Debug().Msg("reduced motion preference active, animation disabled")
	}

	access.CaptureFocus()
	access.StartMonitoring(ctx)

	if s.Cancelled() {
		o.finishCancelled(s, access, span, log, Metrics{})
		return
	}

	// Capturing.
	var records []FlipRecord
	if flipEnabled {
		s.setPhase(PhaseCapturing)
		_, capSpan := o.tel.Tracer.StartPhaseSpan(ctx, s.id, string(PhaseCapturing))
		records = o.flip.Capture(s.cfg.ParticipatingTag)
		capSpan.End()
		if s.Cancelled() {
			o.finishCancelled(s, access, span, log, Metrics{})
			return
		}
	}

	// Applying.
	s.setPhase(PhaseApplying)
	applyCtx, applySpan := o.tel.Tracer.StartPhaseSpan(ctx, s.id, string(PhaseApplying))
	statsBefore := o.cache.Stats()
	vars, err := o.cache.Resolve(applyCtx, desc, o.resolver)
	statsAfter := o.cache.Stats()
	hits := statsAfter.Hits - statsBefore.Hits
	misses := statsAfter.Misses - statsBefore.Misses
	if hits > 0 {
		o.tel.Metrics.RecordCacheResolution("hit")
	} else if misses > 0 {
		o.tel.Metrics.RecordCacheResolution("miss")
	}
	if err != nil {
		applySpan.End()
		if s.Cancelled() || errors.Is(err, context.Canceled) {
			o.finishCancelled(s, access, span, log, Metrics{CacheHits: hits, CacheMisses: misses})
			return
		}
		terr := NewResolutionError("theme resolution failed", err).
			WithDescriptor(descKey).
			WithPhase(PhaseApplying)
		o.finishFailed(s, access, span, log, terr, Metrics{CacheHits: hits, CacheMisses: misses})
		return
	}
	o.cache.SetActive(desc)

	countersBefore := o.sched.Counters()
	targets := o.tree.NodesByTag(s.cfg.ComponentTag)
	writes := make([]PendingWrite, 0, len(targets))
	for _, id := range targets {
		writes = append(writes, PendingWrite{
			SessionID:  s.id,
			Target:     id,
			Properties: rendertree.Properties(vars.Clone()),
			Priority:   PriorityHigh,
		})
	}
	o.sched.EnqueueAll(writes)
	if err := o.sched.Flush(applyCtx); err != nil || s.Cancelled() {
		applySpan.End()
		o.sched.ClearSession(s.id)
		o.finishCancelled(s, access, span, log, Metrics{CacheHits: hits, CacheMisses: misses})
		return
	}
	applySpan.End()
	updateCount := int(o.sched.Counters().Applied - countersBefore.Applied)

	// Animating.
	var plays PlayStats
	if flipEnabled && duration > 0 && len(records) > 0 {
		s.setPhase(PhaseAnimating)
		playCtx, playSpan := o.tel.Tracer.StartPhaseSpan(ctx, s.id, string(PhaseAnimating))
		plays = o.flip.Play(playCtx, records, duration, s.cfg.Timing)
		playSpan.End()
		if s.Cancelled() {
			o.finishCancelled(s, access, span, log, Metrics{
				UpdateCount:       updateCount,
				AnimationsStarted: plays.Started,
				AnimationsSkipped: plays.Skipped,
				CacheHits:         hits,
				CacheMisses:       misses,
			})
			return
		}
	}

	// Finalizing.
	s.setPhase(PhaseFinalizing)
	_, finalSpan := o.tel.Tracer.StartPhaseSpan(ctx, s.id, string(PhaseFinalizing))
	access.StopMonitoring()
	report := access.Report()

	metrics := Metrics{
		Duration:          time.Since(s.startedAt),
		UpdateCount:       updateCount,
		AnimationsStarted: plays.Started,
		AnimationsSkipped: plays.Skipped,
		CacheHits:         hits,
		CacheMisses:       misses,
	}

	var warnings []string
	if o.policy != nil {
		ws, perr := o.policy.EvaluateTransition(ctx, PolicyInput{
			SessionID:         s.id,
			Descriptor:        descKey,
			DurationMs:        float64(metrics.Duration) / float64(time.Millisecond),
			ReducedMotion:     prefs.ReducedMotion,
			AnimationsStarted: plays.Started,
			Violations:        report.Violations,
		})
		if perr != nil {
			log.Warn().Err(perr).Msg("policy evaluation failed")
		} else {
			warnings = ws
		}
	}

	access.RestoreFocus(ctx)
	o.access.Announcer().AnnounceThemeChange(desc, a11y.PriorityPolite)

	finalSpan.End()
	o.perfMon.RecordMetrics(s.id, metrics.Duration, metrics.UpdateCount, hits, misses, time.Now())
	o.tel.Metrics.RecordTransitionCompleted("completed", metrics.Duration)
	o.tel.Events.PublishTransitionCompleted(s.id, descKey, metrics.Duration, len(report.Violations))
	telemetry.RecordSuccess(span)
	span.End()
	o.recordHistory(s, "completed", metrics, len(report.Violations))
	log.Info().
		Dur("duration", metrics.Duration).
		Int("updates", metrics.UpdateCount).
		Int("animations_started", plays.Started).
		Int("animations_skipped", plays.Skipped).
		Msg("transition completed")

	o.clearCurrent(s)
	s.setPhase(PhaseIdle)
	s.finish(Result{
		Success:        true,
		Violations:     report.Violations,
		PolicyWarnings: warnings,
		Metrics:        metrics,
	}, nil)
}

// finishCancelled runs the cancellation compensation path: pending
// writes are cleared by the caller or superseder, animations have
// already stopped, monitoring ends, and focus is restored.
func (o *Orchestrator) finishCancelled(s *Session, access *a11y.Session, span trace.Span, log zerolog.Logger, metrics Metrics) {
	phase := s.Phase()
	s.setPhase(PhaseCancelled)
	o.sched.ClearSession(s.id)
	access.StopMonitoring()
	report := access.Report()

	restoreCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	access.RestoreFocus(restoreCtx)
	cancel()

	metrics.Duration = time.Since(s.startedAt)
	o.tel.Metrics.RecordTransitionCompleted("cancelled", metrics.Duration)
	o.tel.Events.PublishTransitionCancelled(s.id, s.descriptor.Key(), string(phase))
	telemetry.AddEvent(span, "cancelled")
	span.End()
	o.recordHistory(s, "cancelled", metrics, len(report.Violations))
	log.Info().Str("phase", string(phase)).Msg("transition cancelled")

	o.clearCurrent(s)
	s.finish(Result{
		Cancelled:  true,
		Violations: report.Violations,
		Metrics:    metrics,
	}, nil)
}

func (o *Orchestrator) finishFailed(s *Session, access *a11y.Session, span trace.Span, log zerolog.Logger, terr *TransitionError, metrics Metrics) {
	s.setPhase(PhaseCancelled)
	access.StopMonitoring()
	report := access.Report()

	restoreCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	access.RestoreFocus(restoreCtx)
	cancel()

	metrics.Duration = time.Since(s.startedAt)
	o.tel.Metrics.RecordTransitionCompleted("failed", metrics.Duration)
	o.tel.Events.PublishTransitionFailed(s.id, s.descriptor.Key(), terr.Message)
	telemetry.RecordError(span, terr)
	span.End()
	o.recordHistory(s, "failed", metrics, len(report.Violations))
	log.Error().Err(terr).Msg("transition failed")

	o.clearCurrent(s)
	s.finish(Result{
		Violations: report.Violations,
		Metrics:    metrics,
	}, terr)
}

func (o *Orchestrator) recordHistory(s *Session, status string, m Metrics, violations int) {
	if o.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec := HistoryRecord{
		SessionID:         s.id,
		Descriptor:        s.descriptor.Key(),
		Status:            status,
		Duration:          m.Duration,
		UpdateCount:       m.UpdateCount,
		AnimationsStarted: m.AnimationsStarted,
		AnimationsSkipped: m.AnimationsSkipped,
		Violations:        violations,
		StartedAt:         s.startedAt,
	}
	if err := o.history.RecordTransition(ctx, rec); err != nil {
		o.logger.Warn().Err(err).Str("session_id", s.id).Msg("history record failed")
	}
}

func (o *Orchestrator) clearCurrent(s *Session) {
	o.mu.Lock()
	if o.current == s {
		o.current = nil
	}
	o.mu.Unlock()
}
