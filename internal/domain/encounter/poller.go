// Package encounter watches registered patients' encounters on the EHR and
// emits one CompletedEvent per encounter that reaches the finished state.
package encounter

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/priorauth/internal/domain/registry"
	"github.com/ehr/priorauth/internal/platform/fhir"
	"github.com/ehr/priorauth/internal/platform/result"
)

const (
	DefaultInterval = 30 * time.Second
	MinInterval     = time.Second
	SweepInterval   = time.Hour
	RetentionWindow = 24 * time.Hour
)

// Config controls a PollingService.
type Config struct {
	Interval   time.Duration
	PracticeID string
	// Zero values fall back to SweepInterval and RetentionWindow.
	SweepInterval   time.Duration
	RetentionWindow time.Duration
}

// Status is a point-in-time view of the poller for introspection.
type Status struct {
	Running         bool       `json:"running"`
	IntervalSeconds float64    `json:"interval_seconds"`
	PracticeID      string     `json:"practice_id"`
	ProcessedCount  int        `json:"processed_count"`
	PendingEvents   int        `json:"pending_events"`
	Cycles          int64      `json:"cycles"`
	LastCycleAt     *time.Time `json:"last_cycle_at,omitempty"`
}

// PollingService periodically checks the encounter status of every
// registered patient. Patients are polled one at a time within a cycle.
type PollingService struct {
	registry registry.Registry
	source   fhir.SearchClient
	cache    *ProcessedCache
	events   *EventChannel
	logger   zerolog.Logger

	interval   time.Duration
	practiceID string
	sweepEvery time.Duration
	retention  time.Duration
	now        func() time.Time

	running     atomic.Bool
	closed      atomic.Bool
	cycles      atomic.Int64
	lastCycleAt atomic.Pointer[time.Time]
}

// NewPollingService wires a poller. An interval of zero or less is clamped to
// MinInterval.
func NewPollingService(reg registry.Registry, source fhir.SearchClient, cache *ProcessedCache, cfg Config, logger zerolog.Logger) *PollingService {
	logger = logger.With().Str("component", "encounter-poller").Logger()
	if cfg.Interval <= 0 {
		logger.Warn().Dur("configured", cfg.Interval).Dur("interval", MinInterval).
			Msg("polling interval must be positive, clamping")
		cfg.Interval = MinInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = SweepInterval
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = RetentionWindow
	}
	if cache == nil {
		cache = NewProcessedCache()
	}
	return &PollingService{
		registry:   reg,
		source:     source,
		cache:      cache,
		events:     NewEventChannel(),
		logger:     logger,
		interval:   cfg.Interval,
		practiceID: cfg.PracticeID,
		sweepEvery: cfg.SweepInterval,
		retention:  cfg.RetentionWindow,
		now:        time.Now,
	}
}

// Events is the stream of newly completed encounters, in detection order. It
// stays open across Run calls and is closed by Close.
func (s *PollingService) Events() <-chan CompletedEvent {
	return s.events.C()
}

// Close ends the event stream. Events not yet read are dropped and Run
// refuses to start afterwards.
func (s *PollingService) Close() {
	s.closed.Store(true)
	s.events.Close()
}

func (s *PollingService) Interval() time.Duration { return s.interval }

func (s *PollingService) ProcessedCount() int { return s.cache.Count() }

func (s *PollingService) IsProcessed(encounterID string) bool {
	return s.cache.IsProcessed(encounterID)
}

// PurgeProcessed drops processed entries older than maxAge and returns how
// many were removed.
func (s *PollingService) PurgeProcessed(maxAge time.Duration) int {
	n := s.cache.Purge(maxAge)
	if n > 0 {
		s.logger.Info().Int("removed", n).Dur("max_age", maxAge).Msg("purged processed encounters")
	}
	return n
}

func (s *PollingService) Status() Status {
	st := Status{
		Running:         s.running.Load(),
		IntervalSeconds: s.interval.Seconds(),
		PracticeID:      s.practiceID,
		ProcessedCount:  s.cache.Count(),
		PendingEvents:   s.events.Len(),
		Cycles:          s.cycles.Load(),
	}
	if t := s.lastCycleAt.Load(); t != nil {
		ts := *t
		st.LastCycleAt = &ts
	}
	return st
}

// Run polls until ctx is cancelled. The first cycle starts immediately; each
// following cycle starts one interval after the previous one finished.
func (s *PollingService) Run(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("encounter poller is closed")
	}
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("encounter poller already running")
	}
	defer s.running.Store(false)

	s.logger.Info().Dur("interval", s.interval).Msg("encounter poller started")
	sweep := time.NewTicker(s.sweepEvery)
	defer sweep.Stop()

	for {
		s.safePoll(ctx)

		timer := time.NewTimer(s.interval)
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info().Msg("encounter poller stopped")
				return nil
			case <-sweep.C:
				s.PurgeProcessed(s.retention)
			case <-timer.C:
				break wait
			}
		}
	}
}

// safePoll runs one cycle and keeps a panic inside it from ending the loop.
func (s *PollingService) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("panic during poll cycle")
		}
	}()
	if err := s.PollOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("poll cycle failed")
	}
}

// PollOnce runs a single poll cycle over every active registration.
func (s *PollingService) PollOnce(ctx context.Context) error {
	now := s.now().UTC()
	s.cycles.Add(1)
	s.lastCycleAt.Store(&now)

	if s.practiceID == "" {
		s.logger.Error().Msg("PRACTICE_ID is not configured, skipping poll cycle")
		return nil
	}

	patients, err := s.registry.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("load registered patients: %w", err)
	}
	if len(patients) == 0 {
		return nil
	}
	s.logger.Debug().Int("patients", len(patients)).Msg("polling encounters")

	for _, p := range patients {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.pollPatient(ctx, p)
	}
	return nil
}

func (s *PollingService) pollPatient(ctx context.Context, p *registry.RegisteredPatient) {
	log := s.logger.With().
		Str("patient_id", p.PatientID).
		Str("encounter_id", p.EncounterID).
		Logger()

	bundle, err := s.source.Search(ctx, "Encounter", map[string]string{
		"_id":     p.EncounterID,
		"patient": p.PatientID,
	}).Get()
	if err != nil {
		log.Warn().Err(err).
			Str("error_type", result.TypeOf(err).String()).
			Bool("transient", result.TypeOf(err).Transient()).
			Msg("encounter search failed")
		return
	}

	enc, err := bundle.FirstEncounter()
	if err != nil {
		log.Warn().Err(err).Msg("encounter search returned no usable status")
		return
	}

	// The patient is finished even if shutdown begins now.
	writeCtx := context.WithoutCancel(ctx)

	changed := p.CurrentEncounterStatus == nil || *p.CurrentEncounterStatus != enc.Status
	if changed && enc.Status == fhir.EncounterStatusFinished {
		if !s.cache.TryAdd(p.EncounterID) {
			return
		}
		sent := s.events.Send(CompletedEvent{
			PatientID:   p.PatientID,
			EncounterID: p.EncounterID,
			PracticeID:  p.PracticeID,
			WorkItemID:  p.WorkItemID,
		})
		if !sent {
			s.cache.Remove(p.EncounterID)
			log.Warn().Msg("event stream closed, completion left registered for a later poll")
			return
		}
		log.Info().Str("work_item_id", p.WorkItemID.String()).Msg("encounter completed")
		if err := s.registry.Unregister(writeCtx, p.PatientID); err != nil {
			log.Error().Err(err).Msg("failed to unregister completed patient")
		}
		return
	}

	if err := s.registry.Update(writeCtx, p.PatientID, s.now().UTC(), enc.Status); err != nil {
		log.Error().Err(err).Str("status", enc.Status).Msg("failed to record encounter status")
	}
}
