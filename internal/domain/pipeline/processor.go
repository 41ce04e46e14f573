// Package pipeline turns completed encounters into analyzed work items.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/priorauth/internal/domain/encounter"
	"github.com/ehr/priorauth/internal/domain/workitem"
	"github.com/ehr/priorauth/internal/platform/notification"
)

// WorkItems is the part of the work item service the processor drives.
type WorkItems interface {
	Get(ctx context.Context, id uuid.UUID) (*workitem.WorkItem, error)
	ApplyAnalysis(ctx context.Context, id uuid.UUID, recommendation *string, confidence float64) (*workitem.WorkItem, error)
}

// Processor consumes completion events one at a time. A failure at any step
// is logged and leaves the work item Pending; nothing about it is published.
type Processor struct {
	workItems WorkItems
	clinical  ClinicalSource
	analyzer  Analyzer
	publisher notification.Publisher
	logger    zerolog.Logger
}

func NewProcessor(workItems WorkItems, clinical ClinicalSource, analyzer Analyzer, publisher notification.Publisher, logger zerolog.Logger) *Processor {
	return &Processor{
		workItems: workItems,
		clinical:  clinical,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger.With().Str("component", "encounter-processor").Logger(),
	}
}

// Run handles events until ctx is cancelled or events is closed.
func (p *Processor) Run(ctx context.Context, events <-chan encounter.CompletedEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.safeProcess(ctx, ev)
		}
	}
}

func (p *Processor) safeProcess(ctx context.Context, ev encounter.CompletedEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("encounter_id", ev.EncounterID).
				Msg("panic while processing completed encounter")
		}
	}()
	if err := p.Process(ctx, ev); err != nil {
		p.logger.Error().Err(err).
			Str("encounter_id", ev.EncounterID).
			Str("work_item_id", ev.WorkItemID.String()).
			Msg("failed to process completed encounter")
	}
}

// Process announces the completion, gathers clinical data, runs analysis and
// records the outcome on the work item.
func (p *Processor) Process(ctx context.Context, ev encounter.CompletedEvent) error {
	p.publisher.Publish(notification.Notification{
		Type:          notification.TypeEncounterCompleted,
		TransactionID: ev.WorkItemID.String(),
		EncounterID:   ev.EncounterID,
		PatientID:     ev.PatientID,
		Message:       "Encounter completed, analyzing clinical data",
	})

	item, err := p.workItems.Get(ctx, ev.WorkItemID)
	if err != nil {
		return fmt.Errorf("load work item: %w", err)
	}
	if item.ProcedureCode == nil || *item.ProcedureCode == "" {
		return fmt.Errorf("work item %s has no procedure code", item.ID)
	}

	data := p.clinical.Aggregate(ctx, ev.PatientID)
	if data.IsFailure() {
		return fmt.Errorf("aggregate clinical data: %w", data.Err())
	}

	analysis := p.analyzer.Analyze(ctx, AnalyzeRequest{
		PatientID:     ev.PatientID,
		ProcedureCode: *item.ProcedureCode,
		ClinicalData:  data.Value(),
	})
	if analysis.IsFailure() {
		return fmt.Errorf("analyze: %w", analysis.Err())
	}
	a := analysis.Value()

	updated, err := p.workItems.ApplyAnalysis(ctx, item.ID, a.Recommendation, a.ConfidenceScore)
	if err != nil {
		return fmt.Errorf("apply analysis: %w", err)
	}
	p.logger.Info().
		Str("work_item_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Float64("confidence", a.ConfidenceScore).
		Msg("work item analyzed")
	return nil
}
