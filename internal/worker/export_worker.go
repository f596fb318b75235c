package worker

import (
	"context"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/log"
	"ledger/internal/store"
)

// ExportWorker mirrors recorded assignments into an external sheet.
type ExportWorker struct {
	exporter store.AssignmentWriter
	logger   *log.Logger
	events   *log.StructuredLogger
}

func NewExportWorker(exporter store.AssignmentWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentWorker)
	return &ExportWorker{
		exporter: exporter,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
	}
}

// HandleEvent processes one ledger event. A returned error makes the
// consumer requeue the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	switch event.Type {
	case amqp.EventAssignmentRecorded:
		return w.exportAssignment(ctx, event)
	case amqp.EventEntryCreated:
		// Entries have no sheet representation until something is assigned.
		w.logger.DebugContext(ctx, "Ignoring entry event",
			log.FieldEntryName, event.Entry.Name)
		return nil
	default:
		w.logger.WarnContext(ctx, "Unknown event type", "type", event.Type)
		return nil
	}
}

func (w *ExportWorker) exportAssignment(ctx context.Context, event *amqp.LedgerEvent) error {
	a := *event.Assignment

	ref, err := w.exporter.AppendAssignment(ctx, a)
	if err != nil {
		w.events.LogError(ctx, "Failed to export assignment", err, log.ComponentSheets, log.OpExport,
			log.NewFields().WithAssignment(a.Name, a.NormalizedName, a.Amount, a.CreatedAt.String()))
		return fmt.Errorf("export assignment: %w", err)
	}

	if ref == "" {
		w.logger.InfoContext(ctx, "Assignment already exported",
			log.FieldEntryName, a.Name,
			log.FieldCreatedAt, a.CreatedAt.String())
		return nil
	}

	w.logger.InfoContext(ctx, "Assignment exported",
		log.FieldOperation, log.OpExport,
		log.FieldEntryName, a.Name,
		log.FieldAmount, a.Amount,
		log.FieldStoreRef, ref)
	return nil
}
