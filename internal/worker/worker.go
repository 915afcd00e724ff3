package worker

import (
	"context"

	"pos-backend/internal/broker"
	"pos-backend/internal/models"
	"pos-backend/internal/service"
	"pos-backend/internal/util"

	"go.uber.org/zap"
)

// Scanner runs one reconciliation pass
type Scanner interface {
	Scan(ctx context.Context) (*service.ScanReport, error)
}

// ReconcileWorker runs a reconciliation scan for every reconcile request
// consumed from Kafka
type ReconcileWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	scanner      Scanner
	logger       *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(consumer *broker.Consumer, scanner Scanner) *ReconcileWorker {
	w := &ReconcileWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		scanner:      scanner,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnReconcileRequest(w.handleReconcileRequest)
	return w
}

// Start consumes until ctx is cancelled
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	w.logger.Info("Stopping reconcile worker")
	return w.consumer.Close()
}

// handleReconcileRequest fails only when the scan itself fails, which makes
// the consumer retry the request. Per-payment failures are part of the report.
func (w *ReconcileWorker) handleReconcileRequest(ctx context.Context, req *models.ReconcileRequest) error {
	logger := w.logger.With(
		zap.String("request_id", req.EventID),
		zap.String("requested_by", req.RequestedBy))

	report, err := w.scanner.Scan(ctx)
	if err != nil {
		logger.Error("Reconciliation scan failed", zap.Error(err))
		return err
	}

	if report.Skipped {
		logger.Info("Reconciliation skipped, another scan holds the lock")
		return nil
	}

	logger.Info("Reconciliation scan finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Int("stale", report.Stale))
	return nil
}
