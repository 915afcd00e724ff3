package service

import (
	"context"
	"sync"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/provider"
	"pos-backend/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileLockName = "reconcile-scan"

// Locker is a distributed lock so that only one replica scans at a time
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// ProviderResolver returns the client for a payment provider
type ProviderResolver interface {
	Resolve(p models.PaymentProvider) (provider.Client, error)
}

// ScanReport summarises one reconciliation scan
type ScanReport struct {
	Candidates int  `json:"candidates"`
	Updated    int  `json:"updated"`
	Unchanged  int  `json:"unchanged"`
	Failed     int  `json:"failed"`
	Stale      int  `json:"stale"`
	Skipped    bool `json:"skipped,omitempty"`
}

// Reconciler re-verifies fresh processing payments against their providers
// and writes the authoritative status back through PaymentService.Settle.
type Reconciler struct {
	payments    PaymentRepository
	settler     *PaymentService
	providers   ProviderResolver
	locker      Locker
	lockTTL     time.Duration
	concurrency int
	logger      *zap.Logger
}

type ReconcilerOption func(*Reconciler)

// WithLocker guards each scan with a distributed lock held for at most ttl.
// A scan holding the lock is cancelled when ttl elapses, so the lock cannot
// expire under a running scan.
func WithLocker(l Locker, ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.locker = l
		r.lockTTL = ttl
	}
}

// WithConcurrency bounds the number of candidates processed at once
func WithConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewReconciler(payments PaymentRepository, settler *PaymentService, providers ProviderResolver, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		payments:    payments,
		settler:     settler,
		providers:   providers,
		concurrency: 4,
		logger:      util.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan runs one reconciliation pass. Candidates are processed concurrently
// in no particular order; a failing candidate is logged and counted without
// aborting the others. When another replica holds the lock the scan is
// skipped.
func (r *Reconciler) Scan(ctx context.Context) (*ScanReport, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Scan")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	if r.locker != nil {
		token, ok, err := r.locker.AcquireLock(ctx, reconcileLockName, r.lockTTL)
		if err != nil {
			return nil, util.SpanError(span, apperr.ExternalService("redis", err))
		}
		if !ok {
			r.logger.Info("Reconciliation scan already running elsewhere, skipping")
			return &ScanReport{Skipped: true}, nil
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), reconcileLockName, token); err != nil {
				r.logger.Warn("Failed to release reconcile lock", zap.Error(err))
			}
		}()

		if r.lockTTL > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.lockTTL)
			defer cancel()
		}
	}

	report := &ScanReport{}

	stale, err := r.payments.CountStaleProcessingPayments(ctx)
	if err != nil {
		r.logger.Warn("Failed to count stale processing payments", zap.Error(err))
	} else {
		report.Stale = stale
		util.StaleProcessingPayments.Set(float64(stale))
	}

	candidates, err := r.payments.ListProcessingPayments(ctx)
	if err != nil {
		return nil, util.SpanError(span, err)
	}
	report.Candidates = len(candidates)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for _, payment := range candidates {
		g.Go(func() error {
			outcome := r.reconcile(ctx, payment)
			util.ReconcileOutcomesTotal.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeUpdated:
				report.Updated++
			case outcomeUnchanged:
				report.Unchanged++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("Reconciliation scan finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Int("stale", report.Stale),
		zap.Duration("took", time.Since(start)))

	return report, nil
}

const (
	outcomeUpdated   = "updated"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

func (r *Reconciler) reconcile(ctx context.Context, payment models.Payment) string {
	log := r.logger.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", payment.OrderID.String()),
		zap.String("provider", string(payment.Provider)))

	client, err := r.providers.Resolve(payment.Provider)
	if err != nil {
		log.Error("No provider client", zap.Error(err))
		return outcomeFailed
	}

	result, err := client.FetchStatus(ctx, payment)
	if err != nil {
		if !apperr.Is(err, apperr.KindExternalService) {
			err = apperr.ExternalService(string(payment.Provider), err)
		}
		log.Error("Provider status query failed", zap.Error(err))
		return outcomeFailed
	}

	if result.Status == payment.Status {
		return outcomeUnchanged
	}

	settlement, err := r.settler.Settle(ctx, payment.ID, result.Status, result.Reference, models.ActorReconciler)
	if err != nil {
		log.Error("Failed to apply provider status",
			zap.String("status", string(result.Status)),
			zap.Error(err))
		return outcomeFailed
	}

	if !settlement.PaymentChanged && !settlement.OrderChanged {
		return outcomeUnchanged
	}

	log.Info("Payment reconciled", zap.String("status", string(result.Status)))
	return outcomeUpdated
}
