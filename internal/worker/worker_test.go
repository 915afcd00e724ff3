package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pos-backend/internal/models"
	"pos-backend/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	calls  int
	report *service.ScanReport
	err    error
}

func (s *fakeScanner) Scan(context.Context) (*service.ScanReport, error) {
	s.calls++
	return s.report, s.err
}

func reconcileMessage(t *testing.T, eventType string) kafka.Message {
	t.Helper()
	body, err := json.Marshal(models.ReconcileRequest{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: eventType,
			Timestamp: time.Now(),
		},
		RequestedBy: "cron",
	})
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestReconcileWorkerRunsScan(t *testing.T) {
	scanner := &fakeScanner{report: &service.ScanReport{Candidates: 2, Updated: 1, Unchanged: 1}}
	w := NewReconcileWorker(nil, scanner)

	err := w.eventHandler.HandleMessage(context.Background(), reconcileMessage(t, models.MessageTypeReconcileRequest))
	require.NoError(t, err)
	assert.Equal(t, 1, scanner.calls)
}

func TestReconcileWorkerSkippedScan(t *testing.T) {
	scanner := &fakeScanner{report: &service.ScanReport{Skipped: true}}
	w := NewReconcileWorker(nil, scanner)

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), reconcileMessage(t, models.MessageTypeReconcileRequest)))
	assert.Equal(t, 1, scanner.calls)
}

func TestReconcileWorkerScanFailureIsReturned(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db down")}
	w := NewReconcileWorker(nil, scanner)

	err := w.eventHandler.HandleMessage(context.Background(), reconcileMessage(t, models.MessageTypeReconcileRequest))
	assert.EqualError(t, err, "db down")
}

func TestReconcileWorkerIgnoresOtherMessages(t *testing.T) {
	scanner := &fakeScanner{}
	w := NewReconcileWorker(nil, scanner)

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), reconcileMessage(t, models.MessageTypeOrderEvent)))
	assert.Zero(t, scanner.calls)
}
