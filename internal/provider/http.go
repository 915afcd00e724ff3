package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var errNoClient = errors.New("no client registered for provider")

// statusAliases maps provider-specific status vocabularies onto payment statuses
var statusAliases = map[string]models.PaymentStatus{
	"pending":    models.PaymentStatusPending,
	"processing": models.PaymentStatusProcessing,
	"success":    models.PaymentStatusSuccess,
	"failed":     models.PaymentStatusFailed,
	"refunded":   models.PaymentStatusRefunded,

	"in_progress": models.PaymentStatusProcessing,
	"authorized":  models.PaymentStatusProcessing,
	"paid":        models.PaymentStatusSuccess,
	"succeeded":   models.PaymentStatusSuccess,
	"settled":     models.PaymentStatusSuccess,
	"settlement":  models.PaymentStatusSuccess,
	"capture":     models.PaymentStatusSuccess,
	"expired":     models.PaymentStatusFailed,
	"expire":      models.PaymentStatusFailed,
	"cancelled":   models.PaymentStatusFailed,
	"canceled":    models.PaymentStatusFailed,
	"deny":        models.PaymentStatusFailed,
	"refund":      models.PaymentStatusRefunded,
}

// NormalizeStatus maps a raw provider status onto a payment status
func NormalizeStatus(raw string) (models.PaymentStatus, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

type statusResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// HTTPClient queries a provider's status endpoint:
// GET {baseURL}/v1/payments/{reference}/status with a bearer API key.
// The payment ID is used when no provider reference is stored yet.
type HTTPClient struct {
	provider models.PaymentProvider
	baseURL  string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPClient(provider models.PaymentProvider, baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   util.GetLogger(),
	}
}

func (c *HTTPClient) FetchStatus(ctx context.Context, payment models.Payment) (Result, error) {
	start := time.Now()
	defer func() {
		util.ProviderQueryLatency.WithLabelValues(string(c.provider)).Observe(time.Since(start).Seconds())
	}()

	result, err := c.fetch(ctx, payment)
	if err != nil {
		return Result{}, apperr.ExternalService(string(c.provider), err)
	}
	return result, nil
}

func (c *HTTPClient) fetch(ctx context.Context, payment models.Payment) (Result, error) {
	ref := payment.ID.String()
	if payment.ProviderReference != nil && *payment.ProviderReference != "" {
		ref = *payment.ProviderReference
	}

	endpoint := fmt.Sprintf("%s/v1/payments/%s/status", c.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, errors.Wrap(err, "build status request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, errors.Wrapf(err, "query %s", c.provider)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errors.Wrap(err, "read status response")
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Provider status query failed",
			zap.String("provider", string(c.provider)),
			zap.String("payment_id", payment.ID.String()),
			zap.Int("http_status", resp.StatusCode))
		return Result{}, errors.Errorf("%s returned HTTP %d", c.provider, resp.StatusCode)
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return Result{}, errors.Wrap(err, "decode status response")
	}

	status, ok := NormalizeStatus(sr.Status)
	if !ok {
		return Result{}, errors.Errorf("%s reported unknown status %q", c.provider, sr.Status)
	}

	return Result{Status: status, Reference: sr.Reference}, nil
}

// Endpoint is the status API location and key for one provider
type Endpoint struct {
	URL    string
	APIKey string
}

// NewHTTPRegistry registers an HTTPClient for every provider with a URL
func NewHTTPRegistry(endpoints map[models.PaymentProvider]Endpoint, timeout time.Duration) *Registry {
	r := NewRegistry()
	for p, ep := range endpoints {
		if ep.URL == "" {
			continue
		}
		r.Register(p, NewHTTPClient(p, ep.URL, ep.APIKey, timeout))
	}
	return r
}
