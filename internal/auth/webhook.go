package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"

	// DefaultReplayWindow is the oldest a webhook timestamp may be
	DefaultReplayWindow = 300000 * time.Millisecond

	signaturePrefixLen = 10
	maxWebhookBody     = 1 << 20
)

// WebhookVerifier authenticates provider callbacks. The signature is
// hex(HMAC-SHA256(secret, "{timestamp}.{body}")) and the timestamp is
// decimal milliseconds since the epoch.
type WebhookVerifier struct {
	secret        []byte
	replayWindow  time.Duration
	maxFutureSkew time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

type WebhookOption func(*WebhookVerifier)

// WithReplayWindow overrides DefaultReplayWindow
func WithReplayWindow(d time.Duration) WebhookOption {
	return func(v *WebhookVerifier) {
		if d > 0 {
			v.replayWindow = d
		}
	}
}

// WithMaxFutureSkew rejects timestamps more than d ahead of now. Zero leaves
// future timestamps unbounded.
func WithMaxFutureSkew(d time.Duration) WebhookOption {
	return func(v *WebhookVerifier) { v.maxFutureSkew = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) WebhookOption {
	return func(v *WebhookVerifier) { v.now = now }
}

func NewWebhookVerifier(secret string, opts ...WebhookOption) *WebhookVerifier {
	v := &WebhookVerifier{
		secret:       []byte(secret),
		replayWindow: DefaultReplayWindow,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Sign computes the signature for body at timestamp (ms since epoch)
func (v *WebhookVerifier) Sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts or rejects a callback. Every rejection is Unauthorized.
func (v *WebhookVerifier) Verify(body []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return v.reject("missing_headers", "Missing webhook signature or timestamp", signature, timestamp)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || ts < 0 {
		return v.reject("bad_timestamp", "Invalid webhook timestamp", signature, timestamp)
	}

	// bounds are compared without subtracting ts so extreme values cannot wrap
	now := v.now().UnixMilli()
	if ts < now-v.replayWindow.Milliseconds() {
		return v.reject("expired", "Webhook timestamp outside replay window", signature, timestamp)
	}
	if v.maxFutureSkew > 0 && ts-now > v.maxFutureSkew.Milliseconds() {
		return v.reject("future", "Webhook timestamp too far in the future", signature, timestamp)
	}

	expected := v.Sign(body, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return v.reject("bad_signature", "Invalid webhook signature", signature, timestamp)
	}

	util.WebhookVerificationsTotal.WithLabelValues("accepted").Inc()
	v.logger.Info("Webhook accepted",
		zap.String("signature", redact(signature)),
		zap.String("timestamp", timestamp))
	return nil
}

func (v *WebhookVerifier) reject(reason, message, signature, timestamp string) error {
	util.WebhookVerificationsTotal.WithLabelValues(reason).Inc()
	v.logger.Warn("Webhook rejected",
		zap.String("reason", reason),
		zap.String("signature", redact(signature)),
		zap.String("timestamp", timestamp))
	return apperr.Unauthorized(message)
}

func redact(signature string) string {
	if len(signature) <= signaturePrefixLen {
		return signature
	}
	return signature[:signaturePrefixLen] + "..."
}

// Middleware verifies the raw body and headers, then restores the body for
// downstream handlers
func (v *WebhookVerifier) Middleware(onError func(*gin.Context, error)) gin.HandlerFunc {
	if onError == nil {
		onError = abortJSON
	}
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			onError(c, apperr.Validation(nil, "unreadable request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		err = v.Verify(body, c.GetHeader(HeaderSignature), c.GetHeader(HeaderTimestamp))
		if err != nil {
			onError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}

// abortJSON is the default error writer for middlewares used without the api layer
func abortJSON(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if appErr, ok := apperr.As(err); ok {
		status = appErr.StatusCode()
	}
	c.JSON(status, gin.H{"error": err.Error(), "statusCode": status})
}
