// Package provider resolves payment provider clients used to fetch the
// authoritative status of a payment during reconciliation.
package provider

import (
	"context"
	"sync"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

// Result is a provider's view of a payment
type Result struct {
	Status    models.PaymentStatus
	Reference string
}

// Client fetches payment status from one external provider
type Client interface {
	FetchStatus(ctx context.Context, payment models.Payment) (Result, error)
}

// ClientFunc adapts a function to Client
type ClientFunc func(ctx context.Context, payment models.Payment) (Result, error)

func (f ClientFunc) FetchStatus(ctx context.Context, payment models.Payment) (Result, error) {
	return f(ctx, payment)
}

// Registry maps providers to their clients
type Registry struct {
	mu      sync.RWMutex
	clients map[models.PaymentProvider]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: map[models.PaymentProvider]Client{}}
}

// Register installs c for provider, replacing any previous client
func (r *Registry) Register(provider models.PaymentProvider, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider] = c
}

// Resolve returns the client for provider
func (r *Registry) Resolve(provider models.PaymentProvider) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[provider]
	if !ok {
		return nil, apperr.ExternalService(string(provider), errNoClient)
	}
	return c, nil
}
