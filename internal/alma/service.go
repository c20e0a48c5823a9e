// Package alma talks to the Alma library-services platform over its REST
// API and its SRU search interface.
package alma

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"almaconnector/internal/config"
	"almaconnector/pkg/circuitbreaker"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
	"almaconnector/pkg/ratelimit"
)

type Protocol string

const (
	ProtocolREST Protocol = "rest"
	ProtocolSRU  Protocol = "sru"
)

// Service is the capability set shared by both protocols. The SRU variant
// is read-only and fails UpdateField and CreateRecord with an unsupported
// error.
type Service interface {
	GetRecord(ctx context.Context, id string) (*marc.Record, error)
	UpdateField(ctx context.Context, id, fieldPath, value string) (*marc.Record, error)
	CreateRecord(ctx context.Context, record *marc.Record) (*marc.Record, error)
	Protocol() Protocol
}

type Option func(*transport)

func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		t.client = client
	}
}

// WithRateLimit throttles outgoing requests. A nil limiter disables it.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(t *transport) {
		t.limiter = limiter
	}
}

// WithCircuitBreaker routes requests through breaker. Only service errors
// count as breaker failures.
func WithCircuitBreaker(breaker *circuitbreaker.Wrapper) Option {
	return func(t *transport) {
		t.breaker = breaker
	}
}

// OptionsFromConfig derives the transport options configured for Alma.
func OptionsFromConfig(cfg config.AlmaConfig, cb config.CircuitBreakerConfig) []Option {
	opts := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithRateLimit(ratelimit.NewOutbound(cfg.RateLimit.RPS, cfg.RateLimit.Burst)),
	}

	if cb.Enabled {
		bc := circuitbreaker.DefaultConfig("alma")
		if cb.MaxRequests > 0 {
			bc.MaxRequests = cb.MaxRequests
		}
		if cb.Interval > 0 {
			bc.Interval = cb.Interval
		}
		if cb.Timeout > 0 {
			bc.Timeout = cb.Timeout
		}
		if cb.FailureRatio > 0 {
			bc.ReadyToTrip = circuitbreaker.RatioTrip(cb.MinRequests, cb.FailureRatio)
		}
		bc.IsSuccessful = func(err error) bool {
			return err == nil || !apperrors.IsService(err)
		}
		opts = append(opts, WithCircuitBreaker(circuitbreaker.NewWrapper(bc)))
	}

	return opts
}

// NewService builds the service matching cfg's protocol.
func NewService(cfg ServiceConfig, opts ...Option) (Service, error) {
	if cfg == nil {
		return nil, apperrors.ErrConfiguration.WithMessage("alma service config is nil")
	}

	t := newTransport(cfg.Protocol(), opts...)

	switch c := cfg.(type) {
	case RESTConfig:
		return NewRESTService(c, t), nil
	case SRUConfig:
		return NewSRUService(c, t), nil
	default:
		return nil, apperrors.ErrConfiguration.WithMessagef("unknown alma service config %T", cfg)
	}
}

// breakerOpen converts gobreaker's fail-fast errors into service errors.
func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
