package threeds

import (
	"fmt"
	"net/http"

	"github.com/goliatone/go-threeds/core"
	"github.com/goliatone/go-threeds/sandbox"
	"github.com/goliatone/go-threeds/transport"
)

type Config = core.Config
type GatewayConfig = core.GatewayConfig
type IdempotencyConfig = core.IdempotencyConfig

type Option = core.Option

type Service = core.Service

type AuthenticationContext = core.AuthenticationContext
type PaymentMethodSource = core.PaymentMethodSource
type Card = core.Card
type TokenizedCard = core.TokenizedCard
type AuthenticationParams = core.AuthenticationParams

type CheckEnrollmentRequest = core.CheckEnrollmentRequest
type InitiateAuthenticationRequest = core.InitiateAuthenticationRequest
type GetAuthenticationDataRequest = core.GetAuthenticationDataRequest

type Transport = core.Transport
type TransportAdapter = core.TransportAdapter
type IdempotencyStore = core.IdempotencyStore
type AuthenticationRecorder = core.AuthenticationRecorder

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorMapper            = core.WithErrorMapper
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithTransport              = core.WithTransport
	WithVersionNegotiator      = core.WithVersionNegotiator
	WithResponseNormalizer     = core.WithResponseNormalizer
	WithIdempotencyStore       = core.WithIdempotencyStore
	WithAuthenticationRecorder = core.WithAuthenticationRecorder
	WithClock                  = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds an orchestrator without a transport unless one is passed
// through WithTransport.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds an orchestrator whose transport routes each gateway config
// through the default adapter registry plus adapters. A WithTransport option
// in opts takes precedence.
func Setup(cfg Config, adapters []TransportAdapter, opts ...Option) (*Service, error) {
	resolved, err := core.NewService(cfg, opts...)
	if err != nil {
		return nil, err
	}
	registry := transport.NewDefaultRegistry()
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		if err := registry.Replace(adapter); err != nil {
			return nil, fmt.Errorf("threeds: register transport adapter: %w", err)
		}
	}
	gatewayTransport := transport.NewGatewayTransport(resolved.Config(), registry)
	return core.NewService(resolved.Config(), append([]Option{core.WithTransport(gatewayTransport)}, opts...)...)
}

// SetupSandbox wires gateway configs with transport_kind "sandbox" to an
// in-process gateway handler, typically sandbox.NewGateway().
func SetupSandbox(cfg Config, gateway http.Handler, opts ...Option) (*Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("threeds: sandbox gateway handler is required")
	}
	return Setup(cfg, []TransportAdapter{sandbox.NewAdapter(gateway)}, opts...)
}
