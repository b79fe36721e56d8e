package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Logger() == nil {
		t.Fatalf("expected default logger")
	}
	if svc.LoggerProvider() == nil {
		t.Fatalf("expected default logger provider")
	}
	if svc.IdempotencyStore() == nil {
		t.Fatalf("expected default idempotency ledger")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "threeds" || cfg.DefaultConfigName != DefaultConfigName {
		t.Fatalf("unexpected default config %+v", cfg)
	}
	if cfg.Idempotency.TTL != 24*time.Hour || cfg.Idempotency.MaxEntries != 8192 {
		t.Fatalf("unexpected idempotency defaults %+v", cfg.Idempotency)
	}
}

func TestNewService_WithOverrides(t *testing.T) {
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	ledger := NewMemoryIdempotencyLedger(time.Minute)

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithErrorMapper(customMapper),
		WithIdempotencyStore(ledger),
		WithConfigProvider(&fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected resolver output, got %q", got)
	}
	if svc.IdempotencyStore() != ledger {
		t.Fatalf("expected custom ledger")
	}
	if mapped := svc.MapError(errors.New("boom")); mapped == nil || mapped.Message != "mapped" {
		t.Fatalf("expected custom error mapper, got %v", mapped)
	}
}

func TestNewService_LayersLoadedAndRuntimeConfig(t *testing.T) {
	loader := NewStaticConfigLoader(map[string]any{
		"service_name":    "from-file",
		"default_version": "TWO",
		"gateways": map[string]any{
			"default": map[string]any{
				"service_url": "https://gateway.test",
				"app_id":      "app-1",
			},
		},
		"idempotency": map[string]any{"max_entries": 16},
	})

	svc, err := NewService(Config{ServiceName: "runtime", EnableLogging: true},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "runtime" {
		t.Fatalf("expected runtime to win, got %q", cfg.ServiceName)
	}
	if !cfg.EnableLogging || cfg.DefaultVersion != VersionTwo {
		t.Fatalf("expected layered flags, got %+v", cfg)
	}
	gateway, ok := cfg.Gateway("")
	if !ok || gateway.ServiceURL != "https://gateway.test" || gateway.AppID != "app-1" {
		t.Fatalf("expected default gateway from file, got %+v", gateway)
	}
	if cfg.Idempotency.MaxEntries != 16 || cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("expected loaded max entries over default ttl, got %+v", cfg.Idempotency)
	}
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	loader := NewStaticConfigLoader(map[string]any{
		"gateways": map[string]any{
			"default": map[string]any{"transport_kind": "carrier-pigeon", "service_url": "https://gateway.test"},
		},
	})
	if _, err := NewService(Config{}, WithConfigProvider(NewCfgxConfigProvider(loader))); err == nil {
		t.Fatalf("expected unknown transport kind to be rejected")
	}

	if _, err := NewService(Config{DefaultVersion: "THREE"}); err == nil {
		t.Fatalf("expected unknown default version to be rejected")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateways = map[string]GatewayConfig{"default": {TransportKind: TransportKindSandbox}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected sandbox gateway without url to be valid: %v", err)
	}
	cfg.Gateways = map[string]GatewayConfig{"default": {TransportKind: TransportKindREST}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected rest gateway without url to be rejected")
	}
	cfg.Gateways = nil
	cfg.Idempotency.TTL = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative ttl to be rejected")
	}
	if got := cfg.ResolveConfigName("  secondary "); got != "secondary" {
		t.Fatalf("expected explicit config name, got %q", got)
	}
}
