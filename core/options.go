package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	transport       Transport
	negotiator      VersionNegotiator
	normalizer      *ResponseNormalizer
	idempotency     IdempotencyStore
	recorder        AuthenticationRecorder
	clock           func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransport(transport Transport) Option {
	return func(b *serviceBuilder) {
		b.transport = transport
	}
}

func WithVersionNegotiator(negotiator VersionNegotiator) Option {
	return func(b *serviceBuilder) {
		b.negotiator = negotiator
	}
}

func WithResponseNormalizer(normalizer ResponseNormalizer) Option {
	return func(b *serviceBuilder) {
		b.normalizer = &normalizer
	}
}

func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(b *serviceBuilder) {
		b.idempotency = store
	}
}

func WithAuthenticationRecorder(recorder AuthenticationRecorder) Option {
	return func(b *serviceBuilder) {
		b.recorder = recorder
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("threeds", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		negotiator:      NewVersionNegotiator(nil),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return MapError(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw config map, mostly for tests and
// embedding callers that already parsed their configuration.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges three config layers with go-options. Runtime
// values win over loaded ones, which win over defaults. Zero values in the
// loaded and runtime layers count as unset.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), layerValues(defaults, false),
			opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), layerValues(loaded, true),
			opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), layerValues(runtime, true),
			opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: build config layers: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: merge config layers: %w", err)
	}
	return cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// layerValues flattens cfg into the keyed shape cfgx decodes. With
// sparse set, zero values are left out so they do not mask lower layers.
func layerValues(cfg Config, sparse bool) map[string]any {
	gateways := make(map[string]any, len(cfg.Gateways))
	for name, gateway := range cfg.Gateways {
		gateways[name] = map[string]any{
			"app_id":                     gateway.AppID,
			"app_key":                    gateway.AppKey,
			"country":                    gateway.Country,
			"service_url":                gateway.ServiceURL,
			"transport_kind":             gateway.TransportKind,
			"timeout":                    gateway.Timeout,
			"challenge_notification_url": gateway.ChallengeNotificationURL,
			"method_notification_url":    gateway.MethodNotificationURL,
			"merchant_contact_url":       gateway.MerchantContactURL,
		}
	}
	values := map[string]any{
		"service_name":        strings.TrimSpace(cfg.ServiceName),
		"default_config_name": strings.TrimSpace(cfg.DefaultConfigName),
		"default_version":     string(cfg.DefaultVersion),
		"enable_logging":      cfg.EnableLogging,
		"gateways":            gateways,
		"idempotency": map[string]any{
			"ttl":         cfg.Idempotency.TTL,
			"max_entries": cfg.Idempotency.MaxEntries,
		},
	}
	if !sparse {
		return values
	}
	idempotency := values["idempotency"].(map[string]any)
	dropZero(idempotency)
	if len(idempotency) == 0 {
		delete(values, "idempotency")
	}
	if len(gateways) == 0 {
		delete(values, "gateways")
	}
	dropZero(values)
	return values
}

// dropZero removes top-level scalar zero values. Gateway entries are kept
// whole since a gateway is configured as a unit.
func dropZero(values map[string]any) {
	for key, value := range values {
		switch typed := value.(type) {
		case string:
			if typed == "" {
				delete(values, key)
			}
		case bool:
			if !typed {
				delete(values, key)
			}
		case int:
			if typed <= 0 {
				delete(values, key)
			}
		case time.Duration:
			if typed <= 0 {
				delete(values, key)
			}
		}
	}
}
