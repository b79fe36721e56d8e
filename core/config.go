package core

import (
	"fmt"
	"strings"
	"time"
)

const DefaultConfigName = "default"

const (
	TransportKindREST    = "rest"
	TransportKindSandbox = "sandbox"
)

type GatewayConfig struct {
	AppID                    string        `koanf:"app_id" mapstructure:"app_id"`
	AppKey                   string        `koanf:"app_key" mapstructure:"app_key"`
	Country                  string        `koanf:"country" mapstructure:"country"`
	ServiceURL               string        `koanf:"service_url" mapstructure:"service_url"`
	TransportKind            string        `koanf:"transport_kind" mapstructure:"transport_kind"`
	Timeout                  time.Duration `koanf:"timeout" mapstructure:"timeout"`
	ChallengeNotificationURL string        `koanf:"challenge_notification_url" mapstructure:"challenge_notification_url"`
	MethodNotificationURL    string        `koanf:"method_notification_url" mapstructure:"method_notification_url"`
	MerchantContactURL       string        `koanf:"merchant_contact_url" mapstructure:"merchant_contact_url"`
}

type IdempotencyConfig struct {
	TTL        time.Duration `koanf:"ttl" mapstructure:"ttl"`
	MaxEntries int           `koanf:"max_entries" mapstructure:"max_entries"`
}

type Config struct {
	ServiceName       string                   `koanf:"service_name" mapstructure:"service_name"`
	DefaultConfigName string                   `koanf:"default_config_name" mapstructure:"default_config_name"`
	DefaultVersion    Version                  `koanf:"default_version" mapstructure:"default_version"`
	EnableLogging     bool                     `koanf:"enable_logging" mapstructure:"enable_logging"`
	Gateways          map[string]GatewayConfig `koanf:"gateways" mapstructure:"gateways"`
	Idempotency       IdempotencyConfig        `koanf:"idempotency" mapstructure:"idempotency"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:       "threeds",
		DefaultConfigName: DefaultConfigName,
		Gateways:          map[string]GatewayConfig{},
		Idempotency: IdempotencyConfig{
			TTL:        defaultIdempotencyTTL,
			MaxEntries: defaultIdempotencyMaxEntries,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.DefaultVersion != "" && !c.DefaultVersion.Valid() {
		return fmt.Errorf("core: default_version %q is invalid", c.DefaultVersion)
	}
	if c.Idempotency.TTL < 0 {
		return fmt.Errorf("core: idempotency ttl must not be negative")
	}
	if c.Idempotency.MaxEntries < 0 {
		return fmt.Errorf("core: idempotency max_entries must not be negative")
	}
	for name, gateway := range c.Gateways {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("core: gateway config name is required")
		}
		if err := gateway.Validate(); err != nil {
			return fmt.Errorf("core: gateway %q: %w", name, err)
		}
	}
	return nil
}

func (g GatewayConfig) Validate() error {
	kind := strings.ToLower(strings.TrimSpace(g.TransportKind))
	if kind != "" && kind != TransportKindREST && kind != TransportKindSandbox {
		return fmt.Errorf("unknown transport_kind %q", g.TransportKind)
	}
	if kind != TransportKindSandbox && strings.TrimSpace(g.ServiceURL) == "" {
		return fmt.Errorf("service_url is required")
	}
	if g.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Gateway returns the named gateway config. An empty name selects the
// default config name.
func (c Config) Gateway(name string) (GatewayConfig, bool) {
	gateway, ok := c.Gateways[c.ResolveConfigName(name)]
	return gateway, ok
}

// ResolveConfigName applies the default config name to name.
func (c Config) ResolveConfigName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if name = strings.TrimSpace(c.DefaultConfigName); name != "" {
		return name
	}
	return DefaultConfigName
}
