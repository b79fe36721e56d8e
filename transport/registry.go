package transport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-threeds/core"
)

// AdapterFactory builds the adapter serving one named gateway config.
type AdapterFactory func(configName string, gateway core.GatewayConfig) (core.TransportAdapter, error)

type adapterKey struct {
	kind       string
	configName string
}

// Registry maps a gateway's transport kind to the adapter that carries its
// calls. Shared adapters serve every config of their kind and win over
// factories. Factory output is cached per kind and config name.
type Registry struct {
	mu        sync.RWMutex
	shared    map[string]core.TransportAdapter
	factories map[string]AdapterFactory
	built     map[adapterKey]core.TransportAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		shared:    map[string]core.TransportAdapter{},
		factories: map[string]AdapterFactory{},
		built:     map[adapterKey]core.TransportAdapter{},
	}
}

// NewDefaultRegistry knows how to reach REST gateways. Each gateway config
// gets its own client so per-gateway timeouts hold.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.RegisterFactory(KindREST, restAdapterFactory)
	return registry
}

func restAdapterFactory(_ string, gateway core.GatewayConfig) (core.TransportAdapter, error) {
	timeout := gateway.Timeout
	if timeout <= 0 {
		timeout = defaultRESTClientTimeout
	}
	return NewRESTAdapter(&http.Client{Timeout: timeout}), nil
}

func (r *Registry) Register(adapter core.TransportAdapter) error {
	kind, err := r.adapterKind(adapter)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.shared[kind]; exists {
		return fmt.Errorf("transport: adapter kind %q already registered", kind)
	}
	r.shared[kind] = adapter
	return nil
}

// Replace installs adapter as the shared adapter for its kind, dropping the
// previous one and any adapters built for that kind.
func (r *Registry) Replace(adapter core.TransportAdapter) error {
	kind, err := r.adapterKind(adapter)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shared[kind] = adapter
	r.forgetBuiltLocked(kind)
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory AdapterFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: adapter kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transport: adapter factory for %q is nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("transport: adapter factory %q already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Resolve returns the adapter for a named gateway config. An empty
// transport kind means REST.
func (r *Registry) Resolve(configName string, gateway core.GatewayConfig) (core.TransportAdapter, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind := normalizeKind(gateway.TransportKind)
	if kind == "" {
		kind = KindREST
	}
	key := adapterKey{kind: kind, configName: strings.TrimSpace(configName)}

	r.mu.RLock()
	adapter, ok := r.shared[kind]
	if !ok {
		adapter, ok = r.built[key]
	}
	factory := r.factories[kind]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("transport: no adapter for kind %q (config %q)", kind, key.configName)
	}

	adapter, err := factory(key.configName, gateway)
	if err != nil {
		return nil, fmt.Errorf("transport: build %q adapter for config %q: %w", kind, key.configName, err)
	}
	if adapter == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil adapter", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.built[key]; ok {
		return existing, nil
	}
	r.built[key] = adapter
	return adapter, nil
}

// Get returns the shared adapter registered for kind.
func (r *Registry) Get(kind string) (core.TransportAdapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.shared[normalizeKind(kind)]
	return adapter, ok
}

// Kinds lists every kind the registry can resolve, sorted.
func (r *Registry) Kinds() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.shared)+len(r.factories))
	for kind := range r.shared {
		seen[kind] = struct{}{}
	}
	for kind := range r.factories {
		seen[kind] = struct{}{}
	}
	kinds := make([]string, 0, len(seen))
	for kind := range seen {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) adapterKind(adapter core.TransportAdapter) (string, error) {
	if r == nil {
		return "", fmt.Errorf("transport: registry is nil")
	}
	if adapter == nil {
		return "", fmt.Errorf("transport: adapter is nil")
	}
	kind := normalizeKind(adapter.Kind())
	if kind == "" {
		return "", fmt.Errorf("transport: adapter kind is required")
	}
	return kind, nil
}

func (r *Registry) forgetBuiltLocked(kind string) {
	for key := range r.built {
		if key.kind == kind {
			delete(r.built, key)
		}
	}
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}
