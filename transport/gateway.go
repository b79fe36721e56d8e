package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-threeds/core"
)

const (
	PathAuthentications = "/authentications"

	HeaderAppID   = "X-App-Id"
	HeaderCountry = "X-Country"
)

// Route is the HTTP method and path template of one gateway operation. The
// template may reference {id}.
type Route struct {
	Method string
	Path   string
}

// DefaultRoutes maps every orchestrator operation onto the JSON gateway API.
func DefaultRoutes() map[core.Operation]Route {
	return map[core.Operation]Route{
		core.OperationCheckEnrollment:        {Method: http.MethodPost, Path: PathAuthentications},
		core.OperationInitiateAuthentication: {Method: http.MethodPost, Path: PathAuthentications + "/{id}/initiate"},
		core.OperationGetAuthenticationData:  {Method: http.MethodPost, Path: PathAuthentications + "/{id}/result"},
		core.OperationCheckLiabilityShift:    {Method: http.MethodGet, Path: PathAuthentications + "/{id}"},
	}
}

// GatewayTransport sends orchestrator requests to the gateway named by the
// request's config name, over the adapter kind that gateway is configured
// with.
type GatewayTransport struct {
	Registry          *Registry
	Gateways          map[string]core.GatewayConfig
	DefaultConfigName string
	Routes            map[core.Operation]Route
}

func NewGatewayTransport(cfg core.Config, registry *Registry) *GatewayTransport {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	gateways := make(map[string]core.GatewayConfig, len(cfg.Gateways))
	for name, gateway := range cfg.Gateways {
		gateways[strings.TrimSpace(name)] = gateway
	}
	return &GatewayTransport{
		Registry:          registry,
		Gateways:          gateways,
		DefaultConfigName: cfg.ResolveConfigName(""),
		Routes:            DefaultRoutes(),
	}
}

func (t *GatewayTransport) Send(ctx context.Context, req core.GatewayRequest) (core.RawResponse, error) {
	if t == nil {
		return core.RawResponse{}, transportError(
			"transport: gateway transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	configName := strings.TrimSpace(req.ConfigName)
	if configName == "" {
		configName = t.DefaultConfigName
	}
	gateway, ok := t.Gateways[configName]
	if !ok {
		return core.RawResponse{}, transportError(
			fmt.Sprintf("transport: gateway config %q is not registered", configName),
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"config_name": configName},
		)
	}
	route, ok := t.route(req.Operation)
	if !ok {
		return core.RawResponse{}, transportError(
			fmt.Sprintf("transport: operation %q has no route", req.Operation),
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"operation": string(req.Operation)},
		)
	}

	path := route.Path
	if strings.Contains(path, "{id}") {
		id := strings.TrimSpace(req.ServerTransactionID)
		if id == "" {
			return core.RawResponse{}, transportError(
				fmt.Sprintf("transport: operation %q requires a server transaction id", req.Operation),
				goerrors.CategoryBadInput,
				http.StatusBadRequest,
				map[string]any{"operation": string(req.Operation)},
			)
		}
		path = strings.ReplaceAll(path, "{id}", url.PathEscape(id))
	}

	var body []byte
	if route.Method != http.MethodGet && len(req.Payload) > 0 {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return core.RawResponse{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode gateway payload",
				http.StatusBadRequest,
				map[string]any{"operation": string(req.Operation)},
			)
		}
		body = encoded
	}

	adapter, err := t.Registry.Resolve(configName, gateway)
	if err != nil {
		return core.RawResponse{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: resolve adapter",
			http.StatusInternalServerError,
			map[string]any{"kind": gateway.TransportKind, "config_name": configName},
		)
	}

	response, err := adapter.Do(ctx, core.TransportRequest{
		Method:      route.Method,
		URL:         strings.TrimRight(strings.TrimSpace(gateway.ServiceURL), "/") + path,
		Headers:     gatewayHeaders(gateway, body != nil),
		Body:        body,
		Timeout:     gateway.Timeout,
		Idempotency: strings.TrimSpace(req.IdempotencyKey),
		Metadata: map[string]any{
			"operation":   string(req.Operation),
			"config_name": configName,
		},
	})
	if err != nil {
		return core.RawResponse{}, err
	}
	return core.RawResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Headers,
		Body:       response.Body,
		Metadata:   response.Metadata,
	}, nil
}

func (t *GatewayTransport) route(operation core.Operation) (Route, bool) {
	routes := t.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	route, ok := routes[operation]
	return route, ok
}

func gatewayHeaders(gateway core.GatewayConfig, hasBody bool) map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if hasBody {
		headers["Content-Type"] = "application/json"
	}
	if appID := strings.TrimSpace(gateway.AppID); appID != "" {
		headers[HeaderAppID] = appID
		credentials := appID + ":" + strings.TrimSpace(gateway.AppKey)
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
	}
	if country := strings.TrimSpace(gateway.Country); country != "" {
		headers[HeaderCountry] = country
	}
	return headers
}

var _ core.Transport = (*GatewayTransport)(nil)
