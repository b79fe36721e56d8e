package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type GatewayRequest struct {
	Operation           Operation
	ConfigName          string
	ServerTransactionID string
	IdempotencyKey      string
	Payload             map[string]any
}

// RawResponse is the gateway reply before normalization. Non 2xx replies are
// returned as responses, not errors, so the gateway taxonomy survives.
type RawResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type Transport interface {
	Send(ctx context.Context, req GatewayRequest) (RawResponse, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type PaymentMethodSource interface {
	HasThreeDSData() bool
	MissingThreeDSFields() []string
	IdentifyingFields() map[string]any
}

// VersionCapable is implemented by payment methods that restrict which
// protocol generations they can be authenticated with.
type VersionCapable interface {
	SupportedVersions() []Version
}

type ChallengeRequest struct {
	Version                    Version
	ServerTransactionID        string
	IssuerAcsURL               string
	PayerAuthenticationRequest string
	MessageType                string
	SessionDataFieldName       string
	MerchantData               string
	TermURL                    string
}

type ChallengeResult struct {
	AuthenticationResponse string
	MerchantData           string
}

type ChallengeClient interface {
	Authenticate(ctx context.Context, req ChallengeRequest) (ChallengeResult, error)
}

type IdempotencyStore interface {
	Remember(ctx context.Context, record IdempotencyRecord) (created bool, err error)
	Lookup(ctx context.Context, operation Operation, key string) (IdempotencyRecord, bool, error)
}

// AuthenticationRecorder receives a copy of every context produced by a
// successful operation.
type AuthenticationRecorder interface {
	Record(ctx context.Context, operation Operation, authentication AuthenticationContext) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
