package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type scriptedReply struct {
	status int
	body   string
	err    error
}

func reply(status int, body string) scriptedReply {
	return scriptedReply{status: status, body: body}
}

// scriptedTransport answers Send calls in order and repeats the last reply.
type scriptedTransport struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []GatewayRequest
}

func newScriptedTransport(replies ...scriptedReply) *scriptedTransport {
	return &scriptedTransport{replies: replies}
}

func (t *scriptedTransport) Send(_ context.Context, req GatewayRequest) (RawResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if len(t.replies) == 0 {
		return RawResponse{}, fmt.Errorf("scripted transport: no replies")
	}
	index := min(len(t.requests)-1, len(t.replies)-1)
	next := t.replies[index]
	if next.err != nil {
		return RawResponse{}, next.err
	}
	return RawResponse{StatusCode: next.status, Body: []byte(next.body)}, nil
}

func (t *scriptedTransport) calls() []GatewayRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]GatewayRequest(nil), t.requests...)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []AuthenticationContext
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, _ Operation, authentication AuthenticationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, authentication)
	return nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

var fixedTestTime = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func testCard() Card {
	return Card{Number: "4263970000005262", ExpMonth: "12", ExpYear: "2025", CardHolderName: "James Mason"}
}

func newTestService(t *testing.T, transport Transport, opts ...Option) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Gateways = map[string]GatewayConfig{
		DefaultConfigName: {
			ServiceURL:               "https://gateway.test",
			ChallengeNotificationURL: "https://merchant.test/challenge",
			MethodNotificationURL:    "https://merchant.test/method",
		},
	}
	base := []Option{
		WithTransport(transport),
		WithClock(func() time.Time { return fixedTestTime }),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

const (
	availableBody = `{"id":"tx_1","status":"AVAILABLE","amount":10.01,"currency":"USD",` +
		`"three_ds":{"message_version":"2.2.0","enrolled_status":"ENROLLED","method_url":"https://acs.test/method",` +
		`"method_data":{"encoded_method_data":"bWV0aG9k"}},` +
		`"notifications":{"challenge_return_url":"https://merchant.test/challenge"}}`
	successBody = `{"id":"tx_1","status":"SUCCESS_AUTHENTICATED",` +
		`"three_ds":{"message_version":"2.2.0","enrolled_status":"ENROLLED","eci":"05","liability_shift":"YES",` +
		`"authentication_value":"Y2F2dg=="}}`
	challengeBody = `{"id":"tx_1","status":"CHALLENGE_REQUIRED",` +
		`"three_ds":{"message_version":"2.2.0","enrolled_status":"ENROLLED","challenge_mandated":true,` +
		`"acs_challenge_request_url":"https://acs.test/challenge","challenge_value":"Y3JlcQ",` +
		`"message_type":"CReq","session_data_field_name":"threeDSSessionData"},` +
		`"notifications":{"challenge_return_url":"https://merchant.test/challenge"}}`
	failedBody = `{"id":"tx_1","status":"FAILED","three_ds":{"message_version":"2.2.0","enrolled_status":"ENROLLED"}}`
)
