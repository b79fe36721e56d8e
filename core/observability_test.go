package core

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func newObservedService(t *testing.T, transport Transport, metrics MetricsRecorder, logger *captureLogger) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EnableLogging = true
	cfg.Gateways = map[string]GatewayConfig{DefaultConfigName: {ServiceURL: "https://gateway.test"}}
	svc, err := NewService(cfg,
		WithTransport(transport),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceObservability_CheckEnrollmentSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc := newObservedService(t, newScriptedTransport(reply(http.StatusOK, availableBody)), metrics, logger)

	if _, err := svc.CheckEnrollment(context.Background(), CheckEnrollmentRequest{PaymentMethod: testCard()}); err != nil {
		t.Fatalf("check enrollment: %v", err)
	}

	if !hasCounter(metrics.counters, "threeds.check_enrollment.total", "success") {
		t.Fatalf("expected threeds.check_enrollment.total success counter")
	}
	if !hasHistogram(metrics.histograms, "threeds.check_enrollment.duration_ms", "success") {
		t.Fatalf("expected threeds.check_enrollment.duration_ms histogram")
	}
	for _, counter := range metrics.counters {
		if counter.tags["shape"] != string(ShapeV2Browser) || counter.tags["authentication_status"] != string(StatusAvailable) {
			t.Fatalf("expected shape and status tags, got %v", counter.tags)
		}
	}
	records := logger.snapshot()
	if !hasLog(records, "info", "check_enrollment succeeded", "check_enrollment") {
		t.Fatalf("expected check_enrollment succeeded structured log")
	}
	for _, record := range records {
		for _, value := range record.fields {
			if value == testCard().Number {
				t.Fatalf("card number leaked into logs: %v", record.fields)
			}
		}
	}
}

func TestServiceObservability_FailureCarriesTriplet(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc := newObservedService(t, newScriptedTransport(reply(http.StatusNotFound,
		`{"error_code":"RESOURCE_NOT_FOUND","detailed_error_code":"40118","detailed_error_description":"Authentication tx_9 not found at this location."}`,
	)), metrics, logger)

	if _, err := svc.CheckLiabilityShift(context.Background(), "tx_9"); !IsKind(err, ErrorResourceNotFound) {
		t.Fatalf("expected resource not found, got %v", err)
	}
	if !hasCounter(metrics.counters, "threeds.check_liability_shift.total", "failure") {
		t.Fatalf("expected liability shift failure counter")
	}
	if metrics.counters[0].tags["error_kind"] != ErrorResourceNotFound {
		t.Fatalf("expected error kind tag, got %v", metrics.counters[0].tags)
	}
	records := logger.snapshot()
	if !hasLog(records, "error", "check_liability_shift failed", "check_liability_shift") {
		t.Fatalf("expected failure log")
	}
	last := records[len(records)-1]
	if last.fields["response_code"] != ResponseCodeResourceNotFound || last.fields["response_text"] != "40118" {
		t.Fatalf("expected gateway triplet in log fields, got %v", last.fields)
	}
}

func TestServiceObservability_LoggingDisabledStillRecordsMetrics(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	svc := newObservedService(t, newScriptedTransport(reply(http.StatusOK, availableBody)), metrics, logger)
	svc.config.EnableLogging = false

	svc.observeOperation(context.Background(), time.Now().UTC().Add(-10*time.Millisecond), OperationCheckEnrollment, nil, nil)
	if len(logger.snapshot()) != 0 {
		t.Fatalf("expected no logs when logging is disabled")
	}
	if !hasCounter(metrics.counters, "threeds.check_enrollment.total", "success") {
		t.Fatalf("expected counter regardless of logging")
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
