package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const metricPrefix = "threeds."

var metricTagKeys = []string{"config_name", "version", "shape", "authentication_status"}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation Operation,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	name := normalizeOperation(string(operation))
	if name == "" {
		name = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["event_type"] = name
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
		if kind := ErrorKind(err); kind != "" {
			contextFields["error_kind"] = kind
		}
		if gatewayErr, ok := AsGatewayError(err); ok {
			contextFields["response_code"] = gatewayErr.ResponseCode
			contextFields["response_text"] = gatewayErr.ResponseText
			if gatewayErr.OriginalTransactionID != "" {
				contextFields["original_transaction_id"] = gatewayErr.OriginalTransactionID
			}
		}
	}

	tags := map[string]string{
		"operation": name,
		"status":    status,
	}
	for _, key := range metricTagKeys {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	if kind, ok := contextFields["error_kind"].(string); ok {
		tags["error_kind"] = kind
	}

	s.recordCounter(ctx, metricPrefix+name+".total", 1, tags)
	s.recordHistogram(ctx, metricPrefix+name+".duration_ms", float64(elapsed), tags)

	if err != nil {
		s.logError(ctx, name+" failed", contextFields)
		return
	}
	s.logInfo(ctx, name+" succeeded", contextFields)
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil || !s.config.EnableLogging {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// authenticationFields describes a context for logs without card data.
func authenticationFields(authentication AuthenticationContext) map[string]any {
	fields := map[string]any{}
	if authentication.ServerTransactionID != "" {
		fields["server_transaction_id"] = authentication.ServerTransactionID
	}
	if authentication.ProtocolVersion != "" {
		fields["version"] = string(authentication.ProtocolVersion)
	}
	if authentication.Status != "" {
		fields["authentication_status"] = string(authentication.Status)
	}
	if authentication.EnrolledStatus != "" {
		fields["enrolled_status"] = string(authentication.EnrolledStatus)
	}
	if authentication.Stage != "" {
		fields["stage"] = string(authentication.Stage)
	}
	return fields
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func mergeFields(into map[string]any, from map[string]any) {
	for key, value := range from {
		into[key] = value
	}
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
