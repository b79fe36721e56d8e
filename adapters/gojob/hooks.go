package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-threeds/core"
)

const pollMetricPrefix = "threeds.challenge_poll."

// MetricsHook reports go-job worker events for poll jobs to a core metrics
// recorder. Events for other jobs are ignored.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.record(ctx, "started", event)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, "succeeded", event)
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, "failed", event)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, "retried", event)
}

func (h *MetricsHook) record(ctx context.Context, outcome string, event worker.Event) {
	if h == nil || h.recorder == nil {
		return
	}
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	request, err := ParsePollMessage(msg)
	if err != nil {
		return
	}
	tags := map[string]string{"outcome": outcome}
	if request.ConfigName != "" {
		tags["config_name"] = request.ConfigName
	}
	if event.Err != nil {
		if kind := core.ErrorKind(event.Err); kind != "" {
			tags["error_kind"] = kind
		}
	}
	h.recorder.IncCounter(ctx, pollMetricPrefix+outcome, 1, tags)
	if event.Duration > 0 {
		h.recorder.ObserveHistogram(ctx, pollMetricPrefix+"duration_ms", float64(event.Duration.Milliseconds()), tags)
	}
	if outcome == "retried" && event.Attempt > 0 {
		h.recorder.ObserveHistogram(ctx, pollMetricPrefix+"attempt", float64(event.Attempt), tags)
	}
}

var _ worker.Hook = (*MetricsHook)(nil)
