package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/goliatone/go-threeds/core"
)

// Reply is one canned gateway answer.
type Reply struct {
	Response core.TransportResponse
	Err      error
}

// JSONReply builds a reply whose body is value encoded as JSON.
func JSONReply(status int, value any) Reply {
	body, err := json.Marshal(value)
	if err != nil {
		return Reply{Err: fmt.Errorf("sandbox: encode reply: %w", err)}
	}
	return Reply{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}}
}

// ScriptedAdapter answers requests from a fixed list of replies and keeps
// every request it saw. Once the script is exhausted the last reply repeats.
type ScriptedAdapter struct {
	mu       sync.Mutex
	kind     string
	replies  []Reply
	requests []core.TransportRequest
}

func NewScriptedAdapter(kind string, replies ...Reply) *ScriptedAdapter {
	return &ScriptedAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		replies: append([]Reply(nil), replies...),
	}
}

func (a *ScriptedAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *ScriptedAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("sandbox: scripted adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	index := len(a.requests) - 1
	if index < len(a.replies) {
		reply := a.replies[index]
		return cloneTransportResponse(reply.Response), reply.Err
	}
	if len(a.replies) > 0 {
		last := a.replies[len(a.replies)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *ScriptedAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
		Idempotency:          in.Idempotency,
	}
	maps.Copy(out.Headers, in.Headers)
	maps.Copy(out.Query, in.Query)
	maps.Copy(out.Metadata, in.Metadata)
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	maps.Copy(out.Headers, in.Headers)
	maps.Copy(out.Metadata, in.Metadata)
	return out
}

var _ core.TransportAdapter = (*ScriptedAdapter)(nil)
