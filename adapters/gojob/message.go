// Package gojob runs challenge polling on go-job queues. A poll message
// names one challenged transaction; the poller re-reads it from the gateway
// until the issuer settles it.
package gojob

import (
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"
)

const (
	JobIDChallengePoll      = "threeds.challenge.poll"
	ScriptPathChallengePoll = "threeds/challenge/poll"

	ParamServerTransactionID = "server_transaction_id"
	ParamConfigName          = "config_name"

	dedupDrop job.DeduplicationPolicy = "drop"
)

// PollRequest is the payload of a challenge poll message.
type PollRequest struct {
	ServerTransactionID string
	ConfigName          string
}

// NewChallengePollMessage builds the queue message for one challenged
// transaction. Repeated enqueues for the same transaction are dropped by
// queues that honour the idempotency key.
func NewChallengePollMessage(serverTransactionID string, configName string) *job.ExecutionMessage {
	request := PollRequest{
		ServerTransactionID: strings.TrimSpace(serverTransactionID),
		ConfigName:          strings.TrimSpace(configName),
	}
	params := map[string]any{ParamServerTransactionID: request.ServerTransactionID}
	if request.ConfigName != "" {
		params[ParamConfigName] = request.ConfigName
	}
	return &job.ExecutionMessage{
		JobID:          JobIDChallengePoll,
		ScriptPath:     ScriptPathChallengePoll,
		Parameters:     params,
		IdempotencyKey: pollIdempotencyKey(request.ServerTransactionID),
		DedupPolicy:    dedupDrop,
	}
}

// ParsePollMessage reads a poll request back out of a queue message.
func ParsePollMessage(msg *job.ExecutionMessage) (PollRequest, error) {
	if msg == nil {
		return PollRequest{}, fmt.Errorf("gojob: poll message is nil")
	}
	if msg.JobID != JobIDChallengePoll {
		return PollRequest{}, fmt.Errorf("gojob: unsupported job %q", msg.JobID)
	}
	request := PollRequest{
		ServerTransactionID: stringParam(msg.Parameters, ParamServerTransactionID),
		ConfigName:          stringParam(msg.Parameters, ParamConfigName),
	}
	if request.ServerTransactionID == "" {
		return PollRequest{}, fmt.Errorf("gojob: server transaction id is required")
	}
	return request, nil
}

func pollIdempotencyKey(serverTransactionID string) string {
	return JobIDChallengePoll + ":" + serverTransactionID
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
