package gojob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-threeds/core"
)

const DefaultPollInterval = 5 * time.Second

// AuthenticationFetcher reads the current gateway view of a transaction.
type AuthenticationFetcher interface {
	GetAuthenticationData(ctx context.Context, req core.GetAuthenticationDataRequest) (core.AuthenticationContext, error)
}

type ChallengePollerConfig struct {
	Interval time.Duration
	Retry    RetryPolicy
	Logger   core.Logger
	// OnSettled receives the context once the transaction reaches a
	// terminal status.
	OnSettled func(ctx context.Context, authentication core.AuthenticationContext)
}

// ChallengePoller drains challenge poll deliveries. A pending transaction is
// requeued per the retry policy; a terminal one is acked and handed to
// OnSettled.
type ChallengePoller struct {
	fetcher   AuthenticationFetcher
	interval  time.Duration
	retry     RetryPolicy
	logger    core.Logger
	onSettled func(ctx context.Context, authentication core.AuthenticationContext)

	mu       sync.Mutex
	attempts map[string]int
}

func NewChallengePoller(fetcher AuthenticationFetcher, cfg ChallengePollerConfig) *ChallengePoller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ChallengePoller{
		fetcher:   fetcher,
		interval:  interval,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
		onSettled: cfg.OnSettled,
		attempts:  map[string]int{},
	}
}

// EnqueueChallengePoll schedules a poll for a transaction waiting on its
// challenge. It reports false without enqueuing when there is nothing to
// wait for.
func EnqueueChallengePoll(ctx context.Context, enqueuer queue.Enqueuer, authentication core.AuthenticationContext, configName string) (bool, error) {
	if enqueuer == nil {
		return false, core.NewDependencyError("gojob: enqueuer is required")
	}
	if authentication.ServerTransactionID == "" || authentication.Status != core.StatusChallengeRequired {
		return false, nil
	}
	if err := enqueuer.Enqueue(ctx, NewChallengePollMessage(authentication.ServerTransactionID, configName)); err != nil {
		return false, err
	}
	return true, nil
}

// PollOnce dequeues and handles a single delivery.
func (p *ChallengePoller) PollOnce(ctx context.Context, dequeuer queue.Dequeuer) error {
	if dequeuer == nil {
		return core.NewDependencyError("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	return p.Handle(ctx, delivery)
}

// Handle processes one delivery. The returned error reports queue failures
// only; gateway failures are expressed as nacks.
func (p *ChallengePoller) Handle(ctx context.Context, delivery queue.Delivery) error {
	if p == nil || p.fetcher == nil {
		return core.NewDependencyError("gojob: authentication fetcher is not configured")
	}
	if delivery == nil {
		return core.NewDependencyError("gojob: delivery is required")
	}
	request, err := ParsePollMessage(delivery.Message())
	if err != nil {
		return delivery.Nack(ctx, p.retry.DeadLetter(err.Error()))
	}

	attempt := p.nextAttempt(request.ServerTransactionID)
	authentication, err := p.fetcher.GetAuthenticationData(ctx, core.GetAuthenticationDataRequest{
		ServerTransactionID: request.ServerTransactionID,
		ConfigName:          request.ConfigName,
	})
	switch {
	case err != nil && permanentPollFailure(err):
		p.forget(request.ServerTransactionID)
		p.log("challenge poll abandoned", request, attempt, err)
		return delivery.Nack(ctx, p.retry.DeadLetter(core.ErrorKind(err)))
	case err != nil:
		p.log("challenge poll failed", request, attempt, err)
		return p.requeue(ctx, delivery, request, attempt, "retry: "+err.Error())
	case !authentication.Terminal():
		return p.requeue(ctx, delivery, request, attempt, fmt.Sprintf("status %s", authentication.Status))
	}

	if err := delivery.Ack(ctx); err != nil {
		return err
	}
	p.forget(request.ServerTransactionID)
	if p.onSettled != nil {
		p.onSettled(ctx, authentication)
	}
	return nil
}

// Attempts reports how many polls have run for a transaction still pending.
func (p *ChallengePoller) Attempts(serverTransactionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[serverTransactionID]
}

func (p *ChallengePoller) requeue(ctx context.Context, delivery queue.Delivery, request PollRequest, attempt int, reason string) error {
	opts := p.retry.Requeue(attempt, p.interval, reason)
	if !opts.Requeue {
		p.forget(request.ServerTransactionID)
	}
	return delivery.Nack(ctx, opts)
}

func (p *ChallengePoller) nextAttempt(serverTransactionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[serverTransactionID]++
	return p.attempts[serverTransactionID]
}

func (p *ChallengePoller) forget(serverTransactionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, serverTransactionID)
}

func (p *ChallengePoller) log(message string, request PollRequest, attempt int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(message,
		"job_id", JobIDChallengePoll,
		"server_transaction_id", request.ServerTransactionID,
		"config_name", request.ConfigName,
		"attempt", attempt,
		"error_kind", core.ErrorKind(err),
		"error", err.Error(),
	)
}

func permanentPollFailure(err error) bool {
	switch core.ErrorKind(err) {
	case core.ErrorResourceNotFound, core.ErrorBadInput, core.ErrorMandatoryDataMissing,
		core.ErrorInvalidState, core.ErrorUnsupportedVersion, core.ErrorDownstreamProtocol:
		return true
	default:
		return false
	}
}
