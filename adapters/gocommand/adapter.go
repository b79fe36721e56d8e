// Package gocommand serves the 3-D Secure commands and queries over the
// go-command dispatcher.
package gocommand

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	threedscommand "github.com/goliatone/go-threeds/command"
	threedsquery "github.com/goliatone/go-threeds/query"
)

type AuthenticationService interface {
	threedscommand.MutatingService
	threedsquery.AuthenticationReader
}

// Bindings are the collaborators behind the bus handlers. Idempotency is
// optional; without it the lookup query is not served.
type Bindings struct {
	Service     AuthenticationService
	Idempotency threedsquery.IdempotencyReader
}

// Bus registers handlers with a go-command registry and subscribes them on
// the process-wide dispatcher. Close releases every subscription it made.
type Bus struct {
	registry   *command.Registry
	runnerOpts []runner.Option

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
}

func NewBus(registry *command.Registry, runnerOpts ...runner.Option) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry, runnerOpts: runnerOpts}
}

func (b *Bus) Registry() *command.Registry {
	return b.registry
}

// Bind serves check enrollment, initiate, authentication data and liability
// shift, plus the idempotency lookup when a reader is bound. It is all or
// nothing: on failure the handlers bound by this call are released.
func (b *Bus) Bind(bindings Bindings) error {
	if b == nil {
		return fmt.Errorf("gocommand: bus is nil")
	}
	if bindings.Service == nil {
		return fmt.Errorf("gocommand: authentication service is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	mark := len(b.subscriptions)
	steps := []func() error{
		func() error { return subscribeCommand(b, threedscommand.NewCheckEnrollmentCommand(bindings.Service)) },
		func() error { return subscribeCommand(b, threedscommand.NewInitiateAuthenticationCommand(bindings.Service)) },
		func() error { return subscribeQuery(b, threedsquery.NewGetAuthenticationDataQuery(bindings.Service)) },
		func() error { return subscribeQuery(b, threedsquery.NewCheckLiabilityShiftQuery(bindings.Service)) },
	}
	if bindings.Idempotency != nil {
		steps = append(steps, func() error {
			return subscribeQuery(b, threedsquery.NewLookupIdempotencyQuery(bindings.Idempotency))
		})
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.releaseLocked(mark)
			return err
		}
	}
	return nil
}

// Handle registers and subscribes an extra command on the bus.
func Handle[T any](b *Bus, cmd command.Commander[T]) error {
	if b == nil {
		return fmt.Errorf("gocommand: bus is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return subscribeCommand(b, cmd)
}

// Subscriptions reports how many handlers the bus currently holds.
func (b *Bus) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions)
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked(0)
}

// MirrorToQueue makes registry initialization copy every registered command
// into a go-job queue registry, so commands can also run as queued jobs.
func (b *Bus) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("gocommand: resolver key is required")
	}
	if b.registry.HasResolver(key) {
		return fmt.Errorf("gocommand: resolver %q already registered", key)
	}
	return b.registry.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (b *Bus) Initialize() error {
	return b.registry.Initialize()
}

func (b *Bus) releaseLocked(from int) {
	for _, subscription := range b.subscriptions[from:] {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = b.subscriptions[:from]
}

func subscribeCommand[T any](b *Bus, cmd command.Commander[T]) error {
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	if err := b.registry.RegisterCommand(cmd); err != nil {
		return fmt.Errorf("gocommand: register command: %w", err)
	}
	b.subscriptions = append(b.subscriptions, commanddispatcher.SubscribeCommand(cmd, b.runnerOpts...))
	return nil
}

func subscribeQuery[T any, R any](b *Bus, qry command.Querier[T, R]) error {
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	if err := b.registry.RegisterCommand(qry); err != nil {
		return fmt.Errorf("gocommand: register query: %w", err)
	}
	b.subscriptions = append(b.subscriptions, commanddispatcher.SubscribeQuery(qry, b.runnerOpts...))
	return nil
}
