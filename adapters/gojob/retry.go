package gojob

import (
	"math"
	"time"

	"github.com/goliatone/go-job/queue"
)

// RetryPolicy decides how a pending or failed poll goes back on the queue.
// Delay grows by Backoff per attempt and is capped at MaxDelay. Once
// MaxAttempts is reached the delivery is dropped, or dead-lettered when
// DeadLetterOnMax is set.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	Backoff         float64
	DeadLetterOnMax bool
}

// Requeue returns the nack for attempt, starting from base delay.
func (p RetryPolicy) Requeue(attempt int, base time.Duration, reason string) queue.NackOptions {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return queue.NackOptions{DeadLetter: p.DeadLetterOnMax, Reason: "attempts exhausted: " + reason}
	}
	return queue.NackOptions{Requeue: true, Delay: p.delay(attempt, base), Reason: reason}
}

// DeadLetter returns the nack for a poll that can never succeed.
func (RetryPolicy) DeadLetter(reason string) queue.NackOptions {
	return queue.NackOptions{DeadLetter: true, Reason: reason}
}

func (p RetryPolicy) delay(attempt int, base time.Duration) time.Duration {
	if base < 0 {
		base = 0
	}
	delay := base
	if p.Backoff > 1 && attempt > 1 {
		delay = time.Duration(float64(base) * math.Pow(p.Backoff, float64(attempt-1)))
	}
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay < 0) {
		delay = p.MaxDelay
	}
	return delay
}
