// Package circuitbreaker guards calls to one downstream target.
// A single Breaker is shared by every caller of that target.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrOpen = errors.New("circuit breaker open")

type Settings struct {
	Name             string
	FailureThreshold uint32
	CoolDown         time.Duration
	// OnStateChange is called with the previous and the new state name.
	OnStateChange func(name, from, to string)
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func New(s Settings) *Breaker {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// caller cancellation is neither a success nor a failure of the target
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	}
	if s.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			s.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Breaker{name: s.Name, cb: gobreaker.NewCircuitBreaker[struct{}](st)}
}

// Execute runs fn unless the circuit is open. A positive timeout bounds fn;
// exceeding it counts as a failure.
func (b *Breaker) Execute(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	return err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}
