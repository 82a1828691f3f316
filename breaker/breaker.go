// Package breaker guards calls to brittle external dependencies (brokers,
// data vendors, screeners) with a consecutive-failure circuit breaker.
//
// A Breaker starts Closed. Once FailureThreshold consecutive calls fail it
// opens and rejects every call with an *OpenError until RecoveryTimeout has
// passed since the last failure. The next call after that is a single trial
// made in the HalfOpen state: success closes the breaker, failure reopens it
// and restarts the recovery clock.
package breaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrOpen matches every *OpenError with errors.Is.
var ErrOpen = errors.New("circuit breaker is open")

// OpenError is returned when a call is short-circuited. The wrapped
// operation was not invoked.
type OpenError struct {
	Name      string
	Remaining time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is OPEN, next trial in %.1fs", e.Name, e.Remaining.Seconds())
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// Settings configures a Breaker. Zero values fall back to the defaults.
type Settings struct {
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)

	// OnReject is called for every call short-circuited by an open breaker.
	OnReject func(name string)

	// Now is the clock; time.Now when nil.
	Now func() time.Time

	Logger *zerolog.Logger
}

// Breaker is safe for concurrent use. Each instance owns its own lock.
type Breaker struct {
	name          string
	threshold     int
	timeout       time.Duration
	onStateChange func(name string, from, to State)
	onReject      func(name string)
	now           func() time.Time
	log           zerolog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	generation  uint64
	trialActive bool
}

func New(st Settings) *Breaker {
	b := &Breaker{
		name:          st.Name,
		threshold:     st.FailureThreshold,
		timeout:       st.RecoveryTimeout,
		onStateChange: st.OnStateChange,
		onReject:      st.OnReject,
		now:           st.Now,
		log:           zerolog.Nop(),
		state:         StateClosed,
	}
	if b.name == "" {
		b.name = "default"
	}
	if b.threshold <= 0 {
		b.threshold = DefaultFailureThreshold
	}
	if b.timeout <= 0 {
		b.timeout = DefaultRecoveryTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	if st.Logger != nil {
		b.log = st.Logger.With().Str("breaker", b.name).Logger()
	}

	b.log.Debug().
		Int("failure_threshold", b.threshold).
		Dur("recovery_timeout", b.timeout).
		Msg("circuit breaker initialized")
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs op through the breaker. op is invoked at most once. Errors from op
// are returned unchanged after the breaker's bookkeeping has been applied.
// A panic in op is recorded as a failure and then re-raised.
func (b *Breaker) Do(op func() error) error {
	gen, err := b.before()
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if done {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit
			b.after(gen, errors.New("operation did not return"))
			return
		}
		b.after(gen, fmt.Errorf("panic: %v", r))
		panic(r)
	}()

	opErr := op()
	done = true
	b.after(gen, opErr)
	return opErr
}

// Call runs op through b and returns its value.
func Call[T any](b *Breaker, op func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		var err error
		out, err = op()
		return err
	})
	return out, err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed < b.timeout {
			remaining := b.timeout - elapsed
			b.mu.Unlock()
			b.reject()
			return 0, &OpenError{Name: b.name, Remaining: remaining}
		}
		b.setState(StateHalfOpen)
		b.trialActive = true
		gen := b.generation
		b.mu.Unlock()
		b.log.Info().Dur("elapsed", elapsed).Msg("transitioning to HALF_OPEN")
		b.notify(StateOpen, StateHalfOpen)
		return gen, nil

	case StateHalfOpen:
		// one trial at a time
		if b.trialActive {
			b.mu.Unlock()
			b.reject()
			return 0, &OpenError{Name: b.name}
		}
		b.trialActive = true
	}

	gen := b.generation
	b.mu.Unlock()
	return gen, nil
}

func (b *Breaker) after(gen uint64, opErr error) {
	b.mu.Lock()

	if gen != b.generation {
		b.mu.Unlock()
		return
	}

	from := b.state
	if opErr == nil {
		b.failures = 0
		b.lastFailure = time.Time{}
		b.trialActive = false
		if from == StateHalfOpen {
			b.setState(StateClosed)
			b.mu.Unlock()
			b.log.Info().Msg("recovery successful, closing circuit")
			b.notify(from, StateClosed)
			return
		}
		b.mu.Unlock()
		return
	}

	b.failures++
	b.lastFailure = b.now()
	failures := b.failures

	switch {
	case from == StateHalfOpen:
		b.trialActive = false
		b.setState(StateOpen)
		b.mu.Unlock()
		b.log.Warn().Err(opErr).Int("failures", failures).Msg("recovery failed, reopening circuit")
		b.notify(from, StateOpen)

	case from == StateClosed && failures >= b.threshold:
		b.setState(StateOpen)
		b.mu.Unlock()
		b.log.Error().Err(opErr).
			Int("failures", failures).
			Dur("recovery_timeout", b.timeout).
			Msg("circuit opened")
		b.notify(from, StateOpen)

	default:
		b.mu.Unlock()
		b.log.Warn().Err(opErr).Int("failures", failures).Msg("call failed")
	}
}

// setState must be called with b.mu held. Every transition starts a new
// generation so results of calls admitted earlier are dropped.
func (b *Breaker) setState(to State) {
	b.state = to
	b.generation++
}

func (b *Breaker) notify(from, to State) {
	if b.onStateChange != nil && from != to {
		b.onStateChange(b.name, from, to)
	}
}

func (b *Breaker) reject() {
	if b.onReject != nil {
		b.onReject(b.name)
	}
}

// ForceOpen opens the breaker regardless of the failure count.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	from := b.state
	b.setState(StateOpen)
	b.lastFailure = b.now()
	b.trialActive = false
	b.mu.Unlock()

	b.log.Warn().Msg("circuit breaker force opened")
	b.notify(from, StateOpen)
}

// ForceClose closes the breaker and clears the failure history.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	from := b.state
	b.setState(StateClosed)
	b.failures = 0
	b.lastFailure = time.Time{}
	b.trialActive = false
	b.mu.Unlock()

	b.log.Info().Msg("circuit breaker force closed")
	b.notify(from, StateClosed)
}

// Status is a point-in-time copy of a breaker's state. In JSON the
// durations are seconds.
type Status struct {
	Name             string        `json:"name"`
	State            State         `json:"state"`
	FailureCount     int           `json:"failure_count"`
	FailureThreshold int           `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	LastFailureTime  *time.Time    `json:"last_failure_time,omitempty"`

	// RetryIn is set only while Open.
	RetryIn *time.Duration `json:"retry_in,omitempty"`
}

func (s Status) MarshalJSON() ([]byte, error) {
	type plain Status
	out := struct {
		plain
		RecoveryTimeout float64  `json:"recovery_timeout"`
		RetryIn         *float64 `json:"retry_in,omitempty"`
	}{
		plain:           plain(s),
		RecoveryTimeout: s.RecoveryTimeout.Seconds(),
	}
	if s.RetryIn != nil {
		secs := s.RetryIn.Seconds()
		out.RetryIn = &secs
	}
	return json.Marshal(out)
}

func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failures,
		FailureThreshold: b.threshold,
		RecoveryTimeout:  b.timeout,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		st.LastFailureTime = &t
	}
	if b.state == StateOpen {
		remaining := b.timeout - b.now().Sub(b.lastFailure)
		if remaining < 0 {
			remaining = 0
		}
		st.RetryIn = &remaining
	}
	return st
}
