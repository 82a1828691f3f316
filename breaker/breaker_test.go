package breaker

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 8, 26, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

type counter struct {
	calls int
	err   error
}

func (c *counter) op() error {
	c.calls++
	return c.err
}

func newTestBreaker(clk *fakeClock, threshold int, timeout time.Duration) *Breaker {
	return New(Settings{
		Name:             "AlpacaAPI",
		FailureThreshold: threshold,
		RecoveryTimeout:  timeout,
		Now:              clk.Now,
	})
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	b := New(Settings{})
	st := b.Status()
	assert.Equal(t, "default", st.Name)
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, DefaultFailureThreshold, st.FailureThreshold)
	assert.Equal(t, DefaultRecoveryTimeout, st.RecoveryTimeout)
	assert.Nil(t, st.LastFailureTime)
	assert.Nil(t, st.RetryIn)
}

func TestOpensExactlyAtThreshold(t *testing.T) {
	t.Parallel()

	for threshold := 1; threshold <= 6; threshold++ {
		clk := newClock()
		b := newTestBreaker(clk, threshold, time.Minute)
		c := &counter{err: errBoom}

		for i := 1; i < threshold; i++ {
			err := b.Do(c.op)
			require.ErrorIs(t, err, errBoom)
			assert.Equal(t, StateClosed, b.State(), "threshold %d, failure %d", threshold, i)
			assert.Equal(t, i, b.Status().FailureCount)
		}

		err := b.Do(c.op)
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, StateOpen, b.State(), "threshold %d", threshold)
		assert.Equal(t, threshold, c.calls)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 3, time.Minute)
	fail := &counter{err: errBoom}
	ok := &counter{}

	_ = b.Do(fail.op)
	_ = b.Do(fail.op)
	require.NoError(t, b.Do(ok.op))

	st := b.Status()
	assert.Equal(t, 0, st.FailureCount)
	assert.Nil(t, st.LastFailureTime)

	_ = b.Do(fail.op)
	_ = b.Do(fail.op)
	assert.Equal(t, StateClosed, b.State())
}

func TestShortCircuitWhileOpen(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 2, 60*time.Second)
	c := &counter{err: errBoom}

	_ = b.Do(c.op)
	_ = b.Do(c.op)
	require.Equal(t, StateOpen, b.State())
	require.Equal(t, 2, c.calls)

	for i := 0; i < 5; i++ {
		clk.Advance(10 * time.Second)
		err := b.Do(c.op)

		var oe *OpenError
		require.ErrorAs(t, err, &oe)
		assert.ErrorIs(t, err, ErrOpen)
		assert.Equal(t, "AlpacaAPI", oe.Name)
		assert.Equal(t, time.Duration(60-10*(i+1))*time.Second, oe.Remaining)
		assert.GreaterOrEqual(t, oe.Remaining, time.Duration(0))
	}
	assert.Equal(t, 2, c.calls, "operation must not run while open")
}

func TestHalfOpenTrialSuccessCloses(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 1, 30*time.Second)

	require.ErrorIs(t, b.Do(func() error { return errBoom }), errBoom)
	require.Equal(t, StateOpen, b.State())

	clk.Advance(30 * time.Second)

	var seen State
	c := 0
	err := b.Do(func() error {
		c++
		seen = b.State()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c)
	assert.Equal(t, StateHalfOpen, seen)

	st := b.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.Nil(t, st.LastFailureTime)
}

func TestHalfOpenTrialFailureRestartsClock(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 3, 30*time.Second)
	c := &counter{err: errBoom}

	for i := 0; i < 3; i++ {
		_ = b.Do(c.op)
	}
	require.Equal(t, StateOpen, b.State())

	clk.Advance(45 * time.Second)
	trialAt := clk.Now()
	require.ErrorIs(t, b.Do(c.op), errBoom)
	assert.Equal(t, 4, c.calls)

	st := b.Status()
	assert.Equal(t, StateOpen, st.State)
	require.NotNil(t, st.LastFailureTime)
	assert.Equal(t, trialAt, *st.LastFailureTime)
	require.NotNil(t, st.RetryIn)
	assert.Equal(t, 30*time.Second, *st.RetryIn)

	// measured from the trial failure, not the first one
	clk.Advance(20 * time.Second)
	var oe *OpenError
	require.ErrorAs(t, b.Do(c.op), &oe)
	assert.Equal(t, 10*time.Second, oe.Remaining)
	assert.Equal(t, 4, c.calls)

	clk.Advance(10 * time.Second)
	c.err = nil
	require.NoError(t, b.Do(c.op))
	assert.Equal(t, StateClosed, b.State())
}

func TestSingleTrialInHalfOpen(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 1, time.Second)
	_ = b.Do(func() error { return errBoom })
	clk.Advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	calls := 0
	err := b.Do(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 0, calls)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestPanickingTrialReopens(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 5, 30*time.Second)
	b.ForceOpen()
	clk.Advance(31 * time.Second)

	assert.PanicsWithValue(t, "feed exploded", func() {
		_ = b.Do(func() error { panic("feed exploded") })
	})

	st := b.Status()
	assert.Equal(t, StateOpen, st.State)
	require.NotNil(t, st.LastFailureTime)
	assert.Equal(t, clk.Now(), *st.LastFailureTime)

	// the recovery clock restarts and the next trial is allowed through
	clk.Advance(time.Hour)
	c := &counter{}
	require.NoError(t, b.Do(c.op))
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, StateClosed, b.State())
}

func TestPanicCountsAsFailureWhileClosed(t *testing.T) {
	t.Parallel()

	b := newTestBreaker(newClock(), 2, time.Minute)
	for i := 0; i < 2; i++ {
		assert.Panics(t, func() {
			_ = b.Do(func() error { panic(errBoom) })
		})
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 2, b.Status().FailureCount)
}

func TestForceOpenAndClose(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 5, time.Minute)

	b.ForceOpen()
	st := b.Status()
	assert.Equal(t, StateOpen, st.State)
	require.NotNil(t, st.LastFailureTime)
	assert.Equal(t, clk.Now(), *st.LastFailureTime)
	assert.Equal(t, 0, st.FailureCount)

	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)

	b.ForceClose()
	st = b.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.Nil(t, st.LastFailureTime)
	assert.Nil(t, st.RetryIn)
	assert.NoError(t, b.Do(func() error { return nil }))
}

func TestStatusRetryInNeverNegative(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 1, 10*time.Second)
	_ = b.Do(func() error { return errBoom })

	clk.Advance(25 * time.Second)
	st := b.Status()
	require.NotNil(t, st.RetryIn)
	assert.Equal(t, time.Duration(0), *st.RetryIn)
}

func TestStateChangeHook(t *testing.T) {
	t.Parallel()

	clk := newClock()
	type transition struct{ from, to State }
	var got []transition

	b := New(Settings{
		Name:             "fmp",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Now:              clk.Now,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "fmp", name)
			got = append(got, transition{from, to})
		},
	})

	_ = b.Do(func() error { return errBoom })
	clk.Advance(time.Second)
	_ = b.Do(func() error { return nil })
	b.ForceOpen()
	b.ForceClose()

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
		{StateClosed, StateOpen},
		{StateOpen, StateClosed},
	}, got)
}

func TestCallReturnsValue(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 1, time.Minute)

	v, err := Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Call(b, func() (int, error) { return 0, errBoom })
	assert.ErrorIs(t, err, errBoom)

	v, err = Call(b, func() (int, error) { return 7, nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, v)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestRejectHook(t *testing.T) {
	clk := newClock()
	var rejected []string
	b := New(Settings{
		Name:             "fmp",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		Now:              clk.Now,
		OnReject:         func(name string) { rejected = append(rejected, name) },
	})

	assert.ErrorIs(t, b.Do(func() error { return errBoom }), errBoom)
	assert.Empty(t, rejected)

	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)
	assert.Equal(t, []string{"fmp", "fmp"}, rejected)
}

func TestStatusJSONInSeconds(t *testing.T) {
	t.Parallel()

	clk := newClock()
	b := newTestBreaker(clk, 1, 90*time.Second)
	_ = b.Do(func() error { return errBoom })
	clk.Advance(30 * time.Second)

	raw, err := json.Marshal(b.Status())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "AlpacaAPI", got["name"])
	assert.Equal(t, "OPEN", got["state"])
	assert.Equal(t, 90.0, got["recovery_timeout"])
	assert.Equal(t, 60.0, got["retry_in"])

	b.ForceClose()
	raw, err = json.Marshal(b.Status())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "retry_in")
	assert.Contains(t, string(raw), `"recovery_timeout":90`)
}
