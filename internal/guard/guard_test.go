package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponseError struct {
	status int
	body   string
}

func (e *fakeResponseError) Error() string   { return fmt.Sprintf("status %d: %s", e.status, e.body) }
func (e *fakeResponseError) StatusCode() int { return e.status }
func (e *fakeResponseError) Body() string    { return e.body }

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestGuard(clock *fakeClock) *Guard {
	return New(Options{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		DefaultBan:  5 * time.Minute,
		Now:         clock.Now,
		Sleep:       clock.Sleep,
	}, zerolog.Nop())
}

func TestGuardRetriesWithExponentialBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	calls := 0
	err := g.Do(context.Background(), "ticker", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
	assert.False(t, g.State().Banned)
}

func TestGuardRecoversAfterTransientFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	calls := 0
	got, err := Call(context.Background(), g, "open_interest", func(ctx context.Context) (float64, error) {
		calls++
		if calls == 1 {
			return 0, &fakeResponseError{status: http.StatusBadGateway, body: "bad gateway"}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
	assert.Equal(t, 2, calls)
}

func TestGuardTooManyRequestsSetsBanAndShortCircuits(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return &fakeResponseError{status: http.StatusTooManyRequests, body: `{"code":-1003,"msg":"Too many requests."}`}
	}

	err := g.Do(context.Background(), "ticker", fn)
	var ban *BanError
	require.ErrorAs(t, err, &ban)
	assert.False(t, ban.Cached)
	assert.Equal(t, 1, calls, "bans must never be retried")
	assert.Empty(t, clock.sleeps)

	state := g.State()
	assert.True(t, state.Banned)
	assert.Equal(t, clock.now.Add(5*time.Minute), state.Until)

	clock.now = clock.now.Add(time.Minute)
	err = g.Do(context.Background(), "ticker", fn)
	require.ErrorAs(t, err, &ban)
	assert.True(t, ban.Cached)
	assert.Equal(t, 1, calls, "no request while the ban is active")
}

func TestGuardParsesBannedUntilFromBody(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	body := `{"code":-1003,"msg":"Way too many requests; IP(1.2.3.4) banned until 1700000900000. Please use the websocket for live updates to avoid bans."}`
	err := g.Do(context.Background(), "exchange_info", func(ctx context.Context) error {
		return &fakeResponseError{status: http.StatusTeapot, body: body}
	})

	require.True(t, IsBan(err))
	assert.Equal(t, time.UnixMilli(1_700_000_900_000).UTC(), g.State().Until)
}

func TestGuardDetectsBanFromBodyWithoutStatus(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	err := g.Do(context.Background(), "ticker", func(ctx context.Context) error {
		return &fakeResponseError{status: http.StatusBadRequest, body: `{"code":-1003,"msg":"IP banned until 1700000600"}`}
	})

	require.True(t, IsBan(err))
	assert.Equal(t, time.Unix(1_700_000_600, 0).UTC(), g.State().Until)
}

func TestGuardClearsBanAfterSuccessfulCall(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	_ = g.Do(context.Background(), "ticker", func(ctx context.Context) error {
		return &fakeResponseError{status: http.StatusTooManyRequests}
	})
	require.True(t, g.State().Banned)

	clock.now = g.State().Until.Add(time.Second)
	require.NoError(t, g.Do(context.Background(), "ticker", func(ctx context.Context) error { return nil }))
	assert.Equal(t, State{}, g.State())
}

func TestGuardInvalidInstrumentIsNotRetried(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	calls := 0
	err := g.Do(context.Background(), "open_interest", func(ctx context.Context) error {
		calls++
		return &fakeResponseError{
			status: http.StatusBadRequest,
			body:   `{"code":-4108,"msg":"Symbol is on delivering or delivered or settle or closed or pre-trading."}`,
		}
	})

	assert.True(t, IsInvalidInstrument(err))
	assert.False(t, IsBan(err))
	assert.Equal(t, 1, calls)
	assert.False(t, g.State().Banned)
}

func TestGuardStopsOnContextCancel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	g := newTestGuard(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Do(ctx, "ticker", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBannedUntil(t *testing.T) {
	_, ok := parseBannedUntil("Too many requests")
	assert.False(t, ok)

	until, ok := parseBannedUntil("IP banned until 1700000000000.")
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), until.UnixMilli())
}
