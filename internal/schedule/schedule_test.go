package schedule

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLocalGateOncePerPeriod(t *testing.T) {
	g := NewLocalGate()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	ok, err := g.Acquire(ctx, "regen", time.Hour, base)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = g.Acquire(ctx, "regen", time.Hour, base.Add(50*time.Minute))
	require.False(t, ok, "same hour must not run twice")

	ok, _ = g.Acquire(ctx, "sweep", time.Hour, base)
	require.True(t, ok, "jobs are gated independently")

	ok, _ = g.Acquire(ctx, "regen", time.Hour, base.Add(56*time.Minute))
	require.True(t, ok)
}

type fakeGate struct {
	allow bool
	err   error
}

func (f fakeGate) Acquire(context.Context, string, time.Duration, time.Time) (bool, error) {
	return f.allow, f.err
}

func TestRunnerRunOnceRespectsGate(t *testing.T) {
	for _, tc := range []struct {
		name string
		gate Gate
		want int
	}{
		{"allowed", fakeGate{allow: true}, 1},
		{"claimed elsewhere", fakeGate{allow: false}, 0},
		{"gate error", fakeGate{err: errors.New("redis down")}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			r := NewRunner(tc.gate, nil, Job{Name: "job", Every: time.Minute, Run: func(context.Context) error {
				calls++
				return nil
			}})
			r.RunOnce(context.Background())
			require.Equal(t, tc.want, calls)
		})
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 1)
	r := NewRunner(NewLocalGate(), nil, Job{Name: "job", Every: time.Hour, Run: func(context.Context) error {
		ran <- struct{}{}
		return nil
	}})
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	<-ran
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

// Runs only if REDIS_ADDR is set.
func TestRedisGateIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	ctx := context.Background()
	client, err := DialRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), db)
	require.NoError(t, err)
	defer client.Close()

	g := NewRedisGate(client, "starpets:test:"+uuid.NewString())
	now := time.Now()
	ok, err := g.Acquire(ctx, "regen", time.Hour, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Acquire(ctx, "regen", time.Hour, now)
	require.NoError(t, err)
	require.False(t, ok)
}
