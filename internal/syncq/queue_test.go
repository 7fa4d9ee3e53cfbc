package syncq

import (
	"errors"
	"net/http"
	"testing"

	"starpets/internal/cli"

	"github.com/stretchr/testify/require"
)

func TestPushAndLoad(t *testing.T) {
	t.Setenv("STARPETS_HOME", t.TempDir())

	q, err := Load()
	require.NoError(t, err)
	require.Empty(t, q)

	require.NoError(t, Push(Command{Method: http.MethodPost, Path: "/v1/energy/purchase", Body: map[string]any{"quantity": 10}, IdempotencyKey: "k1"}))
	require.NoError(t, Push(Command{Method: http.MethodPost, Path: "/v1/production/claim", IdempotencyKey: "k2"}))

	q, err = Load()
	require.NoError(t, err)
	require.Len(t, q, 2)
	require.Equal(t, "k1", q[0].IdempotencyKey)
}

func TestReplayKeepsOnlyNetworkFailures(t *testing.T) {
	commands := []Command{
		{Path: "/ok", IdempotencyKey: "a"},
		{Path: "/offline", IdempotencyKey: "b"},
		{Path: "/rejected", IdempotencyKey: "c"},
	}
	delivered, remaining, rejected := Replay(commands, func(c Command) error {
		switch c.Path {
		case "/offline":
			return errors.New("dial tcp: connection refused")
		case "/rejected":
			return &cli.APIError{Status: http.StatusConflict, Message: "duplicate idempotency key"}
		}
		return nil
	})
	require.Equal(t, 1, delivered)
	require.Len(t, remaining, 1)
	require.Equal(t, "b", remaining[0].IdempotencyKey)
	require.Len(t, rejected, 1)
}
