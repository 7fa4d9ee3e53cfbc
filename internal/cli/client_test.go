package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"starpets/internal/api"
	"starpets/internal/config"
	"starpets/internal/game"
	"starpets/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	svc := game.NewService(memory.New(), nil)
	srv := api.New(config.APIConfig{RateLimit: 100, RateBurst: 100}, nil, svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientStarterFlow(t *testing.T) {
	ts := newTestAPI(t)
	ctx := context.Background()
	c := NewClient(ts.URL+"/", "player-1")

	creature, err := c.ClaimNewbie(ctx)
	require.NoError(t, err)
	require.Equal(t, game.RarityCommon, creature.Rarity)

	wallet, err := c.Wallet(ctx)
	require.NoError(t, err)
	require.True(t, wallet.ShellBalance.Equal(decimal.NewFromInt(game.NewbieShellGrant)))

	view, err := c.StartProduction(ctx)
	require.NoError(t, err)
	require.Equal(t, creature.ID, view.CreatureID)

	status, err := c.ProductionStatus(ctx)
	require.NoError(t, err)
	require.True(t, status.Active)

	preview, err := c.OfflinePreview(ctx, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.True(t, preview.Gem.IsPositive())
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ts := newTestAPI(t)
	c := NewClient(ts.URL, "player-2")

	_, err := c.ClaimProduction(context.Background())
	require.Error(t, err)
	require.True(t, IsAPIError(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Contains(t, apiErr.Message, "no active production session")
}

func TestClientRejectedWrites(t *testing.T) {
	ts := newTestAPI(t)
	ctx := context.Background()
	c := NewClient(ts.URL, "player-3")

	_, err := c.ClaimNewbie(ctx)
	require.NoError(t, err)

	_, err = c.BuyEnergy(ctx, 10, "buy-1")
	require.Error(t, err, "starter energy is full")

	err = c.Do(ctx, http.MethodPost, "/v1/mine/enter", map[string]any{"spot_level": 9}, "")
	require.Error(t, err)
	require.True(t, IsAPIError(err))
}

func TestProfileRoundTrip(t *testing.T) {
	t.Setenv("STARPETS_HOME", t.TempDir())

	_, err := LoadProfile()
	require.Error(t, err)

	require.NoError(t, SaveProfile(Profile{UserID: "player-1", APIURL: "http://localhost:8080"}))
	p, err := LoadProfile()
	require.NoError(t, err)
	require.Equal(t, "player-1", p.UserID)

	require.NoError(t, ClearProfile())
	_, err = LoadProfile()
	require.Error(t, err)
}
