package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"starpets/internal/game"
)

// APIError is a non-2xx response from the game API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsAPIError reports whether err came back from the server rather than the network.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

type Client struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

func NewClient(baseURL, userID string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  strings.TrimSpace(userID),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Wallet(ctx context.Context) (game.Wallet, error) {
	var out game.Wallet
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/wallet", nil, &out, "")
	return out, err
}

func (c *Client) Transactions(ctx context.Context, limit int) ([]game.Transaction, error) {
	var out struct {
		Transactions []game.Transaction `json:"transactions"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/wallet/transactions?limit="+strconv.Itoa(limit), nil, &out, "")
	return out.Transactions, err
}

func (c *Client) Creatures(ctx context.Context) ([]game.CreatureView, error) {
	var out struct {
		Creatures []game.CreatureView `json:"creatures"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/creatures", nil, &out, "")
	return out.Creatures, err
}

func (c *Client) ClaimNewbie(ctx context.Context) (game.Creature, error) {
	var out game.Creature
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/creatures/newbie", nil, &out, "")
	return out, err
}

func (c *Client) StartProduction(ctx context.Context) (game.SessionView, error) {
	var out game.SessionView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/production/start", nil, &out, "")
	return out, err
}

func (c *Client) ClaimProduction(ctx context.Context) (game.Rewards, error) {
	var out game.Rewards
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/production/claim", nil, &out, "")
	return out, err
}

func (c *Client) ProductionStatus(ctx context.Context) (game.ProductionStatus, error) {
	var out game.ProductionStatus
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/production/status", nil, &out, "")
	return out, err
}

func (c *Client) OfflinePreview(ctx context.Context, since time.Time) (game.Rewards, error) {
	var out game.Rewards
	path := "/v1/production/offline?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, "")
	return out, err
}

func (c *Client) BuyEnergy(ctx context.Context, quantity int, idem string) (game.EnergyPurchaseResult, error) {
	var out game.EnergyPurchaseResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/energy/purchase", EnergyPurchaseBody(quantity), &out, idem)
	return out, err
}

func (c *Client) Fuse(ctx context.Context, target game.Rarity, materialIDs []string, protect bool, idem string) (game.FusionResult, error) {
	var out game.FusionResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/fusion", FusionBody(target, materialIDs, protect), &out, idem)
	return out, err
}

func (c *Client) EnterMine(ctx context.Context, spotLevel int) (game.ChallengeView, error) {
	var out game.ChallengeView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/mine/enter", map[string]any{"spot_level": spotLevel}, &out, "")
	return out, err
}

func (c *Client) ClaimMine(ctx context.Context, challengeID string) (game.Rewards, error) {
	var out game.Rewards
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/mine/"+url.PathEscape(challengeID)+"/claim", nil, &out, "")
	return out, err
}

func (c *Client) MineStatus(ctx context.Context) (game.ChallengeStatus, error) {
	var out game.ChallengeStatus
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/mine/status", nil, &out, "")
	return out, err
}

func (c *Client) Achievements(ctx context.Context) ([]game.AchievementView, error) {
	var out struct {
		Achievements []game.AchievementView `json:"achievements"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/achievements", nil, &out, "")
	return out.Achievements, err
}

func (c *Client) ClaimAchievement(ctx context.Context, id string) (game.AchievementView, error) {
	var out game.AchievementView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/achievements/"+url.PathEscape(id)+"/claim", nil, &out, "")
	return out, err
}

// Do sends an arbitrary request; used to replay queued writes.
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, idem string) error {
	return c.jsonRequest(ctx, method, path, body, nil, idem)
}

func EnergyPurchaseBody(quantity int) map[string]any {
	return map[string]any{"quantity": quantity}
}

func FusionBody(target game.Rarity, materialIDs []string, protect bool) map[string]any {
	return map[string]any{
		"target_rarity":  string(target),
		"material_ids":   materialIDs,
		"use_protection": protect,
	}
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserID != "" {
		req.Header.Set("X-User-ID", c.UserID)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
