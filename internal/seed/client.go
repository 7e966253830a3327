package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hunterhub/hunter-ranking/internal/domain/types"
	"github.com/hunterhub/hunter-ranking/internal/identity"
)

// client talks to the ranking API as a given user.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type submitAck struct {
	Status string `json:"status"`
	Local  bool   `json:"local"`
	Cloud  bool   `json:"cloud"`
}

func (c *client) do(ctx context.Context, method, path string, as *User, body any, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set(identity.HeaderUserID, as.ID)
		if as.Username != "" {
			req.Header.Set(identity.HeaderUsername, as.Username)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *client) submit(ctx context.Context, p Play) (submitAck, error) {
	var ack submitAck
	u := User{ID: p.UserID, Username: p.Username}
	err := c.do(ctx, http.MethodPost, "/scores", &u, map[string]any{
		"gameType": p.GameType,
		"score":    p.Score,
		"metadata": map[string]any{"source": "seed"},
	}, &ack)
	return ack, err
}

func (c *client) rankings(ctx context.Context, as *User, gameType string, limit int) (types.RankingData, error) {
	var data types.RankingData
	path := fmt.Sprintf("/rankings/%s?limit=%d", url.PathEscape(gameType), limit)
	err := c.do(ctx, http.MethodGet, path, as, nil, &data)
	return data, err
}
