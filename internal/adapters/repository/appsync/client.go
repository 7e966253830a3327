// Package appsync implements repository.Store against the hosted GraphQL API
// using API key authorization.
package appsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/machinebox/graphql"

	"github.com/hunterhub/hunter-ranking/internal/adapters/repository"
	"github.com/hunterhub/hunter-ranking/internal/domain/model"
	"github.com/hunterhub/hunter-ranking/pkg/logger"
)

const (
	defaultPageSize   = 1000
	defaultMaxRetries = 3
	maxErrorBody      = 4 << 10
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPageSize sets the page size of list queries.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxRetries sets how often a call failing with a transport error or a
// 5xx status is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the first retry delay. Later retries back off exponentially.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// Client is a GraphQL over HTTP repository.Store.
type Client struct {
	apiKey        string
	http          *http.Client
	gql           *graphql.Client
	pageSize      int
	maxRetries    uint64
	retryInterval time.Duration
	log           logger.Logger
}

// New creates a client for the GraphQL endpoint.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:        apiKey,
		http:          &http.Client{Timeout: 10 * time.Second},
		pageSize:      defaultPageSize,
		maxRetries:    defaultMaxRetries,
		retryInterval: backoff.DefaultInitialInterval,
		log:           logger.Named("appsync"),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = statusTransport{next: next}
	c.gql = graphql.NewClient(endpoint, graphql.WithHTTPClient(&hc))
	return c
}

// statusError is a response outside 2xx. Its body is kept for the error
// message since the GraphQL client only reads JSON bodies.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// statusTransport turns non-2xx responses into transport errors so that
// they can be told apart from GraphQL errors.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return nil, &statusError{code: res.StatusCode, body: strings.TrimSpace(string(snippet))}
}

// retryable reports whether a failed call may succeed on another attempt:
// transport failures and 5xx responses.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// do runs one operation and decodes its data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	req.Header.Set("x-api-key", c.apiKey)

	operation := func() error {
		err := c.gql.Run(ctx, req, out)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, t time.Duration) {
		c.log.Warn(ctx, "retrying remote call", logger.String("operation", op), logger.Duration("after", t), logger.Error(err))
	})
	if err == nil {
		return nil
	}
	if conditionFailed(err) {
		return fmt.Errorf("%s: %w: %w", op, err, repository.ErrDuplicate)
	}
	return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
}

// conditionFailed matches the error a resolver reports when a conditional
// write finds the item already present (or, on update, missing).
func conditionFailed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conditional request failed") || strings.Contains(msg, "conditionalcheckfailed")
}

// wire shapes: metadata and gameData travel as AWSJSON strings.

type scoreNode struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	GameType    string    `json:"gameType"`
	Score       int64     `json:"score"`
	Metadata    *string   `json:"metadata,omitempty"`
	SessionID   string    `json:"sessionId"`
	Timestamp   time.Time `json:"timestamp"`
	DisplayName string    `json:"displayName,omitempty"`
}

func toScoreNode(r model.ScoreRecord) scoreNode {
	n := scoreNode{
		ID: r.ID, UserID: r.UserID, GameType: r.GameType, Score: r.Score,
		SessionID: r.SessionID, Timestamp: r.Timestamp.UTC(), DisplayName: r.DisplayName,
	}
	if len(r.Metadata) > 0 {
		s := string(r.Metadata)
		n.Metadata = &s
	}
	return n
}

func (n scoreNode) record() model.ScoreRecord {
	r := model.ScoreRecord{
		ID: n.ID, UserID: n.UserID, GameType: n.GameType, Score: n.Score,
		SessionID: n.SessionID, Timestamp: n.Timestamp, DisplayName: n.DisplayName,
	}
	if n.Metadata != nil && *n.Metadata != "" {
		r.Metadata = json.RawMessage(*n.Metadata)
	}
	return r
}

type historyNode struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	GameType    string    `json:"gameType"`
	GameData    string    `json:"gameData"`
	PlayedAt    time.Time `json:"playedAt"`
	DisplayName string    `json:"displayName,omitempty"`
}

func (n historyNode) record() model.HistoryRecord {
	return model.HistoryRecord{
		ID: n.ID, UserID: n.UserID, GameType: n.GameType, GameData: json.RawMessage(n.GameData),
		PlayedAt: n.PlayedAt, DisplayName: n.DisplayName,
	}
}

type page[T any] struct {
	Items     []T     `json:"items"`
	NextToken *string `json:"nextToken"`
}

// CreateGameScore runs the createGameScore mutation with the record keyed by
// its idempotency key.
func (c *Client) CreateGameScore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	rec = rec.WithKey()
	var out struct {
		CreateGameScore scoreNode `json:"createGameScore"`
	}
	vars := map[string]any{"input": toScoreNode(rec)}
	if err := c.do(ctx, repository.OpCreateGameScore, createGameScoreMutation, vars, &out); err != nil {
		return model.ScoreRecord{}, err
	}
	return out.CreateGameScore.record(), nil
}

// ListGameScores pages through listGameScores filtered by game type.
func (c *Client) ListGameScores(ctx context.Context, gameType string) ([]model.ScoreRecord, error) {
	var records []model.ScoreRecord
	var token *string
	for {
		vars := map[string]any{
			"filter":    map[string]any{"gameType": map[string]string{"eq": gameType}},
			"limit":     c.pageSize,
			"nextToken": token,
		}
		var out struct {
			ListGameScores page[scoreNode] `json:"listGameScores"`
		}
		if err := c.do(ctx, repository.OpListGameScores, listGameScoresQuery, vars, &out); err != nil {
			return nil, err
		}
		for _, n := range out.ListGameScores.Items {
			records = append(records, n.record())
		}
		token = out.ListGameScores.NextToken
		if token == nil || *token == "" {
			return records, nil
		}
	}
}

// CreateGameHistory runs the createGameHistory mutation. The schema has no
// score column, so the returned row carries the score it was given.
func (c *Client) CreateGameHistory(ctx context.Context, rec model.HistoryRecord) (model.HistoryRecord, error) {
	rec = rec.WithKey()
	input := historyNode{
		ID: rec.ID, UserID: rec.UserID, GameType: rec.GameType, GameData: string(rec.GameData),
		PlayedAt: rec.PlayedAt.UTC(), DisplayName: rec.DisplayName,
	}
	var out struct {
		CreateGameHistory historyNode `json:"createGameHistory"`
	}
	if err := c.do(ctx, repository.OpCreateGameHistory, createGameHistoryMutation, map[string]any{"input": input}, &out); err != nil {
		return model.HistoryRecord{}, err
	}
	created := out.CreateGameHistory.record()
	created.Score = rec.Score
	return created, nil
}

// ListGameHistories pages through every history row.
func (c *Client) ListGameHistories(ctx context.Context) ([]model.HistoryRecord, error) {
	var rows []model.HistoryRecord
	var token *string
	for {
		vars := map[string]any{"limit": c.pageSize, "nextToken": token}
		var out struct {
			ListGameHistories page[historyNode] `json:"listGameHistories"`
		}
		if err := c.do(ctx, repository.OpListGameHistories, listGameHistoriesQuery, vars, &out); err != nil {
			return nil, err
		}
		for _, n := range out.ListGameHistories.Items {
			rows = append(rows, n.record())
		}
		token = out.ListGameHistories.NextToken
		if token == nil || *token == "" {
			return rows, nil
		}
	}
}

// GetUserProfile looks the profile up through the userId index.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	var out struct {
		UserProfilesByUserID page[model.UserProfile] `json:"userProfilesByUserId"`
	}
	vars := map[string]any{"userId": userID, "limit": 1}
	if err := c.do(ctx, repository.OpGetUserProfile, userProfilesByUserIDQuery, vars, &out); err != nil {
		return model.UserProfile{}, err
	}
	if len(out.UserProfilesByUserID.Items) == 0 {
		return model.UserProfile{}, fmt.Errorf("profile of %s: %w", userID, repository.ErrNotFound)
	}
	return out.UserProfilesByUserID.Items[0], nil
}

// CreateUserProfile runs the createUserProfile mutation.
func (c *Client) CreateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	var out struct {
		CreateUserProfile model.UserProfile `json:"createUserProfile"`
	}
	if err := c.do(ctx, repository.OpCreateUserProfile, createUserProfileMutation, map[string]any{"input": p}, &out); err != nil {
		return model.UserProfile{}, err
	}
	return out.CreateUserProfile, nil
}

// UpdateUserProfile records one more game on the profile. A failed
// existence condition is reported as repository.ErrNotFound.
func (c *Client) UpdateUserProfile(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	// The generated update input only sets values, so the counter is
	// derived from the profile as read.
	input := map[string]any{
		"id":               p.ID,
		"totalGamesPlayed": p.TotalGamesPlayed + 1,
		"lastActiveAt":     p.LastActiveAt.UTC(),
	}
	if p.Username != "" {
		input["username"] = p.Username
	}
	var out struct {
		UpdateUserProfile *model.UserProfile `json:"updateUserProfile"`
	}
	if err := c.do(ctx, repository.OpUpdateUserProfile, updateUserProfileMutation, map[string]any{"input": input}, &out); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.UserProfile{}, fmt.Errorf("%s %s: %w", repository.OpUpdateUserProfile, p.ID, repository.ErrNotFound)
		}
		return model.UserProfile{}, err
	}
	if out.UpdateUserProfile == nil {
		return model.UserProfile{}, fmt.Errorf("%s %s: %w", repository.OpUpdateUserProfile, p.ID, repository.ErrNotFound)
	}
	return *out.UpdateUserProfile, nil
}

var _ repository.Store = (*Client)(nil)
