// Package metadata proxies the feed's request-response metadata endpoints
// (available sports, games, market types) with short-lived caching to stay
// inside the feed's rate limits. The live websocket state is always
// preferred; this path only fills the gaps before the stream has data.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client fetches metadata from the feed REST API, caching responses in
// Redis. Cache failures are soft: a broken Redis degrades to direct
// fetches, it never breaks the read path.
type Client struct {
	http   *http.Client
	cache  *redis.Client
	logger zerolog.Logger

	baseURL string
	apiKey  string

	infoTTL    time.Duration
	gamesTTL   time.Duration
	marketsTTL time.Duration
}

// Config holds metadata client configuration.
type Config struct {
	BaseURL        string // e.g., "https://feed.example.com/api"
	APIKey         string
	RequestTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InfoTTL    time.Duration // e.g., 60 * time.Second
	GamesTTL   time.Duration // e.g., 30 * time.Second
	MarketsTTL time.Duration
}

// NewClient creates a metadata client.
func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}
	if config.InfoTTL <= 0 {
		config.InfoTTL = 60 * time.Second
	}
	if config.GamesTTL <= 0 {
		config.GamesTTL = 30 * time.Second
	}
	if config.MarketsTTL <= 0 {
		config.MarketsTTL = 30 * time.Second
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	return &Client{
		http:       &http.Client{Timeout: config.RequestTimeout},
		cache:      cache,
		logger:     logger.With().Str("component", "metadata_client").Logger(),
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		infoTTL:    config.InfoTTL,
		gamesTTL:   config.GamesTTL,
		marketsTTL: config.MarketsTTL,
	}
}

// Info returns the feed's available sports and sportsbooks.
func (c *Client) Info(ctx context.Context) (json.RawMessage, error) {
	return c.cached(ctx, "meta:info", c.infoTTL, "/get_info", nil)
}

// Games returns available games, optionally filtered by sport.
func (c *Client) Games(ctx context.Context, sport string) (json.RawMessage, error) {
	key := "meta:games:" + keyPart(sport)
	params := url.Values{}
	if sport != "" {
		params.Set("sports", sport)
	}
	return c.cached(ctx, key, c.gamesTTL, "/get_games", params)
}

// Markets returns available market types, optionally filtered by sport.
func (c *Client) Markets(ctx context.Context, sport string) (json.RawMessage, error) {
	key := "meta:markets:" + keyPart(sport)
	params := url.Values{}
	if sport != "" {
		params.Set("sports", sport)
	}
	return c.cached(ctx, key, c.marketsTTL, "/get_markets", params)
}

// Ping checks the cache connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx).Err()
}

// Close closes the cache connection.
func (c *Client) Close() error {
	return c.cache.Close()
}

// cached returns the cached response for key, fetching and caching it on a
// miss.
func (c *Client) cached(ctx context.Context, key string, ttl time.Duration, path string, params url.Values) (json.RawMessage, error) {
	data, err := c.cache.Get(ctx, key).Bytes()
	if err == nil {
		c.logger.Debug().Str("key", key).Msg("metadata cache hit")
		return data, nil
	}
	if err != redis.Nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("metadata cache read failed")
	}

	data, err = c.fetch(ctx, path, params)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, []byte(data), ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("metadata cache write failed")
	}
	return data, nil
}

// fetch performs one GET against the feed REST API.
func (c *Client) fetch(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	c.logger.Info().Str("path", path).Msg("fetching feed metadata")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fetch %s: response is not valid JSON", path)
	}
	return body, nil
}

func keyPart(s string) string {
	if s == "" {
		return "all"
	}
	return s
}
