package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMetadataSetup is a helper struct to hold test dependencies
type testMetadataSetup struct {
	client    *Client
	miniRedis *miniredis.Miniredis
	server    *httptest.Server
	requests  *atomic.Int64
	ctx       context.Context
}

// setupTestMetadata creates a metadata client backed by a fake feed API and
// miniredis
func setupTestMetadata(t *testing.T) *testMetadataSetup {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	requests := &atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/get_info":
			json.NewEncoder(w).Encode(map[string]any{
				"sports":      []string{"NHL", "NBA"},
				"sportsbooks": []string{"draftkings", "fanduel"},
			})
		case "/get_games":
			json.NewEncoder(w).Encode(map[string]any{
				"games": []map[string]string{
					{"home_team": "Rangers", "away_team": "Bruins", "sport": r.URL.Query().Get("sports")},
				},
			})
		case "/get_markets":
			json.NewEncoder(w).Encode(map[string]any{
				"markets": []string{"Moneyline", "Total"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	client := NewClient(Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		RedisAddr: mr.Addr(),
		InfoTTL:   60 * time.Second,
		GamesTTL:  30 * time.Second,
	}, zerolog.Nop())

	return &testMetadataSetup{
		client:    client,
		miniRedis: mr,
		server:    server,
		requests:  requests,
		ctx:       context.Background(),
	}
}

// cleanup cleans up test resources
func (s *testMetadataSetup) cleanup() {
	s.client.Close()
	s.server.Close()
	s.miniRedis.Close()
}

// TestInfo_FetchesAndCaches tests that the first call hits the API and the
// second is served from cache
func TestInfo_FetchesAndCaches(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	data, err := setup.client.Info(setup.ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "draftkings")
	assert.Equal(t, int64(1), setup.requests.Load())
	assert.True(t, setup.miniRedis.Exists("meta:info"))

	data, err = setup.client.Info(setup.ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "draftkings")
	assert.Equal(t, int64(1), setup.requests.Load())
}

// TestInfo_RefetchesAfterTTL tests cache expiry
func TestInfo_RefetchesAfterTTL(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	_, err := setup.client.Info(setup.ctx)
	require.NoError(t, err)

	setup.miniRedis.FastForward(2 * time.Minute)

	_, err = setup.client.Info(setup.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), setup.requests.Load())
}

// TestGames_KeyedBySport tests that sports get separate cache entries
func TestGames_KeyedBySport(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	nhl, err := setup.client.Games(setup.ctx, "NHL")
	require.NoError(t, err)
	assert.Contains(t, string(nhl), "NHL")

	nba, err := setup.client.Games(setup.ctx, "NBA")
	require.NoError(t, err)
	assert.Contains(t, string(nba), "NBA")

	assert.Equal(t, int64(2), setup.requests.Load())
	assert.True(t, setup.miniRedis.Exists("meta:games:NHL"))
	assert.True(t, setup.miniRedis.Exists("meta:games:NBA"))

	// Repeats are cache hits
	_, err = setup.client.Games(setup.ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, int64(2), setup.requests.Load())
}

// TestGames_AllSports tests the unfiltered games query
func TestGames_AllSports(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	_, err := setup.client.Games(setup.ctx, "")
	require.NoError(t, err)
	assert.True(t, setup.miniRedis.Exists("meta:games:all"))
}

// TestMarkets tests the markets query
func TestMarkets(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	data, err := setup.client.Markets(setup.ctx, "NHL")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Moneyline")
	assert.True(t, setup.miniRedis.Exists("meta:markets:NHL"))
}

// TestCacheDown_FallsBackToDirectFetch tests that a dead cache degrades
// instead of failing
func TestCacheDown_FallsBackToDirectFetch(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.server.Close()
	defer setup.client.Close()

	setup.miniRedis.Close()

	data, err := setup.client.Info(setup.ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "NHL")
	assert.Equal(t, int64(1), setup.requests.Load())
}

// TestFetch_UpstreamError tests that API failures surface as errors
func TestFetch_UpstreamError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		RedisAddr: mr.Addr(),
	}, zerolog.Nop())
	defer client.Close()

	_, err = client.Info(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

// TestFetch_BadKey tests that an invalid API key surfaces as an error
func TestFetch_BadKey(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.cleanup()

	setup.client.apiKey = "wrong"

	_, err := setup.client.Info(setup.ctx)
	assert.Error(t, err)
}

// TestPing tests cache connectivity checks
func TestPing(t *testing.T) {
	setup := setupTestMetadata(t)
	defer setup.server.Close()
	defer setup.client.Close()

	assert.NoError(t, setup.client.Ping(setup.ctx))

	setup.miniRedis.Close()
	assert.Error(t, setup.client.Ping(setup.ctx))
}
