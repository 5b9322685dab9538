// Package store holds the accumulated in-memory odds state. The upstream
// feed never sends snapshots: every message is a partial update for one
// sportsbook and one game, and must be merged into existing state without
// ever discarding what is already known.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrandonHuang23/odds-dashboard/internal/models"
	"github.com/BrandonHuang23/odds-dashboard/pkg/odds"
)

// bookAliases corrects sportsbook names the feed emits under more than one
// key, so a book is never split across two buckets.
var bookAliases = map[string]string{
	"ps3838":    "pinnacle",
	"betonline": "betonlineag",
}

// Store is the accumulative state store for all odds data, keyed by
// canonical game id. It is written only by the upstream feed client and
// read concurrently by the fan-out path and the metadata handlers, so all
// access goes through an RWMutex.
type Store struct {
	mu     sync.RWMutex
	games  map[string]*models.Game
	logger zerolog.Logger
}

// New creates an empty state store.
func New(logger zerolog.Logger) *Store {
	return &Store{
		games:  make(map[string]*models.Game),
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

// GameID derives the canonical game identifier from team names. The feed's
// own game ids are unreliable; two messages naming the same teams must land
// on the same game regardless of casing or spacing.
func GameID(awayTeam, homeTeam string) string {
	id := strings.ToLower(awayTeam + "@" + homeTeam)
	return strings.ReplaceAll(id, " ", "_")
}

// MergeUpdate merges an initial_state or line_update message into the
// accumulated state and returns the ids of games whose odds changed.
//
// Merge rules:
//   - odds present: upsert the outcome, capturing the prior odds value when
//     it differs (movement detection)
//   - odds null/blank: the market is suspended, delete the outcome
//   - re-applying an unchanged outcome reports no change
//   - a game is never replaced wholesale, only its nested entries move
func (s *Store) MergeUpdate(msg models.FeedMessage) []string {
	data := msg.Data

	if data.HomeTeam == "" || data.AwayTeam == "" {
		// Nothing to anchor identity to.
		return nil
	}

	timestamp := msg.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	sportsbook := data.Sportsbook
	if canonical, ok := bookAliases[sportsbook]; ok {
		sportsbook = canonical
	}

	gameID := GameID(data.AwayTeam, data.HomeTeam)

	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		game = &models.Game{
			Sport:           data.Sport,
			HomeTeam:        data.HomeTeam,
			AwayTeam:        data.AwayTeam,
			GameDescription: data.Game,
			Odds:            make(map[string]map[string]*models.Outcome),
		}
		s.games[gameID] = game
		s.logger.Debug().Str("game_id", gameID).Str("sport", data.Sport).Msg("tracking new game")
	}
	game.LastUpdate = timestamp

	book, ok := game.Odds[sportsbook]
	if !ok {
		book = make(map[string]*models.Outcome)
		game.Odds[sportsbook] = book
	}

	changed := false

	for key, raw := range data.Outcomes {
		side, line := odds.ParseSide(raw.OutcomeOverUnder, raw.OutcomeLine)

		value, present := odds.Normalize(raw.Odds)
		if !present {
			// Suspended market: absence of the key is the suspended state.
			if _, exists := book[key]; exists {
				delete(book, key)
				changed = true
			}
			continue
		}

		var previous *string
		if existing, exists := book[key]; exists {
			if existing.Odds != value {
				prior := existing.Odds
				previous = &prior
				changed = true
			}
		} else {
			changed = true
		}

		book[key] = &models.Outcome{
			Odds:             value,
			OutcomeName:      raw.OutcomeName,
			OutcomeLine:      line,
			OutcomeOverUnder: side,
			OutcomeTarget:    raw.OutcomeTarget,
			Timestamp:        timestamp,
			PreviousOdds:     previous,
		}
	}

	if !changed {
		return nil
	}
	return []string{gameID}
}

// RemoveGame handles a game_removed message by dropping the game and all
// its nested sportsbook data.
func (s *Store) RemoveGame(msg models.FeedMessage) {
	data := msg.Data
	if data.HomeTeam == "" || data.AwayTeam == "" {
		return
	}
	gameID := GameID(data.AwayTeam, data.HomeTeam)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; ok {
		delete(s.games, gameID)
		s.logger.Debug().Str("game_id", gameID).Msg("game removed")
	}
}

// Sports returns the sorted set of sports currently in state.
func (s *Store) Sports() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, game := range s.games {
		seen[game.Sport] = struct{}{}
	}
	return sortedKeys(seen)
}

// GamesForSport returns summaries of all games for a sport, matched
// case-insensitively.
func (s *Store) GamesForSport(sport string) map[string]models.GameSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]models.GameSummary)
	for gameID, game := range s.games {
		if !strings.EqualFold(game.Sport, sport) {
			continue
		}
		result[gameID] = models.GameSummary{
			GameID:          gameID,
			HomeTeam:        game.HomeTeam,
			AwayTeam:        game.AwayTeam,
			Sport:           game.Sport,
			GameDescription: game.GameDescription,
			SportsbookCount: len(game.Odds),
			LastUpdate:      game.LastUpdate,
		}
	}
	return result
}

// MarketsForGame returns the sorted distinct market names that currently
// have odds for a game, across all sportsbooks.
func (s *Store) MarketsForGame(gameID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	for _, book := range game.Odds {
		for _, outcome := range book {
			if outcome.OutcomeName != "" {
				seen[outcome.OutcomeName] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// Snapshot builds the full current odds for a game, optionally restricted
// to one market name (empty market means all markets). Sportsbooks whose
// filtered outcome set is empty are omitted. Returns nil for unknown games.
// Snapshots never carry previous odds.
func (s *Store) Snapshot(gameID, market string) *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil
	}

	oddsData := make(map[string]map[string]models.SnapshotOutcome)
	for sportsbook, book := range game.Odds {
		filtered := make(map[string]models.SnapshotOutcome)
		for key, outcome := range book {
			if market != "" && outcome.OutcomeName != market {
				continue
			}
			filtered[key] = models.SnapshotOutcome{
				Odds:             outcome.Odds,
				OutcomeName:      outcome.OutcomeName,
				OutcomeLine:      outcome.OutcomeLine,
				OutcomeOverUnder: outcome.OutcomeOverUnder,
				OutcomeTarget:    outcome.OutcomeTarget,
				Timestamp:        outcome.Timestamp,
			}
		}
		if len(filtered) > 0 {
			oddsData[sportsbook] = filtered
		}
	}

	snapshot := &models.Snapshot{
		Sport:           game.Sport,
		GameID:          gameID,
		HomeTeam:        game.HomeTeam,
		AwayTeam:        game.AwayTeam,
		GameDescription: game.GameDescription,
		Odds:            oddsData,
	}
	if market != "" {
		snapshot.Market = &market
	}
	return snapshot
}

// Delta builds an incremental update for one game scoped to one sportsbook,
// optionally restricted to one market. Unlike Snapshot the outcomes carry
// previous odds. Returns nil when the game is unknown or the filter yields
// nothing.
func (s *Store) Delta(gameID, sportsbook, market string) *models.Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil
	}

	filtered := make(map[string]models.DeltaOutcome)
	for key, outcome := range game.Odds[sportsbook] {
		if market != "" && outcome.OutcomeName != market {
			continue
		}
		filtered[key] = models.DeltaOutcome{
			Odds:             outcome.Odds,
			OutcomeName:      outcome.OutcomeName,
			OutcomeLine:      outcome.OutcomeLine,
			OutcomeOverUnder: outcome.OutcomeOverUnder,
			OutcomeTarget:    outcome.OutcomeTarget,
			PreviousOdds:     outcome.PreviousOdds,
			Timestamp:        outcome.Timestamp,
		}
	}

	if len(filtered) == 0 {
		return nil
	}
	return &models.Delta{
		GameID:     gameID,
		Sportsbook: sportsbook,
		Outcomes:   filtered,
	}
}

// GameCount returns the number of games currently tracked.
func (s *Store) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// ActiveSportsbooks returns the sorted set of sportsbooks with any odds in
// state.
func (s *Store) ActiveSportsbooks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, game := range s.games {
		for sportsbook := range game.Odds {
			seen[sportsbook] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
