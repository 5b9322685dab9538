package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonHuang23/odds-dashboard/internal/models"
)

// lineUpdate builds a line_update message for one sportsbook and game
func lineUpdate(sportsbook, home, away string, outcomes map[string]models.FeedOutcome) models.FeedMessage {
	return models.FeedMessage{
		Action: models.ActionLineUpdate,
		Data: models.FeedData{
			Sport:      "NHL",
			Sportsbook: sportsbook,
			HomeTeam:   home,
			AwayTeam:   away,
			Game:       away + " @ " + home,
			Outcomes:   outcomes,
		},
		Timestamp: "2026-08-30T12:00:00Z",
	}
}

func moneyline(odds any) map[string]models.FeedOutcome {
	return map[string]models.FeedOutcome{
		"ml_home": {OutcomeName: "Moneyline", Odds: odds},
	}
}

func newTestStore() *Store {
	return New(zerolog.Nop())
}

// TestGameID tests canonical game identity derivation
func TestGameID(t *testing.T) {
	assert.Equal(t, "bruins@rangers", GameID("Bruins", "Rangers"))
	assert.Equal(t, "bruins@rangers", GameID("BRUINS", "rangers"))
	assert.Equal(t, "maple_leafs@red_wings", GameID("Maple Leafs", "Red Wings"))

	// Swapped teams are a different game
	assert.NotEqual(t, GameID("Bruins", "Rangers"), GameID("Rangers", "Bruins"))
}

// TestMergeUpdate_CreatesGame tests that a first update creates the game
func TestMergeUpdate_CreatesGame(t *testing.T) {
	s := newTestStore()

	changed := s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))

	assert.Equal(t, []string{"bruins@rangers"}, changed)
	assert.Equal(t, 1, s.GameCount())

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Equal(t, "NHL", snapshot.Sport)
	assert.Equal(t, "Rangers", snapshot.HomeTeam)
	assert.Equal(t, "Bruins", snapshot.AwayTeam)
	assert.Equal(t, "-150", snapshot.Odds["draftkings"]["ml_home"].Odds)
}

// TestMergeUpdate_EmptyTeams tests that messages without both teams are ignored
func TestMergeUpdate_EmptyTeams(t *testing.T) {
	s := newTestStore()

	changed := s.MergeUpdate(lineUpdate("draftkings", "", "Bruins", moneyline("-150")))
	assert.Empty(t, changed)

	changed = s.MergeUpdate(lineUpdate("draftkings", "Rangers", "", moneyline("-150")))
	assert.Empty(t, changed)

	assert.Equal(t, 0, s.GameCount())
}

// TestMergeUpdate_Idempotent tests that repeating an identical update is a no-op
func TestMergeUpdate_Idempotent(t *testing.T) {
	s := newTestStore()
	msg := lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150"))

	changed := s.MergeUpdate(msg)
	assert.Equal(t, []string{"bruins@rangers"}, changed)

	// Second identical application reports no change and no movement
	changed = s.MergeUpdate(msg)
	assert.Empty(t, changed)

	delta := s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	assert.Nil(t, delta.Outcomes["ml_home"].PreviousOdds)
}

// TestMergeUpdate_PreviousOdds tests movement capture on a changed value
func TestMergeUpdate_PreviousOdds(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	changed := s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-140")))

	assert.Equal(t, []string{"bruins@rangers"}, changed)

	delta := s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	outcome := delta.Outcomes["ml_home"]
	assert.Equal(t, "-140", outcome.Odds)
	require.NotNil(t, outcome.PreviousOdds)
	assert.Equal(t, "-150", *outcome.PreviousOdds)

	// Re-applying the same value clears the movement
	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-140")))
	delta = s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	assert.Nil(t, delta.Outcomes["ml_home"].PreviousOdds)
}

// TestMergeUpdate_NumericOdds tests normalization of numeric odds values
func TestMergeUpdate_NumericOdds(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline(float64(-150))))

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Equal(t, "-150", snapshot.Odds["draftkings"]["ml_home"].Odds)

	// The string form of the same value is not a movement
	changed := s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	assert.Empty(t, changed)
}

// TestMergeUpdate_SuspensionRoundTrip tests suspend then recreate behavior
func TestMergeUpdate_SuspensionRoundTrip(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"total_over": {OutcomeName: "Total", Odds: "-110", OutcomeOverUnder: "O 5.5"},
	}))
	assert.Equal(t, []string{"Total"}, s.MarketsForGame("bruins@rangers"))

	// Null odds suspends the outcome: it disappears entirely
	changed := s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"total_over": {OutcomeName: "Total", Odds: nil},
	}))
	assert.Equal(t, []string{"bruins@rangers"}, changed)

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot.Odds)
	assert.Empty(t, s.MarketsForGame("bruins@rangers"))

	// Suspending an absent outcome is a no-op
	changed = s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"total_over": {OutcomeName: "Total", Odds: ""},
	}))
	assert.Empty(t, changed)

	// Recreation after suspension carries no previous odds
	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"total_over": {OutcomeName: "Total", Odds: "-105", OutcomeOverUnder: "O 5.5"},
	}))
	delta := s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	assert.Equal(t, "-105", delta.Outcomes["total_over"].Odds)
	assert.Nil(t, delta.Outcomes["total_over"].PreviousOdds)
}

// TestMergeUpdate_SportsbookAlias tests that aliased book names share a bucket
func TestMergeUpdate_SportsbookAlias(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("ps3838", "Rangers", "Bruins", moneyline("-150")))
	changed := s.MergeUpdate(lineUpdate("pinnacle", "Rangers", "Bruins", moneyline("-150")))

	// Same bucket, same value: second message is a no-op
	assert.Empty(t, changed)

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Odds, 1)
	assert.Contains(t, snapshot.Odds, "pinnacle")
	assert.Equal(t, []string{"pinnacle"}, s.ActiveSportsbooks())
}

// TestMergeUpdate_CanonicalIdentity tests casing/spacing-insensitive identity
func TestMergeUpdate_CanonicalIdentity(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	s.MergeUpdate(lineUpdate("fanduel", "RANGERS", "BRUINS", moneyline("-148")))

	assert.Equal(t, 1, s.GameCount())

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Odds, 2)

	// Swapped home/away is a different game
	s.MergeUpdate(lineUpdate("draftkings", "Bruins", "Rangers", moneyline("-150")))
	assert.Equal(t, 2, s.GameCount())
}

// TestMergeUpdate_UnknownSideToken tests that garbled side tokens are kept
func TestMergeUpdate_UnknownSideToken(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"special": {OutcomeName: "Special", Odds: "+200", OutcomeOverUnder: "YES"},
	}))

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	outcome := snapshot.Odds["draftkings"]["special"]
	require.NotNil(t, outcome.OutcomeOverUnder)
	assert.Equal(t, "YES", *outcome.OutcomeOverUnder)
}

// TestRemoveGame tests explicit game removal
func TestRemoveGame(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	require.Equal(t, 1, s.GameCount())

	s.RemoveGame(models.FeedMessage{
		Action: models.ActionGameRemoved,
		Data:   models.FeedData{HomeTeam: "Rangers", AwayTeam: "Bruins"},
	})

	assert.Equal(t, 0, s.GameCount())
	assert.Nil(t, s.Snapshot("bruins@rangers", ""))

	// Removing an unknown game is harmless
	s.RemoveGame(models.FeedMessage{
		Action: models.ActionGameRemoved,
		Data:   models.FeedData{HomeTeam: "Rangers", AwayTeam: "Bruins"},
	})
	assert.Equal(t, 0, s.GameCount())
}

// TestSports tests the sorted distinct sports listing
func TestSports(t *testing.T) {
	s := newTestStore()

	nhl := lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150"))
	s.MergeUpdate(nhl)

	nba := lineUpdate("draftkings", "Lakers", "Celtics", moneyline("+120"))
	nba.Data.Sport = "NBA"
	s.MergeUpdate(nba)

	assert.Equal(t, []string{"NBA", "NHL"}, s.Sports())
}

// TestGamesForSport tests case-insensitive sport listing
func TestGamesForSport(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	s.MergeUpdate(lineUpdate("fanduel", "Rangers", "Bruins", moneyline("-148")))

	games := s.GamesForSport("nhl")
	require.Len(t, games, 1)

	summary := games["bruins@rangers"]
	assert.Equal(t, "bruins@rangers", summary.GameID)
	assert.Equal(t, "Rangers", summary.HomeTeam)
	assert.Equal(t, "Bruins", summary.AwayTeam)
	assert.Equal(t, 2, summary.SportsbookCount)

	assert.Empty(t, s.GamesForSport("NBA"))
}

// TestMarketsForGame tests distinct sorted market discovery
func TestMarketsForGame(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"ml_home":    {OutcomeName: "Moneyline", Odds: "-150"},
		"total_over": {OutcomeName: "Total", Odds: "-110", OutcomeOverUnder: "O 5.5"},
	}))
	s.MergeUpdate(lineUpdate("fanduel", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"spread_home": {OutcomeName: "Spread", Odds: "-110", OutcomeLine: "-1.5"},
	}))

	assert.Equal(t, []string{"Moneyline", "Spread", "Total"}, s.MarketsForGame("bruins@rangers"))
	assert.Nil(t, s.MarketsForGame("unknown@game"))
}

// TestSnapshot_MarketFilter tests market filtering and empty-book omission
func TestSnapshot_MarketFilter(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"ml_home":    {OutcomeName: "Moneyline", Odds: "-150"},
		"total_over": {OutcomeName: "Total", Odds: "-110", OutcomeOverUnder: "O 5.5"},
	}))
	s.MergeUpdate(lineUpdate("fanduel", "Rangers", "Bruins", map[string]models.FeedOutcome{
		"ml_home": {OutcomeName: "Moneyline", Odds: "-148"},
	}))

	snapshot := s.Snapshot("bruins@rangers", "Total")
	require.NotNil(t, snapshot)
	require.NotNil(t, snapshot.Market)
	assert.Equal(t, "Total", *snapshot.Market)

	// fanduel has no Total outcomes and is omitted entirely
	assert.Len(t, snapshot.Odds, 1)
	assert.Contains(t, snapshot.Odds, "draftkings")
	assert.Len(t, snapshot.Odds["draftkings"], 1)

	outcome := snapshot.Odds["draftkings"]["total_over"]
	require.NotNil(t, outcome.OutcomeOverUnder)
	assert.Equal(t, "O", *outcome.OutcomeOverUnder)
	require.NotNil(t, outcome.OutcomeLine)
	assert.Equal(t, "5.5", *outcome.OutcomeLine)

	// Unfiltered snapshot has no market set
	snapshot = s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Nil(t, snapshot.Market)
	assert.Len(t, snapshot.Odds, 2)
}

// TestDelta_ScopedToSportsbook tests sportsbook scoping and nil on no match
func TestDelta_ScopedToSportsbook(t *testing.T) {
	s := newTestStore()

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-150")))
	s.MergeUpdate(lineUpdate("fanduel", "Rangers", "Bruins", moneyline("-148")))

	delta := s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	assert.Equal(t, "draftkings", delta.Sportsbook)
	assert.Len(t, delta.Outcomes, 1)

	assert.Nil(t, s.Delta("bruins@rangers", "caesars", ""))
	assert.Nil(t, s.Delta("bruins@rangers", "draftkings", "Total"))
	assert.Nil(t, s.Delta("unknown@game", "draftkings", ""))
}

// TestEndToEnd_MergeSnapshotDelta tests the full merge-query round trip
func TestEndToEnd_MergeSnapshotDelta(t *testing.T) {
	s := newTestStore()

	changed := s.MergeUpdate(models.FeedMessage{
		Action: models.ActionLineUpdate,
		Data: models.FeedData{
			Sport:      "NHL",
			Sportsbook: "draftkings",
			HomeTeam:   "Rangers",
			AwayTeam:   "Bruins",
			Game:       "Bruins @ Rangers",
			Outcomes: map[string]models.FeedOutcome{
				"ml_home": {OutcomeName: "Moneyline", Odds: "-150"},
			},
		},
	})
	assert.Equal(t, []string{"bruins@rangers"}, changed)

	snapshot := s.Snapshot("bruins@rangers", "")
	require.NotNil(t, snapshot)
	assert.Equal(t, "-150", snapshot.Odds["draftkings"]["ml_home"].Odds)

	s.MergeUpdate(lineUpdate("draftkings", "Rangers", "Bruins", moneyline("-140")))

	delta := s.Delta("bruins@rangers", "draftkings", "")
	require.NotNil(t, delta)
	assert.Equal(t, "-140", delta.Outcomes["ml_home"].Odds)
	require.NotNil(t, delta.Outcomes["ml_home"].PreviousOdds)
	assert.Equal(t, "-150", *delta.Outcomes["ml_home"].PreviousOdds)
}
