package models

// Outcome is one priced line from one sportsbook for one game, as held in
// the state store. A suspended outcome (null/blank odds upstream) is deleted
// from the store rather than kept with empty odds, so Odds is never empty.
type Outcome struct {
	Odds             string
	OutcomeName      string
	OutcomeLine      *string
	OutcomeOverUnder *string
	OutcomeTarget    *string
	Timestamp        string
	// PreviousOdds holds the prior odds value, set only by the update that
	// changed it. It is nil for new outcomes and cleared when an update
	// re-applies an unchanged value.
	PreviousOdds *string
}

// Game is all accumulated odds for one sporting event across sportsbooks.
// Odds is sportsbook -> outcome key -> outcome.
type Game struct {
	Sport           string
	HomeTeam        string
	AwayTeam        string
	GameDescription string
	Odds            map[string]map[string]*Outcome
	LastUpdate      string
}

// GameSummary is the per-game listing entry returned for a sport.
type GameSummary struct {
	GameID          string `json:"game_id"`
	HomeTeam        string `json:"home_team"`
	AwayTeam        string `json:"away_team"`
	Sport           string `json:"sport"`
	GameDescription string `json:"game_description"`
	SportsbookCount int    `json:"sportsbook_count"`
	LastUpdate      string `json:"last_update"`
}

// SnapshotOutcome is the client-facing form of an outcome inside a snapshot.
// Snapshots never carry previous odds: a freshly subscribing client has no
// baseline to show movement against.
type SnapshotOutcome struct {
	Odds             string  `json:"odds"`
	OutcomeName      string  `json:"outcome_name"`
	OutcomeLine      *string `json:"outcome_line"`
	OutcomeOverUnder *string `json:"outcome_over_under"`
	OutcomeTarget    *string `json:"outcome_target"`
	Timestamp        string  `json:"timestamp"`
}

// Snapshot is the full current odds picture for one game, optionally
// restricted to one market. Odds is sportsbook -> outcome key -> outcome;
// sportsbooks whose filtered outcome set is empty are omitted.
type Snapshot struct {
	Sport           string                                `json:"sport"`
	GameID          string                                `json:"game_id"`
	HomeTeam        string                                `json:"home_team"`
	AwayTeam        string                                `json:"away_team"`
	GameDescription string                                `json:"game_description"`
	Market          *string                               `json:"market"`
	Odds            map[string]map[string]SnapshotOutcome `json:"odds"`
}

// DeltaOutcome is the incremental-push form of an outcome. Unlike snapshots
// it carries PreviousOdds so clients can render movement indicators.
type DeltaOutcome struct {
	Odds             string  `json:"odds"`
	OutcomeName      string  `json:"outcome_name"`
	OutcomeLine      *string `json:"outcome_line"`
	OutcomeOverUnder *string `json:"outcome_over_under"`
	OutcomeTarget    *string `json:"outcome_target"`
	PreviousOdds     *string `json:"previous_odds"`
	Timestamp        string  `json:"timestamp"`
}

// Delta is an incremental update for one game scoped to one sportsbook,
// optionally restricted to one market.
type Delta struct {
	GameID     string                  `json:"game_id"`
	Sportsbook string                  `json:"sportsbook"`
	Outcomes   map[string]DeltaOutcome `json:"outcomes"`
}

// Subscription is a downstream client's current interest. The zero value
// means "not subscribed"; an empty Market means all markets for the game.
type Subscription struct {
	Sport  string
	GameID string
	Market string
}
