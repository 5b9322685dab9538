package models

// FeedMessage is one logical message from the upstream odds feed. A single
// websocket frame may carry one FeedMessage or a batch of them.
type FeedMessage struct {
	Action    string   `json:"action"`
	Data      FeedData `json:"data"`
	Timestamp string   `json:"timestamp"`
}

// Feed message actions.
const (
	ActionInitialState = "initial_state"
	ActionLineUpdate   = "line_update"
	ActionGameRemoved  = "game_removed"
	ActionPing         = "ping"
	ActionError        = "error"
)

// FeedData is the payload of initial_state, line_update and game_removed
// messages. One message carries outcomes from one sportsbook for one game.
type FeedData struct {
	Sport      string                 `json:"sport"`
	Sportsbook string                 `json:"sportsbook"`
	HomeTeam   string                 `json:"home_team"`
	AwayTeam   string                 `json:"away_team"`
	Game       string                 `json:"game"`
	Outcomes   map[string]FeedOutcome `json:"outcomes"`
}

// FeedOutcome is one priced line as sent by the feed. Odds, OutcomeLine and
// OutcomeOverUnder are loosely typed because the feed mixes strings and
// numbers for the same field, and null odds means the market is suspended.
type FeedOutcome struct {
	OutcomeName      string  `json:"outcome_name"`
	Odds             any     `json:"odds"`
	OutcomeLine      any     `json:"outcome_line"`
	OutcomeOverUnder any     `json:"outcome_over_under"`
	OutcomeTarget    *string `json:"outcome_target"`
}

// SubscribeRequest is the outbound subscription message to the feed.
type SubscribeRequest struct {
	Action  string           `json:"action"`
	Filters SubscribeFilters `json:"filters"`
}

// SubscribeFilters narrows the upstream subscription. The production policy
// is to leave all of them empty and filter per downstream client instead,
// so one upstream connection serves any combination of client interests.
type SubscribeFilters struct {
	Sports      []string `json:"sports,omitempty"`
	Sportsbooks []string `json:"sportsbooks,omitempty"`
	Markets     []string `json:"markets,omitempty"`
}
