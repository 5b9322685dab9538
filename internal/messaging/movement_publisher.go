package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/BrandonHuang23/odds-dashboard/internal/models"
	"github.com/BrandonHuang23/odds-dashboard/internal/store"
)

// Writer abstracts the Kafka writer for testing.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MovementEvent is published for each (game, sportsbook) whose odds moved.
// Outcomes carry previous odds so consumers can compute movement without
// keeping their own state.
type MovementEvent struct {
	GameID      string                         `json:"game_id"`
	Sport       string                         `json:"sport"`
	Sportsbook  string                         `json:"sportsbook"`
	Outcomes    map[string]models.DeltaOutcome `json:"outcomes"`
	PublishedAt time.Time                      `json:"published_at"`
}

// MovementPublisher publishes line-movement events to Kafka whenever the
// upstream feed changes a game. Delivery is best effort: a broker failure
// is logged and the odds pipeline keeps running.
type MovementPublisher struct {
	writer Writer
	store  *store.Store
	logger zerolog.Logger
}

// MovementPublisherConfig holds Kafka publisher configuration.
type MovementPublisherConfig struct {
	Brokers []string // e.g., ["localhost:9092"]
	Topic   string   // e.g., "odds_movements"
}

// NewMovementPublisher creates a publisher backed by a real Kafka writer.
func NewMovementPublisher(config MovementPublisherConfig, st *store.Store, logger zerolog.Logger) *MovementPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &MovementPublisher{
		writer: writer,
		store:  st,
		logger: logger.With().Str("component", "movement_publisher").Logger(),
	}
}

// PublishChanges builds one event per (changed game, sportsbook) from the
// current store state and writes them in a single batch, keyed by game id
// so per-game ordering survives partitioning.
func (p *MovementPublisher) PublishChanges(ctx context.Context, gameIDs []string) {
	now := time.Now().UTC()
	var batch []kafka.Message

	for _, gameID := range gameIDs {
		snapshot := p.store.Snapshot(gameID, "")
		if snapshot == nil {
			continue
		}

		for sportsbook := range snapshot.Odds {
			delta := p.store.Delta(gameID, sportsbook, "")
			if delta == nil {
				continue
			}

			event := MovementEvent{
				GameID:      gameID,
				Sport:       snapshot.Sport,
				Sportsbook:  sportsbook,
				Outcomes:    delta.Outcomes,
				PublishedAt: now,
			}
			value, err := json.Marshal(event)
			if err != nil {
				p.logger.Error().Err(err).Str("game_id", gameID).Msg("failed to marshal movement event")
				continue
			}
			batch = append(batch, kafka.Message{
				Key:   []byte(gameID),
				Value: value,
			})
		}
	}

	if len(batch) == 0 {
		return
	}

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.logger.Warn().Err(err).Int("count", len(batch)).Msg("failed to publish movement events")
		return
	}

	p.logger.Debug().
		Int("count", len(batch)).
		Int("games", len(gameIDs)).
		Msg("published movement events")
}

// Close closes the Kafka writer.
func (p *MovementPublisher) Close() error {
	return p.writer.Close()
}
