// Package events publishes settled bets to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stakesim/internal/model"
)

// TypeBetResolved is the event type of a settled bet.
const TypeBetResolved = "bet.resolved"

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "stakesim.bets"

// Event is the JSON envelope published for every bet.
type Event struct {
	Type      string   `json:"type"`
	Username  string   `json:"username"`
	Data      BetEvent `json:"data"`
	Timestamp int64    `json:"timestamp"`
}

// BetEvent describes one settled bet.
type BetEvent struct {
	ID         string          `json:"id"`
	Game       model.GameType  `json:"game"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	Result     model.BetResult `json:"result"`
	Outcome    string          `json:"outcome"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}

// NewBetResolved builds the envelope for rec.
func NewBetResolved(username string, rec model.BetRecord, outcome string, multiplier float64) Event {
	return Event{
		Type:     TypeBetResolved,
		Username: username,
		Data: BetEvent{
			ID:         rec.ID,
			Game:       rec.Game,
			BetAmount:  rec.BetAmount,
			Result:     rec.Result,
			Outcome:    outcome,
			Multiplier: multiplier,
			Payout:     rec.Payout,
		},
		Timestamp: rec.Timestamp.UnixMilli(),
	}
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(event Event) error
	Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
func (NopPublisher) Close()              {}

// NATSPublisher publishes JSON events on a single subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url and retries forever on disconnects.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("stakesim"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Encode marshals event as JSON.
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}
