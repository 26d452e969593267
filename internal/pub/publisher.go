// Package pub publishes touch events to NATS so external consumers can follow
// the ledger without polling. Publishing is best-effort: a failed publish is
// logged and dropped, never surfaced to the append path.
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/applianced/internal/ledger"
)

// Event is the wire shape of a published touch. Only the fields for the
// touch's kind are set; password touches carry no payload fields at all, the
// hash stays in the ledger.
type Event struct {
	Sequence  int64     `json:"sequence"`
	TargetID  int64     `json:"target_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	StateID   int64     `json:"state_id,omitempty"`
	Cores     int64     `json:"cores,omitempty"`
	RAM       int64     `json:"ram,omitempty"`
	OwnerID   int64     `json:"owner_id,omitempty"`
	Delta     int64     `json:"delta,omitempty"`
}

// Publisher sends touch events on `<prefix>.<kind>` subjects. A nil Publisher
// is a valid no-op.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	log           *slog.Logger
}

// Connect dials NATS and returns a publisher using the given subject prefix.
func Connect(url, subjectPrefix string, log *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info("touch publisher connected", "url", url, "subject_prefix", subjectPrefix)
	return &Publisher{conn: conn, subjectPrefix: subjectPrefix, log: log}, nil
}

// PublishTouch implements ledger.TouchPublisher.
func (p *Publisher) PublishTouch(_ context.Context, t ledger.Touch) {
	if p == nil {
		return
	}
	event := Event{
		Sequence:  t.Sequence,
		TargetID:  t.TargetID,
		Kind:      string(t.Kind),
		CreatedAt: t.CreatedAt,
	}
	switch v := t.Payload.(type) {
	case ledger.StateChange:
		event.StateID = v.StateID
	case ledger.SpecificationChange:
		event.Cores = v.Cores
		event.RAM = v.RAM
	case ledger.OwnershipChange:
		event.OwnerID = v.OwnerID
	case ledger.CreditAdjustment:
		event.Delta = v.Delta
	case ledger.PasswordChange:
		// kind and sequence only
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal touch event", "error", err, "sequence", t.Sequence)
		return
	}
	subject := p.subjectPrefix + "." + string(t.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("publish touch event", "error", err, "subject", subject, "sequence", t.Sequence)
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Flush()
	p.conn.Close()
}
