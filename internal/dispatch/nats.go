package dispatch

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConversationCreatedEvent announces a lazily-created conversation to
// interested services.
type ConversationCreatedEvent struct {
	ConversationID string   `json:"conversation_id"`
	Members        []string `json:"members"`
	Open           bool     `json:"open"`
}

// NATSPublisher emits conversation lifecycle side events. Optional: a
// nil publisher is a no-op.
type NATSPublisher struct {
	nc  *nats.Conn
	log *zap.SugaredLogger
}

func NewNATSPublisher(url string, log *zap.SugaredLogger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, log: log}, nil
}

func (p *NATSPublisher) PublishConversationCreated(ev ConversationCreatedEvent) error {
	if p == nil || p.nc == nil {
		return nil
	}
	b, _ := json.Marshal(ev)
	if err := p.nc.Publish("conversation.created", b); err != nil {
		p.log.Warnw("publish conversation.created", "err", err)
		return err
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
