package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const channelPrefix = "marketplace:conversation:"

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

func encode(msg *models.Message) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: "message", Message: msg})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// LocalBroker delivers straight to the in-process hub.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(ctx context.Context, msg *models.Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return b.hub.Deliver(ctx, msg.ConversationID, data)
}

// ValkeyBroker publishes to a Valkey channel per conversation and feeds every
// instance's hub from a pattern subscription, so participants connected to
// another instance still receive the message.
type ValkeyBroker struct {
	client valkey.Client
	hub    *Hub
	log    *logrus.Entry
}

func NewValkeyBroker(addr string, hub *Hub, log logrus.FieldLogger) (*ValkeyBroker, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey at %s: %w", addr, err)
	}
	return &ValkeyBroker{client: client, hub: hub, log: logging.Component(log, "realtime")}, nil
}

func (b *ValkeyBroker) Publish(ctx context.Context, msg *models.Message) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	cmd := b.client.B().Publish().Channel(channelPrefix + msg.ConversationID).Message(string(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish to valkey: %w", err)
	}
	return nil
}

// Run relays subscribed messages into the hub until ctx is done.
func (b *ValkeyBroker) Run(ctx context.Context) error {
	cmd := b.client.B().Psubscribe().Pattern(channelPrefix + "*").Build()
	err := b.client.Receive(ctx, cmd, func(m valkey.PubSubMessage) {
		id := strings.TrimPrefix(m.Channel, channelPrefix)
		if err := b.hub.Deliver(ctx, id, []byte(m.Message)); err != nil {
			b.log.WithError(err).WithField("conversation_id", id).Debug("relay dropped")
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *ValkeyBroker) Close() {
	b.client.Close()
}
