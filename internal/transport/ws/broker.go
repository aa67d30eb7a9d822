package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
)

const (
	conversationChannelPrefix = "partsmarket:conversation:"
	publishTimeout            = 5 * time.Second
	maxSubscriberBackoff      = 30 * time.Second
)

// Broker carries encoded events to every instance's hub.
type Broker interface {
	Publish(ctx context.Context, conversationID uuid.UUID, data []byte) error
}

// LocalBroker delivers straight to the in-process hub. Used when the server
// runs as a single instance.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, conversationID uuid.UUID, data []byte) error {
	b.hub.Broadcast(conversationID, data)
	return nil
}

// RedisBroker fans events out across instances over Redis pub/sub. Each
// instance runs Subscribe and forwards what it receives to its own hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
}

func NewRedisBroker(client *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{client: client, hub: hub}
}

func (b *RedisBroker) Publish(ctx context.Context, conversationID uuid.UUID, data []byte) error {
	return b.client.Publish(ctx, conversationChannelPrefix+conversationID.String(), data).Err()
}

// Subscribe listens on every conversation channel until ctx is done,
// reconnecting with capped exponential backoff.
func (b *RedisBroker) Subscribe(ctx context.Context) {
	bo := newSubscriberBackOff()

	err := backoff.RetryNotify(func() error {
		err := b.receive(ctx, bo.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("redis broker: subscriber error")
	})
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("redis broker: subscriber stopped")
	}
}

func newSubscriberBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = maxSubscriberBackoff
	bo.MaxElapsedTime = 0
	return bo
}

// receive forwards pub/sub messages to the hub until the subscription fails.
// onSubscribed runs once Redis has confirmed the pattern subscription.
func (b *RedisBroker) receive(ctx context.Context, onSubscribed func()) error {
	pattern := conversationChannelPrefix + "*"
	pubsub := b.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	onSubscribed()
	log.Info().Str("pattern", pattern).Msg("redis broker: subscribed")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}

		conversationID, ok := conversationFromChannel(msg.Channel)
		if !ok {
			continue
		}
		b.hub.Broadcast(conversationID, []byte(msg.Payload))
	}
}

func conversationFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, conversationChannelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Notifier implements service.Notifier on top of a Broker.
type Notifier struct {
	broker Broker
}

func NewNotifier(broker Broker) *Notifier {
	return &Notifier{broker: broker}
}

func (n *Notifier) NotifyNewMessage(msg *domain.Message) {
	evt, err := NewEvent(EventTypeMessageNew, &msg.ConversationID, MessagePayload{Message: *msg})
	if err != nil {
		log.Error().Err(err).Msg("ws notifier: build event")
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("ws notifier: marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := n.broker.Publish(ctx, msg.ConversationID, data); err != nil {
		log.Error().Err(err).Str("conversation_id", msg.ConversationID.String()).Msg("ws notifier: publish")
	}
}
