package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	redisclient "github.com/partaibook/vendor-discovery/internal/infrastructure/clients/redis"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

const subscriberBuffer = 16

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.MarkerUpdate]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.MarkerUpdate]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish publishes a marker update to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, update *entities.MarkerUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal marker update: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish marker update: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Int("features", len(update.Features.Features)).
		Msg("published marker update")
	return nil
}

// Subscribe subscribes to marker updates on a channel. The subscription is
// confirmed by Redis before Subscribe returns.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MarkerUpdate, error) {
	b.mu.Lock()

	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		b.subscriptions[channel] = pubsub
		go b.receiveMessages(channel, pubsub)
	}

	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.MarkerUpdate]struct{})
	}

	updates := make(chan *entities.MarkerUpdate, subscriberBuffer)
	b.subscribers[channel][updates] = struct{}{}
	subscriberCount := len(b.subscribers[channel])
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", subscriberCount).Msg("subscribed")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, updates)
	}()

	return updates, nil
}

// receiveMessages receives messages from Redis and broadcasts them to subscribers
func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	defer b.cleanupChannel(channel, pubsub)

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var update entities.MarkerUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable marker update")
				continue
			}

			b.mu.RLock()
			for subscriber := range b.subscribers[channel] {
				select {
				case subscriber <- &update:
				default:
					// Slow subscribers only need the newest markers.
					log.Warn().Str("channel", channel).Msg("subscriber buffer full, dropping marker update")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, updates chan *entities.MarkerUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}
	if _, ok := subscribers[updates]; !ok {
		return
	}

	delete(subscribers, updates)
	close(updates)

	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
		if pubsub, ok := b.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(b.subscriptions, channel)
			log.Debug().Str("channel", channel).Msg("closed subscription")
		}
	}
}

// cleanupChannel drops a channel's subscribers, but only while pubsub is
// still the live subscription for it.
func (b *RedisEventBus) cleanupChannel(channel string, pubsub *redis.PubSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.subscriptions[channel]; !ok || current != pubsub {
		return
	}

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	delete(b.subscribers, channel)

	if err := pubsub.Close(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("failed to close subscription")
	}
	delete(b.subscriptions, channel)
}

// Unsubscribe unsubscribes every local subscriber from a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.RLock()
	pubsub, ok := b.subscriptions[channel]
	b.mu.RUnlock()
	if ok {
		b.cleanupChannel(channel, pubsub)
	}
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.RLock()
	subs := make(map[string]*redis.PubSub, len(b.subscriptions))
	for channel, pubsub := range b.subscriptions {
		subs[channel] = pubsub
	}
	b.mu.RUnlock()

	for channel, pubsub := range subs {
		b.cleanupChannel(channel, pubsub)
	}

	log.Info().Msg("event bus closed")
	return nil
}

// CheckoutPublisher hands shortlists to the checkout service over Redis.
type CheckoutPublisher struct {
	client  *redisclient.Client
	channel string
}

var _ providers.CheckoutProvider = (*CheckoutPublisher)(nil)

// NewCheckoutPublisher publishes handoffs on the checkout channel
func NewCheckoutPublisher(client *redisclient.Client) *CheckoutPublisher {
	return &CheckoutPublisher{client: client, channel: providers.EventChannelCheckoutHandoffs}
}

// HandOff publishes the handoff and fails when no checkout consumer is listening
func (p *CheckoutPublisher) HandOff(ctx context.Context, handoff *entities.BookingHandoff) error {
	data, err := json.Marshal(handoff)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}

	receivers, err := p.client.Client().Publish(ctx, p.channel, data).Result()
	if err != nil {
		return apperrors.NewExternalError("failed to publish handoff", err)
	}
	if receivers == 0 {
		return ErrNoCheckoutConsumer
	}

	log.Info().
		Str("handoff_id", handoff.ID).
		Str("session_id", handoff.SessionID).
		Int("vendors", len(handoff.VendorIDs)).
		Msg("shortlist handed off to checkout")
	return nil
}

// ErrNoCheckoutConsumer is returned when nothing is subscribed to the checkout channel.
var ErrNoCheckoutConsumer = apperrors.NewUnavailableError("no checkout consumer subscribed")
