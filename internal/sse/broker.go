package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/duoquiz/duo-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	clientBufferSize = 32
	subscribeTimeout = 5 * time.Second
	EventConnected   = "connected"
	EventRoomUpdated = "room_updated"
	EventRoomDeleted = "room_deleted"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Data: raw}, nil
}

type Client struct {
	RoomID string
	UserID string
	Events chan Event
	Done   chan struct{}
}

type roomSubscription struct {
	clients map[*Client]struct{}
	cancel  context.CancelFunc
}

// Broker fans room events out to the SSE clients of this instance. Events
// travel through Redis pub/sub so every instance sees every publish.
type Broker struct {
	redis  *redisclient.Client
	rooms  map[string]*roomSubscription
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		rooms:  make(map[string]*roomSubscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers a client for roomID. The first client of a room opens
// the Redis subscription and waits for it to be confirmed.
func (b *Broker) Subscribe(roomID, userID string) (*Client, error) {
	client := &Client{
		RoomID: roomID,
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.rooms[roomID]
	if !ok {
		pubsub, err := b.openSubscription(roomID)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(b.ctx)
		sub = &roomSubscription{clients: make(map[*Client]struct{}), cancel: cancel}
		b.rooms[roomID] = sub
		go b.listen(ctx, roomID, pubsub)
	}
	sub.clients[client] = struct{}{}

	log.Info().
		Str("roomId", roomID).
		Str("userId", userID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client subscribed")

	return client, nil
}

func (b *Broker) openSubscription(roomID string) (*redis.PubSub, error) {
	channel := redisclient.RoomChannel(roomID)
	pubsub := b.redis.Subscribe(b.ctx, channel)

	ctx, cancel := context.WithTimeout(b.ctx, subscribeTimeout)
	defer cancel()
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	log.Debug().Str("roomId", roomID).Str("channel", channel).Msg("redis pubsub subscribed")
	return pubsub, nil
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, ok := sub.clients[client]; !ok {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.rooms, client.RoomID)
	}

	log.Info().
		Str("roomId", client.RoomID).
		Str("userId", client.UserID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

// Publish sends event to every subscriber of roomID on every instance.
func (b *Broker) Publish(ctx context.Context, roomID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.RoomChannel(roomID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) listen(ctx context.Context, roomID string, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("roomId", roomID).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(roomID, event)
		}
	}
}

func (b *Broker) broadcast(roomID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, ok := b.rooms[roomID]
	if !ok {
		return
	}

	for client := range sub.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("roomId", roomID).
				Str("userId", client.UserID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.rooms {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.rooms = make(map[string]*roomSubscription)
}

func (b *Broker) ClientCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.rooms[roomID]; ok {
		return len(sub.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, sub := range b.rooms {
		total += len(sub.clients)
	}
	return total
}
