package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/havenapp/whisper-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	// EventTypeMessage carries a freshly appended channel message.
	EventTypeMessage = "message"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is one live subscription to a whisper channel's event stream.
type Client struct {
	ChannelID string
	Events    chan Event
	Done      chan struct{}
}

// Broker fans channel events out to every subscribed client. Events travel
// through Redis pub/sub so fan-out works across server instances.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // channelID -> set of clients
	readers map[string]chan struct{}    // channelID -> pub/sub reader stop signal
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		readers: make(map[string]chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(channelID string) *Client {
	client := &Client{
		ChannelID: channelID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[channelID] == nil {
		b.clients[channelID] = make(map[*Client]bool)
		stop := make(chan struct{})
		b.readers[channelID] = stop
		go b.subscribeToRedis(channelID, stop)
	}
	b.clients[channelID][client] = true
	clientCount := len(b.clients[channelID])
	b.mu.Unlock()

	log.Info().
		Str("channelId", channelID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.ChannelID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.ChannelID)
			// Stop the channel's pub/sub reader so a later resubscribe
			// starts exactly one fresh reader on the topic.
			if stop, ok := b.readers[client.ChannelID]; ok {
				close(stop)
				delete(b.readers, client.ChannelID)
			}
		}

		log.Info().
			Str("channelId", client.ChannelID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, channelID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := redisclient.ChannelTopic(channelID)
	return b.redis.Publish(ctx, topic, data).Err()
}

func (b *Broker) subscribeToRedis(channelID string, stop <-chan struct{}) {
	topic := redisclient.ChannelTopic(channelID)
	pubsub := b.redis.Subscribe(b.ctx, topic)
	defer pubsub.Close()

	log.Debug().
		Str("channelId", channelID).
		Str("topic", topic).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case <-stop:
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(channelID, event)
		}
	}
}

func (b *Broker) broadcast(channelID string, event Event) {
	b.mu.RLock()
	clients := b.clients[channelID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("channelId", channelID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.readers = make(map[string]chan struct{})
}

func (b *Broker) ClientCount(channelID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[channelID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
