package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "journey:"
	channelSuffix  = ":samples"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans live samples out to the websocket clients watching a session.
// With Redis configured, broadcasts are relayed to every other instance.
type Hub struct {
	redis  *redis.Client
	origin string
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

type Client struct {
	SessionID string
	Send      chan []byte
}

type relayMessage struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:   redisClient,
		origin:  uuid.NewString(),
		cancel:  cancel,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Printf("redis subscribe error: %v", err)
		}
		go h.relay(ctx, pubsub)
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		if _, ok := sessionClients[client]; !ok {
			return
		}
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
		close(client.Send)
	}
}

// Watchers reports how many local clients follow sessionID.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast delivers payload to local clients and publishes it for other
// instances. Slow clients drop messages rather than block the recorder.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis != nil {
		msg, err := json.Marshal(relayMessage{Origin: h.origin, Payload: payload})
		if err != nil {
			log.Printf("relay encode error: %v", err)
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel(sessionID), msg).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) relay(ctx context.Context, pubsub *redis.PubSub) {
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
			var relayed relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &relayed); err != nil {
				log.Printf("relay decode error on %s: %v", msg.Channel, err)
				continue
			}
			if relayed.Origin == h.origin {
				continue
			}
			if sessionID := sessionIDFromChannel(msg.Channel); sessionID != "" {
				h.deliver(sessionID, relayed.Payload)
			}
		}
	}
}

// Close stops the Redis relay.
func (h *Hub) Close() {
	h.cancel()
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	// journey:{session}:samples
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
