package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"careline/pkg/logger"
)

const relayChannelPrefix = "careline:deliver:"

// RelayMessage is the envelope published between server instances so a
// recipient's devices connected elsewhere still receive the push.
type RelayMessage struct {
	FromServerID string `json:"fromServerId"`
	ToUserID     string `json:"toUserId"`
	Payload      []byte `json:"payload"`
}

// RedisHub routes locally like Hub and additionally relays every push over
// Redis pub/sub, so fan-out reaches connections held by other instances.
// Delivery stays best effort: a relay miss is indistinguishable from an
// offline recipient and the message is durable either way.
type RedisHub struct {
	local       *Hub
	redisClient *redis.Client
	pubsub      *redis.PubSub
	serverID    string
	log         *logger.Logger
}

func NewRedisHub(client *redis.Client, serverID string, log *logger.Logger) *RedisHub {
	hub := &RedisHub{
		local:       NewHub(log),
		redisClient: client,
		serverID:    serverID,
		log:         log,
	}
	hub.pubsub = client.PSubscribe(context.Background(), relayChannelPrefix+"*")
	return hub
}

func (h *RedisHub) Run() {
	go h.subscribeRelay()
	h.local.Run()
}

func (h *RedisHub) subscribeRelay() {
	ch := h.pubsub.Channel()
	h.log.Info("relay subscriber started", zap.String("server_id", h.serverID))

	for msg := range ch {
		var relay RelayMessage
		if err := json.Unmarshal([]byte(msg.Payload), &relay); err != nil {
			h.log.Warn("bad relay payload", zap.Error(err))
			continue
		}

		// our own publishes come back on the pattern subscription
		if relay.FromServerID == h.serverID {
			continue
		}

		h.local.SendToUser(relay.ToUserID, relay.Payload)
	}
}

func (h *RedisHub) SendToUser(userId string, message []byte) int {
	pushed := h.local.SendToUser(userId, message)
	h.publishRelay(userId, message)
	return pushed
}

func (h *RedisHub) publishRelay(userId string, message []byte) {
	relay := RelayMessage{
		FromServerID: h.serverID,
		ToUserID:     userId,
		Payload:      message,
	}

	payload, err := json.Marshal(relay)
	if err != nil {
		h.log.Error("marshal relay message", zap.Error(err))
		return
	}

	if err := h.redisClient.Publish(context.Background(), relayChannelPrefix+userId, payload).Err(); err != nil {
		h.log.Error("publish relay message", zap.Error(err), zap.String("user_id", userId))
	}
}

func (h *RedisHub) ConnectionCount(userId string) int {
	return h.local.ConnectionCount(userId)
}

func (h *RedisHub) RegisterClient(client *UserClient) {
	h.local.RegisterClient(client)
}

func (h *RedisHub) UnregisterClient(client *UserClient) {
	h.local.UnregisterClient(client)
}

func (h *RedisHub) SetOnUserOffline(callback func(userId string)) {
	h.local.SetOnUserOffline(callback)
}
