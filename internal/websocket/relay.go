package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Relay fans notifications out across instances through a Redis channel.
// Local clients are served directly; messages from other instances are
// rebroadcast to the local hub.
type Relay struct {
	hub     *Hub
	client  *redis.Client
	pub     publisher
	channel string
	origin  string
	logger  *slog.Logger
}

func NewRelay(hub *Hub, client *redis.Client, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		hub:     hub,
		client:  client,
		pub:     client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// Broadcast delivers msg locally and publishes it for the other instances.
func (r *Relay) Broadcast(msg Message) {
	r.hub.Broadcast(msg)

	msg.Origin = r.origin
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal relay message", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.pub.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("publish relay message", "channel", r.channel, "error", err)
	}
}

// Run subscribes to the channel until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	r.logger.Info("relay subscribed", "channel", r.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(m.Payload)
		}
	}
}

// deliver rebroadcasts a payload from another instance. Our own messages
// were already delivered locally by Broadcast.
func (r *Relay) deliver(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("decode relay message", "error", err)
		return
	}
	if msg.Origin == r.origin {
		return
	}
	r.hub.Broadcast(msg)
}

// Ping reports whether redis is reachable.
func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
