package websocket

import (
	"context"
	"encoding/json"

	"designlens/internal/events"
	"designlens/pkg/logger"

	"go.uber.org/zap"
)

// BridgePatterns are the pub/sub patterns every API instance listens on.
var BridgePatterns = []string{"channel:session:*", "channel:account:*"}

// RedisBridge relays notifications published by any instance to the local hub.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, log: log}
}

// Run blocks until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, BridgePatterns, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}

// HubNotifier delivers notifications straight to local clients. It stands in for the
// Redis round trip when no Redis is configured.
type HubNotifier struct {
	hub      *Hub
	resolver events.ChannelResolver
	log      *logger.Logger
}

func NewHubNotifier(hub *Hub, log *logger.Logger) *HubNotifier {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &HubNotifier{hub: hub, resolver: events.NewSessionChannelResolver(), log: log}
}

func (n *HubNotifier) Notify(ctx context.Context, note events.Notification) {
	data, err := json.Marshal(note)
	if err != nil {
		n.log.WithContext(ctx).Error("marshal notification", zap.Error(err))
		return
	}
	for _, channel := range n.resolver.ResolveChannels(note) {
		n.hub.Broadcast(channel, data)
	}
}
