package events

import (
	"context"
	"encoding/json"
	"sync"

	"designlens/pkg/logger"

	"go.uber.org/zap"
)

// Notifier is the user-facing notification channel. Notify must not block for long and
// never fails the caller; delivery problems are the notifier's own concern.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Publisher is satisfied by the redis publisher.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber is satisfied by the redis subscriber.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("type", n.Type),
		zap.String("session_id", n.SessionID),
		zap.String("attachment_id", n.AttachmentID),
	}
	log := l.log.WithContext(ctx)
	switch n.Level {
	case LevelError:
		log.Error(n.Message, fields...)
	case LevelWarning:
		log.Warn(n.Message, fields...)
	default:
		log.Info(n.Message, fields...)
	}
}

// PubSubNotifier publishes notifications to every channel the resolver names.
type PubSubNotifier struct {
	publisher Publisher
	resolver  ChannelResolver
	log       *logger.Logger
}

func NewPubSubNotifier(p Publisher, r ChannelResolver, l *logger.Logger) *PubSubNotifier {
	if r == nil {
		r = NewSessionChannelResolver()
	}
	return &PubSubNotifier{publisher: p, resolver: r, log: l}
}

func (p *PubSubNotifier) Notify(ctx context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.WithContext(ctx).Error("marshal notification", zap.Error(err))
		return
	}
	// notifications from background tasks arrive after the request is gone
	ctx = context.WithoutCancel(ctx)
	for _, channel := range p.resolver.ResolveChannels(n) {
		if err := p.publisher.Publish(ctx, channel, data); err != nil {
			p.log.WithContext(ctx).Warn("publish notification", zap.String("channel", channel), zap.Error(err))
		}
	}
}

// Fanout forwards to several notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, target := range f {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}

// Recorder keeps notifications in memory. Handy in tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Types lists the notification types seen so far in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	for i, n := range r.items {
		out[i] = n.Type
	}
	return out
}
