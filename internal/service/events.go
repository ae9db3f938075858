// events.go — канал событий VideoCreated.
// RedisPublisher публикует событие командой PUBLISH в канал (по умолчанию video.created).
// Доставка без подтверждения: ошибки публикации логируются и не влияют на операцию.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

var eventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vm_events_published_total",
		Help: "Количество опубликованных событий по типу и результату.",
	},
	[]string{"event", "outcome"},
)

// publishTimeout — ограничение на одну публикацию.
const publishTimeout = 2 * time.Second

// EventPublisher — получатель событий жизненного цикла видео.
type EventPublisher interface {
	PublishVideoCreated(ctx context.Context, video *model.VideoRecord) error
}

// VideoCreatedEvent — тело события VideoCreated.
type VideoCreatedEvent struct {
	Event         string    `json:"event"`
	VideoID       string    `json:"video_id"`
	RemoteID      string    `json:"remote_id"`
	Title         string    `json:"title"`
	Owner         string    `json:"owner"`
	AccessControl string    `json:"access_control"`
	PlaybackURL   string    `json:"playback_url,omitempty"`
	Synced        bool      `json:"synced"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewVideoCreatedEvent формирует событие по записи.
func NewVideoCreatedEvent(v *model.VideoRecord) VideoCreatedEvent {
	return VideoCreatedEvent{
		Event:         "video.created",
		VideoID:       v.ID,
		RemoteID:      v.RemoteID,
		Title:         v.Title,
		Owner:         v.Owner,
		AccessControl: v.AccessControl.String(),
		PlaybackURL:   v.PlaybackURL,
		Synced:        v.Synced,
		CreatedAt:     v.CreatedAt,
	}
}

// RedisPublisher — публикация событий в Redis Pub/Sub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher создаёт publisher для канала channel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "redis_publisher")),
	}
}

// PublishVideoCreated публикует событие VideoCreated.
func (p *RedisPublisher) PublishVideoCreated(ctx context.Context, v *model.VideoRecord) error {
	payload, err := json.Marshal(NewVideoCreatedEvent(v))
	if err != nil {
		eventsPublishedTotal.WithLabelValues("video.created", "error").Inc()
		return fmt.Errorf("сериализация события: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	receivers, err := p.client.Publish(pubCtx, p.channel, payload).Result()
	if err != nil {
		eventsPublishedTotal.WithLabelValues("video.created", "error").Inc()
		return fmt.Errorf("публикация в канал %s: %w", p.channel, err)
	}

	eventsPublishedTotal.WithLabelValues("video.created", "ok").Inc()
	p.logger.Debug("Событие VideoCreated опубликовано",
		slog.String("video_id", v.ID),
		slog.String("channel", p.channel),
		slog.Int64("receivers", receivers),
	)
	return nil
}

// NopPublisher — publisher без получателей (Redis не настроен).
type NopPublisher struct{}

// PublishVideoCreated ничего не делает.
func (NopPublisher) PublishVideoCreated(context.Context, *model.VideoRecord) error {
	return nil
}
