// Package notify delivers fired alerts to Redis pub/sub subscribers and
// Kafka consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/service"
)

// Event is the JSON payload published for every fired alert.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

func encode(alerts []service.Alert, now time.Time) ([][]byte, error) {
	out := make([][]byte, 0, len(alerts))
	for _, a := range alerts {
		data, err := json.Marshal(Event{
			ID:        a.ID,
			Title:     a.Title,
			Message:   a.Message,
			Value:     a.Value,
			Threshold: a.Threshold,
			FiredAt:   now.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// RedisClient is the subset of *redis.Client the publisher needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisPublisher struct {
	client  RedisClient
	channel string
	logger  *zap.Logger
	now     func() time.Time
}

func NewRedisPublisher(client RedisClient, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger, now: time.Now}
}

// Publish sends one message per alert to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, alerts []service.Alert) error {
	payloads, err := encode(alerts, p.now())
	if err != nil {
		return err
	}
	for i, data := range payloads {
		receivers, err := p.client.Publish(ctx, p.channel, data).Result()
		if err != nil {
			return fmt.Errorf("redis publish %s: %w", alerts[i].ID, err)
		}
		p.logger.Debug("published alert",
			zap.String("channel", p.channel),
			zap.String("alert", alerts[i].ID),
			zap.Int64("receivers", receivers))
	}
	return nil
}

// KafkaWriter is the subset of *kafka.Writer the publisher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer KafkaWriter
	logger *zap.Logger
	now    func() time.Time
}

func NewKafkaPublisher(writer KafkaWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, logger: logger, now: time.Now}
}

// Publish writes the alerts as one batch keyed by alert ID.
func (p *KafkaPublisher) Publish(ctx context.Context, alerts []service.Alert) error {
	now := p.now()
	payloads, err := encode(alerts, now)
	if err != nil {
		return err
	}
	msgs := make([]kafka.Message, len(payloads))
	for i, data := range payloads {
		msgs[i] = kafka.Message{Key: []byte(alerts[i].ID), Value: data, Time: now}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("published alerts", zap.Int("messages", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Multi publishes to every sink and joins their errors.
type Multi []service.AlertPublisher

func (m Multi) Publish(ctx context.Context, alerts []service.Alert) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
