package broker

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaOptions struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
}

type KafkaOption func(*KafkaOptions)

func WithBrokers(brokers ...string) KafkaOption {
	return func(o *KafkaOptions) {
		o.Brokers = brokers
	}
}

func WithTopic(topic string) KafkaOption {
	return func(o *KafkaOptions) {
		o.Topic = topic
	}
}

func WithBatchTimeout(d time.Duration) KafkaOption {
	return func(o *KafkaOptions) {
		o.BatchTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) KafkaOption {
	return func(o *KafkaOptions) {
		o.WriteTimeout = d
	}
}

// NewKafkaWriter builds a writer for a single topic. The writer dials
// lazily, so no broker is contacted here.
func NewKafkaWriter(opts ...KafkaOption) (*kafka.Writer, error) {
	options := &KafkaOptions{
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if options.Topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(options.Brokers...),
		Topic:                  options.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           options.BatchTimeout,
		WriteTimeout:           options.WriteTimeout,
		RequiredAcks:           options.RequiredAcks,
		AllowAutoTopicCreation: true,
	}, nil
}
