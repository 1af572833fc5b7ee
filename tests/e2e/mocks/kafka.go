package mocks

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// RecordingWriter keeps every message written to it.
type RecordingWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Closed   bool
}

func (w *RecordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *RecordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

// Keys returns the message keys in write order.
func (w *RecordingWriter) Keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, len(w.Messages))
	for i, m := range w.Messages {
		keys[i] = string(m.Key)
	}
	return keys
}
