package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

const kafkaMaxRetries = 3

// NewKafkaProducer creates a synchronous producer suited to KafkaSink.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = kafkaMaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaSink publishes records to a topic keyed by session id, so every
// flush of one session lands on the same partition in order.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string

	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink wraps producer.
func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return "kafka" }

// Save implements Sink.
func (s *KafkaSink) Save(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &SinkError{Sink: s.Name(), Err: ErrSinkClosed}
	}
	if err := ctx.Err(); err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: fmt.Errorf("marshal record: %w", err)}
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(rec.SessionID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("session_type"), Value: []byte(rec.SessionKind)},
		},
		Timestamp: time.Now(),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}

// Close closes the producer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.producer.Close()
}
