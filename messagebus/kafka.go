package messagebus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig конфигурация для Kafka адаптера
type KafkaConfig struct {
	Brokers       []string
	GroupID       string
	BatchSize     int
	FlushInterval time.Duration
	RequiredAcks  int
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	for i, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("broker[%d] cannot be empty", i)
		}
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("broker[%d] must be in format host:port", i)
		}
	}
	return nil
}

// DefaultKafkaConfig возвращает конфигурацию Kafka по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		GroupID:       "account-service",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
		RequiredAcks:  -1,
		MinBytes:      10e3,
		MaxBytes:      10e6,
		MaxWait:       1 * time.Second,
	}
}

// KafkaAdapter реализация MessageBus через Kafka.
// Subject отображается в topic один к одному.
type KafkaAdapter struct {
	config  KafkaConfig
	writer  *kafka.Writer
	subs    map[string]*kafka.Reader
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
}

// NewKafkaAdapter создает новый Kafka адаптер
func NewKafkaAdapter(config KafkaConfig) (*KafkaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	return &KafkaAdapter{
		config:  config,
		subs:    make(map[string]*kafka.Reader),
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// Start запускает адаптер
func (k *KafkaAdapter) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running {
		return nil
	}

	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(k.config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(k.config.RequiredAcks),
		BatchSize:    k.config.BatchSize,
		BatchTimeout: k.config.FlushInterval,
	}
	k.running = true
	return nil
}

// Stop останавливает адаптер
func (k *KafkaAdapter) Stop(ctx context.Context) error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	for topic, cancel := range k.cancels {
		cancel()
		delete(k.cancels, topic)
	}
	readers := make([]*kafka.Reader, 0, len(k.subs))
	for topic, reader := range k.subs {
		readers = append(readers, reader)
		delete(k.subs, topic)
	}
	writer := k.writer
	k.writer = nil
	k.running = false
	k.mu.Unlock()

	k.wg.Wait()

	var errs []error
	for _, reader := range readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsRunning проверяет, запущен ли адаптер
func (k *KafkaAdapter) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.running
}

// Publish публикует сообщение в topic
func (k *KafkaAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	k.mu.RLock()
	writer := k.writer
	k.mu.RUnlock()

	if writer == nil {
		return fmt.Errorf("kafka adapter is not running")
	}

	msg := kafka.Message{
		Topic: subject,
		Value: data,
	}
	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for key, value := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
		}
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}
	return nil
}

// Subscribe подписывается на topic
func (k *KafkaAdapter) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return fmt.Errorf("kafka adapter is not running")
	}
	if _, exists := k.subs[subject]; exists {
		return fmt.Errorf("already subscribed to %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.config.Brokers,
		GroupID:  k.config.GroupID,
		Topic:    subject,
		MinBytes: k.config.MinBytes,
		MaxBytes: k.config.MaxBytes,
		MaxWait:  k.config.MaxWait,
	})

	readCtx, cancel := context.WithCancel(context.Background())
	k.subs[subject] = reader
	k.cancels[subject] = cancel

	k.wg.Add(1)
	go k.consume(readCtx, reader, handler)
	return nil
}

// consume читает сообщения из reader до отмены контекста
func (k *KafkaAdapter) consume(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	defer k.wg.Done()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			continue
		}

		busMsg := &Message{
			Subject: msg.Topic,
			Data:    msg.Value,
			Headers: make(map[string]string, len(msg.Headers)),
		}
		for _, header := range msg.Headers {
			busMsg.Headers[header.Key] = string(header.Value)
		}
		_ = handler(ctx, busMsg)
	}
}

// Unsubscribe отписывается от topic
func (k *KafkaAdapter) Unsubscribe(subject string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	cancel, ok := k.cancels[subject]
	if ok {
		cancel()
		delete(k.cancels, subject)
	}
	reader, ok := k.subs[subject]
	if !ok {
		return nil
	}
	delete(k.subs, subject)
	return reader.Close()
}
