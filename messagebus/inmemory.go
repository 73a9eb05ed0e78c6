package messagebus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// InMemoryConfig конфигурация для InMemory адаптера
type InMemoryConfig struct {
	BufferSize int
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		BufferSize: 1000,
	}
}

// InMemoryAdapter реализация MessageBus в памяти для тестов и разработки.
// Доставка синхронная: Publish вызывает обработчиков в горутине вызывающего.
type InMemoryAdapter struct {
	config      InMemoryConfig
	subscribers map[string][]MessageHandler
	mu          sync.RWMutex
	running     bool
	published   []*Message
}

// NewInMemoryAdapter создает новый InMemory адаптер
func NewInMemoryAdapter(config InMemoryConfig) *InMemoryAdapter {
	return &InMemoryAdapter{
		config:      config,
		subscribers: make(map[string][]MessageHandler),
	}
}

// Start запускает адаптер
func (i *InMemoryAdapter) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = true
	return nil
}

// Stop останавливает адаптер
func (i *InMemoryAdapter) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер
func (i *InMemoryAdapter) IsRunning() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.running
}

// Publish публикует сообщение в subject
func (i *InMemoryAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return fmt.Errorf("inmemory adapter is not running")
	}
	msg := &Message{Subject: subject, Data: data, Headers: headers}
	i.published = append(i.published, msg)
	handlers := make([]MessageHandler, len(i.subscribers[subject]))
	copy(handlers, i.subscribers[subject])
	i.mu.Unlock()

	// Ошибка одного обработчика не лишает доставки остальных
	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe подписывается на subject
func (i *InMemoryAdapter) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.subscribers[subject] = append(i.subscribers[subject], handler)
	return nil
}

// Unsubscribe отписывается от subject
func (i *InMemoryAdapter) Unsubscribe(subject string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.subscribers, subject)
	return nil
}

// Published возвращает все опубликованные сообщения (для тестов)
func (i *InMemoryAdapter) Published() []*Message {
	i.mu.RLock()
	defer i.mu.RUnlock()
	result := make([]*Message, len(i.published))
	copy(result, i.published)
	return result
}
