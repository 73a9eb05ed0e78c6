// Package messagebus предоставляет абстракцию message bus и адаптеры брокеров.
package messagebus

import (
	"context"
)

// Message представляет сообщение в очереди
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// MessageHandler обработчик сообщений
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher публикатор сообщений
type Publisher interface {
	// Publish публикует сообщение в subject
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// Subscriber подписчик на сообщения
type Subscriber interface {
	// Subscribe подписывается на subject и вызывает handler при получении сообщения
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error
	// Unsubscribe отписывается от subject
	Unsubscribe(subject string) error
}

// MessageBus объединяет возможности публикации и подписки
type MessageBus interface {
	Publisher
	Subscriber
}

// Lifecycle жизненный цикл адаптера
type Lifecycle interface {
	// Start запускает адаптер
	Start(ctx context.Context) error
	// Stop останавливает адаптер
	Stop(ctx context.Context) error
	// IsRunning проверяет, запущен ли адаптер
	IsRunning() bool
}
