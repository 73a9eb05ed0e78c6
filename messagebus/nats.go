package messagebus

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig конфигурация для NATS адаптера
type NATSConfig struct {
	URL               string
	MaxReconnects     int
	ReconnectWait     time.Duration
	DrainTimeout      time.Duration
	ConnectionTimeout time.Duration
	TLS               *tls.Config
	Token             string
	Username          string
	Password          string
}

// Validate проверяет корректность конфигурации
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(c.URL, "nats://") && !strings.HasPrefix(c.URL, "tls://") {
		return fmt.Errorf("URL must start with nats:// or tls://")
	}
	return nil
}

// DefaultNATSConfig возвращает конфигурацию NATS по умолчанию
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               "nats://localhost:4222",
		MaxReconnects:     10,
		ReconnectWait:     2 * time.Second,
		DrainTimeout:      30 * time.Second,
		ConnectionTimeout: 5 * time.Second,
	}
}

// NATSAdapter реализация MessageBus через NATS
type NATSAdapter struct {
	config  NATSConfig
	conn    *nats.Conn
	subs    map[string]*nats.Subscription
	mu      sync.RWMutex
	running bool
}

// NATSAdapterBuilder построитель для NATS адаптера
type NATSAdapterBuilder struct {
	config NATSConfig
}

// NewNATSAdapterBuilder создает новый построитель NATS адаптера
func NewNATSAdapterBuilder() *NATSAdapterBuilder {
	return &NATSAdapterBuilder{
		config: DefaultNATSConfig(),
	}
}

// WithURL устанавливает URL NATS сервера
func (b *NATSAdapterBuilder) WithURL(url string) *NATSAdapterBuilder {
	b.config.URL = url
	return b
}

// WithMaxReconnects устанавливает максимальное количество переподключений
func (b *NATSAdapterBuilder) WithMaxReconnects(maxReconnects int) *NATSAdapterBuilder {
	b.config.MaxReconnects = maxReconnects
	return b
}

// WithReconnectWait устанавливает задержку между переподключениями
func (b *NATSAdapterBuilder) WithReconnectWait(wait time.Duration) *NATSAdapterBuilder {
	b.config.ReconnectWait = wait
	return b
}

// WithConnectionTimeout устанавливает таймаут подключения
func (b *NATSAdapterBuilder) WithConnectionTimeout(timeout time.Duration) *NATSAdapterBuilder {
	b.config.ConnectionTimeout = timeout
	return b
}

// WithTLS устанавливает TLS конфигурацию
func (b *NATSAdapterBuilder) WithTLS(tlsConfig *tls.Config) *NATSAdapterBuilder {
	b.config.TLS = tlsConfig
	return b
}

// WithToken устанавливает токен аутентификации
func (b *NATSAdapterBuilder) WithToken(token string) *NATSAdapterBuilder {
	b.config.Token = token
	return b
}

// WithCredentials устанавливает username и password
func (b *NATSAdapterBuilder) WithCredentials(username, password string) *NATSAdapterBuilder {
	b.config.Username = username
	b.config.Password = password
	return b
}

// Build создает NATS адаптер
func (b *NATSAdapterBuilder) Build() (*NATSAdapter, error) {
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}
	return &NATSAdapter{
		config: b.config,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// NewNATSAdapter создает новый NATS адаптер с конфигурацией по умолчанию
func NewNATSAdapter(url string) (*NATSAdapter, error) {
	return NewNATSAdapterBuilder().WithURL(url).Build()
}

// Start запускает адаптер
func (n *NATSAdapter) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return nil
	}

	opts := []nats.Option{
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(n.config.ConnectionTimeout),
	}
	if n.config.TLS != nil {
		opts = append(opts, nats.Secure(n.config.TLS))
	}
	if n.config.Token != "" {
		opts = append(opts, nats.Token(n.config.Token))
	}
	if n.config.Username != "" && n.config.Password != "" {
		opts = append(opts, nats.UserInfo(n.config.Username, n.config.Password))
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n.conn = conn
	n.running = true
	return nil
}

// Stop останавливает адаптер
func (n *NATSAdapter) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	for subject, sub := range n.subs {
		_ = sub.Unsubscribe()
		delete(n.subs, subject)
	}

	if n.conn != nil && n.conn.IsConnected() {
		_ = n.conn.Drain()
		n.conn.Close()
	}

	n.running = false
	return nil
}

// IsRunning проверяет, запущен ли адаптер
func (n *NATSAdapter) IsRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.running
}

// Publish публикует сообщение в subject
func (n *NATSAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	n.mu.RLock()
	conn := n.conn
	n.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("nats adapter is not connected")
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if len(headers) > 0 {
		msg.Header = make(nats.Header, len(headers))
		for k, v := range headers {
			msg.Header.Set(k, v)
		}
	}

	if err := conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe подписывается на subject
func (n *NATSAdapter) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		return fmt.Errorf("nats adapter is not connected")
	}

	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		busMsg := &Message{
			Subject: msg.Subject,
			Data:    msg.Data,
			Headers: make(map[string]string),
		}
		for k, values := range msg.Header {
			if len(values) > 0 {
				busMsg.Headers[k] = values[0]
			}
		}
		_ = handler(context.Background(), busMsg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	n.subs[subject] = sub
	return nil
}

// Unsubscribe отписывается от subject
func (n *NATSAdapter) Unsubscribe(subject string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub, ok := n.subs[subject]
	if !ok {
		return nil
	}
	delete(n.subs, subject)
	return sub.Unsubscribe()
}
