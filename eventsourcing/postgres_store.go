package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresEventStoreConfig конфигурация для PostgreSQL Event Store
type PostgresEventStoreConfig struct {
	DSN             string
	SchemaName      string
	TableName       string
	IndexTableName  string
	AggregateType   string
	MaxConns        int32
	ConnMaxLifetime time.Duration
}

// Validate проверяет корректность конфигурации
func (c *PostgresEventStoreConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.SchemaName == "" {
		c.SchemaName = "public"
	}
	if c.TableName == "" {
		c.TableName = "account_events"
	}
	if c.IndexTableName == "" {
		c.IndexTableName = "account_index"
	}
	if c.AggregateType == "" {
		c.AggregateType = "Account"
	}
	return nil
}

// DefaultPostgresEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultPostgresEventStoreConfig() PostgresEventStoreConfig {
	return PostgresEventStoreConfig{
		SchemaName:      "public",
		TableName:       "account_events",
		IndexTableName:  "account_index",
		AggregateType:   "Account",
		MaxConns:        25,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresEventStore реализация EventStore поверх PostgreSQL.
// Оптимистичная конкурентность: сравнение версии внутри транзакции плюс
// уникальный констрейнт (aggregate_id, version) как последний рубеж
// против гонки писателей.
type PostgresEventStore struct {
	config       PostgresEventStoreConfig
	pool         *pgxpool.Pool
	deserializer *EventRegistry
}

// NewPostgresEventStore создает новый PostgreSQL Event Store
func NewPostgresEventStore(ctx context.Context, config PostgresEventStoreConfig, registry *EventRegistry) (*PostgresEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &StorageError{Op: "connect", Err: err}
	}

	return &PostgresEventStore{
		config:       config,
		pool:         pool,
		deserializer: registry,
	}, nil
}

// Close закрывает пул соединений
func (s *PostgresEventStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck проверяет доступность хранилища
func (s *PostgresEventStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// AppendEvents атомарно добавляет события в поток агрегата
func (s *PostgresEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []Event, entries ...IndexEntry) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &StorageError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	currentVersion, err := s.currentVersionTx(ctx, tx, aggregateID)
	if err != nil {
		return err
	}

	if expectedVersion != currentVersion {
		return &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: currentVersion}
	}

	insertEvent := fmt.Sprintf(`
		INSERT INTO %s (event_id, aggregate_id, aggregate_type, event_type, schema_version, version, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.eventsTable())

	for i, event := range events {
		payload, err := Serialize(event)
		if err != nil {
			return err
		}

		version := expectedVersion + int64(i) + 1
		_, err = tx.Exec(ctx, insertEvent,
			event.EventID(),
			aggregateID,
			s.config.AggregateType,
			event.EventType(),
			event.SchemaVersion(),
			version,
			payload,
			event.OccurredAt(),
		)
		if err != nil {
			return s.classifyAppendError(aggregateID, expectedVersion, err)
		}
	}

	insertIndex := fmt.Sprintf(`
		INSERT INTO %s (index_name, index_key, aggregate_id)
		VALUES ($1, $2, $3)
	`, s.indexTable())

	for _, entry := range entries {
		if _, err := tx.Exec(ctx, insertIndex, entry.Name, entry.Key, aggregateID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s=%s", ErrDuplicateIndexKey, entry.Name, entry.Key)
			}
			return &StorageError{Op: "insert index entry", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return s.classifyAppendError(aggregateID, expectedVersion, err)
	}
	return nil
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *PostgresEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, aggregate_type, event_type, schema_version, version, payload, occurred_at, created_at
		FROM %s
		WHERE aggregate_id = $1 AND version >= $2
		ORDER BY version ASC
	`, s.eventsTable())

	rows, err := s.pool.Query(ctx, query, aggregateID, fromVersion)
	if err != nil {
		return nil, &StorageError{Op: "query events", Err: err}
	}
	defer rows.Close()

	var result []StoredEvent
	for rows.Next() {
		var stored StoredEvent
		if err := rows.Scan(
			&stored.ID,
			&stored.AggregateID,
			&stored.AggregateType,
			&stored.EventType,
			&stored.SchemaVersion,
			&stored.Version,
			&stored.Payload,
			&stored.OccurredAt,
			&stored.CreatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan event", Err: err}
		}

		if s.deserializer != nil {
			event, err := s.deserializer.Deserialize(stored.EventType, stored.Payload)
			if err != nil {
				return nil, err
			}
			stored.Event = event
		}
		result = append(result, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate events", Err: err}
	}

	// Пустой результат означает отсутствие потока только при fromVersion <= 1:
	// существующий поток без событий новее fromVersion отдаем пустым срезом
	if len(result) == 0 {
		version, err := s.CurrentVersion(ctx, aggregateID)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, ErrStreamNotFound
		}
	}
	return result, nil
}

// CurrentVersion возвращает наибольшую сохраненную версию агрегата
func (s *PostgresEventStore) CurrentVersion(ctx context.Context, aggregateID string) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE aggregate_id = $1", s.eventsTable())

	var version int64
	if err := s.pool.QueryRow(ctx, query, aggregateID).Scan(&version); err != nil {
		return 0, &StorageError{Op: "query current version", Err: err}
	}
	return version, nil
}

// Lookup возвращает aggregate id по ключу уникального индекса
func (s *PostgresEventStore) Lookup(ctx context.Context, name, key string) (string, error) {
	query := fmt.Sprintf(`
		SELECT aggregate_id FROM %s
		WHERE index_name = $1 AND index_key = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, s.indexTable())

	var aggregateID string
	err := s.pool.QueryRow(ctx, query, name, key).Scan(&aggregateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrIndexEntryNotFound
	}
	if err != nil {
		return "", &StorageError{Op: "lookup index", Err: err}
	}
	return aggregateID, nil
}

// LookupAll возвращает все aggregate id по ключу индекса
func (s *PostgresEventStore) LookupAll(ctx context.Context, name, key string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT aggregate_id FROM %s
		WHERE index_name = $1 AND index_key = $2
		ORDER BY created_at ASC
	`, s.indexTable())

	rows, err := s.pool.Query(ctx, query, name, key)
	if err != nil {
		return nil, &StorageError{Op: "lookup index", Err: err}
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var aggregateID string
		if err := rows.Scan(&aggregateID); err != nil {
			return nil, &StorageError{Op: "scan index entry", Err: err}
		}
		result = append(result, aggregateID)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate index entries", Err: err}
	}
	return result, nil
}

func (s *PostgresEventStore) eventsTable() string {
	return fmt.Sprintf("%s.%s", s.config.SchemaName, s.config.TableName)
}

func (s *PostgresEventStore) indexTable() string {
	return fmt.Sprintf("%s.%s", s.config.SchemaName, s.config.IndexTableName)
}

// currentVersionTx читает текущую версию внутри транзакции append
func (s *PostgresEventStore) currentVersionTx(ctx context.Context, tx pgx.Tx, aggregateID string) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE aggregate_id = $1", s.eventsTable())

	var version int64
	if err := tx.QueryRow(ctx, query, aggregateID).Scan(&version); err != nil {
		return 0, &StorageError{Op: "check current version", Err: err}
	}
	return version, nil
}

// classifyAppendError: нарушение уникальности (aggregate_id, version)
// означает гонку писателей, остальное — сбой хранилища
func (s *PostgresEventStore) classifyAppendError(aggregateID string, expectedVersion int64, err error) error {
	if isUniqueViolation(err) {
		return &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: -1}
	}
	return &StorageError{Op: "append events", Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
