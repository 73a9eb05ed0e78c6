package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBEventStoreConfig конфигурация для MongoDB Event Store
type MongoDBEventStoreConfig struct {
	URI             string
	Database        string
	Collection      string
	IndexCollection string
	AggregateType   string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
}

// Validate проверяет корректность конфигурации
func (c *MongoDBEventStoreConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		c.Database = "vaultstream"
	}
	if c.Collection == "" {
		c.Collection = "account_events"
	}
	if c.IndexCollection == "" {
		c.IndexCollection = "account_index"
	}
	if c.AggregateType == "" {
		c.AggregateType = "Account"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}

// DefaultMongoDBEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultMongoDBEventStoreConfig() MongoDBEventStoreConfig {
	return MongoDBEventStoreConfig{
		Database:        "vaultstream",
		Collection:      "account_events",
		IndexCollection: "account_index",
		AggregateType:   "Account",
		Timeout:         10 * time.Second,
		MaxPoolSize:     100,
		MinPoolSize:     10,
	}
}

type storedEventDocument struct {
	EventID       string    `bson:"event_id"`
	AggregateID   string    `bson:"aggregate_id"`
	AggregateType string    `bson:"aggregate_type"`
	EventType     string    `bson:"event_type"`
	SchemaVersion int       `bson:"schema_version"`
	Version       int64     `bson:"version"`
	Payload       []byte    `bson:"payload"`
	OccurredAt    time.Time `bson:"occurred_at"`
	CreatedAt     time.Time `bson:"created_at"`
}

type indexEntryDocument struct {
	IndexName   string    `bson:"index_name"`
	IndexKey    string    `bson:"index_key"`
	AggregateID string    `bson:"aggregate_id"`
	CreatedAt   time.Time `bson:"created_at"`
}

// MongoDBEventStore реализация EventStore поверх MongoDB.
// Append выполняется в транзакции сессии: проверка версии, вставка событий
// и записей индекса фиксируются или откатываются целиком. Уникальный индекс
// (aggregate_id, version) дополнительно отсекает гонку писателей.
type MongoDBEventStore struct {
	config       MongoDBEventStoreConfig
	client       *mongo.Client
	events       *mongo.Collection
	index        *mongo.Collection
	deserializer *EventRegistry
}

// NewMongoDBEventStore создает новый MongoDB Event Store
func NewMongoDBEventStore(ctx context.Context, config MongoDBEventStoreConfig, registry *EventRegistry) (*MongoDBEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, &StorageError{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, &StorageError{Op: "ping", Err: err}
	}

	db := client.Database(config.Database)
	store := &MongoDBEventStore{
		config:       config,
		client:       client,
		events:       db.Collection(config.Collection),
		index:        db.Collection(config.IndexCollection),
		deserializer: registry,
	}

	if err := store.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MongoDBEventStore) ensureIndexes(ctx context.Context) error {
	eventIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "aggregate_id", Value: 1},
				{Key: "version", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "aggregate_id", Value: 1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
		{Keys: bson.D{{Key: "occurred_at", Value: 1}}},
	}
	if _, err := s.events.Indexes().CreateMany(ctx, eventIndexes); err != nil {
		return &StorageError{Op: "create event indexes", Err: err}
	}

	indexIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "index_name", Value: 1},
				{Key: "index_key", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "index_name", Value: IndexAccountNumber}}),
		},
		{
			Keys: bson.D{
				{Key: "index_name", Value: 1},
				{Key: "index_key", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
	}
	if _, err := s.index.Indexes().CreateMany(ctx, indexIndexes); err != nil {
		return &StorageError{Op: "create lookup indexes", Err: err}
	}
	return nil
}

// Close закрывает соединение с MongoDB
func (s *MongoDBEventStore) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck проверяет доступность хранилища
func (s *MongoDBEventStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// AppendEvents атомарно добавляет события в поток агрегата
func (s *MongoDBEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []Event, entries ...IndexEntry) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(events))
	for i, event := range events {
		payload, err := Serialize(event)
		if err != nil {
			return err
		}
		docs = append(docs, storedEventDocument{
			EventID:       event.EventID(),
			AggregateID:   aggregateID,
			AggregateType: s.config.AggregateType,
			EventType:     event.EventType(),
			SchemaVersion: event.SchemaVersion(),
			Version:       expectedVersion + int64(i) + 1,
			Payload:       payload,
			OccurredAt:    event.OccurredAt(),
			CreatedAt:     now,
		})
	}

	session, err := s.client.StartSession()
	if err != nil {
		return &StorageError{Op: "start session", Err: err}
	}
	defer session.EndSession(ctx)

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(); err != nil {
			return &StorageError{Op: "start transaction", Err: err}
		}

		currentVersion, err := s.CurrentVersion(sc, aggregateID)
		if err != nil {
			_ = session.AbortTransaction(sc)
			return err
		}
		if expectedVersion != currentVersion {
			_ = session.AbortTransaction(sc)
			return &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: currentVersion}
		}

		if _, err := s.events.InsertMany(sc, docs, options.InsertMany().SetOrdered(true)); err != nil {
			_ = session.AbortTransaction(sc)
			if mongo.IsDuplicateKeyError(err) {
				return &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: -1}
			}
			return &StorageError{Op: "append events", Err: err}
		}

		for _, entry := range entries {
			doc := indexEntryDocument{
				IndexName:   entry.Name,
				IndexKey:    entry.Key,
				AggregateID: aggregateID,
				CreatedAt:   now,
			}
			if _, err := s.index.InsertOne(sc, doc); err != nil {
				_ = session.AbortTransaction(sc)
				if mongo.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: %s=%s", ErrDuplicateIndexKey, entry.Name, entry.Key)
				}
				return &StorageError{Op: "insert index entry", Err: err}
			}
		}

		if err := session.CommitTransaction(sc); err != nil {
			return &StorageError{Op: "commit transaction", Err: err}
		}
		return nil
	})
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *MongoDBEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	filter := bson.M{
		"aggregate_id": aggregateID,
		"version":      bson.M{"$gte": fromVersion},
	}
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, &StorageError{Op: "query events", Err: err}
	}
	defer cursor.Close(ctx)

	var result []StoredEvent
	for cursor.Next(ctx) {
		var doc storedEventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, &StorageError{Op: "decode event", Err: err}
		}

		stored := StoredEvent{
			ID:            doc.EventID,
			AggregateID:   doc.AggregateID,
			AggregateType: doc.AggregateType,
			EventType:     doc.EventType,
			SchemaVersion: doc.SchemaVersion,
			Version:       doc.Version,
			Payload:       doc.Payload,
			OccurredAt:    doc.OccurredAt,
			CreatedAt:     doc.CreatedAt,
		}
		if s.deserializer != nil {
			event, err := s.deserializer.Deserialize(doc.EventType, doc.Payload)
			if err != nil {
				return nil, err
			}
			stored.Event = event
		}
		result = append(result, stored)
	}
	if err := cursor.Err(); err != nil {
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
func (s *MongoDBEventStore) CurrentVersion(ctx context.Context, aggregateID string) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.D{{Key: "version", Value: 1}})

	var doc struct {
		Version int64 `bson:"version"`
	}
	err := s.events.FindOne(ctx, bson.M{"aggregate_id": aggregateID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, &StorageError{Op: "query current version", Err: err}
	}
	return doc.Version, nil
}

// Lookup возвращает aggregate id по ключу уникального индекса
func (s *MongoDBEventStore) Lookup(ctx context.Context, name, key string) (string, error) {
	filter := bson.M{"index_name": name, "index_key": key}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var doc indexEntryDocument
	err := s.index.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrIndexEntryNotFound
	}
	if err != nil {
		return "", &StorageError{Op: "lookup index", Err: err}
	}
	return doc.AggregateID, nil
}

// LookupAll возвращает все aggregate id по ключу индекса
func (s *MongoDBEventStore) LookupAll(ctx context.Context, name, key string) ([]string, error) {
	filter := bson.M{"index_name": name, "index_key": key}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.index.Find(ctx, filter, opts)
	if err != nil {
		return nil, &StorageError{Op: "lookup index", Err: err}
	}
	defer cursor.Close(ctx)

	var result []string
	for cursor.Next(ctx) {
		var doc indexEntryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, &StorageError{Op: "decode index entry", Err: err}
		}
		result = append(result, doc.AggregateID)
	}
	if err := cursor.Err(); err != nil {
		return nil, &StorageError{Op: "iterate index entries", Err: err}
	}
	return result, nil
}
