package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB audit log.
type MongoConfig struct {
	URI        string `yaml:"uri"`        // e.g. mongodb://localhost:27017
	Database   string `yaml:"database"`   // e.g. gravity
	Collection string `yaml:"collection"` // e.g. audit
}

// MongoRepo implements Repository on MongoDB backend.
type MongoRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongoRepo establishes connection and returns repository.
func NewMongoRepo(cfg MongoConfig) (*MongoRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "gravity"
	}
	if cfg.Collection == "" {
		cfg.Collection = "audit"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	repo := &MongoRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}

	if err := repo.ensureIndexes(); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (m *MongoRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	cellIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "cell.x", Value: 1}, {Key: "cell.y", Value: 1}, {Key: "cell.z", Value: 1}},
		Options: options.Index().SetName("cell"),
	}
	atIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "at", Value: -1}},
		Options: options.Index().SetName("at_desc"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{cellIdx, atIdx})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

// Save implements Repository.
func (m *MongoRepo) Save(ctx context.Context, r Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	if _, err := m.collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("mongo insert audit: %w", err)
	}
	return nil
}

// List implements Repository.
func (m *MongoRepo) List(ctx context.Context, q Query) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(q.limit()))
	cur, err := m.collection.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find audit: %w", err)
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode audit: %w", err)
	}
	return out, nil
}

// mongoFilter переводит Query в фильтр MongoDB.
func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Cell != nil {
		filter["cell.x"] = q.Cell.X
		filter["cell.y"] = q.Cell.Y
		filter["cell.z"] = q.Cell.Z
	}
	if q.Action != "" {
		filter["action"] = string(q.Action)
	}
	if !q.Since.IsZero() {
		filter["at"] = bson.M{"$gte": q.Since}
	}
	return filter
}

// Close terminates connection.
func (m *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
