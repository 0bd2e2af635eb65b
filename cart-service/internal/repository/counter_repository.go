package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoCounterRepository struct {
	collection *mongo.Collection
}

func NewCounterRepository(db *mongo.Database) *MongoCounterRepository {
	return &MongoCounterRepository{collection: db.Collection("terminal_counters")}
}

type counterDoc struct {
	TerminalID string         `bson:"terminal_id"`
	Counters   map[string]int `bson:"counters"`
}

// Next atomically increments the terminal's counter and returns the new value.
// The first call for a terminal returns 1.
func (m *MongoCounterRepository) Next(ctx context.Context, terminalID string, kind CounterKind) (int, error) {
	filter := bson.M{"terminal_id": terminalID}
	update := bson.M{"$inc": bson.M{"counters." + string(kind): 1}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("failed to increment %s for terminal %s: %w", kind, terminalID, err)
	}
	return doc.Counters[string(kind)], nil
}

func (m *MongoCounterRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "terminal_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create counter indexes: %w", err)
	}
	return nil
}
