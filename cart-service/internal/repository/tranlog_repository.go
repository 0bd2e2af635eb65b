package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoTranlogRepository struct {
	collection *mongo.Collection
}

func NewTranlogRepository(db *mongo.Database) *MongoTranlogRepository {
	return &MongoTranlogRepository{collection: db.Collection("log_tran")}
}

func tranlogKey(tenantID, storeCode string, terminalNo, transactionNo int) bson.M {
	return bson.M{
		"tenant_id":      tenantID,
		"store_code":     storeCode,
		"terminal_no":    terminalNo,
		"transaction_no": transactionNo,
	}
}

func (m *MongoTranlogRepository) InsertIfAbsent(ctx context.Context, log *domain.TransactionLog) (*domain.TransactionLog, bool, error) {
	existing, err := m.Get(ctx, log.TenantID, log.StoreCode, log.TerminalNo, log.TransactionNo)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if _, err := m.collection.InsertOne(ctx, log); err != nil {
		// lost a race with a concurrent insert of the same key
		if mongo.IsDuplicateKeyError(err) {
			existing, errGet := m.Get(ctx, log.TenantID, log.StoreCode, log.TerminalNo, log.TransactionNo)
			if errGet != nil {
				return nil, false, errGet
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert transaction log: %w", err)
	}
	return log, true, nil
}

func (m *MongoTranlogRepository) Get(ctx context.Context, tenantID, storeCode string, terminalNo, transactionNo int) (*domain.TransactionLog, error) {
	var log domain.TransactionLog
	err := m.collection.FindOne(ctx, tranlogKey(tenantID, storeCode, terminalNo, transactionNo)).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundf("transaction %s/%s/%d/%d", tenantID, storeCode, terminalNo, transactionNo)
		}
		return nil, fmt.Errorf("failed to get transaction log: %w", err)
	}
	return &log, nil
}

func (m *MongoTranlogRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "store_code", Value: 1},
				{Key: "terminal_no", Value: 1},
				{Key: "transaction_no", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "shard_key", Value: 1}, {Key: "generate_date_time", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create transaction log indexes: %w", err)
	}
	return nil
}
