package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// archiveAfter is how long finished carts stay in the collection.
const archiveAfter = 90 * 24 * time.Hour

type MongoCartRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *MongoCartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	now := m.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Etag = uuid.NewString()

	if _, err := m.collection.InsertOne(ctx, cart); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: cart %s already exists", domain.ErrConflict, cart.CartID)
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (m *MongoCartRepository) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"cart_id": cartID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundf("cart %s", cartID)
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (m *MongoCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	prevEtag := cart.Etag
	next := *cart
	next.Etag = uuid.NewString()
	next.UpdatedAt = m.now()

	filter := bson.M{"cart_id": cart.CartID, "etag": prevEtag}
	result, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": &next})
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if result.MatchedCount == 0 {
		n, errCount := m.collection.CountDocuments(ctx, bson.M{"cart_id": cart.CartID})
		if errCount != nil {
			return fmt.Errorf("failed to check cart: %w", errCount)
		}
		if n == 0 {
			return domain.NotFoundf("cart %s", cart.CartID)
		}
		return fmt.Errorf("%w: cart %s", domain.ErrConflict, cart.CartID)
	}

	cart.Etag = next.Etag
	cart.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "cart_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "store_code", Value: 1}, {Key: "terminal_no", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(archiveAfter.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
