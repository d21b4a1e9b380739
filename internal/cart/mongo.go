package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cart documents store unit prices as strings so decimal values round-trip
// through BSON without loss.
type lineDoc struct {
	SKU         string    `bson:"sku"`
	ProductName string    `bson:"product_name"`
	UnitPrice   string    `bson:"unit_price"`
	Quantity    int32     `bson:"quantity"`
	AddedAt     time.Time `bson:"added_at"`
}

type cartDoc struct {
	CustomerID string    `bson:"customer_id"`
	Lines      []lineDoc `bson:"lines"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toLineDoc(l domain.CartLine) lineDoc {
	return lineDoc{
		SKU:         l.SKU,
		ProductName: l.ProductName,
		UnitPrice:   l.UnitPrice.String(),
		Quantity:    l.Quantity,
		AddedAt:     l.AddedAt,
	}
}

func (d cartDoc) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		CustomerID: d.CustomerID,
		Lines:      make([]domain.CartLine, len(d.Lines)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for i, l := range d.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price %q for sku %s: %w", l.UnitPrice, l.SKU, err)
		}
		cart.Lines[i] = domain.CartLine{
			SKU:         l.SKU,
			ProductName: l.ProductName,
			UnitPrice:   price,
			Quantity:    l.Quantity,
			AddedAt:     l.AddedAt,
		}
	}
	return cart, nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"customer_id": customerID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

// AddLine merges by SKU: an existing line gets its quantity incremented and
// keeps the price captured by the first add.
func (m *MongoRepository) AddLine(ctx context.Context, customerID string, line domain.CartLine) error {
	if line.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	now := time.Now()
	line.AddedAt = now

	filter := bson.M{"customer_id": customerID}

	var existing cartDoc
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			doc := cartDoc{
				CustomerID: customerID,
				Lines:      []lineDoc{toLineDoc(line)},
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if _, err := m.collection.InsertOne(ctx, doc); err != nil {
				return fmt.Errorf("failed to create cart with line: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	lineExists := false
	for _, l := range existing.Lines {
		if l.SKU == line.SKU {
			lineExists = true
			break
		}
	}

	if lineExists {
		update := bson.M{
			"$inc": bson.M{"lines.$[elem].quantity": line.Quantity},
			"$set": bson.M{"updated_at": now},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.sku": line.SKU},
			},
		})

		if _, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to increment existing line: %w", err)
		}
		return nil
	}

	update := bson.M{
		"$push": bson.M{"lines": toLineDoc(line)},
		"$set":  bson.M{"updated_at": now},
	}
	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to add new line: %w", err)
	}
	return nil
}

func (m *MongoRepository) RemoveLine(ctx context.Context, customerID string, sku string) error {
	filter := bson.M{"customer_id": customerID}
	update := bson.M{
		"$pull": bson.M{
			"lines": bson.M{"sku": sku},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove line: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

// DeleteCart removes the cart document. Deleting an absent cart succeeds, so
// the saga's cart-clear step stays idempotent.
func (m *MongoRepository) DeleteCart(ctx context.Context, customerID string) error {
	filter := bson.M{"customer_id": customerID}

	if _, err := m.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Connect opens a mongo client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}
