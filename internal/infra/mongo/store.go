package mongo

import (
	"context"
	"fmt"

	"github.com/dvloznov/horizon/internal/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DataStore is the subset of collection operations the repository uses.
type DataStore interface {
	Find(
		ctx context.Context,
		filter interface{},
		opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(
		ctx context.Context,
		document interface{},
		opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// CollectionProvider returns a DataStore for a collection name.
type CollectionProvider interface {
	Collection(name string) DataStore
}

// Collection adapts *mongo.Collection to DataStore.
type Collection struct {
	*mongo.Collection
}

// Find runs a query on the collection.
func (c *Collection) Find(
	ctx context.Context,
	filter interface{},
	opts ...*options.FindOptions) (*mongo.Cursor, error) {
	cur, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform Find: %w", err)
	}
	return cur, nil
}

// InsertOne inserts a single document.
func (c *Collection) InsertOne(
	ctx context.Context,
	document interface{},
	opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	result, err := c.Collection.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform InsertOne: %w", err)
	}
	return result, nil
}

// Provider adapts a database of *mongo.Client to CollectionProvider.
type Provider struct {
	db *mongo.Database
}

// NewProvider creates a Provider for the named database.
func NewProvider(client *mongo.Client, database string) *Provider {
	return &Provider{db: client.Database(database)}
}

// Collection returns a DataStore for the given collection name.
func (p *Provider) Collection(name string) DataStore {
	return &Collection{p.db.Collection(name)}
}

// Connect establishes and verifies a connection to MongoDB.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	log := logger.FromContext(ctx)
	log.Debug().Msg("Connecting to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}

	log.Info().Msg("Connected to MongoDB")
	return client, nil
}
