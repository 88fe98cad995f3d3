// Package mongodb archives daily production summaries in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bakerycore/internal/infra/archive"
	"bakerycore/internal/reporting"
)

// DefaultCollection holds one document per archived day.
const DefaultCollection = "daily_summaries"

// Store implements archive.Archive.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ archive.Archive = (*Store)(nil)

// Connect dials uri and verifies the connection before returning.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return New(client, dbName, DefaultCollection), nil
}

// New wraps an already connected client.
func New(client *mongo.Client, dbName, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		client: client,
		coll:   client.Database(dbName).Collection(collection),
		now:    time.Now,
	}
}

// Save upserts the summary for its day.
func (s *Store) Save(ctx context.Context, summary reporting.DailySummary) error {
	doc, err := archive.NewDocument(summary, s.now())
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Day}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save daily summary %s: %w", doc.Day, err)
	}
	return nil
}

// Get returns the summary archived for day.
func (s *Store) Get(ctx context.Context, day time.Time) (reporting.DailySummary, error) {
	var doc archive.Document
	err := s.coll.FindOne(ctx, bson.M{"_id": archive.DayKey(day)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return reporting.DailySummary{}, archive.NotFound(day)
	}
	if err != nil {
		return reporting.DailySummary{}, fmt.Errorf("failed to load daily summary: %w", err)
	}
	return doc.Summary()
}

// List returns the summaries between from and to inclusive, oldest first.
func (s *Store) List(ctx context.Context, from, to time.Time) ([]reporting.DailySummary, error) {
	filter := bson.M{"_id": bson.M{"$gte": archive.DayKey(from), "$lte": archive.DayKey(to)}}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	var docs []archive.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode daily summaries: %w", err)
	}
	out := make([]reporting.DailySummary, 0, len(docs))
	for _, doc := range docs {
		summary, err := doc.Summary()
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
