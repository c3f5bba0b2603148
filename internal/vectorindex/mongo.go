package vectorindex

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndex stores entries in a denormalized collection and queries
// them through Atlas $vectorSearch. Keeping one collection per index
// enables efficient $vectorSearch with metadata pre-filters.
type MongoIndex struct {
	collection *mongo.Collection
	indexName  string
	dimensions int
}

type mongoEntry struct {
	EntryID  string         `bson:"entry_id"`
	Text     string         `bson:"text"`
	Metadata map[string]any `bson:"metadata"`
	Vector   []float32      `bson:"vector,omitempty"`
	Score    float64        `bson:"score,omitempty"`
}

func NewMongoIndex(db *mongo.Database, collectionName, indexName string, dimensions int) *MongoIndex {
	return &MongoIndex{
		collection: db.Collection(collectionName),
		indexName:  indexName,
		dimensions: dimensions,
	}
}

func (m *MongoIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		doc := bson.M{
			"entry_id": e.ID,
			"text":     e.Text,
			"metadata": e.Metadata,
			"vector":   e.Vector,
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"entry_id": e.ID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}

	if _, err := m.collection.BulkWrite(ctx, batch); err != nil {
		return fmt.Errorf("failed to upsert entries: %w", err)
	}
	return nil
}

func (m *MongoIndex) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	search := bson.M{
		"index":         m.indexName,
		"path":          "vector",
		"queryVector":   vector,
		"numCandidates": topK * 10,
		"limit":         topK,
	}
	if len(filter) > 0 {
		search["filter"] = metadataMatch(filter)
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: search}},
		bson.D{{Key: "$project", Value: bson.M{
			"entry_id": 1,
			"text":     1,
			"metadata": 1,
			"score":    bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Result
	for cursor.Next(ctx) {
		var doc mongoEntry
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode search result: %w", err)
		}
		// Atlas reports similarity in [0,1]; callers expect cosine distance.
		results = append(results, Result{
			ID:       doc.EntryID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Distance: 1 - doc.Score,
		})
	}
	return results, cursor.Err()
}

func (m *MongoIndex) Get(ctx context.Context, id string) (*Entry, error) {
	var doc mongoEntry
	err := m.collection.FindOne(ctx, bson.M{"entry_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entry %s: %w", id, err)
	}
	return &Entry{ID: doc.EntryID, Text: doc.Text, Metadata: doc.Metadata, Vector: doc.Vector}, nil
}

func (m *MongoIndex) List(ctx context.Context, filter Filter) ([]Entry, error) {
	opts := options.Find().SetProjection(bson.M{"vector": 0})
	cursor, err := m.collection.Find(ctx, metadataMatch(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	for cursor.Next(ctx) {
		var doc mongoEntry
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		entries = append(entries, Entry{ID: doc.EntryID, Text: doc.Text, Metadata: doc.Metadata})
	}
	return entries, cursor.Err()
}

func (m *MongoIndex) Delete(ctx context.Context, filter Filter) (int64, error) {
	res, err := m.collection.DeleteMany(ctx, metadataMatch(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	return res.DeletedCount, nil
}

func (m *MongoIndex) Count(ctx context.Context, filter Filter) (int64, error) {
	count, err := m.collection.CountDocuments(ctx, metadataMatch(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func metadataMatch(filter Filter) bson.M {
	match := bson.M{}
	for k, v := range filter {
		match["metadata."+k] = v
	}
	return match
}
