package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maastricht-university/claimlens/schema"
)

func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// MongoSink upserts run documents keyed by run_id.
type MongoSink struct {
	col *mongo.Collection
}

func NewMongoSink(db *mongo.Database, collection string) *MongoSink {
	return &MongoSink{col: db.Collection(collection)}
}

func (s *MongoSink) Save(ctx context.Context, doc *schema.RunDocument, path string) error {
	m, err := toBSON(doc)
	if err != nil {
		return err
	}
	m["output_path"] = path
	_, err = s.col.ReplaceOne(ctx, bson.M{"run_id": doc.RunID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save %s: %w", doc.RunID, err)
	}
	return nil
}

// toBSON keeps the JSON field names of the document in the stored record.
func toBSON(doc *schema.RunDocument) (bson.M, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(b, false, &m); err != nil {
		return nil, fmt.Errorf("convert run document: %w", err)
	}
	return m, nil
}
