package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/foodcore/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const collectionName = "auto_backups"

// MongoConfig locates the snapshot database.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore keeps snapshots in a MongoDB collection with _id set to the
// capture time in milliseconds.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	log        *zap.Logger
}

type mongoRecord struct {
	ID        int64     `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

// ConnectMongo dials and pings the server.
func ConnectMongo(ctx context.Context, cfg MongoConfig, log *zap.Logger) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("backup: connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("backup: ping mongodb: %w", err)
	}
	return NewMongoStore(client, cfg.Database, cfg.Timeout, log), nil
}

func NewMongoStore(client *mongo.Client, database string, timeout time.Duration, log *zap.Logger) *MongoStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
		timeout:    timeout,
		log:        log.Named("snapshots"),
	}
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Add(ctx context.Context, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := toBSON(snap.Data)
	if err != nil {
		return err
	}
	rec := mongoRecord{ID: snap.ID, Data: doc, CreatedAt: snap.CapturedAt()}
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("backup: insert snapshot %d: %w", snap.ID, err)
	}
	return nil
}

// List returns the snapshots newest first. Documents that cannot be
// decoded are logged and skipped.
func (s *MongoStore) List(ctx context.Context) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("backup: list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Snapshot
	for cursor.Next(ctx) {
		var rec mongoRecord
		if err := cursor.Decode(&rec); err != nil {
			s.log.Error("skipping unreadable snapshot document", zap.Error(err))
			continue
		}
		snap, err := rec.snapshot()
		if err != nil {
			s.log.Error("skipping unreadable snapshot", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("backup: list snapshots: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, id int64) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: get snapshot %d: %w", id, err)
	}
	return rec.snapshot()
}

func (s *MongoStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("backup: delete snapshot %d: %w", id, err)
	}
	return nil
}

func (s *MongoStore) PruneBefore(ctx context.Context, cutoff int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("backup: prune snapshots: %w", err)
	}
	return int(res.DeletedCount), nil
}

// toBSON goes through the JSON encoding so field names and date strings
// match the exported file format.
func toBSON(data models.Dataset) (bson.Raw, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("backup: encode snapshot: %w", err)
	}
	var doc bson.Raw
	if err := bson.UnmarshalExtJSON(b, false, &doc); err != nil {
		return nil, fmt.Errorf("backup: convert snapshot: %w", err)
	}
	return doc, nil
}

func (r mongoRecord) snapshot() (Snapshot, error) {
	b, err := bson.MarshalExtJSON(r.Data, false, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: convert snapshot %d: %w", r.ID, err)
	}
	data := models.NewDataset()
	if err := json.Unmarshal(b, &data); err != nil {
		return Snapshot{}, fmt.Errorf("backup: decode snapshot %d: %w", r.ID, err)
	}
	return Snapshot{ID: r.ID, Data: data.Clone()}, nil
}
