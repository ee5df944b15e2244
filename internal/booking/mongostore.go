package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding booking documents.
const CollectionName = "bookings"

// ConnectMongo opens a client and confirms the deployment is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opt := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(opt)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// MongoStore keeps booking records as documents with an embedded history
// array.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

func (s *MongoStore) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("booking id is empty")
	}
	if rec.CustomerID == "" {
		return fmt.Errorf("customer id is empty")
	}
	now := s.now().UTC()
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %q already exists: %w", rec.ID, err)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read booking: %w", err)
	}
	return &rec, nil
}

// CompareAndSet issues one UpdateOne whose filter carries the precondition.
// A null filter on assigned_worker_id also matches a missing field.
func (s *MongoStore) CompareAndSet(ctx context.Context, t Transition) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}

	filter := bson.M{
		"_id":    t.BookingID,
		"status": bson.M{"$in": t.fromStrings()},
	}
	if t.RequireUnassigned {
		filter["assigned_worker_id"] = nil
	}
	set := bson.M{
		"status":     string(t.To),
		"updated_at": s.now().UTC(),
	}
	if t.AssignTo != "" {
		set["assigned_worker_id"] = t.AssignTo
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("conditional update: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) AppendHistory(ctx context.Context, bookingID string, e HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": bookingID}, bson.M{"$push": bson.M{"history": e}})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
