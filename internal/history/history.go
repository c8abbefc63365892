package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionStatus = "order_status_history"

type Entry struct {
	OrderID     uint      `bson:"order_id"       json:"orderId"`
	OrderNumber string    `bson:"order_number"   json:"orderNumber"`
	From        string    `bson:"from"           json:"from"`
	To          string    `bson:"to"             json:"to"`
	ActorID     uint      `bson:"actor_id"       json:"actorId"`
	ActorRole   string    `bson:"actor_role"     json:"actorRole"`
	Note        string    `bson:"note,omitempty" json:"note,omitempty"`
	At          time.Time `bson:"at"             json:"at"`
}

type Recorder interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, orderID uint) ([]Entry, error)
}

type MongoRecorder struct {
	collection *mongo.Collection
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

func NewMongoRecorder(client *mongo.Client, database string) *MongoRecorder {
	return &MongoRecorder{collection: client.Database(database).Collection(CollectionStatus)}
}

func (r *MongoRecorder) Append(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to insert order status history: %w", err)
	}
	return nil
}

func (r *MongoRecorder) List(ctx context.Context, orderID uint) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cur, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query order status history: %w", err)
	}
	defer cur.Close(ctx)

	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode order status history: %w", err)
	}
	return out, nil
}

type Nop struct{}

func (Nop) Append(context.Context, Entry) error          { return nil }
func (Nop) List(context.Context, uint) ([]Entry, error) { return []Entry{}, nil }
