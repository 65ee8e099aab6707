package mgo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"CardArena/service/relay"
)

type Config struct {
	URI        string
	Database   string
	Collection string
}

// Queue is the pending-message store backing the drain loop. The HTTP
// persistence path enqueues after writing the message to the chat history;
// the gateway drains on its own schedule.
type Queue struct {
	cli  *mongo.Client
	coll *mongo.Collection
}

type pendingDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	SenderCode    string             `bson:"sender_code"`
	RecipientCode string             `bson:"recipient_code"`
	Payload       bson.M             `bson:"payload"`
	CreatedAt     time.Time          `bson:"created_at"`
}

func Dial(ctx context.Context, cfg Config) (*Queue, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongo")
	}
	return &Queue{
		cli:  cli,
		coll: cli.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (q *Queue) Close(ctx context.Context) error {
	return q.cli.Disconnect(ctx)
}

// Enqueue persists one pending item for the drain loop to pick up.
func (q *Queue) Enqueue(ctx context.Context, senderCode, recipientCode string, payload map[string]any) error {
	_, err := q.coll.InsertOne(ctx, pendingDoc{
		SenderCode:    senderCode,
		RecipientCode: recipientCode,
		Payload:       bson.M(payload),
		CreatedAt:     time.Now(),
	})
	return errors.Wrap(err, "enqueue pending message")
}

// Drain returns the current batch and deletes exactly those documents, so
// an item handed to the caller is never seen again. Items enqueued while a
// drain is in flight survive for the next run.
func (q *Queue) Drain(ctx context.Context) ([]relay.QueuedItem, error) {
	cur, err := q.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find pending messages")
	}

	var docs []pendingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode pending messages")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	items := make([]relay.QueuedItem, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		items = append(items, relay.QueuedItem{
			SenderCode:    d.SenderCode,
			RecipientCode: d.RecipientCode,
			Payload:       map[string]any(d.Payload),
		})
	}

	if _, err := q.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, errors.Wrap(err, "clear pending messages")
	}
	return items, nil
}
