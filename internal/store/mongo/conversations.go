package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/corpchat/corpchat/internal/apperr"
	"github.com/corpchat/corpchat/internal/domain"
)

type Conversations struct {
	coll *mongo.Collection
}

func NewConversations(db *mongo.Database) *Conversations {
	return &Conversations{coll: db.Collection("conversations")}
}

func (r *Conversations) Ensure(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	filter := bson.M{"_id": c.ID}
	update := bson.M{"$setOnInsert": c}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	return r.Get(ctx, c.ID)
}

func (r *Conversations) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (r *Conversations) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_activity_at": at}})
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
