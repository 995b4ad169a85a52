package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/corpchat/corpchat/internal/domain"
)

type Reactions struct {
	coll *mongo.Collection
}

func NewReactions(db *mongo.Database) *Reactions {
	coll := db.Collection("reactions")
	// The unique compound index is what makes concurrent toggles safe.
	ix := mongo.IndexModel{
		Keys: bson.D{
			{Key: "message_id", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "emoji", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("message_user_emoji_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &Reactions{coll: coll}
}

func (r *Reactions) Add(ctx context.Context, reaction *domain.Reaction) (bool, error) {
	_, err := r.coll.InsertOne(ctx, reaction)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("add reaction: %w", err)
	}
	return true, nil
}

func (r *Reactions) Remove(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"message_id": messageID,
		"user_id":    userID,
		"emoji":      emoji,
	})
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *Reactions) Exists(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"message_id": messageID,
		"user_id":    userID,
		"emoji":      emoji,
	})
	if err != nil {
		return false, fmt.Errorf("reaction exists: %w", err)
	}
	return n > 0, nil
}

func (r *Reactions) CountsByEmoji(ctx context.Context, messageID string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"message_id": messageID}}},
		{{Key: "$group", Value: bson.M{"_id": "$emoji", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("reaction counts: %w", err)
	}
	defer cur.Close(ctx)
	counts := map[string]int{}
	for cur.Next(ctx) {
		var row struct {
			Emoji string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Emoji] = row.Count
	}
	return counts, cur.Err()
}

func (r *Reactions) ListByMessage(ctx context.Context, messageID string) ([]*domain.Reaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.list(ctx, bson.M{"message_id": messageID}, opts)
}

func (r *Reactions) ListByUserInConversation(ctx context.Context, userID, conversationID string) ([]*domain.Reaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{"user_id": userID, "conversation_id": conversationID}, opts)
}

func (r *Reactions) RemoveAllForMessage(ctx context.Context, messageID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return 0, fmt.Errorf("remove all reactions: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *Reactions) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Reaction, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer cur.Close(ctx)
	out := []*domain.Reaction{}
	for cur.Next(ctx) {
		var re domain.Reaction
		if err := cur.Decode(&re); err != nil {
			return nil, err
		}
		out = append(out, &re)
	}
	return out, cur.Err()
}
