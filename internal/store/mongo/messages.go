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

type Messages struct {
	coll *mongo.Collection
}

func NewMessages(db *mongo.Database) *Messages {
	coll := db.Collection("messages")
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("conversation_created_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &Messages{coll: coll}
}

func (r *Messages) Insert(ctx context.Context, m *domain.Message) error {
	filter := bson.M{"_id": m.ID}
	update := bson.M{"$setOnInsert": m}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *Messages) Get(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

func (r *Messages) ListByConversation(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*domain.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)
	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

// ApplyEdit rewrites both content variants iff the message is still
// active. The is_deleted filter is the atomic guard against a racing
// delete.
func (r *Messages) ApplyEdit(ctx context.Context, id, original, sanitized, tone string, editedAt time.Time) (*domain.Message, error) {
	filter := bson.M{"_id": id, "is_deleted": false}
	update := bson.M{"$set": bson.M{
		"original_content":  original,
		"sanitized_content": sanitized,
		"applied_tone":      tone,
		"is_edited":         true,
		"edited_at":         editedAt,
		"updated_at":        editedAt,
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

// SoftDelete marks the message deleted iff it is still active. Content
// stays in place for audit.
func (r *Messages) SoftDelete(ctx context.Context, id string, deletedAt time.Time) (*domain.Message, error) {
	filter := bson.M{"_id": id, "is_deleted": false}
	update := bson.M{"$set": bson.M{
		"is_deleted": true,
		"deleted_at": deletedAt,
		"updated_at": deletedAt,
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *Messages) conditionalUpdate(ctx context.Context, id string, filter, update bson.M) (*domain.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m domain.Message
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err == nil {
		return &m, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("update message: %w", err)
	}
	// Filter missed: the row is gone or a concurrent delete won.
	if _, gerr := r.Get(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, apperr.ErrAlreadyDeleted
}
