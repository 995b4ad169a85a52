package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/corpchat/corpchat/internal/domain"
)

type Receipts struct {
	coll *mongo.Collection
}

func NewReceipts(db *mongo.Database) *Receipts {
	coll := db.Collection("read_receipts")
	ix := mongo.IndexModel{
		Keys: bson.D{
			{Key: "message_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("message_user_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &Receipts{coll: coll}
}

func (r *Receipts) Upsert(ctx context.Context, messageID, userID string, readAt time.Time) (*domain.ReadReceipt, error) {
	filter := bson.M{"message_id": messageID, "user_id": userID}
	update := bson.M{"$set": bson.M{"read_at": readAt}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var rec domain.ReadReceipt
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec); err != nil {
		return nil, fmt.Errorf("upsert receipt: %w", err)
	}
	return &rec, nil
}

func (r *Receipts) ListByMessage(ctx context.Context, messageID string) ([]*domain.ReadReceipt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "read_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"message_id": messageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer cur.Close(ctx)
	out := []*domain.ReadReceipt{}
	for cur.Next(ctx) {
		var rec domain.ReadReceipt
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, cur.Err()
}

func (r *Receipts) ReadSet(ctx context.Context, messageIDs []string, userID string) (map[string]bool, error) {
	cur, err := r.coll.Find(ctx, bson.M{
		"message_id": bson.M{"$in": messageIDs},
		"user_id":    userID,
	})
	if err != nil {
		return nil, fmt.Errorf("read set: %w", err)
	}
	defer cur.Close(ctx)
	read := map[string]bool{}
	for _, id := range messageIDs {
		read[id] = false
	}
	for cur.Next(ctx) {
		var rec domain.ReadReceipt
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		read[rec.MessageID] = true
	}
	return read, cur.Err()
}

func (r *Receipts) Counts(ctx context.Context, messageIDs []string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"message_id": bson.M{"$in": messageIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$message_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("receipt counts: %w", err)
	}
	defer cur.Close(ctx)
	counts := map[string]int{}
	for _, id := range messageIDs {
		counts[id] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			MessageID string `bson:"_id"`
			Count     int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.MessageID] = row.Count
	}
	return counts, cur.Err()
}

func (r *Receipts) CountForUsers(ctx context.Context, messageID string, userIDs []string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"message_id": messageID,
		"user_id":    bson.M{"$in": userIDs},
	})
	if err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}
