// Package mongostore implements the persistence collaborators on
// MongoDB. Compound unique indexes back the reaction and receipt
// constraints; mutation updates carry an is_deleted filter so racing
// edit/delete attempts resolve at the storage layer.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewClient(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, nil
}
