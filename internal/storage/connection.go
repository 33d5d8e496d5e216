package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// mongoClient is the part of *mongo.Client used to verify a fresh connection.
type mongoClient interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := verifyConnection(ctx, client); err != nil {
		return nil, err
	}

	return client.Database(database), nil
}

// verifyConnection pings the server and releases the client's pool when it
// cannot be reached.
func verifyConnection(ctx context.Context, client mongoClient) error {
	if err := client.Ping(ctx, nil); err != nil {
		if derr := client.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			return fmt.Errorf("failed to ping MongoDB: %w (disconnect: %v)", err, derr)
		}
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}
