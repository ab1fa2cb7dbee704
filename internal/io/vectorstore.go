package io

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/swarmguard/agentmind/internal/core/resilience"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VectorStoreClient persists SAVE action documents, grounded on the pack's mongo
// usage as a document store standing in for a vector store's metadata side.
type VectorStoreClient struct {
	collection *mongo.Collection
	limiter    *resilience.RateLimiter
	breaker    *resilience.CircuitBreaker
}

// NewVectorStoreClient connects to uri and opens database/collection for documents.
func NewVectorStoreClient(ctx context.Context, uri, database, collection string) (*VectorStoreClient, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("io: mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("io: mongo ping: %w", err)
	}

	return &VectorStoreClient{
		collection: client.Database(database).Collection(collection),
		limiter:    resilience.NewRateLimiter(10, 2, time.Second, 10),
		breaker:    resilience.NewCircuitBreakerAdaptive("vectorstore", 30*time.Second, 6, 5, 0.5, 10*time.Second, 2),
	}, nil
}

type storedDocument struct {
	ID       string `bson:"_id"`
	Document string `bson:"document"`
	Metadata any    `bson:"metadata"`
}

// Save writes documents with metadatas, deriving deterministic ids from
// content hash so retries never double-write.
func (c *VectorStoreClient) Save(ctx context.Context, documents []string, metadatas []any) ([]string, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("io: vector store circuit open")
	}
	if !c.limiter.Allow() {
		return nil, fmt.Errorf("io: vector store rate limited")
	}

	ids := make([]string, len(documents))
	for i, doc := range documents {
		sum := sha256.Sum256([]byte(doc))
		ids[i] = hex.EncodeToString(sum[:])[:24]

		var metadata any
		if i < len(metadatas) {
			metadata = metadatas[i]
		}

		_, err := c.collection.ReplaceOne(ctx,
			bson.M{"_id": ids[i]},
			storedDocument{ID: ids[i], Document: doc, Metadata: metadata},
			options.Replace().SetUpsert(true))
		if err != nil {
			c.breaker.RecordResult(false)
			return ids[:i], fmt.Errorf("io: vector store write failed: %w", err)
		}
	}

	c.breaker.RecordResult(true)
	return ids, nil
}
