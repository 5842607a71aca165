// Package auth stores and validates the API keys that gate the wallet data
// endpoints. Keys are stored hashed; the plaintext only exists in the
// response that hands it to the caller.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/walletcore/internal/cache"
)

// KeyStore validates API keys and reports backing-store health.
type KeyStore interface {
	Validate(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// KeyCreator issues or updates keys; used by the signup and admin handlers.
type KeyCreator interface {
	Create(ctx context.Context, key string, active bool, owner string) error
}

// MongoKeyStore backs keys with a Mongo collection and keeps a short-lived
// in-process cache of validation results so the hot path rarely touches the
// database.
type MongoKeyStore struct {
	coll     *mongo.Collection
	cacheTTL time.Duration
	cache    *cache.Store[bool]
}

type keyDoc struct {
	KeyHash string `bson:"key_hash"`
	Active  bool   `bson:"active"`
	Owner   string `bson:"owner,omitempty"`
}

// NewMongoKeyStore sets up the collection and the unique index on the key
// hash.
func NewMongoKeyStore(ctx context.Context, client *mongo.Client, dbName string, cacheTTL time.Duration) (*MongoKeyStore, error) {
	coll := client.Database(dbName).Collection("api_keys")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key_hash", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoKeyStore{
		coll:     coll,
		cacheTTL: cacheTTL,
		cache:    cache.New[bool](),
	}, nil
}

// Hash is the at-rest form of an API key.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashPrefix returns the first 8 hex chars of the key hash, safe for logs.
func HashPrefix(key string) string {
	return Hash(key)[:8]
}

func (s *MongoKeyStore) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("missing key")
	}
	h := Hash(key)
	if active, ok := s.cache.Get(h); ok {
		return active, nil
	}

	var doc keyDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "key_hash", Value: h}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// cache the miss too, otherwise a bad key hammers the DB
			s.cache.Put(h, false, s.cacheTTL)
			return false, nil
		}
		return false, err
	}
	s.cache.Put(h, doc.Active, s.cacheTTL)
	return doc.Active, nil
}

func (s *MongoKeyStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

// Create upserts a key record and primes the validation cache.
func (s *MongoKeyStore) Create(ctx context.Context, key string, active bool, owner string) error {
	if key == "" {
		return errors.New("missing key")
	}
	h := Hash(key)
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "key_hash", Value: h}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "active", Value: active},
			{Key: "owner", Value: owner},
		}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	s.cache.Put(h, active, s.cacheTTL)
	return nil
}
