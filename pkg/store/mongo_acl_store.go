package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// aclConfigDocID is the fixed document id of the singleton AclConfig
// document in the "acl_config" collection.
const aclConfigDocID = "global"

// AclConfigStore is the document-store side of the admin ACL config (§4.7).
type AclConfigStore interface {
	GetAclConfig(ctx context.Context) (*AclConfig, error)
	PutAclConfig(ctx context.Context, cfg *AclConfig) error
}

// MongoAclConfigStore persists the singleton AclConfig document.
type MongoAclConfigStore struct {
	collection *mongo.Collection
}

func NewMongoAclConfigStore(db *mongo.Database) *MongoAclConfigStore {
	return &MongoAclConfigStore{collection: db.Collection("acl_config")}
}

type aclConfigDoc struct {
	ID string `bson:"_id"`
	AclConfig
}

func (s *MongoAclConfigStore) GetAclConfig(ctx context.Context) (*AclConfig, error) {
	var doc aclConfigDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": aclConfigDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find acl config: %w", err)
	}
	cfg := doc.AclConfig
	return &cfg, nil
}

func (s *MongoAclConfigStore) PutAclConfig(ctx context.Context, cfg *AclConfig) error {
	doc := aclConfigDoc{ID: aclConfigDocID, AclConfig: *cfg}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": aclConfigDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put acl config: %w", err)
	}
	return nil
}
