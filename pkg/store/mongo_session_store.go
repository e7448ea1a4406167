package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionStore persists sessions and messages in the "sessions" and
// "messages" collections. Message ordering relies on Mongo's ObjectID,
// which is monotonically increasing per-process at insertion time — the
// same role a teacher would otherwise assign to a dedicated sequence
// counter, without the extra round trip.
type MongoSessionStore struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

// mongoSessionDoc / mongoMessageDoc are the wire shapes stored in Mongo;
// kept separate from the exported Session/Message types so storage-layer
// field tags don't leak into the rest of the codebase.
type mongoSessionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title"`
	Vertical  string    `bson:"vertical"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoMessageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	SessionID string             `bson:"session_id"`
	Role      string             `bson:"role"`
	Content   string             `bson:"content"`
	ToolName  string             `bson:"tool_name,omitempty"`
	ToolInput bson.M             `bson:"tool_input,omitempty"`
	ToolUseID string             `bson:"tool_use_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongoSessionStore wraps an existing *mongo.Database, registering the
// indexes needed for owner-scoped lookups and ordered message retrieval.
func NewMongoSessionStore(ctx context.Context, db *mongo.Database) (*MongoSessionStore, error) {
	s := &MongoSessionStore{
		sessions: db.Collection("sessions"),
		messages: db.Collection("messages"),
	}

	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create sessions index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create messages index: %w", err)
	}

	return s, nil
}

func (s *MongoSessionStore) CreateSession(ctx context.Context, userID, title, vertical string) (*Session, error) {
	now := time.Now().UTC()
	doc := mongoSessionDoc{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Vertical:  vertical,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return toSession(doc), nil
}

func (s *MongoSessionStore) GetSession(ctx context.Context, sessionID, userID string) (*Session, error) {
	var doc mongoSessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID, "user_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return toSession(doc), nil
}

func (s *MongoSessionStore) ListSessions(ctx context.Context, userID string) ([]*Session, error) {
	cur, err := s.sessions.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)

	var out []*Session
	for cur.Next(ctx) {
		var doc mongoSessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, toSession(doc))
	}
	return out, cur.Err()
}

func (s *MongoSessionStore) DeleteSession(ctx context.Context, sessionID, userID string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.M{"_id": sessionID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	return nil
}

func (s *MongoSessionStore) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	return nil
}

func (s *MongoSessionStore) AppendMessage(ctx context.Context, msg *Message) error {
	doc := mongoMessageDoc{
		SessionID: msg.SessionID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		ToolName:  msg.ToolName,
		ToolUseID: msg.ToolUseID,
		CreatedAt: time.Now().UTC(),
	}
	if msg.ToolInput != nil {
		doc.ToolInput = bson.M(msg.ToolInput)
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// GetMessages returns the most recent limit messages in append order (oldest
// first). limit<=0 means no limit.
func (s *MongoSessionStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoMessageDoc
	for cur.Next(ctx) {
		var doc mongoMessageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	out := make([]*Message, len(docs))
	for i, doc := range docs {
		out[len(docs)-1-i] = toMessage(doc)
	}
	return out, nil
}

func toSession(doc mongoSessionDoc) *Session {
	return &Session{
		SessionID: doc.ID,
		UserID:    doc.UserID,
		Title:     doc.Title,
		Vertical:  doc.Vertical,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func toMessage(doc mongoMessageDoc) *Message {
	var input map[string]any
	if doc.ToolInput != nil {
		input = map[string]any(doc.ToolInput)
	}
	return &Message{
		SessionID: doc.SessionID,
		Role:      Role(doc.Role),
		Content:   doc.Content,
		ToolName:  doc.ToolName,
		ToolInput: input,
		ToolUseID: doc.ToolUseID,
		CreatedAt: doc.CreatedAt,
	}
}
