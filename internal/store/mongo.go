package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontdesk/internal/database"
	"frontdesk/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type knowledgeDoc struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	models.KnowledgeEntry `bson:",inline"`
}

func (d *knowledgeDoc) entry() models.KnowledgeEntry {
	e := d.KnowledgeEntry
	e.ID = d.ID.Hex()
	return e
}

type helpRequestDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	models.HelpRequest `bson:",inline"`
}

func (d *helpRequestDoc) request() *models.HelpRequest {
	r := d.HelpRequest
	r.ID = d.ID.Hex()
	return &r
}

// NewMongoStores builds the Mongo-backed stores. When transactions is false the
// returned Stores has no Transactor, which is the right choice for standalone
// servers that reject multi-document transactions.
func NewMongoStores(db *database.MongoDB, transactions bool) Stores {
	s := Stores{
		Knowledge:    &MongoKnowledgeStore{collection: db.Collection(database.CollectionKnowledge)},
		HelpRequests: &MongoHelpRequestStore{collection: db.Collection(database.CollectionHelpRequests)},
	}
	if transactions {
		s.Tx = &mongoTransactor{db: db}
	}
	return s
}

type mongoTransactor struct {
	db *database.MongoDB
}

// WithinTransaction hands fn the session context; store calls made with it join
// the transaction.
func (t *mongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// MongoKnowledgeStore implements KnowledgeStore on the knowledge collection
type MongoKnowledgeStore struct {
	collection *mongo.Collection
}

func (s *MongoKnowledgeStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count knowledge entries: %w", err)
	}
	return n, nil
}

func (s *MongoKnowledgeStore) InsertMany(ctx context.Context, entries []models.KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, knowledgeDoc{KnowledgeEntry: e})
	}
	// Ordered so _id order matches seed order
	if _, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert knowledge entries: %w", err)
	}
	return nil
}

func (s *MongoKnowledgeStore) List(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.find(ctx, bson.D{{Key: "_id", Value: 1}})
}

func (s *MongoKnowledgeStore) ListRecentlyLearned(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.find(ctx, bson.D{{Key: "learnedAt", Value: -1}, {Key: "_id", Value: -1}})
}

func (s *MongoKnowledgeStore) find(ctx context.Context, sort bson.D) ([]models.KnowledgeEntry, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []knowledgeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge entries: %w", err)
	}

	entries := make([]models.KnowledgeEntry, 0, len(docs))
	for i := range docs {
		entries = append(entries, docs[i].entry())
	}
	return entries, nil
}

func (s *MongoKnowledgeStore) Get(ctx context.Context, pattern string) (*models.KnowledgeEntry, error) {
	var doc knowledgeDoc
	err := s.collection.FindOne(ctx, bson.M{"questionPattern": pattern}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}
	e := doc.entry()
	return &e, nil
}

func (s *MongoKnowledgeStore) Upsert(ctx context.Context, pattern, answer string, learnedAt time.Time) error {
	filter := bson.M{"questionPattern": pattern}
	update := bson.M{"$set": bson.M{
		"answer":    answer,
		"learnedAt": learnedAt,
	}}
	opts := options.Update().SetUpsert(true)

	_, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race on the unique index; the document exists now
		_, err = s.collection.UpdateOne(ctx, filter, update)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge entry: %w", err)
	}
	return nil
}

// MongoHelpRequestStore implements HelpRequestStore on the help_requests collection
type MongoHelpRequestStore struct {
	collection *mongo.Collection
}

func (s *MongoHelpRequestStore) Create(ctx context.Context, req *models.HelpRequest) error {
	result, err := s.collection.InsertOne(ctx, helpRequestDoc{HelpRequest: *req})
	if err != nil {
		return fmt.Errorf("failed to create help request: %w", err)
	}
	req.ID = result.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *MongoHelpRequestStore) CreateUnlessPending(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, bool, error) {
	var doc helpRequestDoc
	err := s.collection.FindOne(ctx, bson.M{
		"callerId":           req.CallerID,
		"normalizedQuestion": req.NormalizedQuestion,
		"status":             models.HelpRequestPending,
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&doc)
	if err == nil {
		return doc.request(), false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to look up pending help request: %w", err)
	}

	if err := s.Create(ctx, req); err != nil {
		return nil, false, err
	}
	return req, true, nil
}

func (s *MongoHelpRequestStore) Get(ctx context.Context, id string) (*models.HelpRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc helpRequestDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get help request: %w", err)
	}
	return doc.request(), nil
}

func (s *MongoHelpRequestStore) ListPending(ctx context.Context) ([]models.HelpRequest, error) {
	return s.find(ctx, bson.M{"status": models.HelpRequestPending},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *MongoHelpRequestStore) ListAll(ctx context.Context) ([]models.HelpRequest, error) {
	return s.find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *MongoHelpRequestStore) ListUnsynced(ctx context.Context, limit int) ([]models.HelpRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "resolvedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{
		"status":            models.HelpRequestResolved,
		"knowledgeSyncedAt": bson.M{"$exists": false},
	}, opts)
}

func (s *MongoHelpRequestStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.HelpRequest, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list help requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []helpRequestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode help requests: %w", err)
	}

	requests := make([]models.HelpRequest, 0, len(docs))
	for i := range docs {
		requests = append(requests, *docs[i].request())
	}
	return requests, nil
}

func (s *MongoHelpRequestStore) Resolve(ctx context.Context, id, answer string, resolvedAt time.Time) (*models.HelpRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	// The status guard makes the pending -> resolved transition happen at most once
	filter := bson.M{"_id": oid, "status": models.HelpRequestPending}
	update := bson.M{"$set": bson.M{
		"status":           models.HelpRequestResolved,
		"supervisorAnswer": answer,
		"resolvedAt":       resolvedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc helpRequestDoc
	err = s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.request(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to resolve help request: %w", err)
	}

	n, err := s.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("failed to check help request: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyResolved
}

func (s *MongoHelpRequestStore) MarkKnowledgeSynced(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"knowledgeSyncedAt": at}})
	if err != nil {
		return fmt.Errorf("failed to mark help request synced: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoHelpRequestStore) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{
		"status":    models.HelpRequestPending,
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count stale help requests: %w", err)
	}
	return n, nil
}
