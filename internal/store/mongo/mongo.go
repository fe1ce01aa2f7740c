// Package mongo implements store.DocumentStore on MongoDB. Live queries use
// change streams, so the server must run as a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/career-hub/backend/internal/store"
)

// Store maps each collection path to a Mongo collection. Nested paths such
// as users/u1/enrollments become the collection "users.u1.enrollments".
type Store struct {
	db *mongo.Database
}

// New wraps db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.Atomic        = (*Store)(nil)
)

func (s *Store) collection(path string) *mongo.Collection {
	return s.db.Collection(strings.ReplaceAll(path, "/", "."))
}

// Subscribe pushes the full result set first and again after every change
// event on the collection.
func (s *Store) Subscribe(ctx context.Context, q store.Query) (store.Stream, error) {
	coll := s.collection(q.Collection)

	lctx, cancel := context.WithCancel(ctx)
	cs, err := coll.Watch(lctx, mongo.Pipeline{}, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo/Subscribe: watch %s: %w", q.Collection, err)
	}

	st := &stream{
		cancel:   cancel,
		out:      make(chan result),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go st.pump(lctx, cs, func(ctx context.Context) (store.Snapshot, error) {
		return s.run(ctx, coll, q)
	})

	return st, nil
}

func (s *Store) run(ctx context.Context, coll *mongo.Collection, q store.Query) (store.Snapshot, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}

	opts := options.Find()
	if q.OrderBy != "" {
		filter[q.OrderBy] = bson.M{"$exists": true}
		dir := 1
		if q.Direction == store.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return store.Snapshot{}, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return store.Snapshot{}, err
	}

	docs := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return store.Snapshot{Documents: docs, ReadTime: time.Now().UTC()}, nil
}

// Get reads one document by path.
func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	coll, id := store.Split(path)

	var m bson.M
	err := s.collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}
	return toDocument(m), nil
}

// Add inserts data under a new ObjectID rendered as hex.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := primitive.NewObjectID().Hex()

	doc := encode(data)
	doc["_id"] = id
	if _, err := s.collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Set replaces the document at path, creating it when missing.
func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	coll, id := store.Split(path)

	doc := encode(data)
	doc["_id"] = id
	_, err := s.collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

// Update sets the patch fields on an existing document.
func (s *Store) Update(ctx context.Context, path string, patch map[string]any) error {
	coll, id := store.Split(path)
	return s.updateOne(ctx, coll, id, bson.M{"$set": encode(patch)})
}

// Delete removes the document at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	coll, id := store.Split(path)

	res, err := s.collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Increment uses $inc.
func (s *Store) Increment(ctx context.Context, path, field string, delta int64) error {
	coll, id := store.Split(path)
	return s.updateOne(ctx, coll, id, bson.M{"$inc": bson.M{field: delta}})
}

// ArrayAppend uses $push.
func (s *Store) ArrayAppend(ctx context.Context, path, field string, value any) error {
	coll, id := store.Split(path)
	return s.updateOne(ctx, coll, id, bson.M{"$push": bson.M{field: value}})
}

func (s *Store) updateOne(ctx context.Context, coll, id string, update bson.M) error {
	res, err := s.collection(coll).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encode(data map[string]any) bson.M {
	out := make(bson.M, len(data)+1)
	now := time.Now().UTC()
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func toDocument(m bson.M) store.Document {
	id := fmt.Sprint(m["_id"])
	if oid, ok := m["_id"].(primitive.ObjectID); ok {
		id = oid.Hex()
	}

	data := make(map[string]any, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		data[k] = normalize(v)
	}
	return store.Document{ID: id, Data: data}
}

// normalize turns driver-specific containers into plain maps and slices so
// the model decoders see the same shapes every backend produces.
func normalize(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return x.Time().UTC()
	}
	return v
}

type result struct {
	snap store.Snapshot
	err  error
}

type stream struct {
	cancel   context.CancelFunc
	out      chan result
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func (st *stream) pump(ctx context.Context, cs *mongo.ChangeStream, run func(context.Context) (store.Snapshot, error)) {
	defer close(st.finished)
	defer cs.Close(context.Background())

	emit := func() bool {
		snap, err := run(ctx)
		if ctx.Err() != nil {
			return false
		}
		select {
		case st.out <- result{snap: snap, err: err}:
		case <-ctx.Done():
			return false
		}
		return err == nil
	}

	if !emit() {
		return
	}
	for cs.Next(ctx) {
		if !emit() {
			return
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		select {
		case st.out <- result{err: err}:
		case <-ctx.Done():
		}
	}
}

func (st *stream) Next(ctx context.Context) (store.Snapshot, error) {
	select {
	case r := <-st.out:
		return r.snap, r.err
	case <-st.done:
		return store.Snapshot{}, store.ErrStreamClosed
	case <-st.finished:
		return store.Snapshot{}, store.ErrStreamClosed
	case <-ctx.Done():
		return store.Snapshot{}, ctx.Err()
	}
}

func (st *stream) Stop() {
	st.stopOnce.Do(func() {
		close(st.done)
		st.cancel()
	})
}
