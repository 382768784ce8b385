package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

// MongoStore maps each registry collection to a MongoDB collection with
// flattened fields plus _id, createdAt and updatedAt.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	newID  func() (string, error)
}

func ConnectMongo(ctx context.Context, uri string, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logging.Info(logging.CatDB, "connected to MongoDB", "database", database)
	return &MongoStore{client: client, db: client.Database(database), newID: uuidv7.NewString}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the createdAt index and one index per filterable field.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collection string, fields []string) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: types.FieldCreatedAt, Value: -1}, {Key: "_id", Value: -1}}},
	}
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}, {Key: "_id", Value: 1}}})
	}
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes on %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection string, id string) (ports.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ports.Document{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Document{}, err
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, fields map[string]any) (ports.Document, error) {
	id, err := s.newID()
	if err != nil {
		return ports.Document{}, err
	}
	doc := toBSON(id, fields, time.Now().UTC())
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return ports.Document{}, err
	}
	return fromBSON(doc), nil
}

func (s *MongoStore) Update(ctx context.Context, collection string, id string, fields map[string]any) (ports.Document, error) {
	set := bson.M{}
	for k, v := range stripSystemFields(fields) {
		set[k] = v
	}
	set[types.FieldUpdatedAt] = time.Now().UTC()

	var raw bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ports.Document{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Document{}, err
	}
	return fromBSON(raw), nil
}

func (s *MongoStore) Delete(ctx context.Context, collection string, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q ports.Query) ([]ports.Hit, error) {
	filter, sort, err := mongoQuery(q)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	hits := make([]ports.Hit, 0, len(raws))
	for _, raw := range raws {
		d := fromBSON(raw)
		hits = append(hits, ports.Hit{Document: d, Cursor: newCursor(d, q.Order.Field)})
	}
	return hits, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string, constraints []ports.Constraint) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, mongoConstraints(constraints))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CommitBatch runs the ops as one bulk write inside a transaction. Requires
// a replica set deployment.
func (s *MongoStore) CommitBatch(ctx context.Context, collection string, ops []ports.BatchOp) error {
	if err := validateBatch(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case ports.BatchInsert:
			id := op.ID
			if id == "" {
				var err error
				if id, err = s.newID(); err != nil {
					return err
				}
			}
			models = append(models, mongo.NewInsertOneModel().SetDocument(toBSON(id, op.Fields, now)))
		case ports.BatchDelete:
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": op.ID}))
		}
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return s.db.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	})
	return err
}

func (s *MongoStore) ParseCursor(token string) (ports.Cursor, error) {
	return parsePositionCursor(token)
}

func mongoField(field string) string {
	if field == types.FieldID {
		return "_id"
	}
	return field
}

func mongoOp(op ports.Op) string {
	switch op {
	case ports.OpGte:
		return "$gte"
	case ports.OpLt:
		return "$lt"
	}
	return "$eq"
}

func mongoConstraints(cs []ports.Constraint) bson.D {
	byField := bson.D{}
	index := map[string]int{}
	for _, c := range cs {
		f := mongoField(c.Field)
		i, ok := index[f]
		if !ok {
			index[f] = len(byField)
			byField = append(byField, bson.E{Key: f, Value: bson.D{}})
			i = len(byField) - 1
		}
		ops := byField[i].Value.(bson.D)
		byField[i].Value = append(ops, bson.E{Key: mongoOp(c.Op), Value: c.Value})
	}
	return byField
}

func mongoQuery(q ports.Query) (bson.D, bson.D, error) {
	field := mongoField(q.Order.Field)
	after, hasAfter, err := cursorFor(q.After, q.Order.Field)
	if err != nil {
		return nil, nil, err
	}
	dir, cmp := -1, "$lt"
	if q.Order.Direction == ports.Asc {
		dir, cmp = 1, "$gt"
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: dir})
	}

	filter := mongoConstraints(q.Constraints)
	if !hasAfter {
		return filter, sort, nil
	}
	position := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: field, Value: bson.D{{Key: cmp, Value: after.value}}}},
		bson.D{{Key: field, Value: after.value}, {Key: "_id", Value: bson.D{{Key: cmp, Value: after.id}}}},
	}}}
	if len(filter) == 0 {
		return position, sort, nil
	}
	return bson.D{{Key: "$and", Value: bson.A{filter, position}}}, sort, nil
}

func toBSON(id string, fields map[string]any, now time.Time) bson.M {
	doc := bson.M{}
	for k, v := range stripSystemFields(fields) {
		doc[k] = v
	}
	doc["_id"] = id
	doc[types.FieldCreatedAt] = now
	doc[types.FieldUpdatedAt] = now
	return doc
}

func fromBSON(raw bson.M) ports.Document {
	d := ports.Document{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "_id":
			d.ID = fmt.Sprint(v)
		case types.FieldCreatedAt:
			d.CreatedAt = bsonTime(v)
		case types.FieldUpdatedAt:
			d.UpdatedAt = bsonTime(v)
		default:
			d.Fields[k] = v
		}
	}
	return d
}

func bsonTime(v any) time.Time {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}
