// Package mongostore answers aggregate requests with MongoDB aggregation
// pipelines. The segment classifier is compiled into a $switch expression
// evaluated inside $group.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type Option func(*Options)

func WithURI(uri string) Option {
	return func(o *Options) { o.URI = uri }
}

func WithDatabase(name string) Option {
	return func(o *Options) { o.Database = name }
}

func WithCollection(name string) Option {
	return func(o *Options) { o.Collection = name }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client, verifies it against the primary and binds the
// customer collection.
func Connect(ctx context.Context, opts ...Option) (*Store, error) {
	o := &Options{
		URI:            "mongodb://localhost:27017",
		Database:       "analytics",
		Collection:     "customers",
		ConnectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := store.ValidateFields(o.Database, o.Collection); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(o.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(o.Database).Collection(o.Collection),
	}, nil
}

// NewWithCollection wraps an existing collection; Close leaves the client
// connected.
func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) aggregate(ctx context.Context, op string, pipeline []bson.D, out any) error {
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return store.Retrieval(op, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return store.Retrieval(op, err)
	}
	return nil
}

func (s *Store) Average(ctx context.Context, field string) (*float64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	var rows []struct {
		V *float64 `bson:"v"`
	}
	if err := s.aggregate(ctx, "Average", averagePipeline(field), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].V, nil
}

func (s *Store) TotalCount(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, store.Retrieval("TotalCount", err)
	}
	return n, nil
}

func (s *Store) CountWhere(ctx context.Context, field, value string) (int64, error) {
	if err := store.ValidateField(field); err != nil {
		return 0, err
	}
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: field, Value: value}})
	if err != nil {
		return 0, store.Retrieval("CountWhere", err)
	}
	return n, nil
}

type groupRow struct {
	ID any     `bson:"_id"`
	N  int64   `bson:"n"`
	V  float64 `bson:"v"`
}

func key(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

func (s *Store) CountByTerms(ctx context.Context, field string, limit int) (map[string]int64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	var rows []groupRow
	if err := s.aggregate(ctx, "CountByTerms", termsPipeline(field, limit), &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[key(r.ID)] = r.N
	}
	return out, nil
}

func (s *Store) MetricByGroup(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error) {
	if err := store.ValidateFields(metricField, groupField); err != nil {
		return nil, err
	}
	pipeline, err := metricPipeline(metricField, agg, groupField, limit)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID any      `bson:"_id"`
		V  *float64 `bson:"v"`
	}
	if err := s.aggregate(ctx, "MetricByGroup", pipeline, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		if r.V != nil {
			out[key(r.ID)] = *r.V
		} else {
			out[key(r.ID)] = 0
		}
	}
	return out, nil
}

func (s *Store) Percentiles(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error) {
	if err := store.ValidatePercentiles(reqs); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return map[string]map[float64]float64{}, nil
	}
	var docs []map[string][]facetRow
	if err := s.aggregate(ctx, "Percentiles", percentilePipeline(reqs), &docs); err != nil {
		return nil, err
	}
	var doc map[string][]facetRow
	if len(docs) > 0 {
		doc = docs[0]
	}
	return decodePercentiles(reqs, doc), nil
}

func (s *Store) SegmentCounts(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error) {
	pipeline, err := segmentPipeline(c, limit)
	if err != nil {
		return nil, err
	}
	var rows []groupRow
	if err := s.aggregate(ctx, "SegmentCounts", pipeline, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[key(r.ID)] = r.N
	}
	return out, nil
}

// InsertCustomers writes a batch of customers as documents.
func (s *Store) InsertCustomers(ctx context.Context, customers []store.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	docs := make([]any, len(customers))
	for i, c := range customers {
		docs[i] = bson.M(c.Record())
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert customers: %w", err)
	}
	return nil
}
