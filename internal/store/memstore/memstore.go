// Package memstore keeps customer records in process memory and answers
// aggregate requests with full scans. It stands in for stores that cannot
// evaluate the segment classifier themselves, and backs the tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

type Record map[string]any

type Store struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

func New(records ...Record) *Store {
	return &Store{records: records}
}

// FromCustomers builds a store holding the given customers.
func FromCustomers(customers []store.Customer) *Store {
	s := &Store{records: make([]Record, 0, len(customers))}
	for _, c := range customers {
		s.records = append(s.records, c.Record())
	}
	return s
}

func (s *Store) Insert(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// InsertCustomers appends customers; it never fails.
func (s *Store) InsertCustomers(_ context.Context, customers []store.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range customers {
		s.records = append(s.records, c.Record())
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) scan(op string, fn func(Record)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Retrieval(op, fmt.Errorf("store closed"))
	}
	for _, r := range s.records {
		fn(r)
	}
	return nil
}

func numeric(r Record, field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// rfmValue reads a scoring input. Absent, non-numeric and NaN values score
// as zero, the same as a NULL column does under COALESCE.
func rfmValue(r Record, field string) float64 {
	if v, ok := numeric(r, field); ok {
		return v
	}
	return 0
}

func term(r Record, field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func (s *Store) Average(_ context.Context, field string) (*float64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	var sum float64
	var n int
	err := s.scan("Average", func(r Record) {
		if v, ok := numeric(r, field); ok {
			sum += v
			n++
		}
	})
	if err != nil || n == 0 {
		return nil, err
	}
	avg := sum / float64(n)
	return &avg, nil
}

func (s *Store) TotalCount(context.Context) (int64, error) {
	var n int64
	err := s.scan("TotalCount", func(Record) { n++ })
	return n, err
}

func (s *Store) CountWhere(_ context.Context, field, value string) (int64, error) {
	if err := store.ValidateField(field); err != nil {
		return 0, err
	}
	var n int64
	err := s.scan("CountWhere", func(r Record) {
		if t, ok := term(r, field); ok && t == value {
			n++
		}
	})
	return n, err
}

type bucket struct {
	key   string
	count int64
	vals  []float64
}

// topBuckets keeps the limit largest buckets ordered by count, then key.
func topBuckets(m map[string]*bucket, limit int) []*bucket {
	out := make([]*bucket, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) CountByTerms(_ context.Context, field string, limit int) (map[string]int64, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	buckets := make(map[string]*bucket)
	err := s.scan("CountByTerms", func(r Record) {
		if t, ok := term(r, field); ok {
			b, found := buckets[t]
			if !found {
				b = &bucket{key: t}
				buckets[t] = b
			}
			b.count++
		}
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, b := range topBuckets(buckets, limit) {
		out[b.key] = b.count
	}
	return out, nil
}

func (s *Store) MetricByGroup(_ context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error) {
	if err := store.ValidateFields(metricField, groupField); err != nil {
		return nil, err
	}
	if !agg.Valid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidAgg, agg)
	}
	buckets := make(map[string]*bucket)
	err := s.scan("MetricByGroup", func(r Record) {
		g, ok := term(r, groupField)
		if !ok {
			return
		}
		b, found := buckets[g]
		if !found {
			b = &bucket{key: g}
			buckets[g] = b
		}
		b.count++
		if v, ok := numeric(r, metricField); ok {
			b.vals = append(b.vals, v)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, b := range topBuckets(buckets, limit) {
		out[b.key] = reduce(agg, b.vals)
	}
	return out, nil
}

func reduce(agg store.AggKind, vals []float64) float64 {
	if agg == store.AggCount {
		return float64(len(vals))
	}
	if len(vals) == 0 {
		return 0
	}
	acc := vals[0]
	sum := 0.0
	for _, v := range vals {
		sum += v
		switch agg {
		case store.AggMin:
			acc = math.Min(acc, v)
		case store.AggMax:
			acc = math.Max(acc, v)
		}
	}
	switch agg {
	case store.AggSum:
		return sum
	case store.AggAvg:
		return sum / float64(len(vals))
	}
	return acc
}

func (s *Store) Percentiles(_ context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error) {
	if err := store.ValidatePercentiles(reqs); err != nil {
		return nil, err
	}
	values := make([][]float64, len(reqs))
	err := s.scan("Percentiles", func(r Record) {
		for i, req := range reqs {
			if v, ok := numeric(r, req.Field); ok {
				values[i] = append(values[i], v)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[float64]float64, len(reqs))
	for i, req := range reqs {
		sort.Float64s(values[i])
		pcts := make(map[float64]float64)
		for _, p := range req.Percents {
			if v, ok := store.PercentileOfSorted(values[i], p); ok {
				pcts[p] = v
			}
		}
		out[req.Field] = pcts
	}
	return out, nil
}

// SegmentCounts classifies every record locally. A missing RFM field counts
// as zero, as it does in the stores that evaluate the classifier themselves.
func (s *Store) SegmentCounts(_ context.Context, c *segment.Classifier, limit int) (map[string]int64, error) {
	dims := c.Dimensions()
	if err := store.ValidateFields(dims[0].Field, dims[1].Field, dims[2].Field); err != nil {
		return nil, err
	}
	buckets := make(map[string]*bucket)
	err := s.scan("SegmentCounts", func(r Record) {
		label := string(c.Classify(
			rfmValue(r, dims[0].Field),
			rfmValue(r, dims[1].Field),
			rfmValue(r, dims[2].Field),
		))
		b, found := buckets[label]
		if !found {
			b = &bucket{key: label}
			buckets[label] = b
		}
		b.count++
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, b := range topBuckets(buckets, limit) {
		out[b.key] = b.count
	}
	return out, nil
}
