package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/segment"
)

// SegmentBucketLimit caps the number of segment buckets the store returns.
// Seven segments exist, so the cap never truncates.
const SegmentBucketLimit = 10

var ErrUnknownSegment = errors.New("unknown segment label")

// RFMScorer computes the customer distribution across behavioural segments.
type RFMScorer struct {
	client      AggregateClient
	percentiles *PercentileCalculator
	fields      segment.Fields
	rules       []segment.Rule
	logger      *zap.Logger
}

// NewRFMScorer creates a scorer over fields using rules; nil rules selects
// the default cascade.
func NewRFMScorer(client AggregateClient, fields segment.Fields, rules []segment.Rule, logger *zap.Logger) *RFMScorer {
	if client == nil {
		panic("client must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &RFMScorer{
		client:      client,
		percentiles: NewPercentileCalculator(client, fields),
		fields:      fields,
		rules:       rules,
		logger:      logger,
	}
}

// Classifier builds a classifier from freshly computed cut points.
func (s *RFMScorer) Classifier(ctx context.Context) (*segment.Classifier, error) {
	cuts, err := s.percentiles.ComputeCutSet(ctx)
	if err != nil {
		return nil, err
	}
	return segment.NewClassifier(s.fields, cuts, s.rules)
}

// Segments classifies every record in the store and returns the count per
// segment.
func (s *RFMScorer) Segments(ctx context.Context) (segment.Distribution, error) {
	c, err := s.Classifier(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.client.SegmentCounts(ctx, c, SegmentBucketLimit)
	if err != nil {
		return nil, fmt.Errorf("segment counts: %w", err)
	}

	dist := make(segment.Distribution, len(counts))
	for name, n := range counts {
		label, ok := segment.ParseLabel(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSegment, name)
		}
		dist[label] += n
	}

	cuts := c.Cuts()
	s.logger.Debug("computed segments",
		zap.Float64s("recency_cuts", cuts.Recency[:]),
		zap.Float64s("frequency_cuts", cuts.Frequency[:]),
		zap.Float64s("monetary_cuts", cuts.Monetary[:]),
		zap.Int64("total", dist.Total()))

	return dist, nil
}
