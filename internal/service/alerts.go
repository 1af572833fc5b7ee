package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

// Named metrics. Besides these, a rule may reference
//
//	avg:<field>            average of a numeric field (missing = 0)
//	pct:<field>=<value>    share of records whose field equals value
//	segment_pct:<segment>  share of records in an RFM segment
const (
	MetricAvgRating      = "avg_rating"
	MetricUnsatisfiedPct = "unsatisfied_pct"
	MetricAtRiskPct      = "at_risk_pct"
)

var metricAliases = map[string]string{
	MetricAvgRating:      "avg:" + store.FieldAverageRating,
	MetricUnsatisfiedPct: "pct:" + store.FieldSatisfactionLevel + "=Unsatisfied",
	MetricAtRiskPct:      "segment_pct:" + string(segment.AtRisk),
}

var ErrInvalidAlertRule = errors.New("invalid alert rule")

// AlertRule fires when Metric compared to Threshold with Op holds. Template
// renders the message from .Value, .Count, .Total and .Threshold.
type AlertRule struct {
	ID        string  `yaml:"id"`
	Title     string  `yaml:"title"`
	Metric    string  `yaml:"metric"`
	Op        string  `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
	Template  string  `yaml:"template"`
}

// DefaultAlertRules is the alert battery, evaluated in order.
var DefaultAlertRules = []AlertRule{
	{
		ID:        "low_avg_rating",
		Title:     "Low average rating",
		Metric:    MetricAvgRating,
		Op:        "<",
		Threshold: 3.5,
		Template:  `Average rating is {{printf "%.2f" .Value}} (< {{printf "%g" .Threshold}})`,
	},
	{
		ID:        "high_unsatisfied_rate",
		Title:     "High unsatisfied rate",
		Metric:    MetricUnsatisfiedPct,
		Op:        ">",
		Threshold: 10,
		Template:  `{{printf "%.1f" .Value}}% of customers are unsatisfied (>{{printf "%g" .Threshold}}%)`,
	},
	{
		ID:        "large_at_risk_group",
		Title:     "Large At-Risk group",
		Metric:    MetricAtRiskPct,
		Op:        ">",
		Threshold: 15,
		Template:  `{{.Count}} customers ({{printf "%.1f" .Value}}%) are At Risk (>{{printf "%g" .Threshold}}%)`,
	},
}

type metricKind int

const (
	metricAvg metricKind = iota
	metricShare
	metricSegmentShare
)

type metricRef struct {
	kind  metricKind
	field string
	value string
	label segment.Label
}

func parseMetric(name string) (metricRef, error) {
	if alias, ok := metricAliases[name]; ok {
		name = alias
	}
	kind, arg, ok := strings.Cut(name, ":")
	if !ok {
		return metricRef{}, fmt.Errorf("unknown metric %q", name)
	}
	switch kind {
	case "avg":
		if err := store.ValidateField(arg); err != nil {
			return metricRef{}, err
		}
		return metricRef{kind: metricAvg, field: arg}, nil
	case "pct":
		field, value, ok := strings.Cut(arg, "=")
		if !ok {
			return metricRef{}, fmt.Errorf("metric %q: want pct:<field>=<value>", name)
		}
		if err := store.ValidateField(field); err != nil {
			return metricRef{}, err
		}
		return metricRef{kind: metricShare, field: field, value: value}, nil
	case "segment_pct":
		label, ok := segment.ParseLabel(arg)
		if !ok {
			return metricRef{}, fmt.Errorf("%w: %q", ErrUnknownSegment, arg)
		}
		return metricRef{kind: metricSegmentShare, label: label}, nil
	}
	return metricRef{}, fmt.Errorf("unknown metric kind %q", kind)
}

type compiledRule struct {
	AlertRule
	metric metricRef
	tmpl   *template.Template
}

func (r compiledRule) fires(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch r.Op {
	case "<":
		return v < r.Threshold
	case ">":
		return v > r.Threshold
	}
	return false
}

func compileRules(rules []AlertRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: missing id", ErrInvalidAlertRule)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidAlertRule, r.ID)
		}
		seen[r.ID] = true
		if r.Op != "<" && r.Op != ">" {
			return nil, fmt.Errorf("%w: %s: operator %q", ErrInvalidAlertRule, r.ID, r.Op)
		}
		m, err := parseMetric(r.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAlertRule, r.ID, err)
		}
		tmpl, err := template.New(r.ID).Option("missingkey=error").Parse(r.Template)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAlertRule, r.ID, err)
		}
		out = append(out, compiledRule{AlertRule: r, metric: m, tmpl: tmpl})
	}
	return out, nil
}

// AlertEvaluator runs the alert battery against the current store contents.
type AlertEvaluator struct {
	client AggregateClient
	scorer *RFMScorer
	rules  []compiledRule
	logger *zap.Logger
}

// NewAlertEvaluator compiles rules; nil rules selects DefaultAlertRules.
func NewAlertEvaluator(client AggregateClient, scorer *RFMScorer, rules []AlertRule, logger *zap.Logger) (*AlertEvaluator, error) {
	if client == nil {
		panic("client must not be nil")
	}
	if scorer == nil {
		panic("scorer must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	if rules == nil {
		rules = DefaultAlertRules
	}
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &AlertEvaluator{client: client, scorer: scorer, rules: compiled, logger: logger}, nil
}

// Rules returns the evaluated rules in order.
func (e *AlertEvaluator) Rules() []AlertRule {
	out := make([]AlertRule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.AlertRule
	}
	return out
}

type metricValue struct {
	Value     float64
	Count     int64
	Total     int64
	Threshold float64
}

// snapshot memoises store reads for the duration of one evaluation.
type snapshot struct {
	e        *AlertEvaluator
	total    *int64
	averages map[string]float64
	counts   map[string]int64
	dist     segment.Distribution
}

func (s *snapshot) totalCount(ctx context.Context) (int64, error) {
	if s.total == nil {
		n, err := s.e.client.TotalCount(ctx)
		if err != nil {
			return 0, fmt.Errorf("total count: %w", err)
		}
		s.total = &n
	}
	return *s.total, nil
}

func share(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func (s *snapshot) resolve(ctx context.Context, m metricRef) (metricValue, error) {
	switch m.kind {
	case metricAvg:
		v, ok := s.averages[m.field]
		if !ok {
			avg, err := s.e.client.Average(ctx, m.field)
			if err != nil {
				return metricValue{}, fmt.Errorf("average %s: %w", m.field, err)
			}
			if avg != nil {
				v = *avg
			}
			s.averages[m.field] = v
		}
		return metricValue{Value: v}, nil

	case metricShare:
		total, err := s.totalCount(ctx)
		if err != nil {
			return metricValue{}, err
		}
		key := m.field + "=" + m.value
		n, ok := s.counts[key]
		if !ok {
			n, err = s.e.client.CountWhere(ctx, m.field, m.value)
			if err != nil {
				return metricValue{}, fmt.Errorf("count %s: %w", key, err)
			}
			s.counts[key] = n
		}
		return metricValue{Value: share(n, total), Count: n, Total: total}, nil

	case metricSegmentShare:
		total, err := s.totalCount(ctx)
		if err != nil {
			return metricValue{}, err
		}
		if s.dist == nil {
			s.dist, err = s.e.scorer.Segments(ctx)
			if err != nil {
				return metricValue{}, err
			}
		}
		n := s.dist.Count(m.label)
		return metricValue{Value: share(n, total), Count: n, Total: total}, nil
	}
	return metricValue{}, fmt.Errorf("unsupported metric kind %d", m.kind)
}

// Evaluate returns the fired alerts in rule order. Only the metrics the
// rules reference are read, each at most once.
func (e *AlertEvaluator) Evaluate(ctx context.Context) ([]Alert, error) {
	snap := &snapshot{
		e:        e,
		averages: make(map[string]float64),
		counts:   make(map[string]int64),
	}

	alerts := make([]Alert, 0, len(e.rules))
	for _, r := range e.rules {
		mv, err := snap.resolve(ctx, r.metric)
		if err != nil {
			return nil, fmt.Errorf("alert %s: %w", r.ID, err)
		}
		if !r.fires(mv.Value) {
			continue
		}

		mv.Threshold = r.Threshold
		var msg strings.Builder
		if err := r.tmpl.Execute(&msg, mv); err != nil {
			return nil, fmt.Errorf("render alert %s: %w", r.ID, err)
		}
		alerts = append(alerts, Alert{
			ID:        r.ID,
			Title:     r.Title,
			Message:   msg.String(),
			Value:     mv.Value,
			Threshold: r.Threshold,
		})
	}

	e.logger.Debug("evaluated alerts", zap.Int("rules", len(e.rules)), zap.Int("fired", len(alerts)))
	return alerts, nil
}
