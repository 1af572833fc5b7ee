package service

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/godilite/rfm-insights/internal/store"
)

type QueryKind string

const (
	QueryTerms  QueryKind = "terms"
	QueryMetric QueryKind = "metric"
)

// DefaultQueryLimit caps the number of groups a predefined query returns.
const DefaultQueryLimit = 100

var (
	ErrUnknownQuery = errors.New("unknown query")
	ErrInvalidQuery = errors.New("invalid query")
)

// QuerySpec declares a predefined dashboard question. Terms queries count
// records per GroupField value; metric queries aggregate MetricField per
// GroupField value.
type QuerySpec struct {
	Name        string        `yaml:"name"`
	Kind        QueryKind     `yaml:"kind"`
	MetricField string        `yaml:"metric_field"`
	Agg         store.AggKind `yaml:"agg"`
	GroupField  string        `yaml:"group_field"`
	Limit       int           `yaml:"limit"`
}

var DefaultQueries = []QuerySpec{
	{Name: "Average age by membership", Kind: QueryMetric, MetricField: store.FieldAge, Agg: store.AggAvg, GroupField: store.FieldMembershipType, Limit: DefaultQueryLimit},
	{Name: "Total spend by membership", Kind: QueryMetric, MetricField: store.FieldTotalSpend, Agg: store.AggSum, GroupField: store.FieldMembershipType, Limit: DefaultQueryLimit},
	{Name: "Average rating by gender", Kind: QueryMetric, MetricField: store.FieldAverageRating, Agg: store.AggAvg, GroupField: store.FieldGender, Limit: DefaultQueryLimit},
	{Name: "Average items purchased by membership", Kind: QueryMetric, MetricField: store.FieldItemsPurchased, Agg: store.AggAvg, GroupField: store.FieldMembershipType, Limit: DefaultQueryLimit},
	{Name: "Count of customers by satisfaction level", Kind: QueryTerms, GroupField: store.FieldSatisfactionLevel, Limit: DefaultQueryLimit},
}

func (q QuerySpec) validate() error {
	if q.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidQuery)
	}
	if err := store.ValidateField(q.GroupField); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidQuery, q.Name, err)
	}
	switch q.Kind {
	case QueryTerms:
	case QueryMetric:
		if err := store.ValidateField(q.MetricField); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidQuery, q.Name, err)
		}
		if !q.Agg.Valid() {
			return fmt.Errorf("%w: %s: aggregation %q", ErrInvalidQuery, q.Name, q.Agg)
		}
	default:
		return fmt.Errorf("%w: %s: kind %q", ErrInvalidQuery, q.Name, q.Kind)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: %s: negative limit", ErrInvalidQuery, q.Name)
	}
	return nil
}

// Catalog is an ordered set of predefined queries keyed by name.
type Catalog struct {
	specs  []QuerySpec
	byName map[string]int
}

func NewCatalog(specs ...QuerySpec) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(specs))}
	for _, q := range specs {
		if err := q.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[q.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidQuery, q.Name)
		}
		if q.Limit == 0 {
			q.Limit = DefaultQueryLimit
		}
		c.byName[q.Name] = len(c.specs)
		c.specs = append(c.specs, q)
	}
	return c, nil
}

// Names returns the query names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.specs))
	for i, q := range c.specs {
		out[i] = q.Name
	}
	return out
}

func (c *Catalog) Lookup(name string) (QuerySpec, bool) {
	i, ok := c.byName[name]
	if !ok {
		return QuerySpec{}, false
	}
	return c.specs[i], true
}

// Extensions holds queries and alert rules appended to the built-in ones.
type Extensions struct {
	Queries []QuerySpec `yaml:"queries"`
	Alerts  []AlertRule `yaml:"alerts"`
}

// LoadExtensions reads an extensions file. An empty path yields no
// extensions.
func LoadExtensions(path string) (Extensions, error) {
	var ext Extensions
	if path == "" {
		return ext, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ext, fmt.Errorf("read catalog file: %w", err)
	}
	if err := yaml.Unmarshal(data, &ext); err != nil {
		return ext, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return ext, nil
}
