// Package store defines the vocabulary shared by the aggregate store
// implementations: field names, aggregation kinds, percentile requests and
// the errors they surface.
package store

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/godilite/rfm-insights/internal/segment"
)

// Customer record fields.
const (
	FieldCustomerID        = "customer_id"
	FieldGender            = "gender"
	FieldAge               = "age"
	FieldCity              = "city"
	FieldMembershipType    = "membership_type"
	FieldTotalSpend        = "total_spend"
	FieldItemsPurchased    = "items_purchased"
	FieldAverageRating     = "average_rating"
	FieldDiscountApplied   = "discount_applied"
	FieldDaysSincePurchase = "days_since_last_purchase"
	FieldSatisfactionLevel = "satisfaction_level"
)

// RFMFields maps the RFM dimensions onto customer record fields.
var RFMFields = segment.Fields{
	Recency:   FieldDaysSincePurchase,
	Frequency: FieldItemsPurchased,
	Monetary:  FieldTotalSpend,
}

var (
	// ErrRetrieval wraps every failure talking to the backing store.
	ErrRetrieval    = errors.New("store retrieval failure")
	ErrInvalidField = errors.New("invalid field name")
	ErrInvalidAgg   = errors.New("unsupported aggregation")
)

// AggKind is a metric aggregation computed per group.
type AggKind string

const (
	AggAvg   AggKind = "avg"
	AggSum   AggKind = "sum"
	AggMin   AggKind = "min"
	AggMax   AggKind = "max"
	AggCount AggKind = "count"
)

func (a AggKind) Valid() bool {
	switch a {
	case AggAvg, AggSum, AggMin, AggMax, AggCount:
		return true
	}
	return false
}

// PercentileRequest asks for a set of percentiles of one numeric field.
type PercentileRequest struct {
	Field    string
	Percents []float64
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField rejects anything that is not a plain identifier, so field
// names can be interpolated into store queries.
func ValidateField(field string) error {
	if !identRe.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func ValidateFields(fields ...string) error {
	for _, f := range fields {
		if err := ValidateField(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePercentiles checks every field and percent of a batch.
func ValidatePercentiles(reqs []PercentileRequest) error {
	for _, r := range reqs {
		if err := ValidateField(r.Field); err != nil {
			return err
		}
		for _, p := range r.Percents {
			if p <= 0 || p >= 100 {
				return fmt.Errorf("percent %v for %s outside (0,100)", p, r.Field)
			}
		}
	}
	return nil
}

// Retrieval wraps err as a retrieval failure of op.
func Retrieval(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRetrieval, op, err)
}
