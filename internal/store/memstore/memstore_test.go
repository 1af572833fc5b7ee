package memstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
	"github.com/godilite/rfm-insights/internal/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, customers []store.Customer) storetest.Client {
		return FromCustomers(customers)
	})
}

func TestMissingRFMFieldsScoreAsZero(t *testing.T) {
	s := New(
		Record{store.FieldItemsPurchased: 10.0, store.FieldTotalSpend: 10.0},
		Record{store.FieldDaysSincePurchase: 50, store.FieldItemsPurchased: 1, store.FieldTotalSpend: 1},
		Record{store.FieldDaysSincePurchase: math.NaN(), store.FieldItemsPurchased: 1, store.FieldTotalSpend: 1},
	)
	cuts := segment.CutSet{
		Recency:   segment.Cuts{10, 20, 30, 40},
		Frequency: segment.Cuts{2, 4, 6, 8},
		Monetary:  segment.Cuts{2, 4, 6, 8},
	}
	cl, err := segment.NewClassifier(store.RFMFields, cuts, nil)
	require.NoError(t, err)

	got, err := s.SegmentCounts(context.Background(), cl, 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		string(segment.Champions):      1,
		string(segment.LoyalCustomers): 1,
		string(segment.Hibernating):    1,
	}, got)
}

func TestAverageIgnoresNonNumeric(t *testing.T) {
	s := New(
		Record{store.FieldAverageRating: 4.0},
		Record{store.FieldAverageRating: "n/a"},
		Record{},
	)
	avg, err := s.Average(context.Background(), store.FieldAverageRating)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 4.0, *avg)
}

func TestMetricByGroupMinMax(t *testing.T) {
	s := FromCustomers(storetest.Customers())
	ctx := context.Background()

	minAge, err := s.MetricByGroup(ctx, store.FieldAge, store.AggMin, store.FieldMembershipType, 10)
	require.NoError(t, err)
	assert.Equal(t, 21.0, minAge["Gold"])

	maxAge, err := s.MetricByGroup(ctx, store.FieldAge, store.AggMax, store.FieldMembershipType, 10)
	require.NoError(t, err)
	assert.Equal(t, 30.0, maxAge["Bronze"])

	_, err = s.MetricByGroup(ctx, store.FieldAge, store.AggKind("median"), store.FieldMembershipType, 10)
	assert.ErrorIs(t, err, store.ErrInvalidAgg)
}

func TestClosedStoreFailsRetrieval(t *testing.T) {
	s := FromCustomers(storetest.Customers())
	require.NoError(t, s.Close(context.Background()))

	_, err := s.TotalCount(context.Background())
	assert.ErrorIs(t, err, store.ErrRetrieval)
}

func TestInsertCustomers(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertCustomers(context.Background(), storetest.Customers()[:3]))

	n, err := s.TotalCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
