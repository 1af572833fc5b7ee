package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/godilite/rfm-insights/internal/store"
	"github.com/godilite/rfm-insights/internal/store/memstore"
)

const header = "Customer ID,Gender,Age,City,Membership Type,Total Spend,Items Purchased,Average Rating,Discount Applied,Days Since Last Purchase,Satisfaction Level\n"

const sample = header +
	"101,Female,29,New York,Gold,1120.20,14,4.6,TRUE,25,Satisfied\n" +
	"102,Male,34,Los Angeles,Silver,780.50,11,4.1,False,18,Neutral\n" +
	"103,Female,43,Chicago,Bronze,n/a,9,3.4,True,42,Unsatisfied\n" +
	"104,Male,30,San Francisco,Gold,1480.30,19,4.7,false,12,\n"

type insertFunc func(ctx context.Context, customers []store.Customer) error

func (f insertFunc) InsertCustomers(ctx context.Context, customers []store.Customer) error {
	return f(ctx, customers)
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("imports valid rows and skips bad ones", func(t *testing.T) {
		s := memstore.New()
		var progress bytes.Buffer

		res, err := Import(ctx, strings.NewReader(sample), s,
			WithProgress(&progress, int64(len(sample))),
			WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, Result{Imported: 3, Skipped: 1}, res)
		assert.NotEmpty(t, progress.String())

		n, err := s.TotalCount(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		satisfied, err := s.CountWhere(ctx, store.FieldSatisfactionLevel, "Satisfied")
		require.NoError(t, err)
		assert.EqualValues(t, 1, satisfied)

		terms, err := s.CountByTerms(ctx, store.FieldSatisfactionLevel, 10)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"Satisfied": 1, "Neutral": 1}, terms, "empty level is missing")
	})

	t.Run("parses every column", func(t *testing.T) {
		var got []store.Customer
		_, err := Import(ctx, strings.NewReader(header+"101,Female,29,New York,Gold,1120.20,14,4.6,TRUE,25,Satisfied\n"),
			insertFunc(func(ctx context.Context, customers []store.Customer) error {
				got = append(got, customers...)
				return nil
			}))
		require.NoError(t, err)
		assert.Equal(t, []store.Customer{{
			CustomerID:            "101",
			Gender:                "Female",
			Age:                   29,
			City:                  "New York",
			MembershipType:        "Gold",
			TotalSpend:            1120.20,
			ItemsPurchased:        14,
			AverageRating:         4.6,
			DiscountApplied:       true,
			DaysSinceLastPurchase: 25,
			SatisfactionLevel:     "Satisfied",
		}}, got)
	})

	t.Run("batches inserts", func(t *testing.T) {
		var sizes []int
		res, err := Import(ctx, strings.NewReader(sample), insertFunc(func(ctx context.Context, customers []store.Customer) error {
			sizes = append(sizes, len(customers))
			return nil
		}), WithBatchSize(2))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1}, sizes)
		assert.Equal(t, 3, res.Imported)
	})

	t.Run("short rows are skipped", func(t *testing.T) {
		res, err := Import(ctx, strings.NewReader(header+"105,Male,30\n"), memstore.New())
		require.NoError(t, err)
		assert.Equal(t, Result{Skipped: 1}, res)
	})

	t.Run("non-finite numbers are skipped", func(t *testing.T) {
		input := header +
			"105,Male,30,Houston,Gold,NaN,5,4.0,true,20,Satisfied\n" +
			"106,Female,31,Houston,Gold,100,5,4.0,true,+Inf,Satisfied\n" +
			"107,Female,32,Houston,Gold,100,-inf,4.0,true,20,Satisfied\n" +
			"108,Male,33,Houston,Gold,100,5,4.0,true,20,Satisfied\n"
		var got []store.Customer
		res, err := Import(ctx, strings.NewReader(input), insertFunc(func(ctx context.Context, customers []store.Customer) error {
			got = append(got, customers...)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, Result{Imported: 1, Skipped: 3}, res)
		require.Len(t, got, 1)
		assert.Equal(t, "108", got[0].CustomerID)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := Import(ctx, strings.NewReader("Customer ID,Gender\n1,Male\n"), memstore.New())
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("store failure aborts", func(t *testing.T) {
		boom := errors.New("disk full")
		res, err := Import(ctx, strings.NewReader(sample), insertFunc(func(ctx context.Context, customers []store.Customer) error {
			return boom
		}))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, res.Imported)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Import(ctx, strings.NewReader(""), memstore.New())
		assert.Error(t, err)
	})
}
