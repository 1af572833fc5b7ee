// Package importer loads the customer behaviour CSV export into a store.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/store"
)

const defaultBatchSize = 500

var ErrMissingColumn = errors.New("missing column")

// Inserter is the write side of a customer store.
type Inserter interface {
	InsertCustomers(ctx context.Context, customers []store.Customer) error
}

type Options struct {
	batchSize int
	progress  io.Writer
	total     int64
	logger    *zap.Logger
}

type Option func(*Options)

func WithBatchSize(n int) Option {
	return func(o *Options) { o.batchSize = n }
}

// WithProgress renders a progress bar to w. total is the input size in
// bytes, or -1 when unknown.
func WithProgress(w io.Writer, total int64) Option {
	return func(o *Options) {
		o.progress = w
		o.total = total
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

// Result counts what happened to the data rows.
type Result struct {
	Imported int
	Skipped  int
}

// Import reads a header row followed by customer rows. Rows that fail to
// parse are skipped and counted; store errors abort the import.
func Import(ctx context.Context, r io.Reader, dst Inserter, opts ...Option) (Result, error) {
	options := &Options{batchSize: defaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(options)
	}
	if options.batchSize < 1 {
		options.batchSize = defaultBatchSize
	}

	var bar *progressbar.ProgressBar
	if options.progress != nil {
		bar = progressbar.NewOptions64(options.total,
			progressbar.OptionSetWriter(options.progress),
			progressbar.OptionSetDescription("importing customers"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(0),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(options.progress) }),
		)
		reader := progressbar.NewReader(r, bar)
		r = &reader
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	batch := make([]store.Customer, 0, options.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.InsertCustomers(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		res.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Skipped++
				options.logger.Warn("skipping malformed row", zap.Int("line", line), zap.Error(err))
				continue
			}
			return res, fmt.Errorf("read row %d: %w", line, err)
		}

		c, err := cols.parse(record)
		if err != nil {
			res.Skipped++
			options.logger.Warn("skipping row", zap.Int("line", line), zap.Error(err))
			continue
		}
		batch = append(batch, c)
		if len(batch) == options.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	options.logger.Info("import finished",
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

type columns map[string]int

// columnIndex maps headers such as "Days Since Last Purchase" onto store
// field names.
func columnIndex(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.Join(strings.Fields(strings.TrimPrefix(h, "\ufeff")), "_"))
		cols[name] = i
	}
	for _, f := range store.Columns {
		if _, ok := cols[f]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
	}
	return cols, nil
}

func (cols columns) get(record []string, field string) (string, error) {
	i := cols[field]
	if i >= len(record) {
		return "", fmt.Errorf("%w: %s", ErrMissingColumn, field)
	}
	return strings.TrimSpace(record[i]), nil
}

func (cols columns) parse(record []string) (store.Customer, error) {
	var (
		c   store.Customer
		err error
	)
	text := func(field string, dst *string) {
		if err == nil {
			*dst, err = cols.get(record, field)
		}
	}
	number := func(field string, dst *float64) {
		if err != nil {
			return
		}
		var s string
		if s, err = cols.get(record, field); err != nil {
			return
		}
		if *dst, err = strconv.ParseFloat(s, 64); err != nil {
			err = fmt.Errorf("%s: %w", field, err)
			return
		}
		if math.IsNaN(*dst) || math.IsInf(*dst, 0) {
			err = fmt.Errorf("%s: non-finite value %q", field, s)
		}
	}

	text(store.FieldCustomerID, &c.CustomerID)
	text(store.FieldGender, &c.Gender)
	number(store.FieldAge, &c.Age)
	text(store.FieldCity, &c.City)
	text(store.FieldMembershipType, &c.MembershipType)
	number(store.FieldTotalSpend, &c.TotalSpend)
	number(store.FieldItemsPurchased, &c.ItemsPurchased)
	number(store.FieldAverageRating, &c.AverageRating)
	number(store.FieldDaysSincePurchase, &c.DaysSinceLastPurchase)
	text(store.FieldSatisfactionLevel, &c.SatisfactionLevel)
	if err != nil {
		return store.Customer{}, err
	}

	discount, err := cols.get(record, store.FieldDiscountApplied)
	if err != nil {
		return store.Customer{}, err
	}
	if discount != "" {
		if c.DiscountApplied, err = strconv.ParseBool(discount); err != nil {
			return store.Customer{}, fmt.Errorf("%s: %w", store.FieldDiscountApplied, err)
		}
	}
	return c, nil
}
