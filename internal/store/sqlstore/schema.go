package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/godilite/rfm-insights/internal/store"
)

func (s *Store) columnType(col string) string {
	switch col {
	case store.FieldAge, store.FieldTotalSpend, store.FieldItemsPurchased,
		store.FieldAverageRating, store.FieldDaysSincePurchase:
		return s.dialect.FloatType
	case store.FieldDiscountApplied:
		return s.dialect.BoolType
	}
	return s.dialect.TextType
}

// EnsureSchema creates the customer table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	defs := make([]string, len(store.Columns))
	for i, col := range store.Columns {
		defs[i] = fmt.Sprintf("%s %s", s.dialect.Quote(col), s.columnType(col))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.from(), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// InsertCustomers writes a batch of customers in one transaction.
func (s *Store) InsertCustomers(ctx context.Context, customers []store.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	cols := make([]string, len(store.Columns))
	marks := make([]string, len(store.Columns))
	for i, col := range store.Columns {
		cols[i] = s.dialect.Quote(col)
		marks[i] = s.dialect.Placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.from(), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range customers {
		if _, err := stmt.ExecContext(ctx, c.Values()...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert customer %s: %w", c.CustomerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}
