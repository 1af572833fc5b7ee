package sqlstore

import (
	"fmt"
	"strings"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

var sqlOps = map[segment.CmpOp]string{
	segment.OpEq:  "=",
	segment.OpGte: ">=",
	segment.OpLte: "<=",
	segment.OpGt:  ">",
	segment.OpLt:  "<",
}

// scoreColumns are the derived-table columns holding the sub-scores.
var scoreColumns = map[segment.Var]string{
	segment.VarR:    "r_score",
	segment.VarF:    "f_score",
	segment.VarM:    "m_score",
	segment.VarCode: "(r_score * 100 + f_score * 10 + m_score)",
}

// compileDimension renders the 1..5 step function of one dimension.
// Missing values score as zero.
func compileDimension(b *builder, dim segment.Dimension) {
	col := fmt.Sprintf("COALESCE(%s, 0)", b.d.Quote(dim.Field))
	b.write("CASE")
	for i, cut := range dim.Cuts {
		b.writef(" WHEN %s <= %s THEN %d", col, b.arg(cut), dim.Bucket(i))
	}
	b.writef(" ELSE %d END", dim.Bucket(len(dim.Cuts)))
}

func compileExpr(e segment.Expr) (string, error) {
	switch x := e.(type) {
	case segment.Cmp:
		col, ok := scoreColumns[x.Var]
		if !ok {
			return "", fmt.Errorf("unknown variable %q", x.Var)
		}
		op, ok := sqlOps[x.Op]
		if !ok {
			return "", fmt.Errorf("unknown operator %q", x.Op)
		}
		return fmt.Sprintf("%s %s %d", col, op, x.Value), nil
	case segment.All:
		return compileJunction([]segment.Expr(x), " AND ", "1 = 1")
	case segment.Any:
		return compileJunction([]segment.Expr(x), " OR ", "1 = 0")
	case segment.Always:
		return "1 = 1", nil
	}
	return "", fmt.Errorf("unsupported rule expression %T", e)
}

func compileJunction(exprs []segment.Expr, sep, empty string) (string, error) {
	if len(exprs) == 0 {
		return empty, nil
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := compileExpr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// compileSegmentQuery renders the classifier as a grouped CASE query that
// returns one (label, count) row per segment.
func compileSegmentQuery(d Dialect, table string, c *segment.Classifier, limit int) (string, []any, error) {
	dims := c.Dimensions()
	for _, dim := range dims {
		if err := store.ValidateField(dim.Field); err != nil {
			return "", nil, err
		}
	}

	b := newBuilder(d)
	b.write("SELECT label, COUNT(*) AS n FROM (SELECT CASE")
	rules := c.Rules()
	for i, r := range rules {
		if _, ok := r.When.(segment.Always); ok && i == len(rules)-1 {
			b.write(" ELSE ", sqlString(string(r.Label)))
			continue
		}
		cond, err := compileExpr(r.When)
		if err != nil {
			return "", nil, fmt.Errorf("rule %q: %w", r.Label, err)
		}
		b.write(" WHEN ", cond, " THEN ", sqlString(string(r.Label)))
	}
	b.write(" END AS label FROM (SELECT ")
	for i, dim := range dims {
		if i > 0 {
			b.write(", ")
		}
		compileDimension(b, dim)
		b.write(" AS ", scoreColumns[dim.Var])
	}
	b.writef(" FROM %s) AS scored) AS labeled GROUP BY label ORDER BY n DESC, label", d.Quote(table))
	if limit > 0 {
		b.writef(" LIMIT %d", limit)
	}
	return b.String(), b.args, nil
}
