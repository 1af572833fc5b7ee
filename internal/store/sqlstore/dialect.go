package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported engines.
// Window functions are required (SQLite 3.25+, MySQL 8+, PostgreSQL).
type Dialect struct {
	Name        string
	quoteOpen   string
	quoteClose  string
	numbered    bool
	floorFormat string
	FloatType   string
	BoolType    string
	TextType    string
}

var (
	SQLite = Dialect{
		Name:        "sqlite3",
		quoteOpen:   `"`,
		quoteClose:  `"`,
		floorFormat: "CAST(%s AS INTEGER)",
		FloatType:   "REAL",
		BoolType:    "BOOLEAN",
		TextType:    "TEXT",
	}
	MySQL = Dialect{
		Name:        "mysql",
		quoteOpen:   "`",
		quoteClose:  "`",
		floorFormat: "FLOOR(%s)",
		FloatType:   "DOUBLE",
		BoolType:    "BOOLEAN",
		TextType:    "VARCHAR(255)",
	}
	Postgres = Dialect{
		Name:        "pgx",
		quoteOpen:   `"`,
		quoteClose:  `"`,
		numbered:    true,
		floorFormat: "FLOOR(%s)",
		FloatType:   "DOUBLE PRECISION",
		BoolType:    "BOOLEAN",
		TextType:    "TEXT",
	}
)

// DialectFor maps a database/sql driver name onto its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
}

// Quote quotes an identifier that already passed store.ValidateField.
func (d Dialect) Quote(ident string) string {
	return d.quoteOpen + ident + d.quoteClose
}

// Placeholder returns the bind marker of the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) Floor(expr string) string {
	return fmt.Sprintf(d.floorFormat, expr)
}

// builder accumulates query text and its bind arguments.
type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d Dialect) *builder {
	return &builder{d: d}
}

func (b *builder) write(parts ...string) *builder {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
	return b
}

func (b *builder) writef(format string, a ...any) *builder {
	fmt.Fprintf(&b.sb, format, a...)
	return b
}

// arg binds v and returns its placeholder.
func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) String() string { return b.sb.String() }

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
