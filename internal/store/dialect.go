package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/go-libsql"
)

// Supported store drivers.
const (
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

// dialect captures the differences between the SQL backends. Queries are
// written with '?' placeholders and rebound for Postgres.
type dialect struct {
	name       string
	sqlDriver  string
	migrations []migration
	pragmas    []string
}

var (
	libsqlDialect = dialect{
		name:       DriverLibSQL,
		sqlDriver:  "libsql",
		migrations: sqliteMigrations,
		pragmas: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA cache_size=-20000",
			"PRAGMA foreign_keys=ON",
			"PRAGMA temp_store=MEMORY",
		},
	}
	postgresDialect = dialect{
		name:       DriverPostgres,
		sqlDriver:  "pgx",
		migrations: postgresMigrations,
	}
)

// rebind rewrites '?' placeholders into '$1', '$2', ... for Postgres.
func (d dialect) rebind(query string) string {
	if d.name != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
