package postgres

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/poanetwork/bridge-prover/db"
)

// basePostgresRepo carries what every table repo shares: the pool, the
// target table and a statement builder pinned to postgres dollar
// placeholders.
type basePostgresRepo struct {
	table   string
	db      *db.DB
	builder sq.StatementBuilderType
}

func newBasePostgresRepo(table string, db *db.DB) *basePostgresRepo {
	return &basePostgresRepo{
		table:   table,
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}
