package resultcache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// DefaultTable is used when NewPostgres gets an empty table name.
const DefaultTable = "filter_results"

// Postgres shares outcomes between processes through one table keyed by
// (target, field, operator, operand).
type Postgres struct {
	db    *sql.DB
	table string

	getQuery string
	setQuery string
}

func NewPostgres(db *sql.DB, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	t := pq.QuoteIdentifier(table)
	getQuery := fmt.Sprintf(`SELECT matched FROM %s
        WHERE target=$1 AND field=$2 AND operator=$3 AND operand=$4`, t)
	setQuery := fmt.Sprintf(`INSERT INTO %s(target, field, operator, operand, matched, updated_at)
        VALUES ($1,$2,$3,$4,$5,now())
        ON CONFLICT (target, field, operator, operand) DO UPDATE SET matched=EXCLUDED.matched, updated_at=EXCLUDED.updated_at`, t)
	return &Postgres{db: db, table: table, getQuery: getQuery, setQuery: setQuery}
}

func (p *Postgres) Table() string { return p.table }

// EnsureSchema creates the backing table when it is missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        target     TEXT NOT NULL,
        field      TEXT NOT NULL,
        operator   TEXT NOT NULL,
        operand    TEXT NOT NULL,
        matched    BOOLEAN NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (target, field, operator, operand)
    )`, pq.QuoteIdentifier(p.table)))
	return errors.Wrapf(err, "create result table %s", p.table)
}

func (p *Postgres) Get(ctx context.Context, key engine.CacheKey) (bool, bool, error) {
	var matched bool
	err := p.db.QueryRowContext(ctx, p.getQuery, key.Target, key.Field, key.Operator, key.Operand).Scan(&matched)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, false, nil
	case err != nil:
		return false, false, errors.Wrap(err, "read cached result")
	}
	return matched, true, nil
}

func (p *Postgres) Set(ctx context.Context, key engine.CacheKey, matched bool) error {
	_, err := p.db.ExecContext(ctx, p.setQuery, key.Target, key.Field, key.Operator, key.Operand, matched)
	return errors.Wrap(err, "store cached result")
}
