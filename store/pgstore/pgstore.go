package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"peerbid/store"
	"peerbid/store/pgstore/migrations"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/tern/migrate"
	"github.com/prometheus/client_golang/prometheus"
)

// Store persists auction records and secrets in PostgreSQL. It offers the
// same atomic per-key get/put contract as the other backends; callers still
// serialize read-modify-write cycles per auction ID.
type Store struct {
	db     querier
	logger log.Logger
}

var _ store.Store = (*Store)(nil)

type querier interface {
	Query(ctx context.Context, q string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, q string, args ...any) pgx.Row
	Exec(ctx context.Context, q string, args ...any) (pgconn.CommandTag, error)
}

func NewStore(ctx context.Context, connStr string, logger log.Logger) (_ *Store, err error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if config.MaxConnIdleTime == 0 {
		config.MaxConnIdleTime = 5 * time.Minute
	}

	if config.MaxConns == 0 {
		config.MaxConns = 4
	}

	if config.MinConns == 0 {
		config.MinConns = 1
	}

	if config.ConnConfig.ConnectTimeout == 0 {
		config.ConnConfig.ConnectTimeout = 5 * time.Second
	}

	config.ConnConfig.Logger = &pgDebugLogAdapter{
		Logger: log.With(logger, "submodule", "postgres"),
	}

	config.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		level.Debug(logger).Log("event", "new db connection")

		for _, q := range []string{
			`set timezone='UTC'`,
			`set lock_timeout='5s'`,
			`set statement_timeout='5s'`,
		} {
			if _, err := c.Exec(ctx, q); err != nil {
				return fmt.Errorf("db connection setup query %q: %w", q, err)
			}
		}

		return nil
	}

	level.Debug(logger).Log("msg", "connecting")

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	{
		var (
			user = config.ConnConfig.User
			host = config.ConnConfig.Host
			name = config.ConnConfig.Database
			fn   = func() stat { return pool.Stat() }
			pc   = newPoolCollector(user, host, name, fn)
		)
		if err := prometheus.Register(pc); err != nil {
			return nil, fmt.Errorf("metrics registration failed: %w", err)
		}
	}

	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	if err = pool.AcquireFunc(ctx, func(c *pgxpool.Conn) error {
		return migrateDB(ctx, c.Conn(), logger)
	}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Store{db: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	switch x := s.db.(type) {
	case *pgx.Conn:
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return x.Close(ctx)
	case *pgxpool.Pool:
		x.Close()
		return nil
	default:
		return fmt.Errorf("close with unknown DB type %T", s.db)
	}
}

func migrateDB(ctx context.Context, conn *pgx.Conn, logger log.Logger) error {
	m, err := migrate.NewMigratorEx(ctx, conn, "public.schema_version", &migrate.MigratorOptions{
		MigratorFS: migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("new migrator: %w", err)
	}

	if err = m.LoadMigrations("."); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if err = m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	level.Debug(logger).Log("msg", "migrations done")

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	var n int
	return s.db.QueryRow(ctx, `select 1`).Scan(&n)
}

//
// auctions
//

const putAuctionQuery = `
insert into auctions
(
	id,
	details,
	creator,
	initial_price,
	bids,
	winner,
	created_at,
	closed_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8)
on conflict (id) do update
set
	bids      = excluded.bids,
	winner    = excluded.winner,
	closed_at = excluded.closed_at
`

func (s *Store) PutAuction(ctx context.Context, a *store.Auction) error {
	bids := a.Bids
	if bids == nil {
		bids = []store.Bid{}
	}

	bidsJSON, err := jsonbValue(bids)
	if err != nil {
		return fmt.Errorf("encode bids: %w", err)
	}

	winnerJSON := pgtype.JSONB{Status: pgtype.Null}
	if a.Winner != nil {
		if winnerJSON, err = jsonbValue(a.Winner); err != nil {
			return fmt.Errorf("encode winner: %w", err)
		}
	}

	if _, err := s.db.Exec(ctx, putAuctionQuery,
		a.ID,
		a.Details,
		a.Creator,
		a.InitialPrice,
		bidsJSON,
		winnerJSON,
		a.CreatedAt,
		nullTime(a.ClosedAt),
	); err != nil {
		return fmt.Errorf("put auction %s: %w", a.ID, err)
	}

	return nil
}

const getAuctionQuery = `
select
	id,
	details,
	creator,
	initial_price,
	bids,
	winner,
	created_at,
	closed_at
from
	auctions
where
	id = $1
`

func (s *Store) GetAuction(ctx context.Context, id string) (*store.Auction, error) {
	a, err := scanAuction(s.db.QueryRow(ctx, getAuctionQuery, id))
	if err != nil {
		return nil, convertError(err)
	}
	return a, nil
}

const listAuctionsQuery = `
select
	id,
	details,
	creator,
	initial_price,
	bids,
	winner,
	created_at,
	closed_at
from
	auctions
order by
	id asc
`

func (s *Store) ListAuctions(ctx context.Context) ([]*store.Auction, error) {
	rows, err := s.db.Query(ctx, listAuctionsQuery)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var auctions []*store.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan err: %w", err)
	}

	return auctions, nil
}

func scanAuction(row pgx.Row) (*store.Auction, error) {
	var (
		a store.Auction
		// Nullable types below
		bids     pgtype.JSONB
		winner   pgtype.JSONB
		closedAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&a.ID,
		&a.Details,
		&a.Creator,
		&a.InitialPrice,
		&bids,
		&winner,
		&a.CreatedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}

	if bids.Status == pgtype.Present {
		if err := json.Unmarshal(bids.Bytes, &a.Bids); err != nil {
			return nil, fmt.Errorf("decode bids: %w", err)
		}
	}

	if winner.Status == pgtype.Present {
		if err := json.Unmarshal(winner.Bytes, &a.Winner); err != nil {
			return nil, fmt.Errorf("decode winner: %w", err)
		}
	}

	if closedAt.Status == pgtype.Present {
		a.ClosedAt = closedAt.Time
	}

	return &a, nil
}

//
// secrets
//

const putSecretQuery = `
insert into secrets (name, value)
values ($1, $2)
on conflict (name) do update
set
	value = excluded.value
`

func (s *Store) PutSecret(ctx context.Context, name string, value []byte) error {
	if _, err := s.db.Exec(ctx, putSecretQuery, name, value); err != nil {
		return fmt.Errorf("put secret %s: %w", name, err)
	}
	return nil
}

const getSecretQuery = `
select value from secrets where name = $1
`

func (s *Store) GetSecret(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	if err := s.db.QueryRow(ctx, getSecretQuery, name).Scan(&value); err != nil {
		return nil, convertError(err)
	}
	return value, nil
}

//
//
//

func jsonbValue(v interface{}) (pgtype.JSONB, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return pgtype.JSONB{}, err
	}
	return pgtype.JSONB{Bytes: buf, Status: pgtype.Present}, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func convertError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

type pgDebugLogAdapter struct{ log.Logger }

func (a *pgDebugLogAdapter) Log(ctx context.Context, pgxlevel pgx.LogLevel, msg string, data map[string]interface{}) {
	keyvals := []interface{}{
		"pgxlevel", pgxlevel.String(),
		"msg", msg,
	}
	for k, v := range data {
		keyvals = append(keyvals, k, fmt.Sprintf("%v", v))
	}
	level.Debug(a.Logger).Log(keyvals...)
}
