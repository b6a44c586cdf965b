// Package postgres implements the remote collections over Postgres. Each
// collection is a table holding the generated id and the record body as
// JSONB; a statement-level trigger announces changes on clubsync_<table>.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/dbx"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects through the pgx stdlib driver and applies migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Backend serves every collection from one database.
type Backend struct {
	db      *sql.DB
	timeout time.Duration
}

func NewBackend(db *sql.DB, timeout time.Duration) *Backend {
	return &Backend{db: db, timeout: timeout}
}

func (b *Backend) Collection(schema entity.Schema) remote.CollectionClient {
	return NewCollection(b.db, schema, b.timeout)
}

// EnsureCollection creates the table and change trigger for schema.
func (b *Backend) EnsureCollection(ctx context.Context, schema entity.Schema) error {
	table := pgx.Identifier{schema.Table}.Sanitize()
	trigger := pgx.Identifier{schema.Table + "_notify"}.Sanitize()

	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS ` + table + ` (
				id         BIGSERIAL PRIMARY KEY,
				data       JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`DROP TRIGGER IF EXISTS ` + trigger + ` ON ` + table,
			`CREATE TRIGGER ` + trigger + ` AFTER INSERT OR UPDATE OR DELETE ON ` + table +
				` FOR EACH STATEMENT EXECUTE FUNCTION clubsync_notify()`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("ensure %s: %w", schema.Table, err)
			}
		}
		return nil
	})
}

// Collection is a remote.CollectionClient over one table.
type Collection struct {
	db      dbx.DBTX
	schema  entity.Schema
	table   string
	timeout time.Duration
}

func NewCollection(db dbx.DBTX, schema entity.Schema, timeout time.Duration) *Collection {
	return &Collection{db: db, schema: schema, table: pgx.Identifier{schema.Table}.Sanitize(), timeout: timeout}
}

func (c *Collection) fail(op string, err error) error {
	return common.NewRemoteError(op, c.schema.Name, Classify(err), err)
}

func (c *Collection) List(ctx context.Context) ([]entity.Record, error) {
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT id, data FROM `+c.table+` ORDER BY id`)
	if err != nil {
		return nil, c.fail("list", err)
	}
	defer rows.Close()

	out := []entity.Record{}
	for rows.Next() {
		rec, err := c.scan(rows)
		if err != nil {
			return nil, c.fail("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, c.fail("list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (c *Collection) scan(s scanner) (entity.Record, error) {
	var id int64
	var data []byte
	if err := s.Scan(&id, &data); err != nil {
		return nil, err
	}
	rec := entity.Record{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", id, err)
		}
	}
	rec[c.schema.IDField] = float64(id)
	return rec, nil
}

func (c *Collection) one(ctx context.Context, op, q string, args ...any) (entity.Record, error) {
	rec, err := c.scan(c.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, c.fail(op, err)
	}
	return rec, nil
}

// parseID rejects ids that cannot exist in a BIGSERIAL column.
func (c *Collection) parseID(op, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, common.NewRemoteError(op, c.schema.Name, common.KindNotFound, fmt.Errorf("id %q", id))
	}
	return n, nil
}

func (c *Collection) GetByID(ctx context.Context, id string) (entity.Record, error) {
	n, err := c.parseID("get", id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()
	return c.one(ctx, "get", `SELECT id, data FROM `+c.table+` WHERE id = $1`, n)
}

func (c *Collection) GetByForeignKey(ctx context.Context, key string) (entity.Record, error) {
	if c.schema.ForeignKey == "" {
		return nil, common.NewRemoteError("get_by_key", c.schema.Name, common.KindNotFound, errors.New("collection has no foreign key"))
	}
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()
	return c.one(ctx, "get_by_key",
		`SELECT id, data FROM `+c.table+` WHERE data->>$1 = $2 ORDER BY id LIMIT 1`,
		c.schema.ForeignKey, key)
}

func (c *Collection) body(op string, rec entity.Record) ([]byte, error) {
	b, err := json.Marshal(remote.Payload(c.schema, rec))
	if err != nil {
		return nil, common.NewRemoteError(op, c.schema.Name, common.KindConflict, err)
	}
	return b, nil
}

func (c *Collection) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	body, err := c.body("create", rec)
	if err != nil {
		return nil, err
	}
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()
	return c.one(ctx, "create", `INSERT INTO `+c.table+` (data) VALUES ($1) RETURNING id, data`, body)
}

func (c *Collection) Update(ctx context.Context, id string, rec entity.Record) (entity.Record, error) {
	n, err := c.parseID("update", id)
	if err != nil {
		return nil, err
	}
	body, err := c.body("update", rec)
	if err != nil {
		return nil, err
	}
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()
	return c.one(ctx, "update",
		`UPDATE `+c.table+` SET data = $1, updated_at = now() WHERE id = $2 RETURNING id, data`, body, n)
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	n, err := c.parseID("delete", id)
	if err != nil {
		return err
	}
	ctx, cancel := remote.Bound(ctx, c.timeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE id = $1`, n)
	if err != nil {
		return c.fail("delete", err)
	}
	affected, err := dbx.AffectedRows(res)
	if err != nil {
		return c.fail("delete", err)
	}
	if affected == 0 {
		return common.NewRemoteError("delete", c.schema.Name, common.KindNotFound, fmt.Errorf("id %d", n))
	}
	return nil
}

// Classify maps a database error to an error kind.
func Classify(err error) common.Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return common.KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01" || pgErr.Code == "3F000":
			return common.KindSchemaAbsent
		case pgErr.Code == "42501" || hasClass(pgErr.Code, "28"):
			return common.KindUnauthorized
		case hasClass(pgErr.Code, "22") || hasClass(pgErr.Code, "23"):
			return common.KindConflict
		case hasClass(pgErr.Code, "08") || hasClass(pgErr.Code, "53") ||
			hasClass(pgErr.Code, "57") || hasClass(pgErr.Code, "40"):
			return common.KindRemoteUnavailable
		default:
			return common.KindConflict
		}
	}

	// Timeouts, refused connections and driver failures.
	return common.KindRemoteUnavailable
}

func hasClass(code, class string) bool {
	return len(code) == 5 && code[:2] == class
}
