package txlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

type dialect struct {
	driver     string
	blobType   string
	dollarArgs bool
}

var dialects = map[string]dialect{
	BackendSQLite:   {driver: "sqlite", blobType: "BLOB"},
	BackendPostgres: {driver: "postgres", blobType: "BYTEA", dollarArgs: true},
}

// SQL is a Log stored in a relational database.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL connects to the database and creates the schema if missing.
// backend is BackendSQLite or BackendPostgres.
func OpenSQL(ctx context.Context, backend, dsn string) (*SQL, error) {
	d, ok := dialects[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if dsn == "" {
		return nil, fmt.Errorf("txlog: %s backend requires a dsn", backend)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s transaction log: %w", backend, err)
	}
	if backend == BackendSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s transaction log: %w", backend, err)
	}

	s := &SQL{db: db, dialect: d}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transaction log schema: %w", err)
	}
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id            TEXT PRIMARY KEY,
			block_height  BIGINT NOT NULL,
			timestamp_ns  BIGINT NOT NULL,
			code          TEXT NOT NULL,
			payer         TEXT NOT NULL,
			status_code   INTEGER NOT NULL,
			error_message TEXT NOT NULL,
			payload       ` + s.dialect.blobType + `
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_payer_height ON transactions (payer, block_height)`,
		`CREATE INDEX IF NOT EXISTS transactions_height ON transactions (block_height)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that use $n.
func (s *SQL) rebind(query string) string {
	if !s.dialect.dollarArgs {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) Append(ctx context.Context, rec Record) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM transactions WHERE id = ?`), rec.ID).Scan(&exists)
	switch {
	case err == nil:
		return ErrDuplicate
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO transactions
		(id, block_height, timestamp_ns, code, payer, status_code, error_message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, int64(rec.BlockHeight), rec.Timestamp.UnixNano(), rec.Code, rec.Payer,
		rec.StatusCode, rec.ErrorMessage, rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", rec.ID, err)
	}
	return tx.Commit()
}

const selectColumns = `SELECT id, block_height, timestamp_ns, code, payer, status_code, error_message, payload FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec    Record
		height int64
		ts     int64
	)
	if err := row.Scan(&rec.ID, &height, &ts, &rec.Code, &rec.Payer, &rec.StatusCode, &rec.ErrorMessage, &rec.Payload); err != nil {
		return Record{}, err
	}
	rec.BlockHeight = uint64(height)
	rec.Timestamp = time.Unix(0, ts).UTC()
	return rec, nil
}

func (s *SQL) Get(ctx context.Context, id string) (Record, error) {
	if s.db == nil {
		return Record{}, ErrClosed
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQL) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	query := selectColumns + ` WHERE block_height >= ?`
	args := []any{int64(opts.FromHeight)}
	if opts.Payer != "" {
		query += ` AND payer = ?`
		args = append(args, opts.Payer)
	}
	query += ` ORDER BY block_height ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
