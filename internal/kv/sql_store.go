package kv

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

// ParseDialect maps KV_DRIVER values onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return MySQL, fmt.Errorf("unsupported kv dialect %q", name)
	}
}

func (d Dialect) ph(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// valuePh is the placeholder for a JSON document; Postgres stores jsonb.
func (d Dialect) valuePh(n int) string {
	if d == Postgres {
		return "CAST($" + strconv.Itoa(n) + " AS jsonb)"
	}
	return "?"
}

func (d Dialect) keyCol() string {
	if d == Postgres {
		return "key"
	}
	return "`key`"
}

func (d Dialect) valueCol() string {
	if d == Postgres {
		return "value::text"
	}
	return "value"
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps the key-value table in MySQL or Postgres through
// database/sql. Values are JSON documents.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("kv: nil db")
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("kv: invalid table name %q", table)
	}
	return &SQLStore{db: db, table: table, dialect: dialect}, nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }
func (s *SQLStore) Table() string    { return s.table }

// Migrate creates the table when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var ddl string
	if s.dialect == Postgres {
		ddl = `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	key TEXT NOT NULL PRIMARY KEY,
	value JSONB NOT NULL
)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	` + "`key`" + ` VARCHAR(255) NOT NULL PRIMARY KEY,
	value LONGTEXT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	}
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// HasTable checks information_schema for the configured table.
func (s *SQLStore) HasTable(ctx context.Context) (bool, error) {
	schema := "DATABASE()"
	if s.dialect == Postgres {
		schema = "current_schema()"
	}
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = `+schema+`
		  AND table_name = `+s.dialect.ph(1)+`
		LIMIT 1
	`, s.table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return name.Valid && name.String != "", nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = %s`, s.dialect.valueCol(), s.table, s.dialect.keyCol(), s.dialect.ph(1))
	var raw []byte
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (s *SQLStore) upsertSQL() string {
	if s.dialect == Postgres {
		return fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, %s) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			s.table, s.dialect.valuePh(2))
	}
	return fmt.Sprintf("INSERT INTO %s (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)", s.table)
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.upsertSQL(), key, string(value))
	return err
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, s.table, s.dialect.keyCol(), s.dialect.ph(1))
	_, err := s.db.ExecContext(ctx, q, key)
	return err
}

func (s *SQLStore) inList(keys []string) (string, []any) {
	phs := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		phs[i] = s.dialect.ph(i + 1)
		args[i] = k
	}
	return strings.Join(phs, ", "), args
}

func (s *SQLStore) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	list, args := s.inList(keys)
	q := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN (%s)`,
		s.dialect.keyCol(), s.dialect.valueCol(), s.table, s.dialect.keyCol(), list)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLStore) MSet(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := s.upsertSQL()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, stmt, e.Key, string(e.Value)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) MDel(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	list, args := s.inList(keys)
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, s.table, s.dialect.keyCol(), list)
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

func (s *SQLStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	q := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s LIKE %s ORDER BY %s`,
		s.dialect.keyCol(), s.dialect.valueCol(), s.table, s.dialect.keyCol(), s.dialect.ph(1), s.dialect.keyCol())
	rows, err := s.db.QueryContext(ctx, q, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s LIKE %s ORDER BY %s`,
		s.dialect.keyCol(), s.table, s.dialect.keyCol(), s.dialect.ph(1), s.dialect.keyCol())
	rows, err := s.db.QueryContext(ctx, q, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	var q string
	if s.dialect == Postgres {
		q = fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, %s) ON CONFLICT (key) DO NOTHING`, s.table, s.dialect.valuePh(2))
	} else {
		q = fmt.Sprintf("INSERT IGNORE INTO %s (`key`, value) VALUES (?, ?)", s.table)
	}
	res, err := s.db.ExecContext(ctx, q, key, string(value))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	// MySQL reports zero affected rows for a no-op update, so an unchanged
	// value is answered by reading instead.
	if bytes.Equal(old, value) {
		cur, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return bytes.Equal(bytes.TrimSpace(cur), bytes.TrimSpace(old)), nil
	}
	q := fmt.Sprintf(`UPDATE %s SET value = %s WHERE %s = %s AND value = %s`,
		s.table, s.dialect.valuePh(1), s.dialect.keyCol(), s.dialect.ph(2), s.dialect.valuePh(3))
	res, err := s.db.ExecContext(ctx, q, string(value), key, string(old))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
