package local

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Schema version tracking:
// 1 - kv table
// 2 - rev + updated_at columns
const currentSchemaVersion = 2

var nowFunc = time.Now // mockable

type sqliteKV struct {
	db *sqlx.DB
}

var _ KV = (*sqliteKV)(nil) // interface compliance check

// OpenSQLite creates or opens the sqlite KV at path (":memory:" for a throwaway store).
// Applies pragmas and migrations; safe to call on an existing file.
func OpenSQLite(path string) (KV, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connecting to sqlite")
	}

	// sqlite supports one writer at a time; a single connection also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err = applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteKV{db: db}, nil
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "executing %q", pragma)
		}
	}
	return nil
}

func migrate(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return errors.Wrap(err, "getting user_version")
	}

	if version < 1 {
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
			return errors.Wrap(err, "creating kv table")
		}
	}
	if version < 2 {
		for _, stmt := range []string{
			"ALTER TABLE kv ADD COLUMN rev INTEGER NOT NULL DEFAULT 1",
			"ALTER TABLE kv ADD COLUMN updated_at TIMESTAMP",
		} {
			if _, err := db.Exec(stmt); err != nil {
				return errors.Wrap(err, "migrating kv table to v2")
			}
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "setting user_version")
	}
	return nil
}

func (kv *sqliteKV) Get(key string) (Item, bool, error) {
	var row struct {
		Value string `db:"value"`
		Rev   int64  `db:"rev"`
	}
	err := kv.db.Get(&row, "SELECT value, rev FROM kv WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, errors.Wrapf(err, "reading key %q", key)
	}
	return Item{Value: row.Value, Revision: row.Rev}, true, nil
}

// Put runs as a single statement so the revision check and the write are atomic across
// processes sharing the file.
func (kv *sqliteKV) Put(key, value string, expectRev int64) (int64, error) {
	var (
		q    string
		args []interface{}
		now  = nowFunc().UTC()
	)
	switch {
	case expectRev == AnyRevision:
		q = `INSERT INTO kv (key, value, rev, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = kv.rev + 1, updated_at = excluded.updated_at
			RETURNING rev`
		args = []interface{}{key, value, now}
	case expectRev == 0:
		q = `INSERT INTO kv (key, value, rev, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT(key) DO NOTHING
			RETURNING rev`
		args = []interface{}{key, value, now}
	default:
		q = `UPDATE kv SET value = ?, rev = rev + 1, updated_at = ? WHERE key = ? AND rev = ? RETURNING rev`
		args = []interface{}{value, now, key, expectRev}
	}

	var rev int64
	err := kv.db.QueryRowx(q, args...).Scan(&rev)
	if err == sql.ErrNoRows {
		curr, _, gErr := kv.Get(key)
		if gErr != nil {
			return 0, gErr
		}
		return curr.Revision, ErrRevisionMismatch
	}
	if err != nil {
		return 0, errors.Wrapf(err, "writing key %q", key)
	}
	return rev, nil
}

func (kv *sqliteKV) Delete(key string) error {
	if _, err := kv.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrapf(err, "deleting key %q", key)
	}
	return nil
}

func (kv *sqliteKV) Close() error {
	if kv.db == nil {
		return nil
	}
	return kv.db.Close()
}
