package localstore

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/semed/merenda/core"
)

const memoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore is the durable core.KVStore backing the console session.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ core.KVStore = (*SQLiteStore)(nil)

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "creating storage directory")
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	// every connection to :memory: is a fresh database
	sqlDB.SetMaxOpenConns(1)

	db := sqlx.NewDb(sqlDB, "sqlite3")
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var val string
	if err := s.db.Get(&val, `SELECT value FROM kv WHERE key = ?`, key); err != nil {
		if err == sql.ErrNoRows {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrap(err, "selecting key")
	}
	return val, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	return s.SetMany(map[string]string{key: value})
}

func (s *SQLiteStore) SetMany(pairs map[string]string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	for k, v := range pairs {
		if _, err = tx.Exec(
			`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v,
		); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "upserting key")
		}
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s *SQLiteStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM kv WHERE key IN (?)`, keys)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = s.db.Exec(s.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting keys")
}
