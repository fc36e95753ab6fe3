package bucket

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite is a bucket provider backed by a SQLite database.
// This is the default provider for the worker binary.
type SQLite struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLite opens (or creates) the database in the given file.
// If the file name is empty, an in-memory db is opened.
func NewSQLite(filename string) (SQLite, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLite{}, err
	}
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS buckets (name TEXT PRIMARY KEY)")
	if err != nil {
		return SQLite{}, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		bucket TEXT,
		key TEXT,
		bytes BLOB,
		PRIMARY KEY (bucket, key)
	)`)
	if err != nil {
		return SQLite{}, err
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return SQLite{}, err
	}
	return SQLite{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLite) EnsureBucket(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO buckets (name) VALUES (?)", name)
	return err
}

func (s SQLite) Put(bucket, key string, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("INSERT OR IGNORE INTO buckets (name) VALUES (?)", bucket); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO entries (bucket, key, bytes) VALUES (?, ?, ?)",
		bucket, key, value)
	return err
}

func (s SQLite) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM entries WHERE bucket = ? AND key = ?",
		bucket, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s SQLite) Buckets() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM buckets ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s SQLite) DeleteBucket(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM entries WHERE bucket = ?", name); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM buckets WHERE name = ?", name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s SQLite) Close() error {
	return s.db.Close()
}
