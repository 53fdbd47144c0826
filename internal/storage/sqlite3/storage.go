package sqlite3

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Writer funnels all writes through a single goroutine. SQLite allows one
// writer at a time; queueing writes here avoids SQLITE_BUSY under
// concurrent ingestion.
type Writer struct {
	todo      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func NewWriter() *Writer {
	w := &Writer{
		todo: make(chan func()),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	for f := range w.todo {
		f()
	}
	close(w.done)
}

func (w *Writer) Do(f func() error) error {
	ret := make(chan error, 1)
	w.todo <- func() {
		ret <- f()
	}
	return <-ret
}

// Close stops the write goroutine and waits for it to drain. No Do calls
// may follow.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.todo) })
	<-w.done
}

type SQLite3Storage struct {
	db     *sql.DB
	path   string
	writer *Writer

	Users    *TableUsers
	Messages *TableMessages
}

func NewSQLite3Storage(path string) (*SQLite3Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("db.Exec(%q): %w", pragma, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLite3Storage{
		db:     db,
		path:   path,
		writer: NewWriter(),
	}

	if s.Users, err = NewTableUsers(db, s.writer); err != nil {
		s.writer.Close()
		db.Close()
		return nil, fmt.Errorf("NewTableUsers: %w", err)
	}
	if s.Messages, err = NewTableMessages(db, s.writer); err != nil {
		s.writer.Close()
		db.Close()
		return nil, fmt.Errorf("NewTableMessages: %w", err)
	}

	return s, nil
}

func (s *SQLite3Storage) Close() error {
	s.writer.Close()
	return s.db.Close()
}

// Size returns the on-disk size of the relational database file.
func (s *SQLite3Storage) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("os.Stat: %w", err)
	}
	return info.Size(), nil
}
