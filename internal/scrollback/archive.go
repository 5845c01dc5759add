// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/scrollback/archive.go
// Summary: SQLite archive of scrolled-off lines with substring search.
//
// Lines are queued without blocking the caller and written in batched
// transactions by a background goroutine, flushed when the batch fills,
// when the batch timeout expires, on Flush and on Close.

package scrollback

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// ErrArchiveClosed is returned by operations on a closed archive.
var ErrArchiveClosed = errors.New("scrollback: archive closed")

// ArchiveConfig holds configuration for the archive.
type ArchiveConfig struct {
	// Path is the SQLite database file.
	Path string

	// BatchSize is the number of lines accumulated before a write.
	// Default: 100
	BatchSize int

	// BatchTimeout is how long a partial batch may wait.
	// Default: 5s
	BatchTimeout time.Duration

	// ChannelBuffer is the size of the queue in front of the writer.
	// Default: 1000
	ChannelBuffer int
}

// DefaultArchiveConfig returns the defaults for a database at path.
func DefaultArchiveConfig(path string) ArchiveConfig {
	return ArchiveConfig{
		Path:          path,
		BatchSize:     100,
		BatchTimeout:  5 * time.Second,
		ChannelBuffer: 1000,
	}
}

// Result is one archived line matching a search.
type Result struct {
	ID        int64
	Timestamp time.Time
	Content   string
}

type entry struct {
	timestamp time.Time
	text      string
}

// Archive persists history lines to SQLite.
type Archive struct {
	config ArchiveConfig
	db     *sql.DB

	queue   chan entry
	flushCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Int64
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,       -- UnixNano
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_timestamp ON lines(timestamp);
`

// OpenArchive opens or creates the database described by config.
func OpenArchive(config ArchiveConfig) (*Archive, error) {
	def := DefaultArchiveConfig(config.Path)
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = def.BatchTimeout
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = def.ChannelBuffer
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := config.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	a := &Archive{
		config:  config,
		db:      db,
		queue:   make(chan entry, config.ChannelBuffer),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go a.writer()
	return a, nil
}

// Append queues a line for writing. When the queue is full the line is
// dropped rather than stalling the caller.
func (a *Archive) Append(text string) {
	if a.closed.Load() || text == "" {
		return
	}
	select {
	case a.queue <- entry{timestamp: time.Now(), text: text}:
	default:
		if n := a.dropped.Add(1); n == 1 || n%1000 == 0 {
			log.Printf("Scrollback: Archive queue full, %d lines dropped", n)
		}
	}
}

// Dropped returns the number of lines discarded because the queue was full.
func (a *Archive) Dropped() int64 { return a.dropped.Load() }

func (a *Archive) writer() {
	defer close(a.doneCh)

	batch := make([]entry, 0, a.config.BatchSize)
	timer := time.NewTimer(a.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		a.writeBatch(batch)
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case e := <-a.queue:
				batch = append(batch, e)
			default:
				return
			}
		}
	}

	for {
		select {
		case e := <-a.queue:
			batch = append(batch, e)
			if len(batch) >= a.config.BatchSize {
				flush()
				timer.Reset(a.config.BatchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(a.config.BatchTimeout)
		case done := <-a.flushCh:
			drain()
			flush()
			close(done)
		case <-a.stopCh:
			drain()
			flush()
			return
		}
	}
}

// writeBatch stores a batch in a single transaction.
func (a *Archive) writeBatch(batch []entry) {
	tx, err := a.db.Begin()
	if err != nil {
		log.Printf("Scrollback: Failed to begin transaction: %v", err)
		return
	}
	stmt, err := tx.Prepare("INSERT INTO lines (timestamp, content) VALUES (?, ?)")
	if err != nil {
		log.Printf("Scrollback: Failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.timestamp.UnixNano(), e.text); err != nil {
			log.Printf("Scrollback: Failed to insert line: %v", err)
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("Scrollback: Failed to commit batch: %v", err)
	}
}

// Flush blocks until every queued line is written.
func (a *Archive) Flush() error {
	if a.closed.Load() {
		return ErrArchiveClosed
	}
	done := make(chan struct{})
	select {
	case a.flushCh <- done:
	case <-a.doneCh:
		return ErrArchiveClosed
	}
	<-done
	return nil
}

// Search returns up to limit lines containing query, newest first. Matching
// is case-insensitive for ASCII.
func (a *Archive) Search(query string, limit int) ([]Result, error) {
	if query == "" {
		return nil, nil
	}
	if a.closed.Load() {
		return nil, ErrArchiveClosed
	}
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(query) + "%"
	rows, err := a.db.Query(`
		SELECT id, timestamp, content
		FROM lines
		WHERE content LIKE ? ESCAPE '\'
		ORDER BY id DESC
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.Content); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Timestamp = time.Unix(0, ts)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of archived lines.
func (a *Archive) Count() (int64, error) {
	if a.closed.Load() {
		return 0, ErrArchiveClosed
	}
	var n int64
	err := a.db.QueryRow("SELECT COUNT(*) FROM lines").Scan(&n)
	return n, err
}

// Close writes pending lines and closes the database.
func (a *Archive) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.stopCh)
		<-a.doneCh
		err = a.db.Close()
	})
	return err
}
