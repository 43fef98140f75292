// Package db provides SQLite storage for unibox.
//
// The items table is a materialized view of "messages the remote provider
// still considers open", not a mailbox mirror. Every operation is a single
// statement and therefore a single implicit transaction; callers never need
// cross-call transactions.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daviddao/unibox/internal/types"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced item does not exist locally.
var ErrNotFound = errors.New("item not found")

// DB wraps a SQLite connection for unibox operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a unibox database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// formatTime stores timestamps as UTC RFC 3339 text so that
// lexicographic ORDER BY matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Item operations ---

// PutIfAbsent bulk-inserts items in one transaction, ignoring rows whose
// external_id is already present. Returns the number of rows actually
// inserted; on error nothing from the batch is persisted.
func (d *DB) PutIfAbsent(items []*types.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, it := range items {
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO items
				(account, external_id, subject, sender, preview, received_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.Account, it.ExternalID, it.Subject, it.Sender, nullStr(it.Preview),
			formatTime(it.ReceivedAt), int(it.Status),
		)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", it.ExternalID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// ExistingIDs returns the set of external ids stored for one account.
func (d *DB) ExistingIDs(account string) (map[string]struct{}, error) {
	rows, err := d.conn.Query("SELECT external_id FROM items WHERE account = ?", account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// DeleteByExternalIDs removes the given external ids. Missing ids are not
// an error; the count of rows actually deleted is returned.
func (d *DB) DeleteByExternalIDs(externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(externalIDs)), ",")
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}
	res, err := d.conn.Exec(
		"DELETE FROM items WHERE external_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Get returns the item with the given local id, or ErrNotFound.
func (d *DB) Get(id int64) (*types.Item, error) {
	return d.scanOne(d.conn.QueryRow(`
		SELECT id, account, external_id, subject, sender, preview, received_at, status
		FROM items WHERE id = ?`, id))
}

// GetByExternalID returns the item with the given external id, or ErrNotFound.
func (d *DB) GetByExternalID(externalID string) (*types.Item, error) {
	return d.scanOne(d.conn.QueryRow(`
		SELECT id, account, external_id, subject, sender, preview, received_at, status
		FROM items WHERE external_id = ?`, externalID))
}

// SetStatus updates the triage bucket of an item by local id.
func (d *DB) SetStatus(id int64, st types.Status) error {
	res, err := d.conn.Exec("UPDATE items SET status = ? WHERE id = ?", int(st), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatusByExternalID updates the bucket of an item addressed by its
// external id. It is a no-op when the stored status already matches;
// the return value reports whether a change was written.
func (d *DB) SetStatusByExternalID(externalID string, st types.Status) (bool, error) {
	var current int
	err := d.conn.QueryRow(
		"SELECT status FROM items WHERE external_id = ?", externalID).Scan(&current)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if current == int(st) {
		return false, nil
	}
	_, err = d.conn.Exec(
		"UPDATE items SET status = ? WHERE external_id = ?", int(st), externalID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Next returns the oldest item in the given bucket, skipping offset
// earlier matches. Paging through a bucket one item at a time is how the
// presentation layer walks the inbox. Returns ErrNotFound past the end.
func (d *DB) Next(st types.Status, offset int) (*types.Item, error) {
	return d.scanOne(d.conn.QueryRow(`
		SELECT id, account, external_id, subject, sender, preview, received_at, status
		FROM items
		WHERE status = ?
		ORDER BY received_at ASC, id ASC
		LIMIT 1 OFFSET ?`, int(st), offset))
}

// --- Stats ---

// ItemCount returns the total number of tracked items.
func (d *DB) ItemCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM items").Scan(&n)
	return n
}

// CountByStatus returns item counts grouped by bucket.
func (d *DB) CountByStatus() (map[types.Status]int, error) {
	rows, err := d.conn.Query("SELECT status, COUNT(*) FROM items GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[types.Status]int{
		types.StatusUnread:    0,
		types.StatusPending:   0,
		types.StatusImportant: 0,
	}
	for rows.Next() {
		var st, count int
		if err := rows.Scan(&st, &count); err != nil {
			return nil, err
		}
		counts[types.Status(st)] = count
	}
	return counts, rows.Err()
}

// Accounts returns the distinct provider accounts with tracked items.
func (d *DB) Accounts() []string {
	rows, err := d.conn.Query("SELECT DISTINCT account FROM items ORDER BY account")
	if err != nil {
		return nil
	}
	defer rows.Close()
	var accs []string
	for rows.Next() {
		var a string
		rows.Scan(&a)
		accs = append(accs, a)
	}
	return accs
}

func (d *DB) scanOne(row *sql.Row) (*types.Item, error) {
	it := &types.Item{}
	var preview sql.NullString
	var received string
	var status int
	err := row.Scan(&it.ID, &it.Account, &it.ExternalID, &it.Subject, &it.Sender,
		&preview, &received, &status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.Preview = preview.String
	it.ReceivedAt = parseTime(received)
	it.Status = types.Status(status)
	return it, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
