package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, title, url, author, created_at, score, status,
	content_ref, summary_ref, retry_count, last_error, processed_at, updated_at`

// UpsertItem inserts a new item at status pending, or refreshes the feed
// metadata (title, url, author, score) of an existing one. A refresh never
// touches status, refs, or retry metadata, so re-fetching an in-flight or
// completed item cannot regress it. Returns true if the item was newly
// inserted.
func (s *Store) UpsertItem(id int64, title string, url *string, author string, createdAt time.Time, score int) (bool, error) {
	now := timestamp(time.Now())

	res, err := s.conn.Exec(
		`INSERT OR IGNORE INTO items (id, title, url, author, created_at, score, status, processed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, title, url, author, timestamp(createdAt), score, StatusPending, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("inserting item %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	_, err = s.conn.Exec(
		`UPDATE items SET title = ?, url = ?, author = ?, score = ?, updated_at = ? WHERE id = ?`,
		title, url, author, score, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("refreshing item %d: %w", id, err)
	}
	return false, nil
}

// GetItem returns a single item by ID, or ErrNotFound.
func (s *Store) GetItem(id int64) (*Item, error) {
	row := s.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ExtractCandidates returns up to limit items due for extraction.
// Retry items below the retry ceiling rank before fresh pending ones, then
// lower retry count first, then higher score first.
func (s *Store) ExtractCandidates(limit, maxRetries int) ([]Item, error) {
	return s.stageCandidates(StatusPending, StatusRetryExtract, limit, maxRetries)
}

// SummarizeCandidates returns up to limit items due for summarization,
// with the same ordering rule as ExtractCandidates.
func (s *Store) SummarizeCandidates(limit, maxRetries int) ([]Item, error) {
	return s.stageCandidates(StatusExtracted, StatusRetrySummarize, limit, maxRetries)
}

// Retry items at the ceiling stay selectable (ranked last) so their next
// failure can move them to the terminal failed status instead of stranding
// them in the retry state.
func (s *Store) stageCandidates(primary, retry Status, limit, maxRetries int) ([]Item, error) {
	rows, err := s.conn.Query(
		`SELECT `+itemColumns+` FROM items
		WHERE status IN (?, ?)
		ORDER BY CASE WHEN status = ? AND retry_count < ? THEN 0 ELSE 1 END, retry_count ASC, score DESC
		LIMIT ?`,
		retry, primary, retry, maxRetries, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// NotifyCandidates returns up to limit completed items, most popular first.
// Notify has no retry state: a completed item stays eligible until delivered.
func (s *Store) NotifyCandidates(limit int) ([]Item, error) {
	rows, err := s.conn.Query(
		`SELECT `+itemColumns+` FROM items
		WHERE status = ? ORDER BY score DESC LIMIT ?`,
		StatusCompleted, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountByStatus returns the number of items in each status.
func (s *Store) CountByStatus() (map[Status]int, error) {
	rows, err := s.conn.Query(`SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// MarkExtracting claims an item for extraction. Only pending and
// retry_extract items can be claimed; ErrConflict otherwise.
func (s *Store) MarkExtracting(id int64) error {
	return s.transition(id, StatusExtracting, []Status{StatusPending, StatusRetryExtract}, "", nil)
}

// MarkExtracted records a successful extraction with its content reference.
func (s *Store) MarkExtracted(id int64, contentRef string) error {
	return s.transition(id, StatusExtracted, []Status{StatusExtracting},
		"content_ref = ?, last_error = NULL", []any{contentRef})
}

// MarkSummarizing claims an item for summarization.
func (s *Store) MarkSummarizing(id int64) error {
	return s.transition(id, StatusSummarizing, []Status{StatusExtracted, StatusRetrySummarize}, "", nil)
}

// MarkCompleted records a successful summarization with its summary reference.
func (s *Store) MarkCompleted(id int64, summaryRef string) error {
	return s.transition(id, StatusCompleted, []Status{StatusSummarizing},
		"summary_ref = ?, last_error = NULL", []any{summaryRef})
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(id int64) error {
	return s.transition(id, StatusSent, []Status{StatusCompleted}, "last_error = NULL", nil)
}

// MarkRetry returns an item to a retry status, incrementing its retry count
// and recording the failure.
func (s *Store) MarkRetry(id int64, retry Status, lastError string) error {
	if retry != StatusRetryExtract && retry != StatusRetrySummarize {
		return fmt.Errorf("%q is not a retry status", retry)
	}
	from := StatusExtracting
	if retry == StatusRetrySummarize {
		from = StatusSummarizing
	}
	return s.transition(id, retry, []Status{from},
		"retry_count = retry_count + 1, last_error = ?", []any{lastError})
}

// MarkFailed moves an item to the terminal failed status. Failed items are
// never selected by any stage again.
func (s *Store) MarkFailed(id int64, lastError string) error {
	return s.transition(id, StatusFailed,
		[]Status{StatusPending, StatusExtracting, StatusRetryExtract, StatusExtracted, StatusSummarizing, StatusRetrySummarize},
		"last_error = ?", []any{lastError})
}

// transition performs a conditional status update: the item moves to the new
// status only if it is currently in one of the expected statuses. A zero-row
// update means an overlapping invocation got there first and yields
// ErrConflict.
func (s *Store) transition(id int64, to Status, from []Status, extraSet string, extraArgs []any) error {
	set := "status = ?, updated_at = ?"
	if extraSet != "" {
		set += ", " + extraSet
	}

	args := []any{to, timestamp(time.Now())}
	args = append(args, extraArgs...)
	args = append(args, id)
	for _, st := range from {
		args = append(args, st)
	}

	query := fmt.Sprintf(
		"UPDATE items SET %s WHERE id = ? AND status IN (%s)",
		set, placeholders(len(from)),
	)
	res, err := s.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("transition item %d to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition item %d to %s: %w", id, to, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*Item, error) {
	var it Item
	var created, processed, updated string
	if err := row.Scan(&it.ID, &it.Title, &it.URL, &it.Author, &created, &it.Score,
		&it.Status, &it.ContentRef, &it.SummaryRef, &it.RetryCount, &it.LastError,
		&processed, &updated); err != nil {
		return nil, err
	}
	it.CreatedAt = parseTimestamp(created)
	it.ProcessedAt = parseTimestamp(processed)
	it.UpdatedAt = parseTimestamp(updated)
	return &it, nil
}
