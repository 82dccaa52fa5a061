package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"
)

const leadColumns = `id, dedupe_key, title, description, source, source_url, location, posted_at,
budget_range, category, contact_method, status, saved, first_seen_at, last_seen_at, seen_count, status_changed_at`

const metaLastUpdated = "last_updated"

// SQLiteRepository persists leads in the engine's sqlite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *DB) *SQLiteRepository {
	return &SQLiteRepository{db: db.Pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(r rowScanner) (domain.Lead, error) {
	var (
		l                                  domain.Lead
		category, status                   string
		posted, first, last, statusChanged string
		saved                              int
	)
	err := r.Scan(&l.ID, &l.DedupeKey, &l.Title, &l.Description, &l.Source, &l.SourceURL, &l.Location, &posted,
		&l.BudgetRange, &category, &l.ContactMethod, &status, &saved, &first, &last, &l.SeenCount, &statusChanged)
	if err != nil {
		return l, err
	}
	l.Category = domain.Category(category)
	l.Status = domain.Status(status)
	l.Saved = saved != 0
	l.PostedAt = parseTS(posted)
	l.FirstSeenAt = parseTS(first)
	l.LastSeenAt = parseTS(last)
	l.StatusChangedAt = parseTS(statusChanged)
	return l, nil
}

func fmtTS(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRepository) Upsert(ctx context.Context, l domain.Lead, merge MergeFunc) (domain.Lead, bool, error) {
	if l.DedupeKey == "" {
		return domain.Lead{}, false, errors.New("upsert: empty dedupe key")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanLead(tx.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE dedupe_key = ?;`, l.DedupeKey))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
INSERT INTO leads (dedupe_key, title, description, source, source_url, location, posted_at,
  budget_range, category, contact_method, status, saved, first_seen_at, last_seen_at, seen_count, status_changed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			l.DedupeKey, l.Title, l.Description, l.Source, l.SourceURL, l.Location, fmtTS(l.PostedAt),
			l.BudgetRange, string(l.Category), l.ContactMethod, string(l.Status), boolInt(l.Saved),
			fmtTS(l.FirstSeenAt), fmtTS(l.LastSeenAt), l.SeenCount, fmtTS(l.StatusChangedAt))
		if err != nil {
			return domain.Lead{}, false, fmt.Errorf("insert lead: %w", err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return domain.Lead{}, false, err
		}
		return l, true, tx.Commit()
	case err != nil:
		return domain.Lead{}, false, fmt.Errorf("load lead: %w", err)
	}

	out := existing
	if merge != nil {
		out = merge(existing, l)
	}
	out.ID, out.DedupeKey = existing.ID, existing.DedupeKey

	// status and saved belong to the lifecycle controller and are not written here
	_, err = tx.ExecContext(ctx, `
UPDATE leads SET title = ?, description = ?, source = ?, source_url = ?, location = ?, posted_at = ?,
  budget_range = ?, category = ?, contact_method = ?, first_seen_at = ?, last_seen_at = ?, seen_count = ?
WHERE id = ?;`,
		out.Title, out.Description, out.Source, out.SourceURL, out.Location, fmtTS(out.PostedAt),
		out.BudgetRange, string(out.Category), out.ContactMethod, fmtTS(out.FirstSeenAt), fmtTS(out.LastSeenAt),
		out.SeenCount, out.ID)
	if err != nil {
		return domain.Lead{}, false, fmt.Errorf("merge lead: %w", err)
	}
	out.Status, out.Saved, out.StatusChangedAt = existing.Status, existing.Saved, existing.StatusChangedAt
	return out, false, tx.Commit()
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return l, err
}

func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]domain.Lead, error) {
	var (
		where []string
		args  []any
	)
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.SavedOnly {
		where = append(where, "saved = 1")
	}

	q := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id;"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, id int64, to domain.Status, reason string, at time.Time, guard TransitionGuard) (domain.StatusChange, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StatusChange{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM leads WHERE id = ?;`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StatusChange{}, false, ErrNotFound
	}
	if err != nil {
		return domain.StatusChange{}, false, err
	}

	ch := domain.StatusChange{LeadID: id, From: domain.Status(from), To: to, Reason: reason, At: at.UTC()}
	if err := checkStatus(ch.From, to, guard); err != nil {
		return ch, false, err
	}
	if ch.From == to {
		return ch, false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, status_changed_at = ? WHERE id = ?;`,
		string(to), fmtTS(ch.At), id); err != nil {
		return ch, false, fmt.Errorf("update status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO lead_status_history (lead_id, from_status, to_status, reason, at)
VALUES (?, ?, ?, ?, ?);`,
		id, from, string(to), reason, fmtTS(ch.At)); err != nil {
		return ch, false, fmt.Errorf("record history: %w", err)
	}
	return ch, true, tx.Commit()
}

func (r *SQLiteRepository) SetSaved(ctx context.Context, id int64, saved bool) (domain.Lead, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET saved = ? WHERE id = ?;`, boolInt(saved), id)
	if err != nil {
		return domain.Lead{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Lead{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) History(ctx context.Context, id int64) ([]domain.StatusChange, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT lead_id, from_status, to_status, reason, at
FROM lead_status_history
WHERE lead_id = ?
ORDER BY id;`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.StatusChange{}
	for rows.Next() {
		var (
			ch       domain.StatusChange
			from, to string
			at       string
		)
		if err := rows.Scan(&ch.LeadID, &from, &to, &ch.Reason, &at); err != nil {
			return nil, err
		}
		ch.From, ch.To, ch.At = domain.Status(from), domain.Status(to), parseTS(at)
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LastUpdated(ctx context.Context) (time.Time, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?;`, metaLastUpdated).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTS(v), nil
}

func (r *SQLiteRepository) SetLastUpdated(ctx context.Context, t time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, metaLastUpdated, fmtTS(t))
	return err
}
