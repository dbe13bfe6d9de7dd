package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Upsert transactions touch many tables; a single writer avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'created',
	total_papers     INTEGER NOT NULL DEFAULT 0,
	completed_papers INTEGER NOT NULL DEFAULT 0,
	failed_papers    INTEGER NOT NULL DEFAULT 0,
	pending_papers   INTEGER NOT NULL DEFAULT 0,
	total_inserted   INTEGER NOT NULL DEFAULT 0,
	total_skipped    INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS session_items (
	session_id         TEXT NOT NULL REFERENCES sessions(id),
	arxiv_id           TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	attempts           INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT NOT NULL DEFAULT '',
	warning            TEXT NOT NULL DEFAULT '',
	processing_time_ns INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (session_id, arxiv_id)
);

CREATE TABLE IF NOT EXISTS papers (
	id           TEXT PRIMARY KEY,
	arxiv_id     TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	abstract     TEXT NOT NULL DEFAULT '',
	pdf_url      TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	updated_time DATETIME,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS authors (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	orcid      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS affiliations (
	id         TEXT PRIMARY KEY,
	norm_key   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	country    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS author_paper (
	author_id    TEXT NOT NULL REFERENCES authors(id),
	paper_id     TEXT NOT NULL REFERENCES papers(id),
	author_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (author_id, paper_id)
);

CREATE TABLE IF NOT EXISTS paper_category (
	paper_id    TEXT NOT NULL REFERENCES papers(id),
	category_id TEXT NOT NULL REFERENCES categories(id),
	PRIMARY KEY (paper_id, category_id)
);

CREATE TABLE IF NOT EXISTS author_affiliation (
	author_id      TEXT NOT NULL REFERENCES authors(id),
	affiliation_id TEXT NOT NULL REFERENCES affiliations(id),
	role           TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	start_date     TEXT NOT NULL DEFAULT '',
	end_date       TEXT NOT NULL DEFAULT '',
	latest_time    DATETIME,
	PRIMARY KEY (author_id, affiliation_id)
);

CREATE TABLE IF NOT EXISTS affiliation_rankings (
	affiliation_id TEXT NOT NULL REFERENCES affiliations(id),
	system         TEXT NOT NULL,
	year           INTEGER NOT NULL,
	rank           TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (affiliation_id, system, year)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
CREATE INDEX IF NOT EXISTS idx_session_items_status ON session_items(session_id, status);
CREATE INDEX IF NOT EXISTS idx_author_paper_paper ON author_paper(paper_id);
CREATE INDEX IF NOT EXISTS idx_paper_category_category ON paper_category(category_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, arxivIDs []string) (*model.Session, error) {
	ids := dedupeIDs(arxivIDs)
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, status, total_papers, pending_papers, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(model.SessionStatusCreated), len(ids), len(ids), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}

	for _, arxivID := range ids {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_items (session_id, arxiv_id, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, arxivID, string(model.ItemStatusPending), now, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert session item %s", arxivID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit session")
	}

	return &model.Session{
		ID:            id,
		Status:        model.SessionStatusCreated,
		TotalPapers:   len(ids),
		PendingPapers: len(ids),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

const sessionColumns = `id, status, total_papers, completed_papers, failed_papers, pending_papers,
	total_inserted, total_skipped, error_message, created_at, updated_at`

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	return scanSession(row, sessionID)
}

func (s *SQLiteStore) GetSessionDetails(ctx context.Context, sessionID string) (*model.SessionDetails, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, arxiv_id, status, attempts, error_message, warning, processing_time_ns, created_at, updated_at
		 FROM session_items WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list session items %s", sessionID)
	}
	defer rows.Close()

	details := &model.SessionDetails{Session: *sess, Items: make(map[string]model.ItemRecord)}
	for rows.Next() {
		var it model.ItemRecord
		var procNS int64
		if err := rows.Scan(&it.SessionID, &it.ArxivID, &it.Status, &it.Attempts,
			&it.ErrorMessage, &it.Warning, &procNS, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session item")
		}
		it.ProcessingTime = time.Duration(procNS)
		details.Items[it.ArxivID] = it
	}
	return details, eris.Wrap(rows.Err(), "sqlite: iterate session items")
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows, "")
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session status %s", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) AddSessionCounts(ctx context.Context, sessionID string, inserted, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET total_inserted = total_inserted + ?, total_skipped = total_skipped + ?, updated_at = ?
		 WHERE id = ?`,
		inserted, skipped, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: add session counts %s", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_items WHERE session_id = ?`, sessionID); err != nil {
		return eris.Wrapf(err, "sqlite: delete session items %s", sessionID)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", sessionID)
	}
	if err := checkRowsAffected(res, "session", sessionID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func (s *SQLiteStore) DeleteSessionsOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_items WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`,
		cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: delete stale session items")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete stale sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), eris.Wrap(tx.Commit(), "sqlite: commit cleanup")
}

func (s *SQLiteStore) MarkItemProcessing(ctx context.Context, sessionID, arxivID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_items SET status = ?, attempts = attempts + 1, updated_at = ?
		 WHERE session_id = ? AND arxiv_id = ?`,
		string(model.ItemStatusProcessing), time.Now().UTC(), sessionID, arxivID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark item processing %s/%s", sessionID, arxivID)
	}
	return checkRowsAffected(res, "session item", arxivID)
}

func (s *SQLiteStore) RecordItemOutcome(ctx context.Context, sessionID string, outcome model.ItemOutcome) (*model.Session, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE session_items SET status = ?, error_message = ?, warning = ?, processing_time_ns = ?, updated_at = ?
		 WHERE session_id = ? AND arxiv_id = ?`,
		string(outcome.Status), outcome.ErrorMessage, outcome.Warning,
		int64(outcome.ProcessingTime), now, sessionID, outcome.ArxivID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: record item outcome %s/%s", sessionID, outcome.ArxivID)
	}
	if err := checkRowsAffected(res, "session item", outcome.ArxivID); err != nil {
		return nil, err
	}

	var total, completed, failed int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM session_items WHERE session_id = ?`, sessionID,
	).Scan(&total, &completed, &failed)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: aggregate session %s", sessionID)
	}

	pending := total - completed - failed
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET completed_papers = ?, failed_papers = ?, pending_papers = ?, updated_at = ?
		 WHERE id = ?`,
		completed, failed, pending, now, sessionID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: update session aggregates %s", sessionID)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit item outcome")
	}
	return sess, nil
}

func (s *SQLiteStore) PendingArxivIDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT arxiv_id FROM session_items
		 WHERE session_id = ? AND status <> 'completed'
		 ORDER BY arxiv_id`, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: pending arxiv ids %s", sessionID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan arxiv id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: pending arxiv ids iterate")
}

func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []model.PaperEntity) (model.UpsertResult, error) {
	var result model.UpsertResult
	if len(entities) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	for i := range entities {
		inserted, err := s.upsertEntity(ctx, tx, &entities[i])
		if err != nil {
			return model.UpsertResult{}, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "sqlite: commit upsert")
	}
	return result, nil
}

func (s *SQLiteStore) upsertEntity(ctx context.Context, tx *sql.Tx, e *model.PaperEntity) (bool, error) {
	now := time.Now().UTC()
	latest := latestTime(e.Paper)

	var paperID string
	inserted := true
	err := tx.QueryRowContext(ctx,
		`INSERT INTO papers (id, arxiv_id, title, abstract, pdf_url, published_at, updated_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (arxiv_id) DO NOTHING
		 RETURNING id`,
		uuid.New().String(), e.ArxivID, e.Title, e.Abstract, e.PDFURL,
		e.PublishedAt.UTC(), e.UpdatedAt.UTC(), now, now,
	).Scan(&paperID)
	if errors.Is(err, sql.ErrNoRows) {
		inserted = false
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM papers WHERE arxiv_id = ?`, e.ArxivID,
		).Scan(&paperID); err != nil {
			return false, eris.Wrapf(err, "sqlite: select paper %s", e.ArxivID)
		}
	} else if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert paper %s", e.ArxivID)
	}

	for _, cat := range e.Categories {
		var catID string
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO categories (id, name) VALUES (?, ?)
			 ON CONFLICT (name) DO UPDATE SET name = excluded.name
			 RETURNING id`,
			uuid.New().String(), cat,
		).Scan(&catID); err != nil {
			return false, eris.Wrapf(err, "sqlite: upsert category %s", cat)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paper_category (paper_id, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			paperID, catID,
		); err != nil {
			return false, eris.Wrapf(err, "sqlite: link paper category %s", cat)
		}
	}

	affByAuthor := make(map[string]model.AuthorAffiliation, len(e.AuthorAffiliations))
	for _, aa := range e.AuthorAffiliations {
		affByAuthor[aa.Name] = aa
	}

	for order, name := range e.Authors {
		var authorID string
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO authors (id, name, orcid, email, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
				orcid = COALESCE(NULLIF(authors.orcid, ''), excluded.orcid),
				email = COALESCE(NULLIF(authors.email, ''), excluded.email),
				updated_at = excluded.updated_at
			 RETURNING id`,
			uuid.New().String(), name, e.ORCIDByAuthor[name], affByAuthor[name].Email, now, now,
		).Scan(&authorID); err != nil {
			return false, eris.Wrapf(err, "sqlite: upsert author %s", name)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO author_paper (author_id, paper_id, author_order) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			authorID, paperID, order,
		); err != nil {
			return false, eris.Wrapf(err, "sqlite: link author paper %s", name)
		}

		for _, affName := range affByAuthor[name].Affiliations {
			key := merge.NormKey(affName)
			if key == "" {
				continue
			}

			var affID string
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO affiliations (id, norm_key, name, country, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT (norm_key) DO UPDATE SET
					country = COALESCE(NULLIF(affiliations.country, ''), excluded.country),
					updated_at = excluded.updated_at
				 RETURNING id`,
				uuid.New().String(), key, affName, e.CountryByAffiliation[key], now, now,
			).Scan(&affID); err != nil {
				return false, eris.Wrapf(err, "sqlite: upsert affiliation %s", affName)
			}

			meta := e.AffiliationMeta[name][key]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO author_affiliation (author_id, affiliation_id, role, department, start_date, end_date, latest_time)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (author_id, affiliation_id) DO UPDATE SET
					role = COALESCE(NULLIF(author_affiliation.role, ''), excluded.role),
					department = COALESCE(NULLIF(author_affiliation.department, ''), excluded.department),
					start_date = CASE
						WHEN author_affiliation.start_date = '' THEN excluded.start_date
						WHEN excluded.start_date = '' THEN author_affiliation.start_date
						ELSE MIN(author_affiliation.start_date, excluded.start_date)
					END,
					end_date = MAX(author_affiliation.end_date, excluded.end_date),
					latest_time = MAX(author_affiliation.latest_time, excluded.latest_time)`,
				authorID, affID, meta.Role, meta.Department, meta.StartDate, meta.EndDate, latest,
			); err != nil {
				return false, eris.Wrapf(err, "sqlite: link author affiliation %s", affName)
			}

			for _, rk := range e.RankingsByAffiliation[key] {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO affiliation_rankings (affiliation_id, system, year, rank)
					 VALUES (?, ?, ?, ?)
					 ON CONFLICT (affiliation_id, system, year) DO UPDATE SET rank = excluded.rank`,
					affID, rk.System, rk.Year, rk.Rank,
				); err != nil {
					return false, eris.Wrapf(err, "sqlite: upsert ranking for %s", affName)
				}
			}
		}
	}

	return inserted, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable, sessionID string) (*model.Session, error) {
	var sess model.Session
	err := row.Scan(&sess.ID, &sess.Status, &sess.TotalPapers, &sess.CompletedPapers,
		&sess.FailedPapers, &sess.PendingPapers, &sess.TotalInserted, &sess.TotalSkipped,
		&sess.ErrorMessage, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan session")
	}
	return &sess, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func latestTime(p model.Paper) time.Time {
	if p.UpdatedAt.After(p.PublishedAt) {
		return p.UpdatedAt.UTC()
	}
	return p.PublishedAt.UTC()
}
