package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/zzxtbeta/arixv-fetcher/internal/db"
	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_session": `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`,
	"mark_item_processing": `UPDATE session_items SET status = $1, attempts = attempts + 1, updated_at = $2
		 WHERE session_id = $3 AND arxiv_id = $4`,
	"update_item_outcome": `UPDATE session_items SET status = $1, error_message = $2, warning = $3, processing_time_ns = $4, updated_at = $5
		 WHERE session_id = $6 AND arxiv_id = $7`,
	"pending_arxiv_ids": `SELECT arxiv_id FROM session_items WHERE session_id = $1 AND status <> 'completed' ORDER BY arxiv_id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_items (
	session_id         TEXT NOT NULL REFERENCES sessions(id),
	arxiv_id           TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	attempts           INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT NOT NULL DEFAULT '',
	warning            TEXT NOT NULL DEFAULT '',
	processing_time_ns BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, arxiv_id)
);

CREATE TABLE IF NOT EXISTS papers (
	id           TEXT PRIMARY KEY,
	arxiv_id     TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	abstract     TEXT NOT NULL DEFAULT '',
	pdf_url      TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	updated_time TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS authors (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	orcid      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS affiliations (
	id         TEXT PRIMARY KEY,
	norm_key   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	country    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	latest_time    TIMESTAMPTZ,
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, arxivIDs []string) (*model.Session, error) {
	ids := dedupeIDs(arxivIDs)
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, status, total_papers, pending_papers, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(model.SessionStatusCreated), len(ids), len(ids), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
	}

	for _, arxivID := range ids {
		_, err = tx.Exec(ctx,
			`INSERT INTO session_items (session_id, arxiv_id, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, arxivID, string(model.ItemStatusPending), now, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert session item %s", arxivID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit session")
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

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	return scanPgSession(row, sessionID)
}

func (s *PostgresStore) GetSessionDetails(ctx context.Context, sessionID string) (*model.SessionDetails, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT session_id, arxiv_id, status, attempts, error_message, warning, processing_time_ns, created_at, updated_at
		 FROM session_items WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list session items %s", sessionID)
	}
	defer rows.Close()

	details := &model.SessionDetails{Session: *sess, Items: make(map[string]model.ItemRecord)}
	for rows.Next() {
		var it model.ItemRecord
		var procNS int64
		if err := rows.Scan(&it.SessionID, &it.ArxivID, &it.Status, &it.Attempts,
			&it.ErrorMessage, &it.Warning, &procNS, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session item")
		}
		it.ProcessingTime = time.Duration(procNS)
		details.Items[it.ArxivID] = it
	}
	return details, eris.Wrap(rows.Err(), "postgres: iterate session items")
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanPgSession(rows, "")
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) UpdateSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session status %s", sessionID)
	}
	return checkTag(tag, "session", sessionID)
}

func (s *PostgresStore) AddSessionCounts(ctx context.Context, sessionID string, inserted, skipped int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET total_inserted = total_inserted + $1, total_skipped = total_skipped + $2, updated_at = $3
		 WHERE id = $4`,
		inserted, skipped, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: add session counts %s", sessionID)
	}
	return checkTag(tag, "session", sessionID)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM session_items WHERE session_id = $1`, sessionID); err != nil {
		return eris.Wrapf(err, "postgres: delete session items %s", sessionID)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", sessionID)
	}
	if err := checkTag(tag, "session", sessionID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete")
}

func (s *PostgresStore) DeleteSessionsOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM session_items WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < $1)`,
		cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale session items")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale sessions")
	}
	return int(tag.RowsAffected()), eris.Wrap(tx.Commit(ctx), "postgres: commit cleanup")
}

func (s *PostgresStore) MarkItemProcessing(ctx context.Context, sessionID, arxivID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE session_items SET status = $1, attempts = attempts + 1, updated_at = $2
		 WHERE session_id = $3 AND arxiv_id = $4`,
		string(model.ItemStatusProcessing), time.Now().UTC(), sessionID, arxivID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark item processing %s/%s", sessionID, arxivID)
	}
	return checkTag(tag, "session item", arxivID)
}

func (s *PostgresStore) RecordItemOutcome(ctx context.Context, sessionID string, outcome model.ItemOutcome) (*model.Session, error) {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE session_items SET status = $1, error_message = $2, warning = $3, processing_time_ns = $4, updated_at = $5
		 WHERE session_id = $6 AND arxiv_id = $7`,
		string(outcome.Status), outcome.ErrorMessage, outcome.Warning,
		int64(outcome.ProcessingTime), now, sessionID, outcome.ArxivID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: record item outcome %s/%s", sessionID, outcome.ArxivID)
	}
	if err := checkTag(tag, "session item", outcome.ArxivID); err != nil {
		return nil, err
	}

	var total, completed, failed int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		 FROM session_items WHERE session_id = $1`, sessionID,
	).Scan(&total, &completed, &failed)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: aggregate session %s", sessionID)
	}

	pending := total - completed - failed
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET completed_papers = $1, failed_papers = $2, pending_papers = $3, updated_at = $4
		 WHERE id = $5`,
		completed, failed, pending, now, sessionID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: update session aggregates %s", sessionID)
	}

	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	sess, err := scanPgSession(row, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit item outcome")
	}
	return sess, nil
}

func (s *PostgresStore) PendingArxivIDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT arxiv_id FROM session_items WHERE session_id = $1 AND status <> 'completed' ORDER BY arxiv_id`,
		sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: pending arxiv ids %s", sessionID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan arxiv id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: pending arxiv ids iterate")
}

func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []model.PaperEntity) (model.UpsertResult, error) {
	var result model.UpsertResult
	if len(entities) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	for i := range entities {
		inserted, err := upsertPgEntity(ctx, tx, &entities[i])
		if err != nil {
			return model.UpsertResult{}, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "postgres: commit upsert")
	}
	return result, nil
}

func upsertPgEntity(ctx context.Context, tx pgx.Tx, e *model.PaperEntity) (bool, error) {
	now := time.Now().UTC()
	latest := latestTime(e.Paper)

	var paperID string
	inserted := true
	err := tx.QueryRow(ctx,
		`INSERT INTO papers (id, arxiv_id, title, abstract, pdf_url, published_at, updated_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (arxiv_id) DO NOTHING
		 RETURNING id`,
		uuid.New().String(), e.ArxivID, e.Title, e.Abstract, e.PDFURL,
		e.PublishedAt.UTC(), e.UpdatedAt.UTC(), now, now,
	).Scan(&paperID)
	if errors.Is(err, pgx.ErrNoRows) {
		inserted = false
		if err := tx.QueryRow(ctx,
			`SELECT id FROM papers WHERE arxiv_id = $1`, e.ArxivID,
		).Scan(&paperID); err != nil {
			return false, eris.Wrapf(err, "postgres: select paper %s", e.ArxivID)
		}
	} else if err != nil {
		return false, eris.Wrapf(err, "postgres: insert paper %s", e.ArxivID)
	}

	for _, cat := range e.Categories {
		var catID string
		if err := tx.QueryRow(ctx,
			`INSERT INTO categories (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			uuid.New().String(), cat,
		).Scan(&catID); err != nil {
			return false, eris.Wrapf(err, "postgres: upsert category %s", cat)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_category (paper_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			paperID, catID,
		); err != nil {
			return false, eris.Wrapf(err, "postgres: link paper category %s", cat)
		}
	}

	affByAuthor := make(map[string]model.AuthorAffiliation, len(e.AuthorAffiliations))
	for _, aa := range e.AuthorAffiliations {
		affByAuthor[aa.Name] = aa
	}

	for order, name := range e.Authors {
		var authorID string
		if err := tx.QueryRow(ctx,
			`INSERT INTO authors (id, name, orcid, email, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (name) DO UPDATE SET
				orcid = COALESCE(NULLIF(authors.orcid, ''), EXCLUDED.orcid),
				email = COALESCE(NULLIF(authors.email, ''), EXCLUDED.email),
				updated_at = EXCLUDED.updated_at
			 RETURNING id`,
			uuid.New().String(), name, e.ORCIDByAuthor[name], affByAuthor[name].Email, now, now,
		).Scan(&authorID); err != nil {
			return false, eris.Wrapf(err, "postgres: upsert author %s", name)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO author_paper (author_id, paper_id, author_order) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			authorID, paperID, order,
		); err != nil {
			return false, eris.Wrapf(err, "postgres: link author paper %s", name)
		}

		for _, affName := range affByAuthor[name].Affiliations {
			key := merge.NormKey(affName)
			if key == "" {
				continue
			}

			var affID string
			if err := tx.QueryRow(ctx,
				`INSERT INTO affiliations (id, norm_key, name, country, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (norm_key) DO UPDATE SET
					country = COALESCE(NULLIF(affiliations.country, ''), EXCLUDED.country),
					updated_at = EXCLUDED.updated_at
				 RETURNING id`,
				uuid.New().String(), key, affName, e.CountryByAffiliation[key], now, now,
			).Scan(&affID); err != nil {
				return false, eris.Wrapf(err, "postgres: upsert affiliation %s", affName)
			}

			meta := e.AffiliationMeta[name][key]
			if _, err := tx.Exec(ctx,
				`INSERT INTO author_affiliation (author_id, affiliation_id, role, department, start_date, end_date, latest_time)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (author_id, affiliation_id) DO UPDATE SET
					role = COALESCE(NULLIF(author_affiliation.role, ''), EXCLUDED.role),
					department = COALESCE(NULLIF(author_affiliation.department, ''), EXCLUDED.department),
					start_date = COALESCE(LEAST(NULLIF(author_affiliation.start_date, ''), NULLIF(EXCLUDED.start_date, '')), ''),
					end_date = COALESCE(GREATEST(NULLIF(author_affiliation.end_date, ''), NULLIF(EXCLUDED.end_date, '')), ''),
					latest_time = GREATEST(author_affiliation.latest_time, EXCLUDED.latest_time)`,
				authorID, affID, meta.Role, meta.Department, meta.StartDate, meta.EndDate, latest,
			); err != nil {
				return false, eris.Wrapf(err, "postgres: link author affiliation %s", affName)
			}

			for _, rk := range e.RankingsByAffiliation[key] {
				if _, err := tx.Exec(ctx,
					`INSERT INTO affiliation_rankings (affiliation_id, system, year, rank)
					 VALUES ($1, $2, $3, $4)
					 ON CONFLICT (affiliation_id, system, year) DO UPDATE SET rank = EXCLUDED.rank`,
					affID, rk.System, rk.Year, rk.Rank,
				); err != nil {
					return false, eris.Wrapf(err, "postgres: upsert ranking for %s", affName)
				}
			}
		}
	}

	return inserted, nil
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func scanPgSession(row pgx.Row, sessionID string) (*model.Session, error) {
	var sess model.Session
	err := row.Scan(&sess.ID, &sess.Status, &sess.TotalPapers, &sess.CompletedPapers,
		&sess.FailedPapers, &sess.PendingPapers, &sess.TotalInserted, &sess.TotalSkipped,
		&sess.ErrorMessage, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan session")
	}
	return &sess, nil
}
