package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/openjustice/courtwatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS courts (
	id          BIGSERIAL PRIMARY KEY,
	region_id   BIGINT NOT NULL REFERENCES regions(id),
	name        TEXT NOT NULL,
	code        TEXT NOT NULL UNIQUE,
	is_military BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_courts_region_id ON courts(region_id);

CREATE TABLE IF NOT EXISTS cases (
	id             BIGSERIAL PRIMARY KEY,
	court_id       BIGINT NOT NULL REFERENCES courts(id),
	case_number    TEXT NOT NULL,
	defendant_name TEXT NOT NULL DEFAULT '',
	articles       TEXT NOT NULL DEFAULT '',
	judge_name     TEXT NOT NULL DEFAULT '',
	result         TEXT NOT NULL DEFAULT '',
	sub_type       TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	entry_date     DATE,
	result_date    DATE,
	effective_date DATE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (case_number, court_id, articles, defendant_name)
);

CREATE INDEX IF NOT EXISTS idx_cases_court_id ON cases(court_id);
CREATE INDEX IF NOT EXISTS idx_cases_created_at ON cases(created_at);
CREATE INDEX IF NOT EXISTS idx_cases_entry_date ON cases(entry_date);

CREATE TABLE IF NOT EXISTS scrape_sessions (
	id                    BIGSERIAL PRIMARY KEY,
	court_id              BIGINT REFERENCES courts(id),
	input_article         TEXT NOT NULL DEFAULT '',
	input_court_code      TEXT NOT NULL DEFAULT '',
	created_cases         INTEGER NOT NULL DEFAULT 0,
	updated_cases         INTEGER NOT NULL DEFAULT 0,
	ignored_cases         INTEGER NOT NULL DEFAULT 0,
	is_successful         BOOLEAN NOT NULL DEFAULT false,
	is_captcha            BOOLEAN NOT NULL DEFAULT false,
	is_captcha_successful BOOLEAN NOT NULL DEFAULT false,
	error_type            TEXT NOT NULL DEFAULT 'None',
	debug_message         TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scrape_sessions_court_id ON scrape_sessions(court_id);
CREATE INDEX IF NOT EXISTS idx_scrape_sessions_created_at ON scrape_sessions(created_at);

CREATE TABLE IF NOT EXISTS scrape_log (
	id                BIGSERIAL PRIMARY KEY,
	scrape_session_id BIGINT NOT NULL REFERENCES scrape_sessions(id) ON DELETE CASCADE,
	case_id           BIGINT NOT NULL REFERENCES cases(id),
	is_update         BOOLEAN NOT NULL DEFAULT false,
	diff              TEXT NOT NULL DEFAULT '{}',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scrape_log_session_id ON scrape_log(scrape_session_id);
CREATE INDEX IF NOT EXISTS idx_scrape_log_case_id ON scrape_log(case_id);

CREATE TABLE IF NOT EXISTS scrape_state (
	id               BIGSERIAL PRIMARY KEY,
	batch_next_index INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Catalog ---

func (s *PostgresStore) UpsertRegion(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO regions (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET updated_at = now()
		 RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert region %s", name)
	}
	return id, nil
}

func (s *PostgresStore) UpsertCourt(ctx context.Context, court model.Court) (bool, error) {
	// xmax = 0 distinguishes a fresh insert from a conflict update.
	var created bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO courts (region_id, name, code, is_military) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code) DO UPDATE
		 SET region_id = EXCLUDED.region_id, name = EXCLUDED.name,
		     is_military = EXCLUDED.is_military, updated_at = now()
		 RETURNING (xmax = 0)`,
		court.RegionID, court.Name, court.Code, court.IsMilitary,
	).Scan(&created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert court %s", court.Code)
	}
	return created, nil
}

const courtColumns = `courts.id, courts.region_id, courts.name, courts.code, courts.is_military,
	courts.created_at, courts.updated_at,
	regions.id, regions.name, regions.created_at, regions.updated_at`

func scanCourt(row pgx.Row) (*model.Court, error) {
	var c model.Court
	var r model.Region
	err := row.Scan(
		&c.ID, &c.RegionID, &c.Name, &c.Code, &c.IsMilitary, &c.CreatedAt, &c.UpdatedAt,
		&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Region = &r
	return &c, nil
}

func (s *PostgresStore) GetCourtByCode(ctx context.Context, code string) (*model.Court, error) {
	c, err := scanCourt(s.pool.QueryRow(ctx,
		`SELECT `+courtColumns+` FROM courts
		 JOIN regions ON regions.id = courts.region_id
		 WHERE courts.code = $1`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get court by code %s", code)
	}
	return c, nil
}

func (s *PostgresStore) GetCourt(ctx context.Context, id int64) (*model.Court, error) {
	c, err := scanCourt(s.pool.QueryRow(ctx,
		`SELECT `+courtColumns+` FROM courts
		 JOIN regions ON regions.id = courts.region_id
		 WHERE courts.id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get court %d", id)
	}
	return c, nil
}

func (s *PostgresStore) ListRegions(ctx context.Context, f RegionFilter, p Page) ([]model.Region, int, error) {
	cond := `WHERE true`
	args := []any{}
	argIdx := 1

	if f.Name != "" {
		cond += fmt.Sprintf(` AND regions.name ILIKE $%d`, argIdx)
		args = append(args, "%"+f.Name+"%")
		argIdx++
	}
	if len(f.IDs) > 0 {
		cond += fmt.Sprintf(` AND regions.id = ANY($%d)`, argIdx)
		args = append(args, f.IDs)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM regions `+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count regions")
	}

	cursorCond, orderBy, cursorArgs := keysetClause("regions", "id", "name", "", p, argIdx)
	if cursorCond != "" {
		cond += ` AND ` + cursorCond
		args = append(args, cursorArgs...)
		argIdx++
	}
	query := fmt.Sprintf(
		`SELECT regions.id, regions.name, regions.created_at, regions.updated_at
		 FROM regions %s ORDER BY %s LIMIT $%d`,
		cond, orderBy, argIdx)
	args = append(args, p.PerPage+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list regions iterate")
	}
	return regions, total, nil
}

func (s *PostgresStore) ListCourts(ctx context.Context, f CourtFilter, p Page) ([]model.Court, int, error) {
	cond := `WHERE true`
	args := []any{}
	argIdx := 1

	if f.Name != "" {
		cond += fmt.Sprintf(` AND courts.name ILIKE $%d`, argIdx)
		args = append(args, "%"+f.Name+"%")
		argIdx++
	}
	if len(f.IDs) > 0 {
		cond += fmt.Sprintf(` AND courts.id = ANY($%d)`, argIdx)
		args = append(args, f.IDs)
		argIdx++
	}
	if len(f.RegionIDs) > 0 {
		cond += fmt.Sprintf(` AND courts.region_id = ANY($%d)`, argIdx)
		args = append(args, f.RegionIDs)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM courts `+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count courts")
	}

	cursorCond, orderBy, cursorArgs := keysetClause("courts", "id", "name", "", p, argIdx)
	if cursorCond != "" {
		cond += ` AND ` + cursorCond
		args = append(args, cursorArgs...)
		argIdx++
	}
	query := fmt.Sprintf(
		`SELECT `+courtColumns+` FROM courts
		 JOIN regions ON regions.id = courts.region_id
		 %s ORDER BY %s LIMIT $%d`,
		cond, orderBy, argIdx)
	args = append(args, p.PerPage+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list courts")
	}
	defer rows.Close()

	var courts []model.Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan court")
		}
		courts = append(courts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list courts iterate")
	}
	return courts, total, nil
}

// --- Cases ---

const caseColumns = `cases.id, cases.court_id, cases.case_number, cases.defendant_name,
	cases.articles, cases.judge_name, cases.result, cases.sub_type, cases.url,
	cases.entry_date, cases.result_date, cases.effective_date, cases.created_at, cases.updated_at`

func scanCase(row pgx.Row) (*model.Case, error) {
	var c model.Case
	err := row.Scan(
		&c.ID, &c.CourtID, &c.CaseNumber, &c.DefendantName,
		&c.Articles, &c.JudgeName, &c.Result, &c.SubType, &c.URL,
		&c.EntryDate, &c.ResultDate, &c.EffectiveDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) FindCase(ctx context.Context, key model.CaseKey) (*model.Case, error) {
	c, err := scanCase(s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases
		 WHERE case_number = $1 AND court_id = $2 AND articles = $3 AND defendant_name = $4`,
		key.CaseNumber, key.CourtID, key.Articles, key.DefendantName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find case %s", key.CaseNumber)
	}
	return c, nil
}

func (s *PostgresStore) InsertCase(ctx context.Context, c *model.Case) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cases (court_id, case_number, defendant_name, articles, judge_name,
		                    result, sub_type, url, entry_date, result_date, effective_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		c.CourtID, c.CaseNumber, c.DefendantName, c.Articles, c.JudgeName,
		c.Result, c.SubType, c.URL, c.EntryDate, c.ResultDate, c.EffectiveDate,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCase
		}
		return 0, eris.Wrapf(err, "postgres: insert case %s", c.CaseNumber)
	}
	c.ID = id
	return id, nil
}

func (s *PostgresStore) UpdateCaseFields(ctx context.Context, id int64, fields map[model.Field]any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields)+1)
	args := []any{}
	argIdx := 1

	// Deterministic SET order keeps the statement stable for tests and logs.
	for _, f := range model.CaseFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", string(f), argIdx))
		args = append(args, v)
		argIdx++
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE cases SET %s WHERE id = $%d`, strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update case %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("case not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) GetCase(ctx context.Context, id int64) (*model.Case, error) {
	c, err := scanCase(s.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get case %d", id)
	}
	return c, nil
}

func caseFilterSQL(f CaseFilter, argIdx int) (string, []any, int) {
	cond := `WHERE true`
	args := []any{}

	like := func(column string, values []string) {
		for _, v := range values {
			cond += fmt.Sprintf(` AND cases.%s ILIKE $%d`, column, argIdx)
			args = append(args, "%"+v+"%")
			argIdx++
		}
	}
	like("defendant_name", f.Defendants)
	like("judge_name", f.Judges)
	like("articles", f.Articles)

	if len(f.CourtIDs) > 0 {
		cond += fmt.Sprintf(` AND cases.court_id = ANY($%d)`, argIdx)
		args = append(args, f.CourtIDs)
		argIdx++
	}
	if len(f.RegionIDs) > 0 {
		cond += fmt.Sprintf(` AND cases.court_id IN (SELECT id FROM courts WHERE region_id = ANY($%d))`, argIdx)
		args = append(args, f.RegionIDs)
		argIdx++
	}

	bound := func(column, op string, t *time.Time) {
		if t == nil {
			return
		}
		cond += fmt.Sprintf(` AND cases.%s %s $%d`, column, op, argIdx)
		args = append(args, *t)
		argIdx++
	}
	bound("entry_date", ">=", f.EntryFrom)
	bound("entry_date", "<=", f.EntryTo)
	bound("result_date", ">=", f.ResultFrom)
	bound("result_date", "<=", f.ResultTo)
	bound("effective_date", ">=", f.EffectiveFrom)
	bound("effective_date", "<=", f.EffectiveTo)

	return cond, args, argIdx
}

func (s *PostgresStore) ListCases(ctx context.Context, f CaseFilter, p Page) ([]model.Case, int, error) {
	cond, args, argIdx := caseFilterSQL(f, 1)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cases `+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count cases")
	}

	cursorCond, orderBy, cursorArgs := keysetClause("cases", "id", "entry_date", "DATE '0001-01-01'", p, argIdx)
	if cursorCond != "" {
		cond += ` AND ` + cursorCond
		args = append(args, cursorArgs...)
		argIdx++
	}
	query := fmt.Sprintf(`SELECT `+caseColumns+` FROM cases %s ORDER BY %s LIMIT $%d`,
		cond, orderBy, argIdx)
	args = append(args, p.PerPage+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan case")
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list cases iterate")
	}
	return cases, total, nil
}

// --- Scrape telemetry ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.ScrapeSession) (int64, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scrape_sessions (court_id, input_article, input_court_code,
		   is_successful, is_captcha, is_captcha_successful, error_type, debug_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		sess.CourtID, sess.InputArticle, sess.InputCourtCode,
		sess.IsSuccessful, sess.IsCaptcha, sess.IsCaptchaSuccessful,
		sess.ErrorType, sess.DebugMessage,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: create session")
	}
	return sess.ID, nil
}

func (s *PostgresStore) FinalizeSession(ctx context.Context, id int64, created, updated, ignored int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_sessions
		 SET created_cases = $1, updated_cases = $2, ignored_cases = $3, updated_at = now()
		 WHERE id = $4`,
		created, updated, ignored, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize session %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", id)
	}
	return nil
}

const sessionColumns = `scrape_sessions.id, scrape_sessions.court_id,
	scrape_sessions.input_article, scrape_sessions.input_court_code,
	scrape_sessions.created_cases, scrape_sessions.updated_cases, scrape_sessions.ignored_cases,
	scrape_sessions.is_successful, scrape_sessions.is_captcha, scrape_sessions.is_captcha_successful,
	scrape_sessions.error_type, scrape_sessions.debug_message,
	scrape_sessions.created_at, scrape_sessions.updated_at`

func scanSession(row pgx.Row) (*model.ScrapeSession, error) {
	var sess model.ScrapeSession
	err := row.Scan(
		&sess.ID, &sess.CourtID,
		&sess.InputArticle, &sess.InputCourtCode,
		&sess.CreatedCases, &sess.UpdatedCases, &sess.IgnoredCases,
		&sess.IsSuccessful, &sess.IsCaptcha, &sess.IsCaptchaSuccessful,
		&sess.ErrorType, &sess.DebugMessage,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*model.ScrapeSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM scrape_sessions WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get session %d", id)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, p Page) ([]model.ScrapeSession, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM scrape_sessions`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count sessions")
	}

	cond := `WHERE true`
	args := []any{}
	argIdx := 1

	cursorCond, orderBy, cursorArgs := keysetClause("scrape_sessions", "id", "created_at", "", p, argIdx)
	if cursorCond != "" {
		cond += ` AND ` + cursorCond
		args = append(args, cursorArgs...)
		argIdx++
	}
	query := fmt.Sprintf(`SELECT `+sessionColumns+` FROM scrape_sessions %s ORDER BY %s LIMIT $%d`,
		cond, orderBy, argIdx)
	args = append(args, p.PerPage+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.ScrapeSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list sessions iterate")
	}
	return sessions, total, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, l *model.ScrapeLog) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scrape_log (scrape_session_id, case_id, is_update, diff)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		l.ScrapeSessionID, l.CaseID, l.IsUpdate, l.Diff,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return eris.Wrap(err, "postgres: append log")
}

func (s *PostgresStore) ListLogs(ctx context.Context, f LogFilter, p Page) ([]model.ScrapeLog, int, error) {
	cond := `WHERE true`
	args := []any{}
	argIdx := 1

	if f.SessionID != nil {
		cond += fmt.Sprintf(` AND scrape_log.scrape_session_id = $%d`, argIdx)
		args = append(args, *f.SessionID)
		argIdx++
	}
	if f.CaseID != nil {
		cond += fmt.Sprintf(` AND scrape_log.case_id = $%d`, argIdx)
		args = append(args, *f.CaseID)
		argIdx++
	}
	if f.CourtID != nil {
		cond += fmt.Sprintf(` AND scrape_log.case_id IN (SELECT id FROM cases WHERE court_id = $%d)`, argIdx)
		args = append(args, *f.CourtID)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM scrape_log `+cond, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count logs")
	}

	cursorCond, orderBy, cursorArgs := keysetClause("scrape_log", "id", "created_at", "", p, argIdx)
	if cursorCond != "" {
		cond += ` AND ` + cursorCond
		args = append(args, cursorArgs...)
		argIdx++
	}
	query := fmt.Sprintf(
		`SELECT scrape_log.id, scrape_log.scrape_session_id, scrape_log.case_id,
		        scrape_log.is_update, scrape_log.diff, scrape_log.created_at, scrape_log.updated_at
		 FROM scrape_log %s ORDER BY %s LIMIT $%d`,
		cond, orderBy, argIdx)
	args = append(args, p.PerPage+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var logs []model.ScrapeLog
	for rows.Next() {
		var l model.ScrapeLog
		if err := rows.Scan(&l.ID, &l.ScrapeSessionID, &l.CaseID, &l.IsUpdate, &l.Diff, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan log")
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list logs iterate")
	}
	return logs, total, nil
}

// DeleteStaleSessions removes sessions older than the retention window that
// produced no case changes. Sessions with any created or updated case are
// kept regardless of age.
func (s *PostgresStore) DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scrape_sessions
		 WHERE created_at < $1 AND created_cases = 0 AND updated_cases = 0`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale sessions")
	}
	return tag.RowsAffected(), nil
}

// --- Batch cursor ---

func (s *PostgresStore) BatchNextIndex(ctx context.Context) (int, error) {
	var idx int
	err := s.pool.QueryRow(ctx,
		`SELECT batch_next_index FROM scrape_state ORDER BY id LIMIT 1`,
	).Scan(&idx)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.pool.Exec(ctx, `INSERT INTO scrape_state (batch_next_index) VALUES (0)`); err != nil {
			return 0, eris.Wrap(err, "postgres: init scrape state")
		}
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: get batch index")
	}
	return idx, nil
}

func (s *PostgresStore) SetBatchNextIndex(ctx context.Context, idx int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_state SET batch_next_index = $1, updated_at = now()
		 WHERE id = (SELECT id FROM scrape_state ORDER BY id LIMIT 1)`,
		idx,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set batch index")
	}
	if tag.RowsAffected() == 0 {
		_, err = s.pool.Exec(ctx, `INSERT INTO scrape_state (batch_next_index) VALUES ($1)`, idx)
		return eris.Wrap(err, "postgres: init batch index")
	}
	return nil
}

// CourtsPage selects one orchestrator page of the roster in insertion order.
// Courts served by the metropolitan aggregator are excluded: they are
// scraped through a single aggregator dispatch, not per court.
func (s *PostgresStore) CourtsPage(ctx context.Context, offset, limit int) ([]model.Court, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+courtColumns+` FROM courts
		 JOIN regions ON regions.id = courts.region_id
		 WHERE courts.code NOT LIKE '%.msk'
		 ORDER BY courts.id ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: courts page")
	}
	defer rows.Close()

	var courts []model.Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan court")
		}
		courts = append(courts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: courts page iterate")
	}
	return courts, nil
}
