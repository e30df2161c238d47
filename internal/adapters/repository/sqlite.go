package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/stagegate/internal/domain/model"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	name TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	region TEXT NOT NULL,
	registered_at INTEGER NOT NULL,
	timer_started_at INTEGER,
	stages_unlocked INTEGER NOT NULL DEFAULT 0,
	stage_elapsed_json TEXT NOT NULL DEFAULT '{}',
	total_elapsed INTEGER NOT NULL DEFAULT 0,
	last_submitted_token TEXT NOT NULL DEFAULT '',
	final_submission_url TEXT,
	final_submitted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_teams_region ON teams(region);
CREATE INDEX IF NOT EXISTS idx_teams_progress ON teams(stages_unlocked DESC, total_elapsed ASC);

CREATE TABLE IF NOT EXISTS challenges (
	stage INTEGER PRIMARY KEY,
	kind TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL DEFAULT '[]',
	artifact TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS region_starts (
	region TEXT PRIMARY KEY,
	opens_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leaderboard (
	team_name TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	region TEXT NOT NULL,
	stages_unlocked INTEGER NOT NULL,
	total_elapsed INTEGER NOT NULL,
	global_rank INTEGER NOT NULL,
	regional_rank INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_global ON leaderboard(global_rank, team_name);
CREATE INDEX IF NOT EXISTS idx_leaderboard_region ON leaderboard(region, regional_rank, team_name);
`

const teamColumns = `name, id, password_hash, region, registered_at, timer_started_at,
	stages_unlocked, stage_elapsed_json, total_elapsed, last_submitted_token,
	final_submission_url, final_submitted_at`

// SQLiteStore persists everything in one SQLite database file.
//
// The pool is limited to a single connection, so transactions never
// interleave and UpdateTeam is a serialized read-modify-write.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and applies the
// schema. ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTeam(ctx context.Context, t model.Team) error {
	defer observeUpdate(time.Now())
	t.Normalize()
	args, err := teamArgs(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO teams (`+teamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("team %q: %w", t.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTeam(ctx context.Context, name string) (model.Team, error) {
	defer observeQuery(time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = ?`, name)
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, fmt.Errorf("team %q: %w", name, ErrNotFound)
	}
	return t, err
}

func (s *SQLiteStore) UpdateTeam(ctx context.Context, name string, fn func(*model.Team) error) (model.Team, error) {
	defer observeUpdate(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Team{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTeam(tx.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, fmt.Errorf("team %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.Team{}, err
	}
	if err := fn(&t); err != nil {
		return model.Team{}, err
	}
	t.Name = name
	t.Normalize()

	args, err := teamArgs(t)
	if err != nil {
		return model.Team{}, err
	}
	// args[0] is the name; it moves to the WHERE clause.
	_, err = tx.ExecContext(ctx, `UPDATE teams SET id = ?, password_hash = ?, region = ?,
		registered_at = ?, timer_started_at = ?, stages_unlocked = ?, stage_elapsed_json = ?,
		total_elapsed = ?, last_submitted_token = ?, final_submission_url = ?,
		final_submitted_at = ? WHERE name = ?`, append(args[1:], args[0])...)
	if err != nil {
		return model.Team{}, fmt.Errorf("update team: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Team{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTeams(ctx context.Context, region model.Region) ([]model.Team, error) {
	defer observeQuery(time.Now())
	q := `SELECT ` + teamColumns + ` FROM teams`
	var args []any
	if region != "" {
		q += ` WHERE region = ?`
		args = append(args, string(region))
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountTeams(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count teams: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetChallenge(ctx context.Context, stage int) (model.Challenge, error) {
	var (
		c       model.Challenge
		answers string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stage, kind, title, answers_json, artifact FROM challenges WHERE stage = ?`, stage).
		Scan(&c.Stage, &c.Kind, &c.Title, &answers, &c.Artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Challenge{}, fmt.Errorf("stage %d: %w", stage, ErrNotFound)
	}
	if err != nil {
		return model.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if err := json.Unmarshal([]byte(answers), &c.Answers); err != nil {
		return model.Challenge{}, fmt.Errorf("decode answers of stage %d: %w", stage, err)
	}
	return c, nil
}

func (s *SQLiteStore) PutChallenge(ctx context.Context, c model.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	answers := c.Answers
	if answers == nil {
		answers = []string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO challenges (stage, kind, title, answers_json, artifact)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stage) DO UPDATE SET kind = excluded.kind, title = excluded.title,
			answers_json = excluded.answers_json, artifact = excluded.artifact`,
		c.Stage, c.Kind, c.Title, string(raw), c.Artifact)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage FROM challenges ORDER BY stage`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	var stages []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		stages = append(stages, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Challenge, 0, len(stages))
	for _, n := range stages {
		c, err := s.GetChallenge(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) RegionSchedule(ctx context.Context) (model.RegionSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, opens_at FROM region_starts`)
	if err != nil {
		return nil, fmt.Errorf("region schedule: %w", err)
	}
	defer rows.Close()

	out := make(model.RegionSchedule)
	for rows.Next() {
		var (
			region string
			at     int64
		)
		if err := rows.Scan(&region, &at); err != nil {
			return nil, err
		}
		out[model.Region(region)] = time.Unix(0, at).UTC()
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutRegionStart(ctx context.Context, r model.Region, at time.Time) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidRegion, r)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO region_starts (region, opens_at) VALUES (?, ?)
		ON CONFLICT(region) DO UPDATE SET opens_at = excluded.opens_at`, string(r), at.UnixNano())
	if err != nil {
		return fmt.Errorf("put region start: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	defer observeUpdate(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leaderboard (team_name, team_id, region,
		stages_unlocked, total_elapsed, global_rank, regional_rank, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare leaderboard insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.TeamName, e.TeamID, string(e.Region), e.StagesUnlocked,
			int64(e.TotalElapsed), e.GlobalRank, e.RegionalRank, e.UpdatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert leaderboard row %q: %w", e.TeamName, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListLeaderboard(ctx context.Context, region model.Region, limit int) ([]model.LeaderboardEntry, error) {
	defer observeQuery(time.Now())
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString(`SELECT team_name, team_id, region, stages_unlocked, total_elapsed,
		global_rank, regional_rank, updated_at FROM leaderboard`)
	if region != "" {
		q.WriteString(` WHERE region = ? ORDER BY regional_rank, team_name`)
		args = append(args, string(region))
	} else {
		q.WriteString(` ORDER BY global_rank, team_name`)
	}
	if limit > 0 {
		q.WriteString(` LIMIT ` + strconv.Itoa(limit))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	var out []model.LeaderboardEntry
	for rows.Next() {
		var (
			e       model.LeaderboardEntry
			reg     string
			total   int64
			updated int64
		)
		if err := rows.Scan(&e.TeamName, &e.TeamID, &reg, &e.StagesUnlocked, &total,
			&e.GlobalRank, &e.RegionalRank, &updated); err != nil {
			return nil, err
		}
		e.Region = model.Region(reg)
		e.TotalElapsed = time.Duration(total)
		e.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTeam reads one teams row. Missing optional columns map to nil and
// the record is normalized, so rows written by older versions load cleanly.
func scanTeam(row scanner) (model.Team, error) {
	var (
		t          model.Team
		region     string
		registered int64
		timer      sql.NullInt64
		elapsed    string
		total      int64
		finalURL   sql.NullString
		finalAt    sql.NullInt64
	)
	if err := row.Scan(&t.Name, &t.ID, &t.PasswordHash, &region, &registered, &timer,
		&t.StagesUnlocked, &elapsed, &total, &t.LastSubmittedToken, &finalURL, &finalAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Team{}, err
		}
		return model.Team{}, fmt.Errorf("scan team: %w", err)
	}

	t.Region = model.Region(region)
	t.RegisteredAt = time.Unix(0, registered).UTC()
	if timer.Valid {
		v := time.Unix(0, timer.Int64).UTC()
		t.TimerStartedAt = &v
	}
	if finalURL.Valid {
		v := finalURL.String
		t.FinalSubmissionURL = &v
	}
	if finalAt.Valid {
		v := time.Unix(0, finalAt.Int64).UTC()
		t.FinalSubmittedAt = &v
	}

	var raw map[string]int64
	if elapsed != "" {
		if err := json.Unmarshal([]byte(elapsed), &raw); err != nil {
			return model.Team{}, fmt.Errorf("decode stage times of %q: %w", t.Name, err)
		}
	}
	t.StageElapsed = make(map[int]time.Duration, len(raw))
	for k, v := range raw {
		stage, err := strconv.Atoi(k)
		if err != nil {
			return model.Team{}, fmt.Errorf("decode stage times of %q: bad stage %q", t.Name, k)
		}
		t.StageElapsed[stage] = time.Duration(v)
	}
	t.TotalElapsed = time.Duration(total)
	t.Normalize()
	return t, nil
}

func teamArgs(t model.Team) ([]any, error) {
	raw := make(map[string]int64, len(t.StageElapsed))
	for stage, d := range t.StageElapsed {
		raw[strconv.Itoa(stage)] = int64(d)
	}
	elapsed, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode stage times: %w", err)
	}
	return []any{
		t.Name, t.ID, t.PasswordHash, string(t.Region), t.RegisteredAt.UnixNano(),
		nullTime(t.TimerStartedAt), t.StagesUnlocked, string(elapsed), int64(t.TotalElapsed),
		t.LastSubmittedToken, nullString(t.FinalSubmissionURL), nullTime(t.FinalSubmittedAt),
	}, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
