// pkg/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
)

// PostgresStore is the durable Store, keeping runs and row snapshots in
// a dedicated staging schema.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

const stagingSchema = "migration"

// NewPostgresStore connects, verifies the connection, and creates the
// staging schema and tables if needed.
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	logger = logger.Named("postgres-store")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if cfg.StatementTimeout > 0 {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds())); err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	s := &PostgresStore{db: db, logger: logger, cfg: cfg}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", stagingSchema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.stage_runs (
				id               uuid PRIMARY KEY,
				table_id         text NOT NULL,
				stage            text NOT NULL,
				state            text NOT NULL,
				chunk_size       integer NOT NULL,
				committed_chunks integer NOT NULL DEFAULT 0,
				rows_in          bigint NOT NULL DEFAULT 0,
				rows_out         bigint NOT NULL DEFAULT 0,
				rows_accepted    bigint NOT NULL DEFAULT 0,
				rows_rejected    bigint NOT NULL DEFAULT 0,
				rejection_counts jsonb NOT NULL DEFAULT '{}',
				profiles         jsonb,
				started_at       timestamptz,
				finished_at      timestamptz,
				error            text NOT NULL DEFAULT '',
				seq              bigserial
			)`, stagingSchema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.stage_rows (
				table_id   text NOT NULL,
				stage      text NOT NULL,
				ordinal    bigint NOT NULL,
				legacy_key text NOT NULL,
				raw        jsonb,
				values_    jsonb,
				originals  jsonb,
				dirty      boolean NOT NULL DEFAULT false,
				rejection  jsonb,
				PRIMARY KEY (table_id, stage, ordinal)
			)`, stagingSchema),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS stage_rows_rejected_idx
			ON %s.stage_rows (table_id, stage)
			WHERE rejection IS NOT NULL`, stagingSchema),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare staging schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveStageRun(ctx context.Context, run *model.StageRun) error {
	return s.saveStageRun(ctx, s.db, run)
}

// execer covers both *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *PostgresStore) saveStageRun(ctx context.Context, ex execer, run *model.StageRun) error {
	rejections, err := json.Marshal(run.RejectionCounts)
	if err != nil {
		return fmt.Errorf("failed to encode rejection counts: %w", err)
	}
	var profiles []byte
	if run.Profiles != nil {
		if profiles, err = json.Marshal(run.Profiles); err != nil {
			return fmt.Errorf("failed to encode column profiles: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.stage_runs (
			id, table_id, stage, state, chunk_size, committed_chunks,
			rows_in, rows_out, rows_accepted, rows_rejected,
			rejection_counts, profiles, started_at, finished_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			state            = EXCLUDED.state,
			committed_chunks = EXCLUDED.committed_chunks,
			rows_in          = EXCLUDED.rows_in,
			rows_out         = EXCLUDED.rows_out,
			rows_accepted    = EXCLUDED.rows_accepted,
			rows_rejected    = EXCLUDED.rows_rejected,
			rejection_counts = EXCLUDED.rejection_counts,
			profiles         = EXCLUDED.profiles,
			started_at       = EXCLUDED.started_at,
			finished_at      = EXCLUDED.finished_at,
			error            = EXCLUDED.error`, stagingSchema)

	_, err = ex.ExecContext(ctx, query,
		run.ID, run.TableID, string(run.Stage), string(run.State),
		run.ChunkSize, run.CommittedChunks,
		run.RowsIn, run.RowsOut, run.RowsAccepted, run.RowsRejected,
		rejections, nullableJSON(profiles),
		nullableTime(run.StartedAt), nullableTime(run.FinishedAt), run.Err)
	if err != nil {
		return fmt.Errorf("failed to save stage run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) LatestStageRun(ctx context.Context, tableID string, stage model.StageKind) (*model.StageRun, error) {
	query := fmt.Sprintf(`
		SELECT id, table_id, stage, state, chunk_size, committed_chunks,
		       rows_in, rows_out, rows_accepted, rows_rejected,
		       rejection_counts, profiles, started_at, finished_at, error
		FROM %s.stage_runs
		WHERE table_id = $1 AND stage = $2
		ORDER BY seq DESC
		LIMIT 1`, stagingSchema)

	var rec stageRunRecord
	if err := s.db.GetContext(ctx, &rec, query, tableID, string(stage)); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load stage run for %s/%s: %w", tableID, stage, err)
	}
	return rec.toModel()
}

func (s *PostgresStore) CommitChunk(ctx context.Context, run *model.StageRun, rows []*model.Row) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if len(rows) > 0 {
		if err := s.insertRows(ctx, tx, run.TableID, run.Stage, rows); err != nil {
			return err
		}
	}
	if err := s.saveStageRun(ctx, tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk for %s: %w", run, err)
	}
	return nil
}

func (s *PostgresStore) insertRows(ctx context.Context, tx *sqlx.Tx, tableID string, stage model.StageKind, rows []*model.Row) error {
	const cols = 9
	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*cols)

	for i, row := range rows {
		raw, err := json.Marshal(row.Raw)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", row.Ordinal, err)
		}
		values, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", row.Ordinal, err)
		}
		originals, err := json.Marshal(row.Originals)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", row.Ordinal, err)
		}
		var rejection []byte
		if row.Rejection != nil {
			if rejection, err = json.Marshal(row.Rejection); err != nil {
				return fmt.Errorf("failed to encode row %d: %w", row.Ordinal, err)
			}
		}

		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, tableID, string(stage), row.Ordinal, row.LegacyKey,
			raw, values, originals, row.Dirty, nullableJSON(rejection))
	}

	// Re-running a chunk after a crash between commit and progress read
	// overwrites the identical snapshots rather than failing.
	query := fmt.Sprintf(`
		INSERT INTO %s.stage_rows (
			table_id, stage, ordinal, legacy_key, raw, values_, originals, dirty, rejection
		) VALUES %s
		ON CONFLICT (table_id, stage, ordinal) DO UPDATE SET
			legacy_key = EXCLUDED.legacy_key,
			raw        = EXCLUDED.raw,
			values_    = EXCLUDED.values_,
			originals  = EXCLUDED.originals,
			dirty      = EXCLUDED.dirty,
			rejection  = EXCLUDED.rejection`,
		stagingSchema, strings.Join(placeholders, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d row snapshots for %s/%s: %w", len(rows), tableID, stage, err)
	}
	return nil
}

func (s *PostgresStore) LoadChunk(ctx context.Context, tableID string, stage model.StageKind, offset, limit int64) ([]*model.Row, error) {
	query := fmt.Sprintf(`
		SELECT ordinal, legacy_key, raw, values_, originals, dirty, rejection
		FROM %s.stage_rows
		WHERE table_id = $1 AND stage = $2
		ORDER BY ordinal
		OFFSET $3 LIMIT $4`, stagingSchema)

	var recs []stageRowRecord
	if err := s.db.SelectContext(ctx, &recs, query, tableID, string(stage), offset, limit); err != nil {
		return nil, fmt.Errorf("failed to load chunk for %s/%s at offset %d: %w", tableID, stage, offset, err)
	}

	rows := make([]*model.Row, 0, len(recs))
	for _, rec := range recs {
		row, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *PostgresStore) CountRows(ctx context.Context, tableID string, stage model.StageKind) (int64, error) {
	query := fmt.Sprintf(
		"SELECT count(*) FROM %s.stage_rows WHERE table_id = $1 AND stage = $2", stagingSchema)
	var n int64
	if err := s.db.GetContext(ctx, &n, query, tableID, string(stage)); err != nil {
		return 0, fmt.Errorf("failed to count rows for %s/%s: %w", tableID, stage, err)
	}
	return n, nil
}

func (s *PostgresStore) Rejections(ctx context.Context, tableID string) ([]model.RejectedRow, error) {
	query := fmt.Sprintf(`
		SELECT ordinal, legacy_key, raw, values_, originals, dirty, rejection
		FROM %s.stage_rows
		WHERE table_id = $1 AND stage = $2 AND rejection IS NOT NULL
		ORDER BY ordinal`, stagingSchema)

	var recs []stageRowRecord
	if err := s.db.SelectContext(ctx, &recs, query, tableID, string(model.StageValidate)); err != nil {
		return nil, fmt.Errorf("failed to load rejections for %s: %w", tableID, err)
	}

	out := make([]model.RejectedRow, 0, len(recs))
	for _, rec := range recs {
		row, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, model.RejectedRow{
			TableID:   tableID,
			Stage:     model.StageValidate,
			Ordinal:   row.Ordinal,
			LegacyKey: row.LegacyKey,
			Category:  row.Rejection.Category,
			Rule:      row.Rejection.Rule,
			Reason:    row.Rejection.Reason,
			Snapshot:  row.Values,
		})
	}
	return out, nil
}

func (s *PostgresStore) TransformedRows(ctx context.Context, tableID string, fn func(*model.Row) error) error {
	query := fmt.Sprintf(`
		SELECT ordinal, legacy_key, raw, values_, originals, dirty, rejection
		FROM %s.stage_rows
		WHERE table_id = $1 AND stage = $2 AND rejection IS NULL
		ORDER BY ordinal`, stagingSchema)

	rows, err := s.db.QueryxContext(ctx, query, tableID, string(model.StageTransform))
	if err != nil {
		return fmt.Errorf("failed to stream transformed rows for %s: %w", tableID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec stageRowRecord
		if err := rows.StructScan(&rec); err != nil {
			return fmt.Errorf("failed to scan transformed row for %s: %w", tableID, err)
		}
		row, err := rec.toModel()
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) Close() error {
	s.logger.Info("Closing PostgreSQL connection")
	return s.db.Close()
}

// stageRunRecord is the sqlx scan target for stage_runs.
type stageRunRecord struct {
	ID              string         `db:"id"`
	TableID         string         `db:"table_id"`
	Stage           string         `db:"stage"`
	State           string         `db:"state"`
	ChunkSize       int            `db:"chunk_size"`
	CommittedChunks int            `db:"committed_chunks"`
	RowsIn          int64          `db:"rows_in"`
	RowsOut         int64          `db:"rows_out"`
	RowsAccepted    int64          `db:"rows_accepted"`
	RowsRejected    int64          `db:"rows_rejected"`
	Rejections      []byte         `db:"rejection_counts"`
	Profiles        []byte         `db:"profiles"`
	StartedAt       sql.NullTime   `db:"started_at"`
	FinishedAt      sql.NullTime   `db:"finished_at"`
	Err             sql.NullString `db:"error"`
}

func (rec *stageRunRecord) toModel() (*model.StageRun, error) {
	run := &model.StageRun{
		ID:              rec.ID,
		TableID:         rec.TableID,
		Stage:           model.StageKind(rec.Stage),
		State:           model.RunState(rec.State),
		ChunkSize:       rec.ChunkSize,
		CommittedChunks: rec.CommittedChunks,
		RowsIn:          rec.RowsIn,
		RowsOut:         rec.RowsOut,
		RowsAccepted:    rec.RowsAccepted,
		RowsRejected:    rec.RowsRejected,
		RejectionCounts: make(map[model.RejectionCategory]int64),
		Err:             rec.Err.String,
	}
	if len(rec.Rejections) > 0 {
		if err := json.Unmarshal(rec.Rejections, &run.RejectionCounts); err != nil {
			return nil, fmt.Errorf("failed to decode rejection counts for run %s: %w", rec.ID, err)
		}
	}
	if len(rec.Profiles) > 0 {
		if err := json.Unmarshal(rec.Profiles, &run.Profiles); err != nil {
			return nil, fmt.Errorf("failed to decode column profiles for run %s: %w", rec.ID, err)
		}
	}
	if rec.StartedAt.Valid {
		run.StartedAt = rec.StartedAt.Time
	}
	if rec.FinishedAt.Valid {
		run.FinishedAt = rec.FinishedAt.Time
	}
	return run, nil
}

// stageRowRecord is the sqlx scan target for stage_rows.
type stageRowRecord struct {
	Ordinal   int64  `db:"ordinal"`
	LegacyKey string `db:"legacy_key"`
	Raw       []byte `db:"raw"`
	Values    []byte `db:"values_"`
	Originals []byte `db:"originals"`
	Dirty     bool   `db:"dirty"`
	Rejection []byte `db:"rejection"`
}

func (rec *stageRowRecord) toModel() (*model.Row, error) {
	row := &model.Row{
		Ordinal:   rec.Ordinal,
		LegacyKey: rec.LegacyKey,
		Dirty:     rec.Dirty,
	}
	decode := func(data []byte, target interface{}) error {
		if len(data) == 0 || string(data) == "null" {
			return nil
		}
		return json.Unmarshal(data, target)
	}
	if err := decode(rec.Raw, &row.Raw); err != nil {
		return nil, fmt.Errorf("failed to decode row %d: %w", rec.Ordinal, err)
	}
	if err := decode(rec.Values, &row.Values); err != nil {
		return nil, fmt.Errorf("failed to decode row %d: %w", rec.Ordinal, err)
	}
	if err := decode(rec.Originals, &row.Originals); err != nil {
		return nil, fmt.Errorf("failed to decode row %d: %w", rec.Ordinal, err)
	}
	if err := decode(rec.Rejection, &row.Rejection); err != nil {
		return nil, fmt.Errorf("failed to decode row %d: %w", rec.Ordinal, err)
	}
	return row, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
