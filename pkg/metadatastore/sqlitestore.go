package metadatastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/modelsite/modelsite-go/pkg/metadatastore/migrations"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// timeLayout is fixed-width so that created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const busyRetries = 5

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore provides SQLite-based persistence for users and model history
type SQLiteStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewSQLiteStore opens the database at dbPath and brings its schema up to date
func NewSQLiteStore(ctx context.Context, dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection: every statement is a short self-contained
	// operation and concurrent callers queue for it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		db.Close()
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	store := &SQLiteStore{db: db, log: log}
	if err := NewMigrator(store, log).Up(ctx, migrations.AllUp); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Debug("Metadata store opened", zap.String("path", dbPath), zap.String("journal_mode", journalMode))
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Optimize refreshes query planner statistics and truncates the WAL
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	return nil
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY.
// This sits on top of the busy_timeout pragma.
func (s *SQLiteStore) retryOnBusy(ctx context.Context, operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}

		// Exponential backoff: 10ms, 20ms, 40ms, 80ms, 160ms
		backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
		s.log.Debug("Database busy, retrying", zap.Int("attempt", i+1), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return true
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// exec runs a single write statement with busy retries
func (s *SQLiteStore) exec(ctx context.Context, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var res sql.Result
	err = s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}, busyRetries)
	return res, err
}

// userVersion returns the schema version recorded in the database
func (s *SQLiteStore) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return 0, err
	}
	return version, nil
}

// execTrans runs a migration script inside a transaction
func (s *SQLiteStore) execTrans(ctx context.Context, script string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateUser inserts a new account. A taken username yields an EConflict error.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, password string) error {
	_, err := s.exec(ctx, sq.Insert("users").
		Columns("username", "password").
		Values(username, password))
	if err != nil {
		if isUniqueViolation(err) {
			return &models.Error{
				Code: models.EConflict,
				Msg:  fmt.Sprintf("username %q already exists", username),
				Op:   "CreateUser",
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// VerifyUser reports whether username and password match a stored account exactly
func (s *SQLiteStore) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("users").
		Where(sq.Eq{"username": username, "password": password}).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to verify user: %w", err)
	}
	return count > 0, nil
}

// DeleteUser removes an account and reports whether it existed
func (s *SQLiteStore) DeleteUser(ctx context.Context, username string) (bool, error) {
	res, err := s.exec(ctx, sq.Delete("users").Where(sq.Eq{"username": username}))
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ChangePassword replaces a user's password and reports whether the user exists
func (s *SQLiteStore) ChangePassword(ctx context.Context, username, newPassword string) (bool, error) {
	res, err := s.exec(ctx, sq.Update("users").
		Set("password", newPassword).
		Where(sq.Eq{"username": username}))
	if err != nil {
		return false, fmt.Errorf("failed to change password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// storedResult is a model_results row
type storedResult struct {
	ID           int64           `db:"id"`
	Username     string          `db:"username"`
	DatasetName  string          `db:"dataset_name"`
	ModelType    string          `db:"model_type"`
	TargetColumn string          `db:"target_column"`
	Metrics      string          `db:"metrics"`
	MetricValue  sql.NullFloat64 `db:"metric_value"`
	CreatedAt    string          `db:"created_at"`
}

func (r *storedResult) toEntry() (*models.HistoryEntry, error) {
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q for result %d: %w", r.CreatedAt, r.ID, err)
	}
	entry := &models.HistoryEntry{
		ID:           r.ID,
		Username:     r.Username,
		DatasetName:  r.DatasetName,
		ModelType:    r.ModelType,
		TargetColumn: r.TargetColumn,
		Metrics:      json.RawMessage(r.Metrics),
		CreatedAt:    created,
	}
	if r.MetricValue.Valid {
		v := r.MetricValue.Float64
		entry.Metric = &v
	}
	return entry, nil
}

// SaveModelResult inserts entry and sets its ID. A zero CreatedAt is set to now.
func (s *SQLiteStore) SaveModelResult(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	metrics := string(entry.Metrics)
	if metrics == "" {
		metrics = "{}"
	}
	var metricValue sql.NullFloat64
	if entry.Metric != nil {
		metricValue = sql.NullFloat64{Float64: *entry.Metric, Valid: true}
	}

	res, err := s.exec(ctx, sq.Insert("model_results").
		Columns("username", "dataset_name", "model_type", "target_column", "metrics", "metric_value", "created_at").
		Values(entry.Username, entry.DatasetName, entry.ModelType, entry.TargetColumn, metrics, metricValue,
			entry.CreatedAt.Format(timeLayout)))
	if err != nil {
		return fmt.Errorf("failed to save model result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read model result id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListModelResults returns a user's saved runs, newest first
func (s *SQLiteStore) ListModelResults(ctx context.Context, username string) ([]*models.HistoryEntry, error) {
	query, args, err := sq.Select("id", "username", "dataset_name", "model_type", "target_column",
		"metrics", "metric_value", "created_at").
		From("model_results").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []storedResult
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list model results: %w", err)
	}

	entries := make([]*models.HistoryEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearModelResults deletes every saved run of a user and returns how many were removed
func (s *SQLiteStore) ClearModelResults(ctx context.Context, username string) (int64, error) {
	res, err := s.exec(ctx, sq.Delete("model_results").Where(sq.Eq{"username": username}))
	if err != nil {
		return 0, fmt.Errorf("failed to clear model results: %w", err)
	}
	return res.RowsAffected()
}
