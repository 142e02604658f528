package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/ashureev/goalmap/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	maxRetries int
	baseDelay  time.Duration
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers, foreign keys for cascading deletes, and
	// immediate write transactions so writers queue on busy_timeout instead
	// of failing on lock upgrade.
	dsn := dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, maxRetries: 3, baseDelay: 50 * time.Millisecond}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS roadmaps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_roadmaps_owner ON roadmaps(owner_id);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		roadmap_id INTEGER NOT NULL REFERENCES roadmaps(id) ON DELETE CASCADE,
		parent_id INTEGER REFERENCES steps(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'green'
			CHECK (difficulty IN ('green', 'yellow', 'red', 'purple')),
		is_done INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_steps_top_level ON steps(roadmap_id, position) WHERE parent_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_steps_parent ON steps(parent_id, position);
	CREATE INDEX IF NOT EXISTS idx_steps_roadmap ON steps(roadmap_id);

	CREATE TRIGGER IF NOT EXISTS trg_steps_parent_roadmap
	BEFORE INSERT ON steps
	WHEN NEW.parent_id IS NOT NULL
		AND NEW.roadmap_id IS NOT (SELECT roadmap_id FROM steps WHERE id = NEW.parent_id)
	BEGIN
		SELECT RAISE(ABORT, 'step roadmap does not match parent roadmap');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_steps_placement_immutable
	BEFORE UPDATE OF roadmap_id, parent_id ON steps
	BEGIN
		SELECT RAISE(ABORT, 'step placement is immutable');
	END;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUserByExternalID retrieves a user by the identifier issued outside this system.
func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE external_id = ?`, externalID)

	var user domain.User
	var createdAt int64
	err := row.Scan(&user.ID, &user.ExternalID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "user", ID: externalID}
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// GetUserByID retrieves a user by internal ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE id = ?`, id)

	var user domain.User
	var createdAt int64
	err := row.Scan(&user.ID, &user.ExternalID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// GetOrCreateUser returns the user for externalID, inserting it if needed.
// A racing insert from another connection surfaces as a uniqueness conflict
// and is resolved by reading the row the other writer created.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, externalID string) (*domain.User, error) {
	user, err := s.GetUserByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	err = s.withRetry(ctx, "insert user", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (external_id, created_at) VALUES (?, ?)
			ON CONFLICT(external_id) DO NOTHING`,
			externalID, time.Now().Unix())
		return err
	})
	if err != nil {
		if !shared.IsSQLiteUniqueError(err) {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		slog.Debug("User created concurrently, re-reading", "external_id", externalID)
	}

	return s.GetUserByExternalID(ctx, externalID)
}

// CreateRoadmap stores a roadmap and its top-level steps atomically.
func (s *SQLiteStore) CreateRoadmap(ctx context.Context, ownerID int64, title string, drafts []domain.StepDraft) (*domain.Roadmap, error) {
	var roadmap *domain.Roadmap
	err := s.withRetry(ctx, "create roadmap", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			now := time.Now()
			res, err := tx.ExecContext(ctx,
				`INSERT INTO roadmaps (owner_id, title, created_at) VALUES (?, ?, ?)`,
				ownerID, title, now.Unix())
			if err != nil {
				if shared.IsSQLiteForeignKeyError(err) {
					return domain.NewNotFound("user", ownerID)
				}
				return fmt.Errorf("insert roadmap: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("roadmap id: %w", err)
			}

			steps, err := insertSteps(ctx, tx, id, nil, 0, drafts, now)
			if err != nil {
				return err
			}

			roadmap = &domain.Roadmap{
				ID:        id,
				Title:     title,
				OwnerID:   ownerID,
				CreatedAt: time.Unix(now.Unix(), 0),
				Steps:     steps,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return roadmap, nil
}

// ListRoadmaps returns the owner's roadmaps in creation order, each with its
// forest assembled from a single steps query.
func (s *SQLiteStore) ListRoadmaps(ctx context.Context, ownerID int64) ([]*domain.Roadmap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, created_at FROM roadmaps WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", err)
	}

	var roadmaps []*domain.Roadmap
	byID := make(map[int64]*domain.Roadmap)
	for rows.Next() {
		rm, err := scanRoadmap(rows)
		if err != nil {
			closeRows(rows)
			return nil, err
		}
		roadmaps = append(roadmaps, rm)
		byID[rm.ID] = rm
	}
	if err := rows.Err(); err != nil {
		closeRows(rows)
		return nil, fmt.Errorf("iterate roadmaps: %w", err)
	}
	closeRows(rows)

	if len(roadmaps) == 0 {
		return nil, nil
	}

	steps, err := s.queryStepList(ctx, `
		SELECT `+stepColumns+` FROM steps
		WHERE roadmap_id IN (SELECT id FROM roadmaps WHERE owner_id = ?)
		ORDER BY roadmap_id, position, id`, ownerID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64][]*domain.Step)
	for _, st := range steps {
		grouped[st.RoadmapID] = append(grouped[st.RoadmapID], st)
	}
	for id, rm := range byID {
		rm.Steps = assembleForest(grouped[id])
	}
	return roadmaps, nil
}

// GetRoadmap retrieves a roadmap with its forest assembled in memory.
func (s *SQLiteStore) GetRoadmap(ctx context.Context, id int64) (*domain.Roadmap, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, created_at FROM roadmaps WHERE id = ?`, id)
	rm, err := scanRoadmap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("roadmap", id)
	}
	if err != nil {
		return nil, err
	}

	steps, err := s.queryStepList(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE roadmap_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	rm.Steps = assembleForest(steps)
	return rm, nil
}

// GetStep retrieves a single step.
func (s *SQLiteStore) GetStep(ctx context.Context, id int64) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("step", id)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// StepDepth walks the parent chain with a recursive CTE. The walk is capped
// so a corrupted cycle cannot loop forever.
func (s *SQLiteStore) StepDepth(ctx context.Context, id int64) (int, error) {
	query := `
	WITH RECURSIVE ancestry(id, parent_id, depth) AS (
		SELECT id, parent_id, 1 FROM steps WHERE id = ?
		UNION ALL
		SELECT s.id, s.parent_id, a.depth + 1
		FROM steps s
		JOIN ancestry a ON s.id = a.parent_id
		WHERE a.depth < ?
	)
	SELECT MAX(depth) FROM ancestry`

	var depth sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, id, maxAncestryWalk).Scan(&depth); err != nil {
		return 0, fmt.Errorf("query step depth: %w", err)
	}
	if !depth.Valid {
		return 0, domain.NewNotFound("step", id)
	}
	return int(depth.Int64), nil
}

const maxAncestryWalk = 1024

// AddChildren inserts new children under parentID. The parent is re-read
// inside the transaction so a concurrent roadmap delete either happens
// entirely before (NotFound) or after (children are cascaded with it).
func (s *SQLiteStore) AddChildren(ctx context.Context, parentID int64, drafts []domain.StepDraft) ([]*domain.Step, error) {
	var children []*domain.Step
	err := s.withRetry(ctx, "add children", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var roadmapID int64
			err := tx.QueryRowContext(ctx, `SELECT roadmap_id FROM steps WHERE id = ?`, parentID).Scan(&roadmapID)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFound("step", parentID)
			}
			if err != nil {
				return fmt.Errorf("read parent step: %w", err)
			}

			var next int
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(position) + 1, 0) FROM steps WHERE parent_id = ?`, parentID).Scan(&next); err != nil {
				return fmt.Errorf("read sibling positions: %w", err)
			}

			pid := parentID
			children, err = insertSteps(ctx, tx, roadmapID, &pid, next, drafts, time.Now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// ToggleStep flips is_done in a single statement so concurrent toggles never
// observe a torn write.
func (s *SQLiteStore) ToggleStep(ctx context.Context, id int64) (*domain.Step, error) {
	var step *domain.Step
	err := s.withRetry(ctx, "toggle step", func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE steps SET is_done = NOT is_done WHERE id = ? RETURNING `+stepColumns, id)
		st, err := scanStep(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("step", id)
		}
		if err != nil {
			return err
		}
		step = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// DeleteRoadmap removes a roadmap; its steps go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteRoadmap(ctx context.Context, id int64) error {
	return s.withRetry(ctx, "delete roadmap", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM roadmaps WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete roadmap: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 0 {
			return domain.NewNotFound("roadmap", id)
		}
		return nil
	})
}

func insertSteps(ctx context.Context, tx *sql.Tx, roadmapID int64, parentID *int64, firstPosition int, drafts []domain.StepDraft, now time.Time) ([]*domain.Step, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (roadmap_id, parent_id, position, title, description, difficulty, is_done, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare step insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			slog.Warn("failed to close step insert statement", "error", closeErr)
		}
	}()

	var parent interface{}
	if parentID != nil {
		parent = *parentID
	}

	steps := make([]*domain.Step, 0, len(drafts))
	for i, d := range drafts {
		pos := firstPosition + i
		res, err := stmt.ExecContext(ctx, roadmapID, parent, pos, d.Title, d.Description, string(d.Difficulty), now.Unix())
		if err != nil {
			if parentID != nil && shared.IsSQLiteForeignKeyError(err) {
				return nil, domain.NewNotFound("step", *parentID)
			}
			return nil, fmt.Errorf("insert step: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("step id: %w", err)
		}
		steps = append(steps, &domain.Step{
			ID:          id,
			RoadmapID:   roadmapID,
			ParentID:    parentID,
			Position:    pos,
			Title:       d.Title,
			Description: d.Description,
			Difficulty:  d.Difficulty,
			CreatedAt:   time.Unix(now.Unix(), 0),
			Children:    []*domain.Step{},
		})
	}
	return steps, nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withRetry retries fn with exponential backoff while it fails with
// SQLITE_BUSY or "database is locked".
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == s.maxRetries-1 {
			break
		}

		delay := s.baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
		slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, s.maxRetries, err)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "error", err)
	}
}
