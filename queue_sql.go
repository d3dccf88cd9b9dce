package credmine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL dialects supported by SQLQueue.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const sqlTaskTable = "mining_tasks"

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + sqlTaskTable + ` (
		queue        TEXT    NOT NULL,
		id           TEXT    NOT NULL,
		capture_json TEXT    NOT NULL,
		state_json   TEXT    NOT NULL,
		accepted     INTEGER NOT NULL DEFAULT 0,
		discarded    INTEGER NOT NULL DEFAULT 0,
		result_json  TEXT    NOT NULL DEFAULT '',
		version      BIGINT  NOT NULL DEFAULT 0,
		created_at   BIGINT  NOT NULL,
		updated_at   BIGINT  NOT NULL,
		PRIMARY KEY (queue, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mining_tasks_created ON ` + sqlTaskTable + ` (queue, created_at)`,
}

const sqlColumns = `id, capture_json, state_json, accepted, discarded, result_json, version, created_at, updated_at`

// SQLQueue stores tasks in a relational table. Each write is a single statement
// or transaction guarded by accepted = 0.
type SQLQueue struct {
	db      *sql.DB
	dialect string
	name    string
	codec   partitionCodec
	ownDB   bool
}

// OpenSQLQueue opens dsn with the driver for dialect and prepares the schema.
func OpenSQLQueue(ctx context.Context, dialect, dsn, name string) (*SQLQueue, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("%w: dialect %q", ErrUnsupportedDSN, dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// a single connection serializes writers and keeps transactions from hitting SQLITE_BUSY
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}
	q, err := NewSQLQueue(ctx, db, dialect, name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	q.ownDB = true
	return q, nil
}

// NewSQLQueue creates a queue on an existing handle and ensures the table exists.
func NewSQLQueue(ctx context.Context, db *sql.DB, dialect, name string) (*SQLQueue, error) {
	if name == "" {
		name = DefaultQueue
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	for _, stmt := range sqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &SQLQueue{db: db, dialect: dialect, name: name, codec: newPartitionCodec(nil)}, nil
}

// Name returns the queue name.
func (q *SQLQueue) Name() string { return q.name }

// Push implements FeedbackQueue.
func (q *SQLQueue) Push(ctx context.Context, t *Task) (*Task, error) {
	capture, err := q.codec.encodeCapture(t.Fields)
	if err != nil {
		return nil, err
	}
	state, err := q.codec.encodeState(stateOf(t))
	if err != nil {
		return nil, err
	}
	result, err := q.codec.encodeResult(t.Result)
	if err != nil {
		return nil, err
	}
	now := nowMillis()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, q.rebind(`INSERT INTO `+sqlTaskTable+`
		(queue, id, capture_json, state_json, accepted, discarded, result_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (queue, id) DO NOTHING`),
		q.name, t.ID, string(capture), string(state), sqlFlag(t.Accepted), sqlFlag(t.Discarded), string(result), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		res, err = tx.ExecContext(ctx, q.rebind(`UPDATE `+sqlTaskTable+`
			SET state_json = ?, accepted = ?, version = version + 1, updated_at = ?
			WHERE queue = ? AND id = ? AND accepted = 0`),
			string(state), sqlFlag(t.Accepted), now, q.name, t.ID)
		if err != nil {
			return nil, fmt.Errorf("update task state: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrTaskFinalized
		}
	}
	row := tx.QueryRowContext(ctx, q.rebind(`SELECT `+sqlColumns+` FROM `+sqlTaskTable+` WHERE queue = ? AND id = ?`), q.name, t.ID)
	out, err := q.scan(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Items implements FeedbackQueue.
func (q *SQLQueue) Items(ctx context.Context) ([]*Task, error) {
	return q.List(ctx, false)
}

// Amend implements FeedbackQueue.
func (q *SQLQueue) Amend(ctx context.Context, id string, f Fields) error {
	b, err := q.codec.encodeCapture(f)
	if err != nil {
		return err
	}
	return q.setColumn(ctx, id, "capture_json", string(b))
}

// Get implements Review.
func (q *SQLQueue) Get(ctx context.Context, id string) (*Task, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(`SELECT `+sqlColumns+` FROM `+sqlTaskTable+` WHERE queue = ? AND id = ?`), q.name, id)
	t, err := q.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// List implements Review.
func (q *SQLQueue) List(ctx context.Context, all bool) ([]*Task, error) {
	query := `SELECT ` + sqlColumns + ` FROM ` + sqlTaskTable + ` WHERE queue = ?`
	if !all {
		query += ` AND accepted = 0`
	}
	query += ` ORDER BY created_at, id`
	rows, err := q.db.QueryContext(ctx, q.rebind(query), q.name)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		t, err := q.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Discard implements Review.
func (q *SQLQueue) Discard(ctx context.Context, id string) error {
	return q.setColumn(ctx, id, "discarded", 1)
}

// Edit implements Review.
func (q *SQLQueue) Edit(ctx context.Context, id string, f Fields) error {
	b, err := q.codec.encodeResult(&f)
	if err != nil {
		return err
	}
	return q.setColumn(ctx, id, "result_json", string(b))
}

// Remove implements Review.
func (q *SQLQueue) Remove(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, q.rebind(`DELETE FROM `+sqlTaskTable+` WHERE queue = ? AND id = ?`), q.name, id)
	if err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Close closes the database when the queue opened it.
func (q *SQLQueue) Close() error {
	if q.ownDB {
		return q.db.Close()
	}
	return nil
}

// setColumn overwrites one partition column of a pending task.
func (q *SQLQueue) setColumn(ctx context.Context, id, column string, value any) error {
	res, err := q.db.ExecContext(ctx, q.rebind(`UPDATE `+sqlTaskTable+`
		SET `+column+` = ?, version = version + 1, updated_at = ?
		WHERE queue = ? AND id = ? AND accepted = 0`),
		value, nowMillis(), q.name, id)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var accepted int
	err = q.db.QueryRowContext(ctx, q.rebind(`SELECT accepted FROM `+sqlTaskTable+` WHERE queue = ? AND id = ?`), q.name, id).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}
	return ErrTaskFinalized
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (q *SQLQueue) scan(row rowScanner) (*Task, error) {
	var (
		r                      record
		capture, state, result string
		accepted, discarded    int
	)
	if err := row.Scan(&r.ID, &capture, &state, &accepted, &discarded, &result, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := q.codec.decode(&r, []byte(capture), []byte(state), []byte(result)); err != nil {
		return nil, err
	}
	r.Discarded = discarded != 0
	r.State.Accepted = accepted != 0
	return r.task(q.name), nil
}

// rebind converts ? placeholders to $n for postgres.
func (q *SQLQueue) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqlFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
