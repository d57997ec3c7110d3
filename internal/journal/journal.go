// Package journal records reconciled goal mutations in SQLite for the activity
// panel. It never stores the goal collection itself.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"goalplanner/internal/core"

	_ "modernc.org/sqlite"
)

// DefaultRecentLimit is how many entries the activity panel shows.
const DefaultRecentLimit = 10

// Entry is one journaled event.
type Entry struct {
	ID           int64
	At           time.Time
	Kind         core.EventKind
	GoalID       string
	GoalName     string
	Category     string
	Amount       *decimal.Decimal
	SavedAmount  decimal.Decimal
	TargetAmount decimal.Decimal
}

// Summary is a one-line description for display.
func (e Entry) Summary() string {
	name := e.GoalName
	if name == "" {
		name = e.GoalID
	}
	switch e.Kind {
	case core.EventCreated:
		return fmt.Sprintf("Created %q with target %s", name, core.FormatCurrency(e.TargetAmount))
	case core.EventUpdated:
		return fmt.Sprintf("Updated %q", name)
	case core.EventDeleted:
		return fmt.Sprintf("Deleted %q", name)
	case core.EventDeposit:
		amount := decimal.Zero
		if e.Amount != nil {
			amount = *e.Amount
		}
		return fmt.Sprintf("Deposited %s to %q (%s of %s)", core.FormatCurrency(amount), name,
			core.FormatCurrency(e.SavedAmount), core.FormatCurrency(e.TargetAmount))
	case core.EventCompleted:
		return fmt.Sprintf("Completed %q", name)
	default:
		return fmt.Sprintf("%s %q", e.Kind, name)
	}
}

type Journal struct {
	db *sql.DB
}

// Open creates the database file if needed and applies migrations.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record stores one event.
func (j *Journal) Record(ctx context.Context, ev core.GoalEvent) (int64, error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	var amount sql.NullString
	if ev.Kind == core.EventDeposit {
		amount = sql.NullString{String: ev.Amount.String(), Valid: true}
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO activity (occurred_at, kind, goal_id, goal_name, category, amount, saved_amount, target_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano),
		string(ev.Kind),
		ev.Goal.ID,
		ev.Goal.Name,
		ev.Goal.Category,
		amount,
		ev.Goal.SavedAmount.String(),
		ev.Goal.TargetAmount.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("activity id: %w", err)
	}

	slog.DebugContext(ctx, "Activity recorded",
		"component", "journal",
		"id", id,
		"event", string(ev.Kind),
		"goal_id", ev.Goal.ID)
	return id, nil
}

// ObserveGoalEvent implements core.EventObserver.
func (j *Journal) ObserveGoalEvent(ctx context.Context, ev core.GoalEvent) error {
	_, err := j.Record(ctx, ev)
	return err
}

const selectEntries = `
	SELECT id, occurred_at, kind, goal_id, goal_name, category, amount, saved_amount, target_amount
	FROM activity`

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return j.query(ctx, selectEntries+" ORDER BY id DESC LIMIT ?", limit)
}

// ForGoal returns every entry of one goal, oldest first.
func (j *Journal) ForGoal(ctx context.Context, goalID string) ([]Entry, error) {
	return j.query(ctx, selectEntries+" WHERE goal_id = ? ORDER BY id ASC", goalID)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                   Entry
		at, kind            string
		amount              sql.NullString
		savedRaw, targetRaw string
	)
	if err := rows.Scan(&e.ID, &at, &kind, &e.GoalID, &e.GoalName, &e.Category, &amount, &savedRaw, &targetRaw); err != nil {
		return Entry{}, fmt.Errorf("scan activity: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Entry{}, fmt.Errorf("parse activity time %q: %w", at, err)
	}
	e.At = t
	e.Kind = core.EventKind(kind)
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse activity amount %q: %w", amount.String, err)
		}
		e.Amount = &d
	}
	if e.SavedAmount, err = decimal.NewFromString(savedRaw); err != nil {
		return Entry{}, fmt.Errorf("parse saved amount %q: %w", savedRaw, err)
	}
	if e.TargetAmount, err = decimal.NewFromString(targetRaw); err != nil {
		return Entry{}, fmt.Errorf("parse target amount %q: %w", targetRaw, err)
	}
	return e, nil
}

// Interface conformance.
var _ core.EventObserver = (*Journal)(nil)
