package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/ports"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

var postingColumns = []string{
	"id", "gradcafe_id", "school", "program", "degree", "decision",
	"date_added", "decision_date", "season", "status",
	"gpa", "gre_quant", "gre_verbal", "gre_aw",
	"comment", "scraped_at", "delivered",
}

// SQLiteRepository persists postings into an embedded SQLite file.
type SQLiteRepository struct {
	db *sql.DB

	// now is swappable so tests can pin insertion timestamps.
	now func() time.Time
}

var _ ports.PostingRepository = (*SQLiteRepository)(nil)

// Open creates (or opens) the SQLite file at path and runs schema
// migration. The connection pool is capped at one connection because
// SQLite allows a single writer.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS postings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gradcafe_id TEXT NOT NULL UNIQUE,
			school TEXT NOT NULL,
			program TEXT NOT NULL,
			degree TEXT,
			decision TEXT NOT NULL,
			date_added TEXT NOT NULL,
			decision_date TEXT,
			season TEXT,
			status TEXT,
			gpa REAL,
			gre_quant REAL,
			gre_verbal REAL,
			gre_aw REAL,
			comment TEXT,
			scraped_at TEXT NOT NULL,
			delivered BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_gradcafe_id ON postings(gradcafe_id)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_delivered ON postings(delivered)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_scraped_at ON postings(scraped_at)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_school ON postings(school)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_decision_date ON postings(decision_date)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}

	return r.ensureColumns()
}

// additiveColumns are columns introduced after the table first
// shipped; migration is additive only, never destructive.
var additiveColumns = map[string]string{
	"decision_date": "TEXT",
	"delivered":     "BOOLEAN NOT NULL DEFAULT 0",
}

func (r *SQLiteRepository) ensureColumns() error {
	rows, err := r.db.Query(`PRAGMA table_info(postings)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for name, ddl := range additiveColumns {
		if existing[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE postings ADD COLUMN %s %s", name, ddl)
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
	}

	return nil
}

// Exists checks the full table for a GradCafe id.
func (r *SQLiteRepository) Exists(ctx context.Context, gradcafeID string) (bool, error) {
	query, args, err := sq.Select("1").
		From("postings").
		Where(sq.Eq{"gradcafe_id": gradcafeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build exists query: %w", domain.ErrStorageFailed, err)
	}

	return r.scanExists(ctx, query, args)
}

// ExistsRecent restricts the existence check to postings scraped
// within the last windowDays.
func (r *SQLiteRepository) ExistsRecent(ctx context.Context, gradcafeID string, windowDays int) (bool, error) {
	query, args, err := sq.Select("1").
		From("postings").
		Where(sq.Eq{"gradcafe_id": gradcafeID}).
		Where(sq.Expr("scraped_at >= datetime('now', ?)", fmt.Sprintf("-%d days", windowDays))).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build exists query: %w", domain.ErrStorageFailed, err)
	}

	return r.scanExists(ctx, query, args)
}

func (r *SQLiteRepository) scanExists(ctx context.Context, query string, args []any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query exists: %w", domain.ErrStorageFailed, err)
	}
	return true, nil
}

// Insert adds a posting with the current scrape timestamp and an
// unset delivered flag. A duplicate gradcafe_id is a normal outcome
// reported as false, not an error.
func (r *SQLiteRepository) Insert(ctx context.Context, posting domain.Posting) (bool, error) {
	query, args, err := sq.Insert("postings").
		Columns("gradcafe_id", "school", "program", "degree", "decision",
			"date_added", "decision_date", "season", "status",
			"gpa", "gre_quant", "gre_verbal", "gre_aw",
			"comment", "scraped_at", "delivered").
		Values(posting.GradCafeID, posting.School, posting.Program, posting.Degree, posting.Decision,
			posting.DateAdded, formatDate(posting.DecisionDate), posting.Season, posting.Status,
			posting.GPA, posting.GREQuant, posting.GREVerbal, posting.GREAW,
			posting.Comment, r.now().UTC().Format(timestampLayout), false).
		Suffix("ON CONFLICT(gradcafe_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build insert: %w", domain.ErrStorageFailed, err)
	}

	var inserted bool
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		result, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		inserted = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: insert posting %s: %w", domain.ErrStorageFailed, posting.GradCafeID, err)
	}

	return inserted, nil
}

// Undelivered returns postings awaiting delivery whose decision date
// falls inside the lookback window, in insertion order so delivery
// stays chronological.
func (r *SQLiteRepository) Undelivered(ctx context.Context, lookbackDays int) ([]domain.Posting, error) {
	query, args, err := sq.Select(postingColumns...).
		From("postings").
		Where(sq.Eq{"delivered": false}).
		Where(sq.NotEq{"decision_date": nil}).
		Where(sq.Expr("decision_date >= date('now', ?)", fmt.Sprintf("-%d days", lookbackDays))).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build undelivered query: %w", domain.ErrStorageFailed, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query undelivered: %w", domain.ErrStorageFailed, err)
	}
	defer rows.Close()

	var postings []domain.Posting
	for rows.Next() {
		posting, scanErr := scanPosting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scan posting: %w", domain.ErrStorageFailed, scanErr)
		}
		postings = append(postings, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate undelivered: %w", domain.ErrStorageFailed, err)
	}

	return postings, nil
}

// MarkDelivered flips the delivered flag to true. The flag never
// reverts.
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, id int64) error {
	query, args, err := sq.Update("postings").
		Set("delivered", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build mark delivered: %w", domain.ErrStorageFailed, err)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("%w: mark delivered %d: %w", domain.ErrStorageFailed, id, err)
	}

	return nil
}

// aggregateTables maps each derived table to the degree values it
// projects.
var aggregateTables = []struct {
	name    string
	degrees []string
}{
	{name: "phd", degrees: domain.DoctoralDegrees},
	{name: "masters", degrees: domain.MastersDegrees},
}

// RefreshAggregates rebuilds the per-degree projection tables inside
// one transaction, so readers observe either the old tables or the
// new ones, never a partial rebuild.
func (r *SQLiteRepository) RefreshAggregates(ctx context.Context, cutoffYear int) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range aggregateTables {
			selectSQL, args, buildErr := sq.Select(
				"school", "program", "gpa", "gre_quant AS gre", "decision AS result").
				From("postings").
				Where(sq.Eq{"degree": table.degrees}).
				Where(sq.NotEq{"decision_date": nil}).
				Where(sq.Expr("CAST(strftime('%Y', decision_date) AS INTEGER) >= ?", cutoffYear)).
				ToSql()
			if buildErr != nil {
				return fmt.Errorf("build %s projection: %w", table.name, buildErr)
			}

			if _, execErr := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table.name)); execErr != nil {
				return fmt.Errorf("drop %s: %w", table.name, execErr)
			}

			create := fmt.Sprintf("CREATE TABLE %s AS %s", table.name, selectSQL)
			if _, execErr := tx.ExecContext(ctx, create, args...); execErr != nil {
				return fmt.Errorf("create %s: %w", table.name, execErr)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: refresh aggregates: %w", domain.ErrStorageFailed, err)
	}

	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func scanPosting(rows *sql.Rows) (domain.Posting, error) {
	var (
		posting      domain.Posting
		degree       sql.NullString
		decisionDate sql.NullString
		season       sql.NullString
		status       sql.NullString
		comment      sql.NullString
		gpa          sql.NullFloat64
		greQuant     sql.NullFloat64
		greVerbal    sql.NullFloat64
		greAW        sql.NullFloat64
		scrapedAt    string
	)

	err := rows.Scan(
		&posting.ID, &posting.GradCafeID, &posting.School, &posting.Program, &degree, &posting.Decision,
		&posting.DateAdded, &decisionDate, &season, &status,
		&gpa, &greQuant, &greVerbal, &greAW,
		&comment, &scrapedAt, &posting.Delivered,
	)
	if err != nil {
		return domain.Posting{}, err
	}

	posting.Degree = degree.String
	posting.Season = season.String
	posting.Status = status.String
	posting.Comment = comment.String
	posting.GPA = nullableFloat(gpa)
	posting.GREQuant = nullableFloat(greQuant)
	posting.GREVerbal = nullableFloat(greVerbal)
	posting.GREAW = nullableFloat(greAW)

	if decisionDate.Valid && decisionDate.String != "" {
		if parsed, parseErr := time.Parse(dateLayout, decisionDate.String); parseErr == nil {
			posting.DecisionDate = &parsed
		}
	}

	if scrapedAt != "" {
		if parsed, parseErr := time.Parse(timestampLayout, scrapedAt); parseErr == nil {
			posting.ScrapedAt = parsed
		}
	}

	return posting, nil
}

func formatDate(date *time.Time) any {
	if date == nil {
		return nil
	}
	return date.Format(dateLayout)
}

func nullableFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
