package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"frontdesk/internal/database"
	"frontdesk/internal/models"

	"github.com/google/uuid"
)

// Times are stored as unix nanoseconds so ordering and equality behave the same
// on MySQL and SQLite.
func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullableTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// textKey is the fixed-length lookup key stored next to a pattern or question.
func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// NewSQLStores builds the SQL-backed stores. SQL backends always support
// transactions.
func NewSQLStores(db *database.DB) Stores {
	base := sqlBase{db: db}
	return Stores{
		Knowledge:    &SQLKnowledgeStore{sqlBase: base},
		HelpRequests: &SQLHelpRequestStore{sqlBase: base},
		Tx:           &sqlTransactor{db: db},
	}
}

type sqlBase struct {
	db *database.DB
}

// conn returns the transaction carried by ctx, or the pool.
func (b sqlBase) conn(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return b.db.DB
}

type sqlTransactor struct {
	db *database.DB
}

func (t *sqlTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SQLKnowledgeStore implements KnowledgeStore on the knowledge table
type SQLKnowledgeStore struct {
	sqlBase
}

func (s *SQLKnowledgeStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count knowledge entries: %w", err)
	}
	return n, nil
}

func (s *SQLKnowledgeStore) InsertMany(ctx context.Context, entries []models.KnowledgeEntry) error {
	for _, e := range entries {
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO knowledge (question_pattern, pattern_key, answer, learned_at) VALUES (?, ?, ?, ?)`,
			e.QuestionPattern, textKey(e.QuestionPattern), e.Answer, toNanos(e.LearnedAt))
		if err != nil {
			return fmt.Errorf("failed to insert knowledge entry %q: %w", e.QuestionPattern, err)
		}
	}
	return nil
}

func (s *SQLKnowledgeStore) List(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.query(ctx, `SELECT id, question_pattern, answer, learned_at FROM knowledge ORDER BY id ASC`)
}

func (s *SQLKnowledgeStore) ListRecentlyLearned(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.query(ctx, `SELECT id, question_pattern, answer, learned_at FROM knowledge ORDER BY learned_at DESC, id DESC`)
}

func (s *SQLKnowledgeStore) query(ctx context.Context, q string, args ...interface{}) ([]models.KnowledgeEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	defer rows.Close()

	entries := []models.KnowledgeEntry{}
	for rows.Next() {
		var (
			id        int64
			e         models.KnowledgeEntry
			learnedAt int64
		)
		if err := rows.Scan(&id, &e.QuestionPattern, &e.Answer, &learnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.LearnedAt = fromNanos(learnedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge entries: %w", err)
	}
	return entries, nil
}

func (s *SQLKnowledgeStore) Get(ctx context.Context, pattern string) (*models.KnowledgeEntry, error) {
	var (
		id        int64
		e         models.KnowledgeEntry
		learnedAt int64
	)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, question_pattern, answer, learned_at FROM knowledge WHERE pattern_key = ?`,
		textKey(pattern)).Scan(&id, &e.QuestionPattern, &e.Answer, &learnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}
	e.ID = strconv.FormatInt(id, 10)
	e.LearnedAt = fromNanos(learnedAt)
	return &e, nil
}

func (s *SQLKnowledgeStore) Upsert(ctx context.Context, pattern, answer string, learnedAt time.Time) error {
	q := `INSERT INTO knowledge (question_pattern, pattern_key, answer, learned_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(pattern_key) DO UPDATE SET answer = excluded.answer, learned_at = excluded.learned_at`
	if s.db.Dialect == database.DialectMySQL {
		q = `INSERT INTO knowledge (question_pattern, pattern_key, answer, learned_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE answer = VALUES(answer), learned_at = VALUES(learned_at)`
	}

	if _, err := s.conn(ctx).ExecContext(ctx, q, pattern, textKey(pattern), answer, toNanos(learnedAt)); err != nil {
		return fmt.Errorf("failed to upsert knowledge entry: %w", err)
	}
	return nil
}

// SQLHelpRequestStore implements HelpRequestStore on the help_requests table
type SQLHelpRequestStore struct {
	sqlBase
}

const helpRequestColumns = `id, caller_id, question, normalized_question, status, supervisor_answer, created_at, resolved_at, knowledge_synced_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHelpRequest(row rowScanner) (*models.HelpRequest, error) {
	var (
		r          models.HelpRequest
		status     string
		answer     sql.NullString
		createdAt  int64
		resolvedAt sql.NullInt64
		syncedAt   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.CallerID, &r.Question, &r.NormalizedQuestion, &status,
		&answer, &createdAt, &resolvedAt, &syncedAt); err != nil {
		return nil, err
	}
	r.Status = models.HelpRequestStatus(status)
	r.SupervisorAnswer = answer.String
	r.CreatedAt = fromNanos(createdAt)
	r.ResolvedAt = nullableTime(resolvedAt)
	r.KnowledgeSyncedAt = nullableTime(syncedAt)
	return &r, nil
}

func (s *SQLHelpRequestStore) Create(ctx context.Context, req *models.HelpRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO help_requests (id, caller_id, question, normalized_question, question_key, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.CallerID, req.Question, req.NormalizedQuestion, textKey(req.NormalizedQuestion),
		string(req.Status), toNanos(req.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create help request: %w", err)
	}
	return nil
}

func (s *SQLHelpRequestStore) CreateUnlessPending(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+helpRequestColumns+` FROM help_requests
		WHERE caller_id = ? AND question_key = ? AND status = ?
		ORDER BY created_at DESC, seq DESC LIMIT 1`,
		req.CallerID, textKey(req.NormalizedQuestion), string(models.HelpRequestPending))
	existing, err := scanHelpRequest(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up pending help request: %w", err)
	}

	if err := s.Create(ctx, req); err != nil {
		return nil, false, err
	}
	return req, true, nil
}

func (s *SQLHelpRequestStore) Get(ctx context.Context, id string) (*models.HelpRequest, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+helpRequestColumns+` FROM help_requests WHERE id = ?`, id)
	r, err := scanHelpRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get help request: %w", err)
	}
	return r, nil
}

func (s *SQLHelpRequestStore) ListPending(ctx context.Context) ([]models.HelpRequest, error) {
	return s.query(ctx, `SELECT `+helpRequestColumns+` FROM help_requests
		WHERE status = ? ORDER BY created_at DESC, seq DESC`, string(models.HelpRequestPending))
}

func (s *SQLHelpRequestStore) ListAll(ctx context.Context) ([]models.HelpRequest, error) {
	return s.query(ctx, `SELECT `+helpRequestColumns+` FROM help_requests ORDER BY created_at DESC, seq DESC`)
}

func (s *SQLHelpRequestStore) ListUnsynced(ctx context.Context, limit int) ([]models.HelpRequest, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.query(ctx, `SELECT `+helpRequestColumns+` FROM help_requests
		WHERE status = ? AND knowledge_synced_at IS NULL
		ORDER BY resolved_at ASC, seq ASC LIMIT ?`, string(models.HelpRequestResolved), limit)
}

func (s *SQLHelpRequestStore) query(ctx context.Context, q string, args ...interface{}) ([]models.HelpRequest, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list help requests: %w", err)
	}
	defer rows.Close()

	requests := []models.HelpRequest{}
	for rows.Next() {
		r, err := scanHelpRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan help request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate help requests: %w", err)
	}
	return requests, nil
}

func (s *SQLHelpRequestStore) Resolve(ctx context.Context, id, answer string, resolvedAt time.Time) (*models.HelpRequest, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE help_requests SET status = ?, supervisor_answer = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		string(models.HelpRequestResolved), answer, toNanos(resolvedAt), id, string(models.HelpRequestPending))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve help request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve help request: %w", err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyResolved
	}
	return current, nil
}

func (s *SQLHelpRequestStore) MarkKnowledgeSynced(ctx context.Context, id string, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE help_requests SET knowledge_synced_at = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark help request synced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLHelpRequestStore) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM help_requests WHERE status = ? AND created_at < ?`,
		string(models.HelpRequestPending), toNanos(cutoff)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale help requests: %w", err)
	}
	return n, nil
}
