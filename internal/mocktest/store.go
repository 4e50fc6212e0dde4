package mocktest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prepforge/mocktest-engine/internal/db"
)

// ErrNotFound reports a missing aggregate (mock test or tab).
var ErrNotFound = errors.New("not found")

// SQLStore persists mock tests, tabs, rules and link records over plain
// database/sql. Read and tx-scoped methods take a db.DBTX so the generator
// can run them inside its transaction.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(dbh *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: dbh, driver: driver}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// LockMockTest takes the pessimistic write lock on the aggregate row, so a
// second generation run on the same mock test blocks until the first commits.
// On postgres this is SELECT ... FOR UPDATE. On sqlite a plain SELECT inside
// a deferred transaction acquires nothing, so the lock is a self-assignment
// UPDATE: the first write statement of the transaction, which takes the
// write lock immediately. A vanished row is one of the few hard failures the
// engine raises.
func (s *SQLStore) LockMockTest(ctx context.Context, tx *sql.Tx, id string) error {
	if s.driver == "postgres" {
		var got string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM mock_tests WHERE id=$1 FOR UPDATE`, id).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mock test %s: %w", id, ErrNotFound)
		}
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE mock_tests SET updated_at=updated_at WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mock test %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) CreateMockTest(ctx context.Context, m *MockTest) error {
	now := time.Now().Unix()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mock_tests (id,title,total_questions,total_marks,config_json,created_at,updated_at)
		 VALUES ($1,$2,0,0,'',$3,$4)`,
		m.ID, m.Title, m.CreatedAt, m.UpdatedAt)
	return err
}

func (s *SQLStore) CreateTab(ctx context.Context, t *Tab) error {
	if t.SelectionMode == "" {
		t.SelectionMode = ModeAuto
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mock_test_tabs (id,mock_test_id,name,selection_mode,total_questions,time_limit_minutes,ord)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.MockTestID, t.Name, t.SelectionMode, t.TotalQuestions, t.TimeLimitMinutes, t.Order)
	return err
}

func (s *SQLStore) CreateRule(ctx context.Context, r *Rule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO distribution_rules
		   (id,tab_id,pool,subject,chapter,sub_chapter,section,question_type,difficulty,cnt,percentage,selected_json)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'[]')`,
		r.ID, r.TabID, r.Pool, r.Subject, r.Chapter, r.SubChapter, r.Section,
		r.QuestionType, r.Difficulty, nullInt(r.Count), nullFloat(r.Percentage))
	return err
}

// AddManualQuestion links a hand-picked record to a tab. The link carries
// added_manually=true and is invisible to the generator's delete pass. A
// record already linked to the same tab is rejected. Check, order assignment
// and insert run in one transaction; a unique index on (tab_id, pool,
// question_id) backs the invariant against concurrent adds.
func (s *SQLStore) AddManualQuestion(ctx context.Context, l *Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM mock_test_questions WHERE tab_id=$1 AND pool=$2 AND question_id=$3`,
		l.TabID, l.Pool, l.QuestionID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("question %s/%d already linked to tab %s", l.Pool, l.QuestionID, l.TabID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if l.Order == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ord),0)+1 FROM mock_test_questions WHERE tab_id=$1`,
			l.TabID).Scan(&l.Order); err != nil {
			return err
		}
	}
	l.AddedManually = true
	if err := s.InsertLink(ctx, tx, *l); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) GetMockTest(ctx context.Context, q db.DBTX, id string) (MockTest, error) {
	var m MockTest
	err := q.QueryRowContext(ctx,
		`SELECT id,title,total_questions,total_marks,config_json,created_at,updated_at
		 FROM mock_tests WHERE id=$1`, id).
		Scan(&m.ID, &m.Title, &m.TotalQuestions, &m.TotalMarks, &m.ConfigJSON, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MockTest{}, fmt.Errorf("mock test %s: %w", id, ErrNotFound)
		}
		return MockTest{}, err
	}
	m.Tabs, err = s.tabs(ctx, q, id)
	return m, err
}

func (s *SQLStore) GetTab(ctx context.Context, q db.DBTX, id string) (Tab, error) {
	var t Tab
	err := q.QueryRowContext(ctx,
		`SELECT id,mock_test_id,name,selection_mode,total_questions,time_limit_minutes,ord
		 FROM mock_test_tabs WHERE id=$1`, id).
		Scan(&t.ID, &t.MockTestID, &t.Name, &t.SelectionMode, &t.TotalQuestions, &t.TimeLimitMinutes, &t.Order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tab{}, fmt.Errorf("tab %s: %w", id, ErrNotFound)
		}
		return Tab{}, err
	}
	t.Rules, err = s.rules(ctx, q, t.ID)
	return t, err
}

func (s *SQLStore) tabs(ctx context.Context, q db.DBTX, mockID string) ([]Tab, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,mock_test_id,name,selection_mode,total_questions,time_limit_minutes,ord
		 FROM mock_test_tabs WHERE mock_test_id=$1 ORDER BY ord`, mockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tab
	for rows.Next() {
		var t Tab
		if err := rows.Scan(&t.ID, &t.MockTestID, &t.Name, &t.SelectionMode,
			&t.TotalQuestions, &t.TimeLimitMinutes, &t.Order); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Rules, err = s.rules(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) rules(ctx context.Context, q db.DBTX, tabID string) ([]Rule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id,tab_id,pool,subject,chapter,sub_chapter,section,question_type,difficulty,cnt,percentage,selected_json
		 FROM distribution_rules WHERE tab_id=$1 ORDER BY id`, tabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var r Rule
		var cnt sql.NullInt64
		var pct sql.NullFloat64
		var selected string
		if err := rows.Scan(&r.ID, &r.TabID, &r.Pool, &r.Subject, &r.Chapter, &r.SubChapter,
			&r.Section, &r.QuestionType, &r.Difficulty, &cnt, &pct, &selected); err != nil {
			return nil, err
		}
		if cnt.Valid {
			n := int(cnt.Int64)
			r.Count = &n
		}
		if pct.Valid {
			p := pct.Float64
			r.Percentage = &p
		}
		if selected != "" {
			if err := json.Unmarshal([]byte(selected), &r.SelectedIDs); err != nil {
				r.SelectedIDs = nil
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Links returns every link record of a mock test, ordered by tab order then
// link order, which is the order the snapshot presents them in.
func (s *SQLStore) Links(ctx context.Context, q db.DBTX, mockID string) ([]Question, error) {
	return s.scanLinks(q.QueryContext(ctx,
		`SELECT l.id,l.mock_test_id,l.tab_id,l.pool,l.question_id,l.marks,l.negative_marks,l.ord,l.added_manually
		 FROM mock_test_questions l
		 JOIN mock_test_tabs t ON l.tab_id = t.id
		 WHERE l.mock_test_id=$1 ORDER BY t.ord, l.ord`, mockID))
}

func (s *SQLStore) TabLinks(ctx context.Context, q db.DBTX, tabID string) ([]Question, error) {
	return s.scanLinks(q.QueryContext(ctx,
		`SELECT id,mock_test_id,tab_id,pool,question_id,marks,negative_marks,ord,added_manually
		 FROM mock_test_questions WHERE tab_id=$1 ORDER BY ord`, tabID))
}

func (s *SQLStore) scanLinks(rows *sql.Rows, err error) ([]Question, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var l Question
		if err := rows.Scan(&l.ID, &l.MockTestID, &l.TabID, &l.Pool, &l.QuestionID,
			&l.Marks, &l.NegativeMarks, &l.Order, &l.AddedManually); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteAutoLinks removes every non-manual link across all tabs of a mock
// test. Manual links are never touched by this path.
func (s *SQLStore) DeleteAutoLinks(ctx context.Context, q db.DBTX, mockID string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM mock_test_questions WHERE mock_test_id=$1 AND added_manually=$2`,
		mockID, false)
	return err
}

func (s *SQLStore) DeleteTabAutoLinks(ctx context.Context, q db.DBTX, tabID string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM mock_test_questions WHERE tab_id=$1 AND added_manually=$2`,
		tabID, false)
	return err
}

func (s *SQLStore) InsertLink(ctx context.Context, q db.DBTX, l Question) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO mock_test_questions
		   (id,mock_test_id,tab_id,pool,question_id,marks,negative_marks,ord,added_manually)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.MockTestID, l.TabID, l.Pool, l.QuestionID,
		l.Marks, l.NegativeMarks, l.Order, l.AddedManually)
	return err
}

// SaveRuleSelection records the identifiers a rule most recently picked.
func (s *SQLStore) SaveRuleSelection(ctx context.Context, q db.DBTX, ruleID string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	buf, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE distribution_rules SET selected_json=$1 WHERE id=$2`, string(buf), ruleID)
	return err
}

// RecomputeTotals rederives total_questions and total_marks from the
// surviving links (manual and auto) and writes them back.
func (s *SQLStore) RecomputeTotals(ctx context.Context, q db.DBTX, mockID string) (int, float64, error) {
	var count int
	var marks float64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(marks),0) FROM mock_test_questions WHERE mock_test_id=$1`,
		mockID).Scan(&count, &marks)
	if err != nil {
		return 0, 0, err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE mock_tests SET total_questions=$1, total_marks=$2, updated_at=$3 WHERE id=$4`,
		count, marks, time.Now().Unix(), mockID)
	return count, marks, err
}

// SaveConfig replaces the cached snapshot in one write. Readers see the old
// or the new document, never a mix.
func (s *SQLStore) SaveConfig(ctx context.Context, q db.DBTX, mockID, configJSON string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE mock_tests SET config_json=$1, updated_at=$2 WHERE id=$3`,
		configJSON, time.Now().Unix(), mockID)
	return err
}

// ConfigJSON returns the cached snapshot exactly as persisted.
func (s *SQLStore) ConfigJSON(ctx context.Context, id string) (string, error) {
	var cfg string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM mock_tests WHERE id=$1`, id).Scan(&cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("mock test %s: %w", id, ErrNotFound)
	}
	return cfg, err
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
