package model

import (
	"context"
	"database/sql"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ TestCasesModel = (*defaultTestCasesModel)(nil)

const testCaseRows = "`id`, `lecture_id`, `assignment_id`, `eval`, `type`, `score`, `title`, `description`, `message_on_fail`, `command`, `args`, `stdin_path`, `stdout_path`, `stderr_path`, `exit_code`"

// Test case types. Built cases compile the submission; Judge cases run
// the compiled artifact against expected outputs.
const (
	TestCaseTypeBuilt = "Built"
	TestCaseTypeJudge = "Judge"
)

type (
	TestCasesModel interface {
		// CountApplicable counts the cases a submission will run: the
		// non-eval baseline plus the eval-only ones when eval is set.
		CountApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) (int64, error)
		FindApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*TestCase, error)
		WithSession(session sqlx.Session) TestCasesModel
	}

	defaultTestCasesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// TestCase mirrors one TestCases row.
	TestCase struct {
		ID            int64          `db:"id"`
		LectureID     int64          `db:"lecture_id"`
		AssignmentID  int64          `db:"assignment_id"`
		Eval          bool           `db:"eval"`
		Type          string         `db:"type"`
		Score         int64          `db:"score"`
		Title         string         `db:"title"`
		Description   sql.NullString `db:"description"`
		MessageOnFail string         `db:"message_on_fail"`
		Command       string         `db:"command"`
		Args          sql.NullString `db:"args"`
		StdinPath     sql.NullString `db:"stdin_path"`
		StdoutPath    sql.NullString `db:"stdout_path"`
		StderrPath    sql.NullString `db:"stderr_path"`
		ExitCode      int64          `db:"exit_code"`
	}
)

// NewTestCasesModel returns a model for the TestCases table.
func NewTestCasesModel(conn sqlx.SqlConn) TestCasesModel {
	return &defaultTestCasesModel{conn: conn, table: "`TestCases`"}
}

func (m *defaultTestCasesModel) WithSession(session sqlx.Session) TestCasesModel {
	return &defaultTestCasesModel{conn: sqlx.NewSqlConnFromSession(session), table: m.table}
}

func (m *defaultTestCasesModel) CountApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) (int64, error) {
	query := "select count(*) from " + m.table + " where `lecture_id` = ? and `assignment_id` = ? and (`eval` = ? or `eval` = false)"
	var count int64
	err := m.conn.QueryRowCtx(ctx, &count, query, lectureID, assignmentID, eval)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindApplicable returns the cases in primary key order so Built cases
// run deterministically before and within their phase.
func (m *defaultTestCasesModel) FindApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*TestCase, error) {
	query := "select " + testCaseRows + " from " + m.table + " where `lecture_id` = ? and `assignment_id` = ? and (`eval` = ? or `eval` = false) order by `id`"
	var resp []*TestCase
	err := m.conn.QueryRowsCtx(ctx, &resp, query, lectureID, assignmentID, eval)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
