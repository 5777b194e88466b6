package model

import (
	"context"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ JudgeResultsModel = (*defaultJudgeResultsModel)(nil)

const judgeResultRows = "`id`, `submission_id`, `testcase_id`, `result`, `command`, `timeMS`, `memoryKB`, `exit_code`, `stdout`, `stderr`"

type (
	JudgeResultsModel interface {
		BulkInsert(ctx context.Context, rows []*JudgeResult) error
		DeleteBySubmissionIDs(ctx context.Context, submissionIDs []int64) error
		FindBySubmission(ctx context.Context, submissionID int64) ([]*JudgeResult, error)
		WithSession(session sqlx.Session) JudgeResultsModel
	}

	defaultJudgeResultsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// JudgeResult is one per-test-case outcome row.
	JudgeResult struct {
		ID           int64  `db:"id"`
		SubmissionID int64  `db:"submission_id"`
		TestCaseID   int64  `db:"testcase_id"`
		Result       string `db:"result"`
		Command      string `db:"command"`
		TimeMS       int64  `db:"timeMS"`
		MemoryKB     int64  `db:"memoryKB"`
		ExitCode     int64  `db:"exit_code"`
		Stdout       string `db:"stdout"`
		Stderr       string `db:"stderr"`
	}
)

// NewJudgeResultsModel returns a model for the JudgeResult table.
func NewJudgeResultsModel(conn sqlx.SqlConn) JudgeResultsModel {
	return &defaultJudgeResultsModel{conn: conn, table: "`JudgeResult`"}
}

func (m *defaultJudgeResultsModel) WithSession(session sqlx.Session) JudgeResultsModel {
	return &defaultJudgeResultsModel{conn: sqlx.NewSqlConnFromSession(session), table: m.table}
}

func (m *defaultJudgeResultsModel) BulkInsert(ctx context.Context, rows []*JudgeResult) error {
	if len(rows) == 0 {
		return nil
	}
	query := "insert into " + m.table + " (`submission_id`, `testcase_id`, `result`, `command`, `timeMS`, `memoryKB`, `exit_code`, `stdout`, `stderr`) values "
	args := make([]interface{}, 0, len(rows)*9)
	for i, row := range rows {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, row.SubmissionID, row.TestCaseID, row.Result, row.Command,
			row.TimeMS, row.MemoryKB, row.ExitCode, row.Stdout, row.Stderr)
	}
	_, err := m.conn.ExecCtx(ctx, query, args...)
	return err
}

func (m *defaultJudgeResultsModel) DeleteBySubmissionIDs(ctx context.Context, submissionIDs []int64) error {
	if len(submissionIDs) == 0 {
		return nil
	}
	query := "delete from " + m.table + " where `submission_id` in (" + placeholders(len(submissionIDs)) + ")"
	args := make([]interface{}, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		args = append(args, id)
	}
	_, err := m.conn.ExecCtx(ctx, query, args...)
	return err
}

func (m *defaultJudgeResultsModel) FindBySubmission(ctx context.Context, submissionID int64) ([]*JudgeResult, error) {
	query := "select " + judgeResultRows + " from " + m.table + " where `submission_id` = ? order by `id`"
	var resp []*JudgeResult
	err := m.conn.QueryRowsCtx(ctx, &resp, query, submissionID)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
