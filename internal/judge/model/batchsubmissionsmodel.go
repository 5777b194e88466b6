package model

import (
	"context"
	"database/sql"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BatchSubmissionsModel = (*defaultBatchSubmissionsModel)(nil)

const batchSubmissionRows = "`id`, `user_id`, `lecture_id`, `message`, `complete_judge`, `total_judge`"

type (
	BatchSubmissionsModel interface {
		FindOne(ctx context.Context, id int64) (*BatchSubmission, error)
		IncrementCompleteJudge(ctx context.Context, id int64) error
		WithSession(session sqlx.Session) BatchSubmissionsModel
	}

	defaultBatchSubmissionsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// BatchSubmission is one instructor-triggered batch evaluation.
	BatchSubmission struct {
		ID            int64          `db:"id"`
		UserID        string         `db:"user_id"`
		LectureID     int64          `db:"lecture_id"`
		Message       sql.NullString `db:"message"`
		CompleteJudge int64          `db:"complete_judge"`
		TotalJudge    int64          `db:"total_judge"`
	}
)

// NewBatchSubmissionsModel returns a model for the BatchSubmission table.
func NewBatchSubmissionsModel(conn sqlx.SqlConn) BatchSubmissionsModel {
	return &defaultBatchSubmissionsModel{conn: conn, table: "`BatchSubmission`"}
}

func (m *defaultBatchSubmissionsModel) WithSession(session sqlx.Session) BatchSubmissionsModel {
	return &defaultBatchSubmissionsModel{conn: sqlx.NewSqlConnFromSession(session), table: m.table}
}

func (m *defaultBatchSubmissionsModel) FindOne(ctx context.Context, id int64) (*BatchSubmission, error) {
	query := "select " + batchSubmissionRows + " from " + m.table + " where `id` = ? limit 1"
	var resp BatchSubmission
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultBatchSubmissionsModel) IncrementCompleteJudge(ctx context.Context, id int64) error {
	query := "update " + m.table + " set `complete_judge` = `complete_judge` + 1 where `id` = ?"
	_, err := m.conn.ExecCtx(ctx, query, id)
	return err
}
