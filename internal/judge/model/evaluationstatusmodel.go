package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ EvaluationStatusModel = (*defaultEvaluationStatusModel)(nil)

const evaluationStatusRows = "`id`, `batch_id`, `user_id`, `status`, `result`, `upload_dir`, `report_path`, `submit_date`"

type (
	EvaluationStatusModel interface {
		FindOne(ctx context.Context, id int64) (*EvaluationStatus, error)
		UpdateResult(ctx context.Context, id int64, result string) error
		WithSession(session sqlx.Session) EvaluationStatusModel
	}

	defaultEvaluationStatusModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// EvaluationStatus groups the submissions of one student inside a
	// batch evaluation. Result is the worst verdict over the group.
	EvaluationStatus struct {
		ID         int64          `db:"id"`
		BatchID    int64          `db:"batch_id"`
		UserID     string         `db:"user_id"`
		Status     string         `db:"status"`
		Result     sql.NullString `db:"result"`
		UploadDir  sql.NullString `db:"upload_dir"`
		ReportPath sql.NullString `db:"report_path"`
		SubmitDate time.Time      `db:"submit_date"`
	}
)

// NewEvaluationStatusModel returns a model for the EvaluationStatus table.
func NewEvaluationStatusModel(conn sqlx.SqlConn) EvaluationStatusModel {
	return &defaultEvaluationStatusModel{conn: conn, table: "`EvaluationStatus`"}
}

func (m *defaultEvaluationStatusModel) WithSession(session sqlx.Session) EvaluationStatusModel {
	return &defaultEvaluationStatusModel{conn: sqlx.NewSqlConnFromSession(session), table: m.table}
}

func (m *defaultEvaluationStatusModel) FindOne(ctx context.Context, id int64) (*EvaluationStatus, error) {
	query := "select " + evaluationStatusRows + " from " + m.table + " where `id` = ? limit 1"
	var resp EvaluationStatus
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

func (m *defaultEvaluationStatusModel) UpdateResult(ctx context.Context, id int64, result string) error {
	query := "update " + m.table + " set `result` = ? where `id` = ?"
	_, err := m.conn.ExecCtx(ctx, query, result, id)
	return err
}
