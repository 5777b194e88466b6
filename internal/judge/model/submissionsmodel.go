package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ SubmissionsModel = (*defaultSubmissionsModel)(nil)

const submissionRows = "`id`, `ts`, `evaluation_status_id`, `user_id`, `lecture_id`, `assignment_id`, `eval`, `upload_dir`, `progress`, `total_task`, `completed_task`, `result`, `message`, `detail`, `score`, `timeMS`, `memoryKB`"

type (
	// SubmissionsModel covers the judge's access to the Submission table.
	// Methods that participate in a transaction are reached through
	// WithSession.
	SubmissionsModel interface {
		FindOne(ctx context.Context, id int64) (*Submission, error)
		FindQueuedForUpdate(ctx context.Context, limit int) ([]*Submission, error)
		FindIDsByProgress(ctx context.Context, progress string) ([]int64, error)
		FindResultsByEvaluationStatus(ctx context.Context, evaluationStatusID int64) ([]string, error)
		CountUnfinishedByEvaluationStatus(ctx context.Context, evaluationStatusID int64) (int64, error)
		MarkRunning(ctx context.Context, id, totalTask int64) error
		UpdateProgress(ctx context.Context, id int64, progress string, completedTask, totalTask int64, result sql.NullString) error
		Finalize(ctx context.Context, data *Submission) error
		ResetToQueued(ctx context.Context, ids []int64) error
		WithSession(session sqlx.Session) SubmissionsModel
	}

	defaultSubmissionsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// Submission mirrors one Submission row.
	Submission struct {
		ID                 int64          `db:"id"`
		Ts                 time.Time      `db:"ts"`
		EvaluationStatusID sql.NullInt64  `db:"evaluation_status_id"`
		UserID             string         `db:"user_id"`
		LectureID          int64          `db:"lecture_id"`
		AssignmentID       int64          `db:"assignment_id"`
		Eval               bool           `db:"eval"`
		UploadDir          string         `db:"upload_dir"`
		Progress           string         `db:"progress"`
		TotalTask          int64          `db:"total_task"`
		CompletedTask      int64          `db:"completed_task"`
		Result             sql.NullString `db:"result"`
		Message            sql.NullString `db:"message"`
		Detail             sql.NullString `db:"detail"`
		Score              sql.NullInt64  `db:"score"`
		TimeMS             sql.NullInt64  `db:"timeMS"`
		MemoryKB           sql.NullInt64  `db:"memoryKB"`
	}
)

// Submission progress states.
const (
	ProgressPending = "pending"
	ProgressQueued  = "queued"
	ProgressRunning = "running"
	ProgressDone    = "done"
)

// NewSubmissionsModel returns a model for the Submission table.
func NewSubmissionsModel(conn sqlx.SqlConn) SubmissionsModel {
	return &defaultSubmissionsModel{conn: conn, table: "`Submission`"}
}

func (m *defaultSubmissionsModel) WithSession(session sqlx.Session) SubmissionsModel {
	return &defaultSubmissionsModel{conn: sqlx.NewSqlConnFromSession(session), table: m.table}
}

func (m *defaultSubmissionsModel) FindOne(ctx context.Context, id int64) (*Submission, error) {
	query := "select " + submissionRows + " from " + m.table + " where `id` = ? limit 1"
	var resp Submission
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

// FindQueuedForUpdate selects up to limit queued rows under an exclusive
// row lock. Must run inside a transaction so the lock is held until the
// caller marks the rows running.
func (m *defaultSubmissionsModel) FindQueuedForUpdate(ctx context.Context, limit int) ([]*Submission, error) {
	query := "select " + submissionRows + " from " + m.table + " where `progress` = ? limit ? for update"
	var resp []*Submission
	err := m.conn.QueryRowsCtx(ctx, &resp, query, ProgressQueued, limit)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultSubmissionsModel) FindIDsByProgress(ctx context.Context, progress string) ([]int64, error) {
	query := "select `id` from " + m.table + " where `progress` = ?"
	var ids []int64
	err := m.conn.QueryRowsCtx(ctx, &ids, query, progress)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *defaultSubmissionsModel) FindResultsByEvaluationStatus(ctx context.Context, evaluationStatusID int64) ([]string, error) {
	query := "select `result` from " + m.table + " where `evaluation_status_id` = ? and `result` is not null"
	var results []string
	err := m.conn.QueryRowsCtx(ctx, &results, query, evaluationStatusID)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (m *defaultSubmissionsModel) CountUnfinishedByEvaluationStatus(ctx context.Context, evaluationStatusID int64) (int64, error) {
	query := "select count(*) from " + m.table + " where `evaluation_status_id` = ? and `progress` != ?"
	var count int64
	err := m.conn.QueryRowCtx(ctx, &count, query, evaluationStatusID, ProgressDone)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (m *defaultSubmissionsModel) MarkRunning(ctx context.Context, id, totalTask int64) error {
	query := "update " + m.table + " set `progress` = ?, `total_task` = ?, `completed_task` = 0 where `id` = ?"
	_, err := m.conn.ExecCtx(ctx, query, ProgressRunning, totalTask, id)
	return err
}

func (m *defaultSubmissionsModel) UpdateProgress(ctx context.Context, id int64, progress string, completedTask, totalTask int64, result sql.NullString) error {
	query := "update " + m.table + " set `progress` = ?, `completed_task` = ?, `total_task` = ?, `result` = ? where `id` = ?"
	_, err := m.conn.ExecCtx(ctx, query, progress, completedTask, totalTask, result, id)
	return err
}

// Finalize writes every aggregate field of a finished submission.
func (m *defaultSubmissionsModel) Finalize(ctx context.Context, data *Submission) error {
	query := "update " + m.table + " set `progress` = ?, `completed_task` = ?, `total_task` = ?, `result` = ?, `message` = ?, `detail` = ?, `score` = ?, `timeMS` = ?, `memoryKB` = ? where `id` = ?"
	_, err := m.conn.ExecCtx(ctx, query,
		data.Progress, data.CompletedTask, data.TotalTask, data.Result,
		data.Message, data.Detail, data.Score, data.TimeMS, data.MemoryKB, data.ID)
	return err
}

// ResetToQueued demotes the given rows for crash recovery.
func (m *defaultSubmissionsModel) ResetToQueued(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := "update " + m.table + " set `progress` = ?, `completed_task` = 0 where `id` in (" + placeholders(len(ids)) + ")"
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ProgressQueued)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := m.conn.ExecCtx(ctx, query, args...)
	return err
}
