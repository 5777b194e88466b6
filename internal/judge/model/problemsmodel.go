package model

import (
	"context"
	"database/sql"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ProblemsModel = (*defaultProblemsModel)(nil)

const problemRows = "`lecture_id`, `assignment_id`, `title`, `description_path`, `timeMS`, `memoryMB`"

type (
	ProblemsModel interface {
		FindOne(ctx context.Context, lectureID, assignmentID int64) (*Problem, error)
	}

	defaultProblemsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// Problem mirrors one Problem row. The primary key is the pair
	// (lecture_id, assignment_id).
	Problem struct {
		LectureID       int64          `db:"lecture_id"`
		AssignmentID    int64          `db:"assignment_id"`
		Title           string         `db:"title"`
		DescriptionPath sql.NullString `db:"description_path"`
		TimeMS          int64          `db:"timeMS"`
		MemoryMB        int64          `db:"memoryMB"`
	}
)

// NewProblemsModel returns a model for the Problem table.
func NewProblemsModel(conn sqlx.SqlConn) ProblemsModel {
	return &defaultProblemsModel{conn: conn, table: "`Problem`"}
}

func (m *defaultProblemsModel) FindOne(ctx context.Context, lectureID, assignmentID int64) (*Problem, error) {
	query := "select " + problemRows + " from " + m.table + " where `lecture_id` = ? and `assignment_id` = ? limit 1"
	var resp Problem
	err := m.conn.QueryRowCtx(ctx, &resp, query, lectureID, assignmentID)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}
