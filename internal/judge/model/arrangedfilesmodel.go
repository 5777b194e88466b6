package model

import (
	"context"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ArrangedFilesModel = (*defaultArrangedFilesModel)(nil)

const arrangedFileRows = "`id`, `lecture_id`, `assignment_id`, `eval`, `path`"

type (
	ArrangedFilesModel interface {
		FindApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*ArrangedFile, error)
	}

	defaultArrangedFilesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// ArrangedFile is a problem-supplied file copied into the sandbox
	// next to the student upload. Path is relative to the resource root.
	ArrangedFile struct {
		ID           int64  `db:"id"`
		LectureID    int64  `db:"lecture_id"`
		AssignmentID int64  `db:"assignment_id"`
		Eval         bool   `db:"eval"`
		Path         string `db:"path"`
	}
)

// NewArrangedFilesModel returns a model for the ArrangedFiles table.
func NewArrangedFilesModel(conn sqlx.SqlConn) ArrangedFilesModel {
	return &defaultArrangedFilesModel{conn: conn, table: "`ArrangedFiles`"}
}

func (m *defaultArrangedFilesModel) FindApplicable(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*ArrangedFile, error) {
	query := "select " + arrangedFileRows + " from " + m.table + " where `lecture_id` = ? and `assignment_id` = ? and (`eval` = ? or `eval` = false) order by `id`"
	var resp []*ArrangedFile
	err := m.conn.QueryRowsCtx(ctx, &resp, query, lectureID, assignmentID, eval)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
