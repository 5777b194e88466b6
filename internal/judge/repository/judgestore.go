// Package repository composes the per-table models into the judge's
// cross-table operations: claiming queued work, persisting progress,
// the transactional finalize, and crash recovery.
package repository

import (
	"context"
	"database/sql"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/verdict"
	appErr "dsajudge/pkg/errors"
)

// detailMaxChars is the column budget for Submission.detail; longer
// summaries are clipped with a trailing ellipsis.
const detailMaxChars = 200

// JudgeStore is the persistence surface of the scheduler and pipeline.
type JudgeStore struct {
	conn             sqlx.SqlConn
	submissions      model.SubmissionsModel
	problems         model.ProblemsModel
	testCases        model.TestCasesModel
	arrangedFiles    model.ArrangedFilesModel
	judgeResults     model.JudgeResultsModel
	evaluationStatus model.EvaluationStatusModel
	batchSubmissions model.BatchSubmissionsModel
}

// NewJudgeStore wires a store over one MySQL connection.
func NewJudgeStore(conn sqlx.SqlConn) *JudgeStore {
	return &JudgeStore{
		conn:             conn,
		submissions:      model.NewSubmissionsModel(conn),
		problems:         model.NewProblemsModel(conn),
		testCases:        model.NewTestCasesModel(conn),
		arrangedFiles:    model.NewArrangedFilesModel(conn),
		judgeResults:     model.NewJudgeResultsModel(conn),
		evaluationStatus: model.NewEvaluationStatusModel(conn),
		batchSubmissions: model.NewBatchSubmissionsModel(conn),
	}
}

// FinalState carries everything Finalize writes for one submission.
type FinalState struct {
	SubmissionID int64
	Result       verdict.Verdict
	Message      string
	Detail       string
	Score        int64
	TimeMS       int64
	MemoryKB     int64
	CaseResults  []*model.JudgeResult
}

// ClaimQueued promotes up to limit queued submissions to running inside
// one transaction. The row lock makes concurrent judge instances claim
// disjoint sets. total_task is fixed at claim time so progress reporting
// has a stable denominator.
func (s *JudgeStore) ClaimQueued(ctx context.Context, limit int) ([]*model.Submission, error) {
	if limit <= 0 {
		return nil, nil
	}
	var claimed []*model.Submission
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		subs := s.submissions.WithSession(session)
		cases := s.testCases.WithSession(session)

		rows, err := subs.FindQueuedForUpdate(ctx, limit)
		if err != nil {
			return err
		}
		for _, sub := range rows {
			total, err := cases.CountApplicable(ctx, sub.LectureID, sub.AssignmentID, sub.Eval)
			if err != nil {
				return err
			}
			if err := subs.MarkRunning(ctx, sub.ID, total); err != nil {
				return err
			}
			sub.Progress = model.ProgressRunning
			sub.TotalTask = total
			sub.CompletedTask = 0
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ClaimFailed, "claim queued submissions failed")
	}
	return claimed, nil
}

// FindSubmission returns one submission row.
func (s *JudgeStore) FindSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	sub, err := s.submissions.FindOne(ctx, id)
	if err == model.ErrNotFound {
		return nil, appErr.New(appErr.SubmissionNotFound).WithMessage("submission not found")
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load submission failed")
	}
	return sub, nil
}

// FindProblem returns the problem a submission targets.
func (s *JudgeStore) FindProblem(ctx context.Context, lectureID, assignmentID int64) (*model.Problem, error) {
	p, err := s.problems.FindOne(ctx, lectureID, assignmentID)
	if err == model.ErrNotFound {
		return nil, appErr.New(appErr.ProblemNotFound).WithMessage("problem not found")
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
	}
	return p, nil
}

// FindTestCases returns the cases a submission runs, in id order.
func (s *JudgeStore) FindTestCases(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*model.TestCase, error) {
	cases, err := s.testCases.FindApplicable(ctx, lectureID, assignmentID, eval)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestCaseLoadFailed, "load test cases failed")
	}
	return cases, nil
}

// FindArrangedFiles returns the problem-supplied files for a submission.
func (s *JudgeStore) FindArrangedFiles(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*model.ArrangedFile, error) {
	files, err := s.arrangedFiles.FindApplicable(ctx, lectureID, assignmentID, eval)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load arranged files failed")
	}
	return files, nil
}

// FindCaseResults returns the stored per-case rows of a submission.
func (s *JudgeStore) FindCaseResults(ctx context.Context, submissionID int64) ([]*model.JudgeResult, error) {
	rows, err := s.judgeResults.FindBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load judge results failed")
	}
	return rows, nil
}

// ReportProgress bumps completed_task after each finished case. The
// update is best effort; a failure is logged and judging continues.
func (s *JudgeStore) ReportProgress(ctx context.Context, sub *model.Submission) {
	err := s.submissions.UpdateProgress(ctx, sub.ID, sub.Progress, sub.CompletedTask, sub.TotalTask, sub.Result)
	if err != nil {
		logx.WithContext(ctx).Errorf("progress update for submission %d failed: %v", sub.ID, err)
	}
}

// Finalize commits the complete outcome of one submission in a single
// transaction: the aggregate row, the per-case rows, and the batch
// roll-up when the submission belongs to an evaluation group.
func (s *JudgeStore) Finalize(ctx context.Context, state FinalState) error {
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		subs := s.submissions.WithSession(session)
		results := s.judgeResults.WithSession(session)

		sub, err := subs.FindOne(ctx, state.SubmissionID)
		if err != nil {
			return err
		}

		sub.Progress = model.ProgressDone
		sub.Result = sql.NullString{String: string(state.Result), Valid: true}
		sub.Message = sql.NullString{String: state.Message, Valid: state.Message != ""}
		sub.Detail = sql.NullString{String: clipDetail(state.Detail), Valid: state.Detail != ""}
		sub.Score = sql.NullInt64{Int64: state.Score, Valid: true}
		sub.TimeMS = sql.NullInt64{Int64: state.TimeMS, Valid: true}
		sub.MemoryKB = sql.NullInt64{Int64: state.MemoryKB, Valid: true}
		if err := subs.Finalize(ctx, sub); err != nil {
			return err
		}

		if err := results.BulkInsert(ctx, state.CaseResults); err != nil {
			return err
		}

		if sub.EvaluationStatusID.Valid {
			if err := s.rollUpBatch(ctx, session, subs, sub.EvaluationStatusID.Int64); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.FinalizeFailed, "finalize submission %d failed", state.SubmissionID)
	}
	return nil
}

// rollUpBatch advances the batch bookkeeping for one finalized
// submission. complete_judge counts finalized submissions, so it moves
// on every call; total_judge counts one per (student, problem), and the
// batch front-end compares the two to detect completion. The group
// result is only written once the student's last submission is done.
func (s *JudgeStore) rollUpBatch(ctx context.Context, session sqlx.Session, subs model.SubmissionsModel, evaluationStatusID int64) error {
	status := s.evaluationStatus.WithSession(session)
	row, err := status.FindOne(ctx, evaluationStatusID)
	if err != nil {
		return err
	}
	if err := s.batchSubmissions.WithSession(session).IncrementCompleteJudge(ctx, row.BatchID); err != nil {
		return err
	}

	unfinished, err := subs.CountUnfinishedByEvaluationStatus(ctx, evaluationStatusID)
	if err != nil {
		return err
	}
	if unfinished > 0 {
		return nil
	}

	results, err := subs.FindResultsByEvaluationStatus(ctx, evaluationStatusID)
	if err != nil {
		return err
	}
	verdicts := make([]verdict.Verdict, 0, len(results))
	for _, r := range results {
		verdicts = append(verdicts, verdict.Verdict(r))
	}
	return status.UpdateResult(ctx, evaluationStatusID, string(verdict.Aggregate(verdicts)))
}

// MarkInternalError finishes a submission that could not be judged.
func (s *JudgeStore) MarkInternalError(ctx context.Context, submissionID int64, message string) error {
	return s.Finalize(ctx, FinalState{
		SubmissionID: submissionID,
		Result:       verdict.IE,
		Message:      message,
	})
}

// RecoverRunning demotes every running submission back to queued and
// drops its partial per-case rows. Called at startup and shutdown; both
// calls are idempotent, and a crash between them leaves rows the next
// startup repairs.
func (s *JudgeStore) RecoverRunning(ctx context.Context) (int, error) {
	var recovered int
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		subs := s.submissions.WithSession(session)
		results := s.judgeResults.WithSession(session)

		ids, err := subs.FindIDsByProgress(ctx, model.ProgressRunning)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := results.DeleteBySubmissionIDs(ctx, ids); err != nil {
			return err
		}
		if err := subs.ResetToQueued(ctx, ids); err != nil {
			return err
		}
		recovered = len(ids)
		return nil
	})
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.RecoveryFailed, "recover running submissions failed")
	}
	return recovered, nil
}

func clipDetail(detail string) string {
	runes := []rune(detail)
	if len(runes) <= detailMaxChars {
		return detail
	}
	return string(runes[:detailMaxChars]) + "..."
}
