// Package pipeline drives one submission end to end: sandbox setup,
// the build phase, the judge phase, aggregation, and the transactional
// finish. Sandbox resources are cleaned up on every path.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/repository"
	"dsajudge/internal/judge/sandbox"
	"dsajudge/internal/judge/verdict"
)

const sandboxPidsLimit = 100

// buildMemoryMB bounds the build container; compilers need headroom
// the judged binary does not get.
const buildMemoryMB = 1024

// runMemoryHeadroomMB is added on top of the problem limit so the
// watchdog can observe the overage and kill the process before the
// kernel OOM killer takes the whole container.
const runMemoryHeadroomMB = 512

// Store is the persistence surface the pipeline needs.
type Store interface {
	FindProblem(ctx context.Context, lectureID, assignmentID int64, eval bool) (*model.Problem, error)
	FindTestCases(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*model.TestCase, error)
	FindArrangedFiles(ctx context.Context, lectureID, assignmentID int64, eval bool) ([]*model.ArrangedFile, error)
	ReportProgress(ctx context.Context, sub *model.Submission)
	Finalize(ctx context.Context, state repository.FinalState) error
}

// CaseRunner executes individual test cases on a container. Both calls
// return a populated result row even when they report an error, so the
// aborted case still lands in the submission's record.
type CaseRunner interface {
	RunBuilt(ctx context.Context, c sandbox.Container, tc *model.TestCase, problem *model.Problem) (*model.JudgeResult, error)
	RunJudge(ctx context.Context, c sandbox.Container, tc *model.TestCase, problem *model.Problem) (*model.JudgeResult, error)
}

// Config carries the pipeline's environment.
type Config struct {
	// UploadDir is the root the submission upload directories live under.
	UploadDir string
	// ResourceDir is the root the arranged file paths resolve against.
	ResourceDir string
	// BuildImage runs the build phase, RunImage the judge phase.
	BuildImage string
	RunImage   string
	GuestUID   int
	GuestGID   int
}

// Pipeline judges submissions.
type Pipeline struct {
	store  Store
	driver sandbox.Driver
	runner CaseRunner
	cfg    Config
}

// New wires a pipeline.
func New(store Store, driver sandbox.Driver, runner CaseRunner, cfg Config) *Pipeline {
	return &Pipeline{store: store, driver: driver, runner: runner, cfg: cfg}
}

// session accumulates the outcome of one submission.
type session struct {
	sub     *model.Submission
	result  verdict.Verdict
	score   int64
	timeMS  int64
	memKB   int64
	detail  strings.Builder
	rows    []*model.JudgeResult
	message string
}

// record folds one case outcome into the aggregate. Failed cases add a
// line to the detail summary as they happen, so an aborted run still
// explains every case it got through.
func (s *session) record(tc *model.TestCase, row *model.JudgeResult) {
	row.SubmissionID = s.sub.ID
	s.rows = append(s.rows, row)

	v := verdict.Verdict(row.Result)
	s.result = verdict.Max(s.result, v)
	if row.TimeMS > s.timeMS {
		s.timeMS = row.TimeMS
	}
	if row.MemoryKB > s.memKB {
		s.memKB = row.MemoryKB
	}
	if v == verdict.AC {
		s.score += tc.Score
	} else {
		fmt.Fprintf(&s.detail, "%s: %s (-%d)\n", tc.MessageOnFail, v, tc.Score)
	}
}

// Judge runs one claimed submission to completion. Errors are absorbed
// into the submission's own outcome; the returned error reports only a
// failure to persist that outcome.
func (p *Pipeline) Judge(ctx context.Context, sub *model.Submission) error {
	logger := logx.WithContext(ctx)
	s := &session{sub: sub, result: verdict.AC}

	problem, err := p.store.FindProblem(ctx, sub.LectureID, sub.AssignmentID, sub.Eval)
	if err != nil {
		s.result = verdict.IE
		s.message = fmt.Sprintf("Error on Problem %d-%d: Not found", sub.LectureID, sub.AssignmentID)
		return p.finish(ctx, s)
	}

	cases, err := p.store.FindTestCases(ctx, sub.LectureID, sub.AssignmentID, sub.Eval)
	if err != nil {
		s.result = verdict.IE
		s.message = "error when loading test cases"
		return p.finish(ctx, s)
	}
	arranged, err := p.store.FindArrangedFiles(ctx, sub.LectureID, sub.AssignmentID, sub.Eval)
	if err != nil {
		s.result = verdict.IE
		s.message = "error when loading arranged files"
		return p.finish(ctx, s)
	}

	var builtCases, judgeCases []*model.TestCase
	for _, tc := range cases {
		if tc.Type == model.TestCaseTypeBuilt {
			builtCases = append(builtCases, tc)
		} else {
			judgeCases = append(judgeCases, tc)
		}
	}

	volumeName, err := p.driver.CreateVolume(ctx)
	if err != nil {
		s.result = verdict.IE
		s.message = "error when creating volume"
		return p.finish(ctx, s)
	}
	defer p.removeVolume(ctx, volumeName)

	buildContainer, err := p.driver.CreateContainer(ctx, sandbox.ContainerSpec{
		Image:      p.cfg.BuildImage,
		VolumeName: volumeName,
		NamePrefix: "build",
		MemoryMB:   buildMemoryMB,
		PidsLimit:  sandboxPidsLimit,
	})
	if err != nil {
		s.result = verdict.IE
		s.message = "error when starting build container"
		return p.finish(ctx, s)
	}

	if err := p.stageWorkspace(ctx, buildContainer, sub, arranged); err != nil {
		logger.Errorf("stage workspace for submission %d: %v", sub.ID, err)
		s.result = verdict.IE
		s.message = "error when copying files to build container"
		p.removeContainer(ctx, buildContainer)
		return p.finish(ctx, s)
	}

	aborted := p.runPhase(ctx, s, buildContainer, builtCases, problem, p.runner.RunBuilt)
	p.removeContainer(ctx, buildContainer)
	if aborted {
		return p.finish(ctx, s)
	}

	// A failed build still judges: a partially building submission
	// earns its passing cases.
	runContainer, err := p.driver.CreateContainer(ctx, sandbox.ContainerSpec{
		Image:      p.cfg.RunImage,
		VolumeName: volumeName,
		NamePrefix: "judge",
		MemoryMB:   problem.MemoryMB + runMemoryHeadroomMB,
		PidsLimit:  sandboxPidsLimit,
	})
	if err != nil {
		s.result = verdict.IE
		s.message = "error when starting sandbox container"
		return p.finish(ctx, s)
	}

	p.runPhase(ctx, s, runContainer, judgeCases, problem, p.runner.RunJudge)
	p.removeContainer(ctx, runContainer)

	return p.finish(ctx, s)
}

type caseFunc func(ctx context.Context, c sandbox.Container, tc *model.TestCase, problem *model.Problem) (*model.JudgeResult, error)

// runPhase executes one phase's cases in order. Case failures keep the
// phase going; a sandbox failure aborts and reports true.
func (p *Pipeline) runPhase(ctx context.Context, s *session, c sandbox.Container, cases []*model.TestCase, problem *model.Problem, run caseFunc) bool {
	for _, tc := range cases {
		row, err := run(ctx, c, tc, problem)
		s.record(tc, row)
		if err != nil {
			logx.WithContext(ctx).Errorf("case %d of submission %d aborted: %v", tc.ID, s.sub.ID, err)
			s.message = "internal error while judging, please tell the administrator"
			return true
		}
		s.sub.CompletedTask++
		p.store.ReportProgress(ctx, s.sub)
	}
	return false
}

// stageWorkspace copies the student upload and the problem's arranged
// files into the guest home, owned by the guest account.
func (p *Pipeline) stageWorkspace(ctx context.Context, c sandbox.Container, sub *model.Submission, arranged []*model.ArrangedFile) error {
	hostDir := filepath.Join(p.cfg.UploadDir, sub.UploadDir)
	if err := c.UploadDir(ctx, hostDir, "/home/guest", p.cfg.GuestUID, p.cfg.GuestGID); err != nil {
		return err
	}
	for _, file := range arranged {
		content, err := os.ReadFile(filepath.Join(p.cfg.ResourceDir, file.Path))
		if err != nil {
			return err
		}
		err = c.UploadFile(ctx, sandbox.FileSpec{
			DestPath: "/home/guest/" + filepath.Base(file.Path),
			Content:  content,
			Mode:     0o644,
			UID:      p.cfg.GuestUID,
			GID:      p.cfg.GuestGID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, s *session) error {
	return p.store.Finalize(ctx, repository.FinalState{
		SubmissionID: s.sub.ID,
		Result:       s.result,
		Message:      s.message,
		Detail:       s.detail.String(),
		Score:        s.score,
		TimeMS:       s.timeMS,
		MemoryKB:     s.memKB,
		CaseResults:  s.rows,
	})
}

func (p *Pipeline) removeContainer(ctx context.Context, c sandbox.Container) {
	if err := c.Remove(context.WithoutCancel(ctx)); err != nil {
		logx.WithContext(ctx).Errorf("remove container: %v", err)
	}
}

func (p *Pipeline) removeVolume(ctx context.Context, name string) {
	if err := p.driver.RemoveVolume(context.WithoutCancel(ctx), name); err != nil {
		logx.WithContext(ctx).Errorf("remove volume %s: %v", name, err)
	}
}
