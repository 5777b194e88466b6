package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/pipeline"
	"dsajudge/internal/judge/repository"
	"dsajudge/internal/judge/sandbox"
	"dsajudge/internal/judge/verdict"
)

type fakeStore struct {
	problem       *model.Problem
	problemErr    error
	cases         []*model.TestCase
	arranged      []*model.ArrangedFile
	progressCalls int
	finalized     *repository.FinalState
}

func (f *fakeStore) FindProblem(ctx context.Context, l, a int64, eval bool) (*model.Problem, error) {
	if f.problemErr != nil {
		return nil, f.problemErr
	}
	return f.problem, nil
}

func (f *fakeStore) FindTestCases(ctx context.Context, l, a int64, eval bool) ([]*model.TestCase, error) {
	return f.cases, nil
}

func (f *fakeStore) FindArrangedFiles(ctx context.Context, l, a int64, eval bool) ([]*model.ArrangedFile, error) {
	return f.arranged, nil
}

func (f *fakeStore) ReportProgress(ctx context.Context, sub *model.Submission) {
	f.progressCalls++
}

func (f *fakeStore) Finalize(ctx context.Context, state repository.FinalState) error {
	f.finalized = &state
	return nil
}

type fakeContainer struct {
	removed bool
	uploads int
	dirs    int
}

func (c *fakeContainer) Exec(ctx context.Context, spec sandbox.ExecSpec) (sandbox.ExecResult, error) {
	return sandbox.ExecResult{}, nil
}

func (c *fakeContainer) UploadFile(ctx context.Context, file sandbox.FileSpec) error {
	c.uploads++
	return nil
}

func (c *fakeContainer) UploadDir(ctx context.Context, hostDir, destDir string, uid, gid int) error {
	c.dirs++
	return nil
}

func (c *fakeContainer) DownloadFile(ctx context.Context, containerPath, hostDir string) error {
	return nil
}

func (c *fakeContainer) Restart(ctx context.Context) error { return nil }

func (c *fakeContainer) Remove(ctx context.Context) error {
	c.removed = true
	return nil
}

type fakeDriver struct {
	volumeRemoved bool
	containers    []*fakeContainer
	createErr     error
}

func (d *fakeDriver) CreateVolume(ctx context.Context) (string, error) {
	return "volume-test", nil
}

func (d *fakeDriver) RemoveVolume(ctx context.Context, name string) error {
	d.volumeRemoved = true
	return nil
}

func (d *fakeDriver) CreateContainer(ctx context.Context, spec sandbox.ContainerSpec) (sandbox.Container, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	c := &fakeContainer{}
	d.containers = append(d.containers, c)
	return c, nil
}

// fakeRunner maps test case ids to canned verdicts.
type fakeRunner struct {
	verdicts map[int64]verdict.Verdict
	abortOn  int64
}

func (r *fakeRunner) run(tc *model.TestCase) (*model.JudgeResult, error) {
	v, ok := r.verdicts[tc.ID]
	if !ok {
		v = verdict.AC
	}
	row := &model.JudgeResult{TestCaseID: tc.ID, Result: string(v), TimeMS: tc.ID * 10, MemoryKB: tc.ID * 100}
	if r.abortOn != 0 && tc.ID == r.abortOn {
		row.Result = string(verdict.IE)
		return row, errors.New("sandbox broke")
	}
	return row, nil
}

func (r *fakeRunner) RunBuilt(ctx context.Context, c sandbox.Container, tc *model.TestCase, p *model.Problem) (*model.JudgeResult, error) {
	return r.run(tc)
}

func (r *fakeRunner) RunJudge(ctx context.Context, c sandbox.Container, tc *model.TestCase, p *model.Problem) (*model.JudgeResult, error) {
	return r.run(tc)
}

func builtCase(id int64, score int64) *model.TestCase {
	return &model.TestCase{ID: id, Type: model.TestCaseTypeBuilt, Score: score, Command: "make", MessageOnFail: "build failed"}
}

func judgeCase(id int64, score int64, msg string) *model.TestCase {
	return &model.TestCase{ID: id, Type: model.TestCaseTypeJudge, Score: score, Command: "./main", MessageOnFail: msg}
}

func newPipeline(store *fakeStore, driver *fakeDriver, r *fakeRunner) *pipeline.Pipeline {
	return pipeline.New(store, driver, r, pipeline.Config{
		UploadDir:   "/srv/uploads",
		ResourceDir: "/srv/resources",
		BuildImage:  "checker-lang-gcc",
		RunImage:    "binary-runner",
		GuestUID:    1000,
		GuestGID:    1000,
	})
}

func submission() *model.Submission {
	return &model.Submission{ID: 42, LectureID: 1, AssignmentID: 2, UploadDir: "42", TotalTask: 3, Progress: model.ProgressRunning}
}

func TestJudgeHappyPath(t *testing.T) {
	store := &fakeStore{
		problem: &model.Problem{TimeMS: 1000, MemoryMB: 256},
		cases: []*model.TestCase{
			builtCase(1, 0),
			judgeCase(2, 50, "case one failed"),
			judgeCase(3, 50, "case two failed"),
		},
	}
	driver := &fakeDriver{}
	p := newPipeline(store, driver, &fakeRunner{verdicts: map[int64]verdict.Verdict{}})

	if err := p.Judge(context.Background(), submission()); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	state := store.finalized
	if state == nil {
		t.Fatal("submission was not finalized")
	}
	if state.Result != verdict.AC {
		t.Fatalf("result = %s, want AC", state.Result)
	}
	if state.Score != 100 {
		t.Fatalf("score = %d, want 100", state.Score)
	}
	if state.TimeMS != 30 || state.MemoryKB != 300 {
		t.Fatalf("maxima = %dms/%dKB, want 30ms/300KB", state.TimeMS, state.MemoryKB)
	}
	if len(state.CaseResults) != 3 {
		t.Fatalf("stored %d case rows, want 3", len(state.CaseResults))
	}
	for _, row := range state.CaseResults {
		if row.SubmissionID != 42 {
			t.Fatalf("case row not tied to submission: %+v", row)
		}
	}
	if store.progressCalls != 3 {
		t.Fatalf("progress reported %d times, want once per case", store.progressCalls)
	}
	if len(driver.containers) != 2 {
		t.Fatalf("created %d containers, want build and run", len(driver.containers))
	}
	for i, c := range driver.containers {
		if !c.removed {
			t.Fatalf("container %d leaked", i)
		}
	}
	if !driver.volumeRemoved {
		t.Fatal("volume leaked")
	}
}

func TestJudgeAggregatesWorstVerdictAndDetail(t *testing.T) {
	store := &fakeStore{
		problem: &model.Problem{TimeMS: 1000, MemoryMB: 256},
		cases: []*model.TestCase{
			judgeCase(1, 30, "small input failed"),
			judgeCase(2, 30, "large input failed"),
			judgeCase(3, 40, "edge case failed"),
		},
	}
	driver := &fakeDriver{}
	p := newPipeline(store, driver, &fakeRunner{verdicts: map[int64]verdict.Verdict{
		2: verdict.WA,
		3: verdict.TLE,
	}})

	if err := p.Judge(context.Background(), submission()); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	state := store.finalized
	if state.Result != verdict.TLE {
		t.Fatalf("result = %s, want TLE", state.Result)
	}
	if state.Score != 30 {
		t.Fatalf("score = %d, want only the accepted case", state.Score)
	}
	wantLines := []string{
		"large input failed: WA (-30)",
		"edge case failed: TLE (-40)",
	}
	for _, line := range wantLines {
		if !strings.Contains(state.Detail, line) {
			t.Fatalf("detail %q missing %q", state.Detail, line)
		}
	}
	if strings.Contains(state.Detail, "small input failed") {
		t.Fatalf("detail %q mentions an accepted case", state.Detail)
	}
}

func TestJudgeProblemMissing(t *testing.T) {
	store := &fakeStore{problemErr: errors.New("not found")}
	driver := &fakeDriver{}
	p := newPipeline(store, driver, &fakeRunner{})

	if err := p.Judge(context.Background(), submission()); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	state := store.finalized
	if state.Result != verdict.IE {
		t.Fatalf("result = %s, want IE", state.Result)
	}
	if !strings.Contains(state.Message, "Not found") {
		t.Fatalf("message = %q", state.Message)
	}
	if len(driver.containers) != 0 {
		t.Fatal("no sandbox must be created for a missing problem")
	}
}

func TestJudgeAbortInBuildPhaseSkipsJudgePhase(t *testing.T) {
	store := &fakeStore{
		problem: &model.Problem{TimeMS: 1000, MemoryMB: 256},
		cases: []*model.TestCase{
			builtCase(1, 0),
			judgeCase(2, 100, "failed"),
		},
	}
	driver := &fakeDriver{}
	p := newPipeline(store, driver, &fakeRunner{abortOn: 1})

	if err := p.Judge(context.Background(), submission()); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	state := store.finalized
	if state.Result != verdict.IE {
		t.Fatalf("result = %s, want IE", state.Result)
	}
	if len(state.CaseResults) != 1 {
		t.Fatalf("stored %d case rows, want only the aborted build case", len(state.CaseResults))
	}
	if len(driver.containers) != 1 {
		t.Fatalf("created %d containers, judge container must not start", len(driver.containers))
	}
	if !driver.containers[0].removed || !driver.volumeRemoved {
		t.Fatal("sandbox resources leaked after abort")
	}
}

func TestJudgeBuildFailureStillJudges(t *testing.T) {
	store := &fakeStore{
		problem: &model.Problem{TimeMS: 1000, MemoryMB: 256},
		cases: []*model.TestCase{
			builtCase(1, 0),
			judgeCase(2, 100, "failed"),
		},
	}
	driver := &fakeDriver{}
	p := newPipeline(store, driver, &fakeRunner{verdicts: map[int64]verdict.Verdict{
		1: verdict.CE,
		2: verdict.RE,
	}})

	if err := p.Judge(context.Background(), submission()); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	state := store.finalized
	if len(state.CaseResults) != 2 {
		t.Fatalf("stored %d case rows, judge phase must still run after CE", len(state.CaseResults))
	}
	if state.Result != verdict.CE {
		t.Fatalf("result = %s, want CE as the worst verdict", state.Result)
	}
}
