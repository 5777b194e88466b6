package runner_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/runner"
	"dsajudge/internal/judge/sandbox"
	"dsajudge/internal/judge/sandbox/taskspec"
)

// fakeContainer answers the setup execs with success and the watchdog
// exec with a canned result.
type fakeContainer struct {
	watchdogExit   int
	watchdogStdout string
	watchdogStderr string

	uploads  []sandbox.FileSpec
	lastTask taskspec.Task
	execs    [][]string
}

func (f *fakeContainer) Exec(ctx context.Context, spec sandbox.ExecSpec) (sandbox.ExecResult, error) {
	f.execs = append(f.execs, spec.Cmd)
	if spec.Cmd[0] == "/home/watchdog" {
		return sandbox.ExecResult{
			ExitCode: f.watchdogExit,
			Stdout:   f.watchdogStdout,
			Stderr:   f.watchdogStderr,
		}, nil
	}
	return sandbox.ExecResult{ExitCode: 0}, nil
}

func (f *fakeContainer) UploadFile(ctx context.Context, file sandbox.FileSpec) error {
	f.uploads = append(f.uploads, file)
	if file.DestPath == taskspec.TaskPath {
		task, err := taskspec.DecodeTask(file.Content)
		if err != nil {
			return err
		}
		f.lastTask = task
	}
	return nil
}

func (f *fakeContainer) UploadDir(ctx context.Context, hostDir, destDir string, uid, gid int) error {
	return nil
}

func (f *fakeContainer) DownloadFile(ctx context.Context, containerPath, hostDir string) error {
	return nil
}

func (f *fakeContainer) Restart(ctx context.Context) error { return nil }

func (f *fakeContainer) Remove(ctx context.Context) error { return nil }

func reportJSON(t *testing.T, rep taskspec.Report) string {
	t.Helper()
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newRunner(t *testing.T) (*runner.Runner, string) {
	t.Helper()
	dir := t.TempDir()
	return runner.New(runner.Config{
		ResourceDir:    dir,
		GuestUID:       1000,
		GuestGID:       1000,
		StdoutMaxBytes: 256,
		StderrMaxBytes: 256,
		BuildTimeoutMS: 2000,
	}), dir
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func judgeCase(stdoutPath string) *model.TestCase {
	tc := &model.TestCase{
		ID:      7,
		Type:    model.TestCaseTypeJudge,
		Command: "./main",
	}
	if stdoutPath != "" {
		tc.StdoutPath = sql.NullString{String: stdoutPath, Valid: true}
	}
	return tc
}

var problem = &model.Problem{TimeMS: 1000, MemoryMB: 256}

func TestRunJudgeClassification(t *testing.T) {
	tests := []struct {
		name   string
		tc     *model.TestCase
		report taskspec.Report
		want   string
	}{
		{
			name:   "accepted",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 0, Stdout: "1 2 3\n", TimeMS: 12, MemoryKB: 800},
			want:   "AC",
		},
		{
			name:   "accepted with whitespace differences",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 0, Stdout: "  1\t2   3  \n\n"},
			want:   "AC",
		},
		{
			name:   "wrong answer",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 0, Stdout: "1 2 4\n"},
			want:   "WA",
		},
		{
			name:   "runtime error",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 139, Stdout: "1 2 3\n"},
			want:   "RE",
		},
		{
			name:   "time limit beats runtime error",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 137, TLE: true},
			want:   "TLE",
		},
		{
			name:   "memory limit",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 137, MLE: true},
			want:   "MLE",
		},
		{
			name:   "time limit beats memory limit",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 137, TLE: true, MLE: true},
			want:   "TLE",
		},
		{
			name:   "output limit",
			tc:     judgeCase("expected.txt"),
			report: taskspec.Report{ExitCode: 0, Stdout: "1 2 3\n", OLE: true},
			want:   "OLE",
		},
		{
			name: "expected failure detected",
			tc: &model.TestCase{
				ID: 8, Type: model.TestCaseTypeJudge, Command: "./main", ExitCode: 1,
			},
			report: taskspec.Report{ExitCode: 1},
			want:   "AC",
		},
		{
			name: "expected failure missed",
			tc: &model.TestCase{
				ID: 8, Type: model.TestCaseTypeJudge, Command: "./main", ExitCode: 1,
			},
			report: taskspec.Report{ExitCode: 0},
			want:   "WA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dir := newRunner(t)
			writeFixture(t, dir, "expected.txt", "1 2 3\n")

			c := &fakeContainer{watchdogStdout: reportJSON(t, tt.report)}
			got, err := r.RunJudge(context.Background(), c, tt.tc, problem)
			if err != nil {
				t.Fatalf("RunJudge: %v", err)
			}
			if got.Result != tt.want {
				t.Fatalf("verdict = %s, want %s", got.Result, tt.want)
			}
		})
	}
}

func TestRunJudgeStagesTaskDocument(t *testing.T) {
	r, dir := newRunner(t)
	writeFixture(t, dir, "in.txt", "5\n")

	tc := judgeCase("")
	tc.StdinPath = sql.NullString{String: "in.txt", Valid: true}
	tc.Args = sql.NullString{String: "  -v   --fast ", Valid: true}

	c := &fakeContainer{watchdogStdout: reportJSON(t, taskspec.Report{ExitCode: 0})}
	got, err := r.RunJudge(context.Background(), c, tc, problem)
	if err != nil {
		t.Fatalf("RunJudge: %v", err)
	}

	if got.Command != "./main -v --fast" {
		t.Fatalf("command = %q", got.Command)
	}
	if c.lastTask.Command != "./main -v --fast" {
		t.Fatalf("staged command = %q", c.lastTask.Command)
	}
	if c.lastTask.Stdin != "5\n" {
		t.Fatalf("staged stdin = %q", c.lastTask.Stdin)
	}
	if c.lastTask.TimeoutMS != 1000 || c.lastTask.MemoryLimitMB != 256 {
		t.Fatalf("staged limits = %d ms / %d MB", c.lastTask.TimeoutMS, c.lastTask.MemoryLimitMB)
	}
	if c.lastTask.UID != 1000 || c.lastTask.GID != 1000 {
		t.Fatalf("staged credentials = %d:%d", c.lastTask.UID, c.lastTask.GID)
	}

	// chown then chmod must run before the watchdog.
	if len(c.execs) != 3 || c.execs[0][0] != "chown" || c.execs[1][0] != "chmod" || c.execs[2][0] != "/home/watchdog" {
		t.Fatalf("exec order = %v", c.execs)
	}
}

func TestRunBuiltUsesExitCodeOnly(t *testing.T) {
	r, _ := newRunner(t)
	tc := &model.TestCase{ID: 1, Type: model.TestCaseTypeBuilt, Command: "make"}

	c := &fakeContainer{watchdogStdout: reportJSON(t, taskspec.Report{
		ExitCode: 0,
		Stdout:   "gcc -o main main.c\n",
	})}
	got, err := r.RunBuilt(context.Background(), c, tc, problem)
	if err != nil {
		t.Fatalf("RunBuilt: %v", err)
	}
	if got.Result != "AC" {
		t.Fatalf("verdict = %s, want AC even with noisy build output", got.Result)
	}

	c = &fakeContainer{watchdogStdout: reportJSON(t, taskspec.Report{ExitCode: 2, Stderr: "main.c:1: error"})}
	got, err = r.RunBuilt(context.Background(), c, tc, problem)
	if err != nil {
		t.Fatalf("RunBuilt: %v", err)
	}
	if got.Result != "CE" {
		t.Fatalf("verdict = %s, want CE on non-zero build exit", got.Result)
	}
}

func TestRunBuiltStretchesTimeoutToProblemLimit(t *testing.T) {
	r, _ := newRunner(t)
	tc := &model.TestCase{ID: 1, Type: model.TestCaseTypeBuilt, Command: "make"}
	slow := &model.Problem{TimeMS: 5000, MemoryMB: 256}

	c := &fakeContainer{watchdogStdout: reportJSON(t, taskspec.Report{ExitCode: 0})}
	if _, err := r.RunBuilt(context.Background(), c, tc, slow); err != nil {
		t.Fatalf("RunBuilt: %v", err)
	}
	if c.lastTask.TimeoutMS != 5000 {
		t.Fatalf("build timeout = %d, want the problem limit 5000", c.lastTask.TimeoutMS)
	}
	if c.lastTask.MemoryLimitMB != 512 {
		t.Fatalf("build memory = %d, want 512", c.lastTask.MemoryLimitMB)
	}
}

func TestWatchdogFailuresAbort(t *testing.T) {
	tests := []struct {
		name string
		c    *fakeContainer
	}{
		{"non-zero watchdog exit", &fakeContainer{watchdogExit: 1, watchdogStderr: "panic"}},
		{"garbage report", &fakeContainer{watchdogStdout: "not json"}},
		{"report with trailing garbage", &fakeContainer{watchdogStdout: `{"exit_code":0,"stdout":"","stderr":"","timeMS":1,"memoryKB":1,"TLE":false,"MLE":false,"OLE":false}{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dir := newRunner(t)
			writeFixture(t, dir, "expected.txt", "1 2 3\n")

			got, err := r.RunJudge(context.Background(), tt.c, judgeCase("expected.txt"), problem)
			if err == nil {
				t.Fatal("expected an abort error")
			}
			if got.Result != "IE" {
				t.Fatalf("verdict = %s, want IE", got.Result)
			}
		})
	}
}

func TestOutputOverflowTruncation(t *testing.T) {
	r, dir := newRunner(t)
	writeFixture(t, dir, "expected.txt", "x\n")

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	c := &fakeContainer{watchdogStdout: reportJSON(t, taskspec.Report{ExitCode: 0, Stdout: string(long)})}

	got, err := r.RunJudge(context.Background(), c, judgeCase("expected.txt"), problem)
	if err != nil {
		t.Fatalf("RunJudge: %v", err)
	}
	if got.Result != "OLE" {
		t.Fatalf("verdict = %s, want OLE", got.Result)
	}
	if len(got.Stdout) != 256 {
		t.Fatalf("stored stdout length = %d, want clipped to 256", len(got.Stdout))
	}
	if len(got.Stderr) > 256 {
		t.Fatalf("stored stderr length = %d, cap is 256", len(got.Stderr))
	}
	if !strings.Contains(got.Stderr, "stdout is too long") {
		t.Fatalf("stderr %q lacks truncation notice", got.Stderr)
	}
}
