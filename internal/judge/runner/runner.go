// Package runner executes single test cases against a sandbox
// container through the watchdog protocol and classifies the outcome.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dsajudge/internal/judge/checker"
	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/sandbox"
	"dsajudge/internal/judge/sandbox/taskspec"
	"dsajudge/internal/judge/verdict"
	appErr "dsajudge/pkg/errors"
)

const (
	watchdogBinary        = "/home/watchdog"
	guestWorkDir          = "/home/guest"
	setupTimeout          = 2 * time.Second
	execCeiling           = 8 * time.Second
	execGrace             = 2 * time.Second
	buildMemoryMB         = 512
	defaultBuildTimeoutMS = 2000
)

// Config carries the per-instance knobs of the runner.
type Config struct {
	// ResourceDir is the root the test case paths resolve against.
	ResourceDir string
	// GuestUID and GuestGID own the judged process inside the sandbox.
	GuestUID int
	GuestGID int
	// Output caps for the judged process, in bytes.
	StdoutMaxBytes int
	StderrMaxBytes int
	// BuildTimeoutMS bounds one build step. The problem's time limit
	// wins when larger, so slow-to-compile assignments still build.
	BuildTimeoutMS int64
}

// Runner drives test cases on a container.
type Runner struct {
	cfg Config
}

// New returns a runner. Zero caps and timeouts get defaults.
func New(cfg Config) *Runner {
	if cfg.StdoutMaxBytes <= 0 {
		cfg.StdoutMaxBytes = 2048
	}
	if cfg.StderrMaxBytes <= 0 {
		cfg.StderrMaxBytes = 2048
	}
	if cfg.BuildTimeoutMS <= 0 {
		cfg.BuildTimeoutMS = defaultBuildTimeoutMS
	}
	return &Runner{cfg: cfg}
}

// RunBuilt executes one build-phase case. The returned row is always
// usable; a non-nil error additionally tells the caller to abort the
// submission because the sandbox itself misbehaved.
func (r *Runner) RunBuilt(ctx context.Context, c sandbox.Container, tc *model.TestCase, problem *model.Problem) (*model.JudgeResult, error) {
	command := buildCommand(tc)
	result := newResult(tc, command)

	stdin, err := r.readResource(tc.StdinPath)
	if err != nil {
		return r.abort(result, "read stdin fixture failed", err)
	}

	timeoutMS := r.cfg.BuildTimeoutMS
	if problem.TimeMS > timeoutMS {
		timeoutMS = problem.TimeMS
	}
	task := taskspec.Task{
		Command:       command,
		Stdin:         stdin,
		TimeoutMS:     timeoutMS,
		MemoryLimitMB: buildMemoryMB,
		UID:           r.cfg.GuestUID,
		GID:           r.cfg.GuestGID,
	}

	report, err := r.runWatchdog(ctx, c, task, result)
	if err != nil {
		return result, err
	}

	result.ExitCode = int64(report.ExitCode)
	result.Stdout = report.Stdout
	result.Stderr = report.Stderr
	result.TimeMS = report.TimeMS
	result.MemoryKB = report.MemoryKB

	// Build logs are not compared against fixtures; only the exit
	// code decides compilation success.
	v := verdict.AC
	if report.TLE {
		v = verdict.TLE
	}
	if report.MLE {
		v = verdict.MLE
	}
	if r.truncateOverflow(result) || report.OLE {
		v = verdict.OLE
	}
	if int64(report.ExitCode) != tc.ExitCode {
		v = verdict.CE
	}
	result.Result = string(v)
	return result, nil
}

// RunJudge executes one judge-phase case and compares its output
// against the expectations of the test case.
func (r *Runner) RunJudge(ctx context.Context, c sandbox.Container, tc *model.TestCase, problem *model.Problem) (*model.JudgeResult, error) {
	command := buildCommand(tc)
	result := newResult(tc, command)

	stdin, err := r.readResource(tc.StdinPath)
	if err != nil {
		return r.abort(result, "read stdin fixture failed", err)
	}
	expectedStdout, hasStdout, err := r.readOptionalResource(tc.StdoutPath)
	if err != nil {
		return r.abort(result, "read stdout fixture failed", err)
	}
	expectedStderr, hasStderr, err := r.readOptionalResource(tc.StderrPath)
	if err != nil {
		return r.abort(result, "read stderr fixture failed", err)
	}

	task := taskspec.Task{
		Command:       command,
		Stdin:         stdin,
		TimeoutMS:     problem.TimeMS,
		MemoryLimitMB: problem.MemoryMB,
		UID:           r.cfg.GuestUID,
		GID:           r.cfg.GuestGID,
	}

	report, err := r.runWatchdog(ctx, c, task, result)
	if err != nil {
		return result, err
	}

	result.ExitCode = int64(report.ExitCode)
	result.Stdout = report.Stdout
	result.Stderr = report.Stderr
	result.TimeMS = report.TimeMS
	result.MemoryKB = report.MemoryKB

	overflowed := r.truncateOverflow(result)
	expectNormalExit := tc.ExitCode == 0

	var v verdict.Verdict
	switch {
	case report.TLE:
		v = verdict.TLE
	case report.MLE:
		v = verdict.MLE
	case report.OLE || overflowed:
		v = verdict.OLE
	case expectNormalExit && report.ExitCode != 0:
		v = verdict.RE
	case hasStdout && !checker.Match(expectedStdout, result.Stdout),
		hasStderr && !checker.Match(expectedStderr, result.Stderr):
		v = verdict.WA
	case !expectNormalExit && report.ExitCode == 0:
		// The program was expected to detect a bad input and exit
		// non-zero but reported success.
		v = verdict.WA
	default:
		v = verdict.AC
	}
	result.Result = string(v)
	return result, nil
}

// runWatchdog stages the task document and invokes the watchdog. A
// non-nil error marks the submission as unjudgeable; result is already
// filled with the IE outcome.
func (r *Runner) runWatchdog(ctx context.Context, c sandbox.Container, task taskspec.Task, result *model.JudgeResult) (taskspec.Report, error) {
	doc, err := taskspec.EncodeTask(task)
	if err != nil {
		r.abort(result, "encode task failed", err)
		return taskspec.Report{}, appErr.Wrapf(err, appErr.TaskStagingFailed, "encode task document failed")
	}

	err = c.UploadFile(ctx, sandbox.FileSpec{
		DestPath: taskspec.TaskPath,
		Content:  doc,
		Mode:     0o600,
	})
	if err != nil {
		r.abort(result, "upload task document failed", err)
		return taskspec.Report{}, appErr.Wrapf(err, appErr.TaskStagingFailed, "upload task document failed")
	}

	// The document carries the guest credentials; it must not be
	// readable by the judged process.
	for _, cmd := range [][]string{
		{"chown", "root:root", taskspec.TaskPath},
		{"chmod", "600", taskspec.TaskPath},
	} {
		res, err := c.Exec(ctx, sandbox.ExecSpec{
			Cmd:     cmd,
			User:    "root",
			WorkDir: guestWorkDir,
			Timeout: setupTimeout,
		})
		if err != nil || res.TimedOut || res.ExitCode != 0 {
			r.abort(result, fmt.Sprintf("sandbox setup %q failed", cmd[0]), err)
			return taskspec.Report{}, appErr.Newf(appErr.TaskStagingFailed, "%s task document failed (exit %d)", cmd[0], res.ExitCode)
		}
	}

	timeout := execCeiling
	if t := time.Duration(task.TimeoutMS)*time.Millisecond + execGrace; t > timeout {
		timeout = t
	}
	res, err := c.Exec(ctx, sandbox.ExecSpec{
		Cmd:     []string{watchdogBinary, "task.json"},
		User:    "root",
		WorkDir: guestWorkDir,
		Env: []string{
			fmt.Sprintf("OUTPUT_LIMIT_STDOUT_BYTES=%d", r.cfg.StdoutMaxBytes),
			fmt.Sprintf("OUTPUT_LIMIT_STDERR_BYTES=%d", r.cfg.StderrMaxBytes),
		},
		Timeout: timeout,
	})
	if err != nil || res.TimedOut {
		r.abort(result, "watchdog invocation failed", err)
		return taskspec.Report{}, appErr.Newf(appErr.WatchdogFailed, "watchdog invocation failed")
	}
	if res.ExitCode != 0 {
		result.Result = string(verdict.IE)
		result.ExitCode = int64(res.ExitCode)
		result.Stderr = "watchdog error: " + res.Stderr
		return taskspec.Report{}, appErr.Newf(appErr.WatchdogFailed, "watchdog exited with %d", res.ExitCode)
	}

	report, err := taskspec.DecodeReport([]byte(res.Stdout))
	if err != nil {
		result.Result = string(verdict.IE)
		result.Stderr = fmt.Sprintf("invalid watchdog report: %v\nwatchdog stderr: %s", err, res.Stderr)
		return taskspec.Report{}, appErr.Wrapf(err, appErr.WatchdogReportInvalid, "decode watchdog report failed")
	}
	return report, nil
}

// truncateOverflow clips the captured streams to the configured caps
// and reports whether either stream was over. The truncation notice
// replaces the tail of stderr so the stored row stays within budget.
func (r *Runner) truncateOverflow(result *model.JudgeResult) bool {
	stdoutOver := len(result.Stdout) > r.cfg.StdoutMaxBytes
	stderrOver := len(result.Stderr) > r.cfg.StderrMaxBytes
	if !stdoutOver && !stderrOver {
		return false
	}
	if stdoutOver {
		result.Stdout = result.Stdout[:r.cfg.StdoutMaxBytes]
		notice := fmt.Sprintf("stdout is too long: capacity (%d bytes) exceeded", r.cfg.StdoutMaxBytes)
		result.Stderr = clipTail(result.Stderr, r.cfg.StderrMaxBytes-len(notice)) + notice
	}
	if stderrOver {
		notice := fmt.Sprintf("stderr is too long: capacity (%d bytes) exceeded", r.cfg.StderrMaxBytes)
		result.Stderr = clipTail(result.Stderr, r.cfg.StderrMaxBytes-len(notice)) + notice
	}
	return true
}

func clipTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (r *Runner) abort(result *model.JudgeResult, msg string, err error) (*model.JudgeResult, error) {
	result.Result = string(verdict.IE)
	if err == nil {
		result.Stderr = msg
		return result, appErr.Newf(appErr.InternalError, "%s", msg)
	}
	result.Stderr = fmt.Sprintf("%s: %v", msg, err)
	return result, appErr.Wrapf(err, appErr.InternalError, "%s", msg)
}

func newResult(tc *model.TestCase, command string) *model.JudgeResult {
	return &model.JudgeResult{
		TestCaseID: tc.ID,
		Result:     string(verdict.AC),
		Command:    command,
	}
}

// buildCommand appends the whitespace-squashed arguments to the base
// command of the test case.
func buildCommand(tc *model.TestCase) string {
	if !tc.Args.Valid || strings.TrimSpace(tc.Args.String) == "" {
		return tc.Command
	}
	return tc.Command + " " + strings.Join(strings.Fields(tc.Args.String), " ")
}

func (r *Runner) readResource(p sql.NullString) (string, error) {
	if !p.Valid {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(r.cfg.ResourceDir, p.String))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Runner) readOptionalResource(p sql.NullString) (string, bool, error) {
	if !p.Valid {
		return "", false, nil
	}
	data, err := os.ReadFile(filepath.Join(r.cfg.ResourceDir, p.String))
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}
