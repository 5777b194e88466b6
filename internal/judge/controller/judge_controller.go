// Package controller exposes the judge's small operator API: health
// plus read-only submission status. Submissions enter through the
// database, so there is no write surface here.
package controller

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/scheduler"
	"dsajudge/pkg/utils/response"
)

// StatusStore is the read side of the submission store.
type StatusStore interface {
	FindSubmission(ctx context.Context, id int64) (*model.Submission, error)
	FindCaseResults(ctx context.Context, submissionID int64) ([]*model.JudgeResult, error)
}

// JudgeController handles judge status requests.
type JudgeController struct {
	store StatusStore
	sched *scheduler.Scheduler
}

// NewJudgeController creates a new controller.
func NewJudgeController(store StatusStore, sched *scheduler.Scheduler) *JudgeController {
	return &JudgeController{store: store, sched: sched}
}

// SubmissionStatus is the wire view of one submission.
type SubmissionStatus struct {
	ID            int64        `json:"id"`
	Progress      string       `json:"progress"`
	TotalTask     int64        `json:"totalTask"`
	CompletedTask int64        `json:"completedTask"`
	Result        string       `json:"result,omitempty"`
	Message       string       `json:"message,omitempty"`
	Detail        string       `json:"detail,omitempty"`
	Score         int64        `json:"score"`
	TimeMS        int64        `json:"timeMS"`
	MemoryKB      int64        `json:"memoryKB"`
	Cases         []CaseStatus `json:"cases,omitempty"`
}

// CaseStatus is the wire view of one judged test case.
type CaseStatus struct {
	TestCaseID int64  `json:"testcaseId"`
	Result     string `json:"result"`
	Command    string `json:"command"`
	TimeMS     int64  `json:"timeMS"`
	MemoryKB   int64  `json:"memoryKB"`
	ExitCode   int64  `json:"exitCode"`
}

// GetStatus returns status for one submission, including per-case rows
// once judging finished.
func (h *JudgeController) GetStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid submission id")
		return
	}

	sub, err := h.store.FindSubmission(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := SubmissionStatus{
		ID:            sub.ID,
		Progress:      sub.Progress,
		TotalTask:     sub.TotalTask,
		CompletedTask: sub.CompletedTask,
		Result:        sub.Result.String,
		Message:       sub.Message.String,
		Detail:        sub.Detail.String,
		Score:         sub.Score.Int64,
		TimeMS:        sub.TimeMS.Int64,
		MemoryKB:      sub.MemoryKB.Int64,
	}

	if sub.Progress == model.ProgressDone {
		rows, err := h.store.FindCaseResults(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		for _, row := range rows {
			status.Cases = append(status.Cases, CaseStatus{
				TestCaseID: row.TestCaseID,
				Result:     row.Result,
				Command:    row.Command,
				TimeMS:     row.TimeMS,
				MemoryKB:   row.MemoryKB,
				ExitCode:   row.ExitCode,
			})
		}
	}

	response.Success(c, status)
}

// Healthz reports liveness plus the scheduler's current load.
func (h *JudgeController) Healthz(c *gin.Context) {
	payload := gin.H{"status": "ok"}
	if h.sched != nil {
		payload["queueDepth"] = h.sched.QueueDepth()
		payload["activeJobs"] = h.sched.Active()
	}
	response.Success(c, payload)
}
