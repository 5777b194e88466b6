package controller_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"dsajudge/internal/judge/controller"
	"dsajudge/internal/judge/model"
	appErr "dsajudge/pkg/errors"
)

type fakeStatusStore struct {
	sub  *model.Submission
	rows []*model.JudgeResult
}

func (f *fakeStatusStore) FindSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	if f.sub == nil || f.sub.ID != id {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	return f.sub, nil
}

func (f *fakeStatusStore) FindCaseResults(ctx context.Context, submissionID int64) ([]*model.JudgeResult, error) {
	return f.rows, nil
}

func newRouter(store *fakeStatusStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := controller.NewJudgeController(store, nil)
	router.GET("/healthz", h.Healthz)
	router.GET("/api/v1/judge/submissions/:id", h.GetStatus)
	return router
}

func doGet(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response %q: %v", w.Body.String(), err)
	}
	return w, body
}

func TestGetStatusDoneSubmission(t *testing.T) {
	store := &fakeStatusStore{
		sub: &model.Submission{
			ID:            7,
			Progress:      model.ProgressDone,
			TotalTask:     2,
			CompletedTask: 2,
			Result:        sql.NullString{String: "WA", Valid: true},
			Score:         sql.NullInt64{Int64: 50, Valid: true},
			TimeMS:        sql.NullInt64{Int64: 120, Valid: true},
			MemoryKB:      sql.NullInt64{Int64: 2048, Valid: true},
		},
		rows: []*model.JudgeResult{
			{TestCaseID: 1, Result: "AC", Command: "./main", TimeMS: 100},
			{TestCaseID: 2, Result: "WA", Command: "./main", TimeMS: 120},
		},
	}

	w, body := doGet(t, newRouter(store), "/api/v1/judge/submissions/7")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var status controller.SubmissionStatus
	if err := json.Unmarshal(body["data"], &status); err != nil {
		t.Fatalf("parse data: %v", err)
	}
	if status.Result != "WA" || status.Score != 50 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(status.Cases))
	}
}

func TestGetStatusRunningSubmissionOmitsCases(t *testing.T) {
	store := &fakeStatusStore{
		sub: &model.Submission{ID: 7, Progress: model.ProgressRunning, TotalTask: 4, CompletedTask: 1},
		rows: []*model.JudgeResult{
			{TestCaseID: 1, Result: "AC"},
		},
	}

	w, body := doGet(t, newRouter(store), "/api/v1/judge/submissions/7")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status controller.SubmissionStatus
	if err := json.Unmarshal(body["data"], &status); err != nil {
		t.Fatalf("parse data: %v", err)
	}
	if status.CompletedTask != 1 || status.TotalTask != 4 {
		t.Fatalf("progress = %d/%d", status.CompletedTask, status.TotalTask)
	}
	if len(status.Cases) != 0 {
		t.Fatal("per-case rows must not leak while judging is in flight")
	}
}

func TestGetStatusBadID(t *testing.T) {
	w, _ := doGet(t, newRouter(&fakeStatusStore{}), "/api/v1/judge/submissions/abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	w, _ := doGet(t, newRouter(&fakeStatusStore{}), "/api/v1/judge/submissions/99")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	w, _ := doGet(t, newRouter(&fakeStatusStore{}), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
