package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"dsajudge/internal/judge/model"
	"dsajudge/internal/judge/repository"
)

type fakeProblemFinder struct {
	problem *model.Problem
	err     error
	calls   int
}

func (f *fakeProblemFinder) FindProblem(ctx context.Context, lectureID, assignmentID int64) (*model.Problem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.problem, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rds, err := redis.NewRedis(redis.RedisConf{Host: mr.Addr(), Type: "node"})
	if err != nil {
		t.Fatalf("connect test redis: %v", err)
	}
	return mr, rds
}

func TestProblemCacheMissThenHit(t *testing.T) {
	mr, rds := newTestRedis(t)
	finder := &fakeProblemFinder{problem: &model.Problem{
		LectureID:    1,
		AssignmentID: 2,
		Title:        "linked list",
		TimeMS:       1000,
		MemoryMB:     256,
	}}
	cache := repository.NewProblemCache(rds, finder, time.Minute)

	got, err := cache.FindProblem(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if got.Title != "linked list" || got.MemoryMB != 256 {
		t.Fatalf("unexpected problem: %+v", got)
	}
	if finder.calls != 1 {
		t.Fatalf("expected one store call, got %d", finder.calls)
	}

	got, err = cache.FindProblem(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got.TimeMS != 1000 {
		t.Fatalf("unexpected cached problem: %+v", got)
	}
	if finder.calls != 1 {
		t.Fatalf("second lookup must be served from cache, store calls = %d", finder.calls)
	}

	if !mr.Exists("problem:1:2:false") {
		t.Fatal("expected cache key problem:1:2:false")
	}
}

func TestProblemCacheKeysSeparateEvalMode(t *testing.T) {
	_, rds := newTestRedis(t)
	finder := &fakeProblemFinder{problem: &model.Problem{LectureID: 1, AssignmentID: 2, TimeMS: 500, MemoryMB: 128}}
	cache := repository.NewProblemCache(rds, finder, time.Minute)

	if _, err := cache.FindProblem(context.Background(), 1, 2, false); err != nil {
		t.Fatalf("non-eval lookup: %v", err)
	}
	if _, err := cache.FindProblem(context.Background(), 1, 2, true); err != nil {
		t.Fatalf("eval lookup: %v", err)
	}
	if finder.calls != 2 {
		t.Fatalf("eval and non-eval lookups must not share entries, store calls = %d", finder.calls)
	}
}

func TestProblemCacheCorruptEntryFallsBack(t *testing.T) {
	mr, rds := newTestRedis(t)
	finder := &fakeProblemFinder{problem: &model.Problem{LectureID: 3, AssignmentID: 4, TimeMS: 2000, MemoryMB: 512}}
	cache := repository.NewProblemCache(rds, finder, time.Minute)

	mr.Set("problem:3:4:false", "not json")

	got, err := cache.FindProblem(context.Background(), 3, 4, false)
	if err != nil {
		t.Fatalf("lookup with corrupt entry: %v", err)
	}
	if got.MemoryMB != 512 {
		t.Fatalf("unexpected problem: %+v", got)
	}
	if finder.calls != 1 {
		t.Fatalf("corrupt entry must fall back to the store, calls = %d", finder.calls)
	}
}

func TestProblemCacheNilRedisGoesStraightToStore(t *testing.T) {
	finder := &fakeProblemFinder{problem: &model.Problem{LectureID: 1, AssignmentID: 1}}
	cache := repository.NewProblemCache(nil, finder, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.FindProblem(context.Background(), 1, 1, false); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if finder.calls != 2 {
		t.Fatalf("without redis every lookup hits the store, calls = %d", finder.calls)
	}
}
