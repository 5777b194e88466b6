package repository

import (
	"context"

	"dsajudge/internal/judge/model"
)

// CachedStore is a JudgeStore whose problem lookups go through the
// Redis cache. Everything else passes through unchanged.
type CachedStore struct {
	*JudgeStore
	problems *ProblemCache
}

// NewCachedStore layers a problem cache over a store.
func NewCachedStore(store *JudgeStore, cache *ProblemCache) *CachedStore {
	return &CachedStore{JudgeStore: store, problems: cache}
}

// FindProblem shadows the store method with the cached lookup. The
// eval flag is part of the cache key because eval and non-eval runs of
// the same assignment may diverge over time.
func (s *CachedStore) FindProblem(ctx context.Context, lectureID, assignmentID int64, eval bool) (*model.Problem, error) {
	return s.problems.FindProblem(ctx, lectureID, assignmentID, eval)
}
