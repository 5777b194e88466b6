package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"dsajudge/internal/judge/model"
)

const problemKeyPrefix = "problem:"

// ProblemCache fronts problem lookups with Redis. Problems change
// rarely while a judging burst reads them per submission, so a short
// TTL keeps the table quiet without staleness concerns. Every cache
// failure falls back to the database.
type ProblemCache struct {
	rds   *redis.Redis
	store ProblemFinder
	ttl   time.Duration
}

// ProblemFinder is the slice of JudgeStore the cache fronts.
type ProblemFinder interface {
	FindProblem(ctx context.Context, lectureID, assignmentID int64) (*model.Problem, error)
}

// NewProblemCache wraps a store with a Redis layer. A nil client
// disables caching and every lookup goes straight to the database.
func NewProblemCache(rds *redis.Redis, store ProblemFinder, ttl time.Duration) *ProblemCache {
	return &ProblemCache{rds: rds, store: store, ttl: ttl}
}

func problemKey(lectureID, assignmentID int64, eval bool) string {
	return fmt.Sprintf("%s%d:%d:%t", problemKeyPrefix, lectureID, assignmentID, eval)
}

// FindProblem returns the cached problem or loads and caches it.
func (c *ProblemCache) FindProblem(ctx context.Context, lectureID, assignmentID int64, eval bool) (*model.Problem, error) {
	key := problemKey(lectureID, assignmentID, eval)
	if c.rds != nil {
		val, err := c.rds.GetCtx(ctx, key)
		if err != nil {
			logx.WithContext(ctx).Errorf("problem cache read failed: %v", err)
		} else if val != "" {
			var p model.Problem
			if err := json.Unmarshal([]byte(val), &p); err == nil {
				return &p, nil
			}
			logx.WithContext(ctx).Errorf("problem cache entry for %s is corrupt, reloading", key)
		}
	}

	p, err := c.store.FindProblem(ctx, lectureID, assignmentID)
	if err != nil {
		return nil, err
	}

	if c.rds != nil {
		if data, err := json.Marshal(p); err == nil {
			seconds := int(c.ttl / time.Second)
			if err := c.rds.SetexCtx(ctx, key, string(data), seconds); err != nil {
				logx.WithContext(ctx).Errorf("problem cache write failed: %v", err)
			}
		}
	}
	return p, nil
}
