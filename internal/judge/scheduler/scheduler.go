// Package scheduler feeds claimed submissions through a bounded queue
// to a fixed worker pool. The queue filler polls the database so the
// judge needs no inbound traffic; multiple instances stay correct
// because claiming happens under row locks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"dsajudge/internal/judge/model"
)

const (
	defaultQueueSize    = 20
	defaultWorkers      = 6
	defaultPollInterval = 5 * time.Second
)

// Store claims work for the scheduler.
type Store interface {
	ClaimQueued(ctx context.Context, limit int) ([]*model.Submission, error)
}

// Judger runs one submission to completion.
type Judger interface {
	Judge(ctx context.Context, sub *model.Submission) error
}

// Config tunes the scheduler. Zero values get defaults.
type Config struct {
	QueueSize    int
	Workers      int
	PollInterval time.Duration
}

// ActiveJob describes one submission currently held by a worker.
type ActiveJob struct {
	SubmissionID int64     `json:"submissionId"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

// Scheduler owns the filler, the queue, and the workers.
type Scheduler struct {
	store Store
	judge Judger
	cfg   Config

	jobs chan *model.Submission
	wg   sync.WaitGroup

	mu     sync.Mutex
	active map[int64]ActiveJob
}

// New builds a scheduler.
func New(store Store, judge Judger, cfg Config) *Scheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Scheduler{
		store:  store,
		judge:  judge,
		cfg:    cfg,
		jobs:   make(chan *model.Submission, cfg.QueueSize),
		active: make(map[int64]ActiveJob),
	}
}

// Start launches the workers and the filler. It returns immediately;
// cancel ctx and call Wait to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		worker := i
		s.wg.Add(1)
		threading.GoSafe(func() {
			defer s.wg.Done()
			s.workerLoop(ctx, worker)
		})
	}

	s.wg.Add(1)
	threading.GoSafe(func() {
		defer s.wg.Done()
		s.fillLoop(ctx)
	})
}

// Wait blocks until every worker finished its in-flight submission.
// Queued but undispatched submissions stay behind as running rows; the
// next startup's recovery pass requeues them.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Active snapshots the submissions currently being judged.
func (s *Scheduler) Active() []ActiveJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]ActiveJob, 0, len(s.active))
	for _, job := range s.active {
		jobs = append(jobs, job)
	}
	return jobs
}

// QueueDepth reports how many claimed submissions await a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.jobs)
}

// fillLoop tops the queue up to capacity on every tick. Claiming only
// the free slots keeps claimed-but-waiting work bounded, which bounds
// the damage window of a crash.
func (s *Scheduler) fillLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fill(ctx)
		}
	}
}

func (s *Scheduler) fill(ctx context.Context) {
	free := cap(s.jobs) - len(s.jobs)
	if free <= 0 {
		return
	}
	subs, err := s.store.ClaimQueued(ctx, free)
	if err != nil {
		logx.WithContext(ctx).Errorf("claim queued submissions: %v", err)
		return
	}
	for _, sub := range subs {
		select {
		case s.jobs <- sub:
		case <-ctx.Done():
			return
		}
	}
	if len(subs) > 0 {
		logx.WithContext(ctx).Infof("claimed %d submissions, queue depth %d", len(subs), len(s.jobs))
	}
}

func (s *Scheduler) workerLoop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-s.jobs:
			s.runOne(ctx, worker, sub)
		}
	}
}

// runOne judges a dispatched submission. The judge call is detached
// from the shutdown context so an in-flight submission finishes and
// finalizes even while the scheduler is stopping.
func (s *Scheduler) runOne(ctx context.Context, worker int, sub *model.Submission) {
	s.mu.Lock()
	s.active[sub.ID] = ActiveJob{SubmissionID: sub.ID, DispatchedAt: time.Now()}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, sub.ID)
		s.mu.Unlock()
	}()

	start := time.Now()
	logx.WithContext(ctx).Infof("worker %d judging submission %d", worker, sub.ID)
	if err := s.judge.Judge(context.WithoutCancel(ctx), sub); err != nil {
		logx.WithContext(ctx).Errorf("worker %d failed to finalize submission %d: %v", worker, sub.ID, err)
		return
	}
	logx.WithContext(ctx).Infof("worker %d finished submission %d in %s", worker, sub.ID, time.Since(start))
}
