package cache

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs deferred work such as cleaner passes.
//
// Schedule is called after the triggering operation has released its locks,
// so an implementation may run task inline, on a goroutine or queue it.
type Scheduler interface {
	Schedule(task func())
}

// GroupScheduler runs every task on its own goroutine and lets callers wait
// for the tasks it started. It is the default Scheduler of InMemoryCache.
type GroupScheduler struct {
	g errgroup.Group
}

// NewGroupScheduler returns a ready to use GroupScheduler.
func NewGroupScheduler() *GroupScheduler {
	return &GroupScheduler{}
}

// Schedule implements Scheduler.
func (s *GroupScheduler) Schedule(task func()) {
	s.g.Go(func() error {
		task()
		return nil
	})
}

// Wait blocks until every scheduled task has returned.
func (s *GroupScheduler) Wait() error {
	return s.g.Wait()
}

// ManualScheduler queues tasks until RunPending is called. It suits
// single-threaded embedding and deterministic tests.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(task func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

// Pending reports the number of queued tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RunPending runs the tasks queued so far on the calling goroutine and
// returns how many ran. Tasks scheduled while running wait for the next call.
func (s *ManualScheduler) RunPending() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	return len(tasks)
}
