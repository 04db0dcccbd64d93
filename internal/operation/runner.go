package operation

import (
	"sync"
	"sync/atomic"
)

// Runner executes queued tasks sequentially on its own goroutine. The
// current task reference is published atomically so a sampler thread can
// read it at any instant; nil means idle.
type Runner struct {
	name    string
	queue   chan Task
	current atomic.Pointer[Task]
	done    chan struct{}
}

func newRunner(name string, queueSize int) *Runner {
	return &Runner{
		name:  name,
		queue: make(chan Task, queueSize),
		done:  make(chan struct{}),
	}
}

// Name returns the runner name.
func (r *Runner) Name() string {
	return r.name
}

// CurrentTask returns the task the runner is executing right now, or nil
// when idle. The value is a snapshot; the task may complete immediately
// after the read.
func (r *Runner) CurrentTask() Task {
	p := r.current.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (r *Runner) loop(wg *sync.WaitGroup, onComplete func(), onPanic func(runner string, rec any)) {
	defer wg.Done()
	defer close(r.done)
	for task := range r.queue {
		t := task
		r.current.Store(&t)
		runSafely(r, t, onPanic)
		r.current.Store(nil)
		if onComplete != nil {
			onComplete()
		}
	}
}

// runSafely isolates the runner loop from task panics.
func runSafely(r *Runner, t Task, onPanic func(runner string, rec any)) {
	defer func() {
		if rec := recover(); rec != nil && onPanic != nil {
			onPanic(r.name, rec)
		}
	}()
	t.Run()
}
