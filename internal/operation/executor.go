package operation

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gridwatch/gridwatch/internal/logging"
	"github.com/gridwatch/gridwatch/internal/metrics"
)

const defaultQueueSize = 1024

// ErrExecutorStopped is returned by submissions after Stop.
var ErrExecutorStopped = errors.New("operation executor stopped")

// Executor owns two disjoint runner pools: partition runners, which
// guarantee ordered execution per partition, and generic runners for
// partition-agnostic work.
type Executor struct {
	partitionRunners []*Runner
	genericRunners   []*Runner
	genericNext      atomic.Uint64
	completed        *metrics.LongGauge
	logger           *logging.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	// submitMu serializes submissions against queue closing: Stop takes
	// the write side before closing, so a submitter that passed the
	// stopped check cannot send on a closed queue.
	submitMu sync.RWMutex
}

// NewExecutor creates an executor with the given pool sizes and registers
// its probes on the metrics registry.
func NewExecutor(partitionCount, genericCount int, registry *metrics.Registry, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		partitionRunners: make([]*Runner, partitionCount),
		genericRunners:   make([]*Runner, genericCount),
		logger:           logger.WithComponent("operation-executor"),
	}
	for i := range e.partitionRunners {
		e.partitionRunners[i] = newRunner(fmt.Sprintf("partition-%d", i), defaultQueueSize)
	}
	for i := range e.genericRunners {
		e.genericRunners[i] = newRunner(fmt.Sprintf("generic-%d", i), defaultQueueSize)
	}

	if registry != nil {
		e.completed = registry.NewLongGauge("operation.completed.count", metrics.TargetDiagnostics|metrics.TargetExport)
		registry.RegisterLong("operation.queue.size", metrics.TargetDiagnostics, func() (int64, error) {
			return e.QueuedTasks(), nil
		})
		registry.RegisterLong("operation.partition.threads", metrics.TargetDiagnostics, func() (int64, error) {
			return int64(len(e.partitionRunners)), nil
		})
		registry.RegisterLong("operation.generic.threads", metrics.TargetDiagnostics, func() (int64, error) {
			return int64(len(e.genericRunners)), nil
		})
	}
	return e
}

// Start launches all runner goroutines.
func (e *Executor) Start() {
	for _, r := range append(append([]*Runner{}, e.partitionRunners...), e.genericRunners...) {
		e.wg.Add(1)
		go r.loop(&e.wg, e.onTaskComplete, e.onTaskPanic)
	}
	e.logger.Info("executor started",
		"partition_runners", len(e.partitionRunners),
		"generic_runners", len(e.genericRunners))
}

// Stop closes all queues and waits for in-flight tasks to finish.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		e.submitMu.Lock()
		e.stopped.Store(true)
		for _, r := range e.partitionRunners {
			close(r.queue)
		}
		for _, r := range e.genericRunners {
			close(r.queue)
		}
		e.submitMu.Unlock()

		e.wg.Wait()
		e.logger.Info("executor stopped")
	})
}

// SubmitToPartition queues a task on the runner owning the partition.
// Blocks when the runner queue is full.
func (e *Executor) SubmitToPartition(partitionID int, task Task) error {
	if partitionID < 0 {
		return fmt.Errorf("negative partition id %d", partitionID)
	}

	e.submitMu.RLock()
	defer e.submitMu.RUnlock()
	if e.stopped.Load() {
		return ErrExecutorStopped
	}
	r := e.partitionRunners[partitionID%len(e.partitionRunners)]
	r.queue <- task
	return nil
}

// SubmitGeneric queues a task on a generic runner, round-robin.
func (e *Executor) SubmitGeneric(task Task) error {
	e.submitMu.RLock()
	defer e.submitMu.RUnlock()
	if e.stopped.Load() {
		return ErrExecutorStopped
	}
	idx := e.genericNext.Add(1)
	r := e.genericRunners[int(idx)%len(e.genericRunners)]
	r.queue <- task
	return nil
}

// PartitionRunners returns the partition-affine runner pool. The slice is
// fixed after construction; callers must not mutate it.
func (e *Executor) PartitionRunners() []*Runner {
	return e.partitionRunners
}

// GenericRunners returns the generic runner pool.
func (e *Executor) GenericRunners() []*Runner {
	return e.genericRunners
}

// QueuedTasks returns the number of tasks waiting across all runners.
func (e *Executor) QueuedTasks() int64 {
	var n int64
	for _, r := range e.partitionRunners {
		n += int64(len(r.queue))
	}
	for _, r := range e.genericRunners {
		n += int64(len(r.queue))
	}
	return n
}

func (e *Executor) onTaskComplete() {
	if e.completed != nil {
		e.completed.Inc(1)
	}
}

func (e *Executor) onTaskPanic(runner string, rec any) {
	e.logger.Error("task panicked", "runner", runner, "panic", rec)
}
