// Package operation implements the node's operation executor: fixed pools
// of partition-affine and generic runners, each executing one task at a
// time. The currently-executing task of every runner is observable without
// stopping the runner, which is what the diagnostics sampler relies on.
package operation

// Task is a unit of work executed by a runner.
type Task interface {
	Run()
}

// NamedTask is implemented by tasks that operate on a named structure.
// The name shows up in sampled task labels when include-name is enabled.
type NamedTask interface {
	Task
	TaskName() string
}

// TaskFunc adapts a plain function to a Task.
type TaskFunc func()

func (f TaskFunc) Run() { f() }
