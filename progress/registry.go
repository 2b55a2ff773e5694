package progress

import (
	"sort"
	"sync"
	"time"
)

// Task is one unit of externally reported progress, tracked by reporter
// supplied id.
type Task struct {
	ID       string
	Label    string
	Fraction float64
	LastSeen time.Time
}

// registry is the task table shared between connection handlers and the
// module's render path. All access is serialized through its mutex; the
// registry is never exposed outside this package.
type registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newRegistry() *registry {
	return &registry{tasks: make(map[string]*Task)}
}

// upsert creates or updates the task with the given id, clamping fraction to
// [0, 1]. Monotonicity of fractions is a reporter convention, not enforced.
func (r *registry) upsert(id, label string, fraction float64, now time.Time) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		task = &Task{ID: id}
		r.tasks[id] = task
	}
	if label != "" {
		task.Label = label
	}
	task.Fraction = fraction
	task.LastSeen = now
}

// done removes the task with the given id. Removing an unknown id is a no-op.
func (r *registry) done(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// sweep removes tasks not seen since cutoff and returns how many were
// removed. This is the stale-reporter protection: a reporter that crashed
// without a done message must not leave a permanent ghost entry.
func (r *registry) sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, task := range r.tasks {
		if task.LastSeen.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// snapshot returns a copy of all tasks sorted by id, for deterministic
// rendering.
func (r *registry) snapshot() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
