// Package task provides keyed once-only execution for the apply walk.
package task

import "sync"

// Group runs keyed tasks at most once. Multiple walkers can reach the same
// resource through different paths in the graph; the group makes sure the
// resource is only processed once, and that late arrivals get the result of
// the first run.
type Group struct {
	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	once sync.Once
	err  error
}

// NewGroup creates a new task group.
func NewGroup() *Group {
	return &Group{
		tasks: make(map[string]*task),
	}
}

// Do runs fn for the given key unless another call already ran it.
// Concurrent calls with the same key block until the first one finishes;
// later calls return immediately with the first call's error.
func (g *Group) Do(key string, fn func() error) error {
	g.mu.Lock()
	t, ok := g.tasks[key]
	if !ok {
		t = &task{}
		g.tasks[key] = t
	}
	g.mu.Unlock()

	t.once.Do(func() { t.err = fn() })

	return t.err
}
