package compose

import (
	"slices"
	"sync"
)

// Task names a per-entry operation.
type Task string

const (
	TaskCaption Task = "caption"
	TaskCopy    Task = "copy"
	TaskTitle   Task = "title"
	TaskImage   Task = "image"
)

type taskKey struct {
	entryID string
	task    Task
}

// Tracker records which per-entry operations are in flight. Operations on
// different entries are independent; two operations on the same entry are
// not serialized and the last write wins.
type Tracker struct {
	mu      sync.Mutex
	running map[taskKey]int
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{running: make(map[taskKey]int)}
}

// Begin marks task as running for entryID and returns the func that ends it.
func (t *Tracker) Begin(entryID string, task Task) (done func()) {
	key := taskKey{entryID, task}
	t.mu.Lock()
	t.running[key]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.running[key] <= 1 {
				delete(t.running, key)
			} else {
				t.running[key]--
			}
		})
	}
}

// Do runs fn while task is marked running for entryID.
func (t *Tracker) Do(entryID string, task Task, fn func() error) error {
	done := t.Begin(entryID, task)
	defer done()
	return fn()
}

// Active returns the running tasks of entryID, sorted.
func (t *Tracker) Active(entryID string) []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Task
	for key := range t.running {
		if key.entryID == entryID {
			out = append(out, key.task)
		}
	}
	slices.Sort(out)
	return out
}

// IsActive reports whether task is running for entryID.
func (t *Tracker) IsActive(entryID string, task Task) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running[taskKey{entryID, task}] > 0
}
