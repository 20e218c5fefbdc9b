package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gotrs-io/boardcheck/internal/scenario"
)

// Task represents a job the monitor runs on a schedule
type Task interface {
	// Name returns the unique name of the task
	Name() string

	// Schedule returns the cron schedule expression for this task
	Schedule() string

	// Run executes the task
	Run(ctx context.Context) error

	// Timeout returns the maximum time this task should run
	Timeout() time.Duration
}

// TaskRegistry holds all registered tasks
type TaskRegistry struct {
	tasks map[string]Task
}

// NewTaskRegistry creates a new task registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]Task),
	}
}

// Register adds a task to the registry
func (r *TaskRegistry) Register(task Task) {
	r.tasks[task.Name()] = task
}

// Get returns a task by name
func (r *TaskRegistry) Get(name string) (Task, bool) {
	task, exists := r.tasks[name]
	return task, exists
}

// Names returns the registered task names, sorted.
func (r *TaskRegistry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BoardCheckTask runs a scenario table on every tick.
type BoardCheckTask struct {
	runner   *Runner
	table    func() (*scenario.Table, error)
	schedule string
	timeout  time.Duration
	// OnSummary receives each finished run.
	OnSummary func(*Summary)
	// RunnerFunc, when set, builds the runner for each run so reloaded
	// configuration takes effect.
	RunnerFunc func() *Runner
}

// NewBoardCheckTask creates the monitor task. table is called on every tick
// so edits to the scenario file apply to the next run.
func NewBoardCheckTask(r *Runner, table func() (*scenario.Table, error), schedule string) *BoardCheckTask {
	return &BoardCheckTask{
		runner:   r,
		table:    table,
		schedule: schedule,
		timeout:  time.Hour,
	}
}

func (t *BoardCheckTask) Name() string { return "board-check" }

func (t *BoardCheckTask) Schedule() string { return t.schedule }

func (t *BoardCheckTask) Timeout() time.Duration { return t.timeout }

// SetTimeout overrides the per-run budget.
func (t *BoardCheckTask) SetTimeout(d time.Duration) { t.timeout = d }

func (t *BoardCheckTask) Run(ctx context.Context) error {
	table, err := t.table()
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}
	r := t.runner
	if t.RunnerFunc != nil {
		r = t.RunnerFunc()
	}
	sum := r.Run(ctx, table)
	if t.OnSummary != nil {
		t.OnSummary(sum)
	}
	if !sum.OK() {
		return fmt.Errorf("%d of %d scenarios failed", sum.Failed(), len(sum.Results))
	}
	return nil
}
