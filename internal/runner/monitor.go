package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xeonx/timeago"
)

// Monitor manages and executes scheduled board checks
type Monitor struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *log.Logger
	wg       sync.WaitGroup

	mu      sync.Mutex
	lastRun map[string]time.Time
	stopped bool
}

// NewMonitor creates a new monitor. Overlapping runs of the same task are
// skipped, not queued.
func NewMonitor(registry *TaskRegistry) *Monitor {
	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags)
	return &Monitor{
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		registry: registry,
		logger:   logger,
		lastRun:  make(map[string]time.Time),
	}
}

// Schedule registers every task with cron without starting it.
func (m *Monitor) Schedule(ctx context.Context) error {
	for _, name := range m.registry.Names() {
		task, _ := m.registry.Get(name)
		m.logger.Printf("Registering task: %s with schedule: %s", name, task.Schedule())

		_, err := m.cron.AddFunc(task.Schedule(), func() {
			m.executeTask(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
	}
	return nil
}

// Start schedules tasks and blocks until a signal or ctx ends it.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Println("Starting monitor...")
	if err := m.Schedule(ctx); err != nil {
		return err
	}

	m.cron.Start()
	m.logger.Println("Monitor started successfully")
	for _, e := range m.cron.Entries() {
		m.logger.Printf("Next run at %s", e.Next.Format(time.RFC3339))
	}

	return m.waitForShutdown(ctx)
}

// RunNow executes a task immediately, outside its schedule.
func (m *Monitor) RunNow(ctx context.Context, name string) error {
	task, ok := m.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("monitor stopped, not running task %s", name)
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()
	return m.executeTask(ctx, task)
}

// executeTask runs a single task with timeout and error handling
func (m *Monitor) executeTask(ctx context.Context, task Task) error {
	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	m.mu.Lock()
	prev, seen := m.lastRun[task.Name()]
	m.lastRun[task.Name()] = time.Now()
	m.mu.Unlock()
	if seen {
		m.logger.Printf("Executing task: %s (previous run %s)", task.Name(), timeago.English.Format(prev))
	} else {
		m.logger.Printf("Executing task: %s", task.Name())
	}

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	if err != nil {
		m.logger.Printf("Task %s failed after %v: %v", task.Name(), duration, err)
	} else {
		m.logger.Printf("Task %s completed successfully in %v", task.Name(), duration)
	}
	return err
}

// Stop gracefully shuts down the monitor
func (m *Monitor) Stop() {
	m.logger.Println("Stopping monitor...")

	// Stop the scheduler and wait for scheduled runs in flight
	<-m.cron.Stop().Done()

	// Refuse new RunNow calls, then wait for those already running
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.wg.Wait()

	m.logger.Println("Monitor stopped")
}

// waitForShutdown waits for termination signals
func (m *Monitor) waitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Printf("Received signal: %v", sig)
		m.Stop()
		return nil
	case <-ctx.Done():
		m.logger.Println("Context cancelled")
		m.Stop()
		return ctx.Err()
	}
}
