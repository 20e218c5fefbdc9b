package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/boardcheck/internal/scenario"
)

type stubTask struct {
	name     string
	schedule string
	runs     chan struct{}
	err      error
}

func (s *stubTask) Name() string           { return s.name }
func (s *stubTask) Schedule() string       { return s.schedule }
func (s *stubTask) Timeout() time.Duration { return time.Second }
func (s *stubTask) Run(ctx context.Context) error {
	s.runs <- struct{}{}
	return s.err
}

func quietMonitor(reg *TaskRegistry) *Monitor {
	m := NewMonitor(reg)
	m.logger = log.New(io.Discard, "", 0)
	return m
}

func TestMonitorRunsScheduledTask(t *testing.T) {
	task := &stubTask{name: "probe", schedule: "@every 1s", runs: make(chan struct{}, 4)}
	reg := NewTaskRegistry()
	reg.Register(task)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- quietMonitor(reg).Start(ctx) }()

	select {
	case <-task.runs:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled task did not run")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitorRejectsBadSchedule(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register(&stubTask{name: "broken", schedule: "every now and then", runs: make(chan struct{}, 1)})
	err := quietMonitor(reg).Schedule(context.Background())
	assert.ErrorContains(t, err, "failed to schedule task broken")
}

func TestRunNow(t *testing.T) {
	boom := errors.New("boom")
	reg := NewTaskRegistry()
	reg.Register(&stubTask{name: "a", schedule: "@daily", runs: make(chan struct{}, 2), err: boom})
	m := quietMonitor(reg)

	assert.ErrorIs(t, m.RunNow(context.Background(), "a"), boom)
	assert.ErrorIs(t, m.RunNow(context.Background(), "a"), boom)
	assert.ErrorContains(t, m.RunNow(context.Background(), "b"), "unknown task")
	assert.Equal(t, []string{"a"}, reg.Names())
}

type blockingTask struct {
	stubTask
	release chan struct{}
}

func (b *blockingTask) Run(ctx context.Context) error {
	b.runs <- struct{}{}
	<-b.release
	return nil
}

func TestStopWaitsForScheduledRun(t *testing.T) {
	task := &blockingTask{
		stubTask: stubTask{name: "slow", schedule: "@every 1s", runs: make(chan struct{}, 4)},
		release:  make(chan struct{}),
	}
	reg := NewTaskRegistry()
	reg.Register(task)
	m := quietMonitor(reg)
	require.NoError(t, m.Schedule(context.Background()))
	m.cron.Start()

	select {
	case <-task.runs:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled task did not run")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(task.release)
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	assert.ErrorContains(t, m.RunNow(context.Background(), "slow"), "monitor stopped")
}

func TestBoardCheckTask(t *testing.T) {
	r := New(fixtureDriver(t), quietOptions())

	var got *Summary
	task := NewBoardCheckTask(r, func() (*scenario.Table, error) { return table(tc6()), nil }, "@every 15m")
	task.OnSummary = func(s *Summary) { got = s }
	assert.Equal(t, "board-check", task.Name())
	assert.Equal(t, "@every 15m", task.Schedule())
	assert.Equal(t, time.Hour, task.Timeout())

	require.NoError(t, task.Run(context.Background()))
	require.NotNil(t, got)
	assert.True(t, got.OK())

	broken := tc6()
	broken.Column = "Archived"
	task = NewBoardCheckTask(r, func() (*scenario.Table, error) { return table(broken), nil }, "@daily")
	assert.ErrorContains(t, task.Run(context.Background()), "1 of 1 scenarios failed")

	task = NewBoardCheckTask(r, func() (*scenario.Table, error) { return nil, errors.New("bad yaml") }, "@daily")
	assert.ErrorContains(t, task.Run(context.Background()), "load scenarios")
}
