package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds one run of a task
const DefaultTaskTimeout = time.Minute

// Task is a periodic job
type Task struct {
	ID       string                          `json:"id"`
	Name     string                          `json:"name"`
	Schedule string                          `json:"schedule"` // Cron expression, 5 or 6 fields, or @every
	Run      func(ctx context.Context) error `json:"-"`
	Timeout  time.Duration                   `json:"-"`

	mu        sync.RWMutex
	entryID   cron.EntryID
	lastRun   time.Time
	lastError string
	runs      int64
}

// TaskStatus is a snapshot of a task
type TaskStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int64      `json:"runs"`
}

// Scheduler runs tasks on cron schedules. Overlapping runs of one task are
// skipped and panics are recovered.
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
			cron.WithLogger(l),
		),
		tasks:  make(map[string]*Task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddTask registers a task. IDs are unique.
func (s *Scheduler) AddTask(task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Schedule == "" {
		return fmt.Errorf("task schedule is required")
	}
	if task.Run == nil {
		return fmt.Errorf("task handler is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task already exists: %s", task.ID)
	}

	entryID, err := s.cron.AddFunc(task.Schedule, func() { s.executeTask(task) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", task.Schedule, err)
	}
	task.mu.Lock()
	task.entryID = entryID
	task.mu.Unlock()
	s.tasks[task.ID] = task

	logger.Info("task added",
		zap.String("taskID", task.ID),
		zap.String("name", task.Name),
		zap.String("schedule", task.Schedule))
	return nil
}

// RemoveTask unregisters a task
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	task.mu.RLock()
	s.cron.Remove(task.entryID)
	task.mu.RUnlock()
	delete(s.tasks, id)

	logger.Info("task removed", zap.String("taskID", id))
	return nil
}

// RunNow executes a task immediately, outside its schedule
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	s.executeTask(task)
	return nil
}

// Status returns a snapshot of every task ordered by ID
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		task.mu.RLock()
		st := TaskStatus{
			ID:        task.ID,
			Name:      task.Name,
			Schedule:  task.Schedule,
			LastError: task.lastError,
			Runs:      task.runs,
		}
		if !task.lastRun.IsZero() {
			t := task.lastRun
			st.LastRun = &t
		}
		if next := s.cron.Entry(task.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
		task.mu.RUnlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler started", zap.Int("tasks", len(s.Status())))
}

// Stop stops scheduling and waits for running tasks
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	logger.Info("scheduler stopped")
}

func (s *Scheduler) executeTask(task *Task) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(ctx)
	duration := time.Since(start)

	task.mu.Lock()
	task.lastRun = start
	task.runs++
	task.lastError = ""
	if err != nil {
		task.lastError = err.Error()
	}
	task.mu.Unlock()

	if err != nil {
		logger.Error("task execution failed",
			zap.String("taskID", task.ID),
			zap.String("name", task.Name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}
	logger.Debug("task executed",
		zap.String("taskID", task.ID),
		zap.Duration("duration", duration))
}

// cronLogger routes cron's own messages to the zap logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Lg.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Lg.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
