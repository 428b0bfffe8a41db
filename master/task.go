package master

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-ecat/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// TaskFunc represents a function that performs one iteration of a task within a goroutine managed by
// the TaskManager. It should return true to continue running the task, or false to stop the goroutine.
type TaskFunc func() bool

// TaskRunFunc represents a blocking task that runs until ctx is cancelled or it fails.
type TaskRunFunc func(ctx context.Context) error

// TaskManager manages the lifecycle of the goroutines owned by a session: the engine wire loop, the
// emergency watcher and the mailbox poller.
//
// The TaskManager uses a context.Context to manage the lifecycle of the goroutines. When the context is
// canceled, all running goroutines are signaled to stop. Wait blocks until all of them terminated.
type TaskManager struct {
	pctx      context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    logger.Logger
	count     atomic.Int32
	intervals *xsync.MapOf[string, *intervalTask]
	mu        sync.RWMutex // protect ctx and cancel
	taskMu    sync.RWMutex // protect task creation during Wait()
}

type intervalTask struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *intervalTask) halt() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}

// NewTaskManager creates a new TaskManager with the given context as the parent context and logger.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l, intervals: xsync.NewMapOf[string, *intervalTask]()}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// getContext safely returns the current context
func (mgr *TaskManager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine with the given name that calls taskFunc in a loop.
//
// The taskFunc should return true to continue running, or false to stop the goroutine.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) error {
	mgr.logger.Debug("Start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func(context.Context) {
		mgr.runTaskLoop(name, taskFunc)
	})

	return starter.waitForStart()
}

// Go starts a new goroutine running the blocking taskFunc with the manager's context. A non-nil error
// returned by taskFunc is logged, and onExit, when not nil, is called with it after the task returned.
func (mgr *TaskManager) Go(name string, taskFunc TaskRunFunc, onExit func(error)) error {
	mgr.logger.Debug("Go task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func(ctx context.Context) {
		var taskErr error
		defer func() {
			if onExit != nil {
				onExit(taskErr)
			}
		}()

		mgr.callWithRecover(name, func() {
			taskErr = taskFunc(ctx)
		})
		if taskErr != nil {
			mgr.logger.Error("task failed", "name", name, "error", taskErr)
		}
	})

	return starter.waitForStart()
}

// StartInterval starts a new goroutine that executes the given task function at the specified interval.
// If runNow is true, the task function is executed immediately before starting the interval.
func (mgr *TaskManager) StartInterval(name string, taskFunc TaskFunc, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("StartInterval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	task := &intervalTask{ticker: time.NewTicker(interval), stop: make(chan struct{})}

	// store task before starting goroutine
	if _, loaded := mgr.intervals.LoadOrStore(name, task); loaded {
		task.ticker.Stop()
		return fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		task.halt()
		mgr.intervals.Compute(name, func(cur *intervalTask, loaded bool) (*intervalTask, bool) {
			// a newer task may have been registered under the same name
			return cur, !loaded || cur == task
		})
	}

	if runNow {
		if !mgr.callWithRecoverBool(name, taskFunc) {
			cleanup()
			mgr.logger.Debug(fmt.Sprintf("%s interval task terminated by runNow", name))
			return nil
		}
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		cleanup()
		return err
	}

	starter.startTask(func(ctx context.Context) {
		defer cleanup()

		for {
			select {
			case <-ctx.Done():
				return
			case <-task.stop:
				return
			case <-task.ticker.C:
				if !mgr.callWithRecoverBool(name, taskFunc) {
					return
				}
			}
		}
	})

	if err := starter.waitForStart(); err != nil {
		cleanup()
		return err
	}

	return nil
}

// StopInterval stops the interval task with the given name and lets its goroutine exit.
//
// It returns an error if the task is not found.
func (mgr *TaskManager) StopInterval(name string) error {
	task, ok := mgr.intervals.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("interval task %s not found", name)
	}
	task.halt()

	return nil
}

// HasInterval reports whether an interval task with the given name is registered.
func (mgr *TaskManager) HasInterval(name string) bool {
	_, ok := mgr.intervals.Load(name)
	return ok
}

// callWithRecover calls a function with panic protection
func (mgr *TaskManager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}

// callWithRecoverBool calls a function that returns bool with panic protection
func (mgr *TaskManager) callWithRecoverBool(name string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}

// Stop signals all running goroutines.
func (mgr *TaskManager) Stop() {
	mgr.intervals.Range(func(_ string, task *intervalTask) bool {
		task.halt()
		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate. The manager can start new tasks afterwards.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	// recreate context with lock
	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

// taskStarter encapsulates common startup logic
type taskStarter struct {
	mgr     *TaskManager
	name    string
	ctx     context.Context
	started chan struct{}
}

func (mgr *TaskManager) newTaskStarter(name string) (*taskStarter, error) {
	ctx := mgr.getContext()

	// check if already cancelled
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	return &taskStarter{
		mgr:     mgr,
		name:    name,
		ctx:     ctx,
		started: make(chan struct{}),
	}, nil
}

// startTask runs the common startup sequence for all tasks
func (s *taskStarter) startTask(taskBody func(ctx context.Context)) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)
	s.mgr.count.Add(1)

	go func() {
		defer s.mgr.wg.Done()
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug(fmt.Sprintf("%s task terminated", s.name), "task_count", s.mgr.TaskCount())
		}()

		close(s.started)
		taskBody(s.ctx)
	}()
}

// waitForStart waits for the task to start with timeout
func (s *taskStarter) waitForStart() error {
	select {
	case <-s.started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)
	}
}

// runTaskLoop runs a task function in a loop with context cancellation
func (mgr *TaskManager) runTaskLoop(name string, taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}
