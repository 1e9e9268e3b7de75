package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TaskFunc 定时任务，ctx 在调度器停止时取消
type TaskFunc func(ctx context.Context)

// Task 调度任务（轻量级，仅存储必要信息）
type Task struct {
	ID       string        // 任务 ID
	Interval time.Duration // 执行间隔
	EntryID  cron.EntryID  // cron 任务的 ID
}

// Scheduler 间隔任务调度器
//
// 同一任务上一次执行尚未结束时跳过本次执行。cron 的 @every 精度为秒，
// 小于 1 秒的间隔按 1 秒处理。
type Scheduler struct {
	mu     sync.RWMutex
	cron   *cron.Cron
	tasks  map[string]*Task // taskID -> Task
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建调度器
func New(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(), // 支持秒级调度
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		tasks:  make(map[string]*Task),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动调度器
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("启动任务调度器", "tasks", s.TaskCount())
	s.cron.Start()
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	cancel()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("任务调度器已停止")
}

// AddTask 添加任务，同 ID 的任务会被替换
func (s *Scheduler) AddTask(id string, interval time.Duration, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTaskLocked(id, interval, fn)
}

// addTaskLocked 添加任务（需要持有锁）
func (s *Scheduler) addTaskLocked(id string, interval time.Duration, fn TaskFunc) error {
	// 如果任务已存在，先删除
	if task, exists := s.tasks[id]; exists {
		s.cron.Remove(task.EntryID)
		delete(s.tasks, id)
	}

	if interval <= 0 {
		return fmt.Errorf("任务 %s 的间隔必须大于 0", id)
	}

	spec := fmt.Sprintf("@every %s", interval)
	entryID, err := s.cron.AddFunc(spec, func() {
		fn(s.context())
	})
	if err != nil {
		return fmt.Errorf("添加 cron 任务失败: %w", err)
	}

	s.tasks[id] = &Task{
		ID:       id,
		Interval: interval,
		EntryID:  entryID,
	}

	s.logger.Info("添加定时任务", "taskID", id, "interval", interval)
	return nil
}

// RemoveTask 删除任务
func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, exists := s.tasks[id]; exists {
		s.cron.Remove(task.EntryID)
		delete(s.tasks, id)
		s.logger.Info("删除定时任务", "taskID", id)
	}
}

// TaskCount 获取任务数量
func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// NextRun 获取任务下次执行时间
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.RLock()
	task, exists := s.tasks[id]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, false
	}

	entry := s.cron.Entry(task.EntryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}
