// Package task runs delayed and periodic background jobs.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/xid"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/log"
)

// Job 后台任务, 返回的错误只记录日志
type Job func(ctx context.Context) error

// Runner 延迟任务执行器, 调用方不等待任务完成
type Runner struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	log     *log.Logger
}

type Option func(*Runner)

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner 创建任务执行器
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		entries: make(map[string]cron.EntryID),
		log:     log.Global().Component("task"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	logger := cronLogger{log: r.log}
	r.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	return r
}

// Schedule 在delay之后执行一次fn
func (r *Runner) Schedule(delay time.Duration, fn Job) string {
	if delay < 0 {
		delay = 0
	}
	return r.add(&onceSchedule{at: time.Now().Add(delay)}, fn, true)
}

// Every 每隔interval执行一次fn
func (r *Runner) Every(interval time.Duration, fn Job) (string, error) {
	if interval <= 0 {
		return "", errors.New(errors.CodeComponent, "task interval must be positive, got %s", interval)
	}
	return r.add(intervalSchedule{interval: interval}, fn, false), nil
}

// Cron 按标准cron表达式执行fn
func (r *Runner) Cron(spec string, fn Job) (string, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeComponent, "parse cron spec %q", spec)
	}
	return r.add(schedule, fn, false), nil
}

func (r *Runner) add(schedule cron.Schedule, fn Job, once bool) string {
	id := fmt.Sprintf("task-%s", xid.New().String())

	job := cron.FuncJob(func() {
		if once {
			r.Cancel(id)
		}
		if err := fn(r.ctx); err != nil {
			r.log.Error().Err(err).Str("task", id).Msg("[task] | job failed")
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = r.cron.Schedule(schedule, job)
	return id
}

// Cancel 取消任务, 返回任务是否存在
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	entry, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.cron.Remove(entry)
	}
	return ok
}

// Len 返回待执行的任务数
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start 启动执行器, 重复调用无效
func (r *Runner) Start() {
	if r.running.CompareAndSwap(false, true) {
		r.cron.Start()
		r.log.Info().Msg("[task] | runner started")
	}
}

// Stop 停止调度并等待正在执行的任务, 直到ctx结束
func (r *Runner) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}
	done := r.cron.Stop()
	r.cancel()

	select {
	case <-done.Done():
		r.log.Info().Msg("[task] | runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy 在应用上下文关闭时停止执行器
func (r *Runner) Destroy(ctx context.Context) error {
	return r.Stop(ctx)
}

// onceSchedule 只触发一次
type onceSchedule struct {
	at    time.Time
	fired atomic.Bool
}

func (s *onceSchedule) Next(time.Time) time.Time {
	if s.fired.Swap(true) {
		return time.Time{}
	}
	return s.at
}

// intervalSchedule 固定间隔, 支持亚秒级
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// cronLogger 将cron日志接入zerolog
type cronLogger struct {
	log *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msgf("[task] | %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msgf("[task] | %s", msg)
}
