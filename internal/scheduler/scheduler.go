// Package scheduler 以 cron 表达式运行后台维护任务（目前用于审计文件清理）。
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"fxanalyst/internal/logger"

	"github.com/robfig/cron/v3"
)

// Job 是一个带名称的周期任务。
type Job struct {
	Name string
	// Spec 使用标准 5 段 cron 表达式或 @daily 这类描述符。
	Spec           string
	RunImmediately bool
	Task           func()

	run func()
}

type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register 校验表达式并登记任务，Run 之前调用。
func (s *Scheduler) Register(job Job) error {
	if job.Task == nil {
		return fmt.Errorf("scheduler: job %q has no task", job.Name)
	}
	spec := strings.TrimSpace(job.Spec)
	job.run = guarded(job.Name, job.Task)
	if _, err := s.cron.AddFunc(spec, job.run); err != nil {
		return fmt.Errorf("scheduler: job %q spec %q: %w", job.Name, spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Len 返回已登记的任务数。
func (s *Scheduler) Len() int {
	if s == nil {
		return 0
	}
	return len(s.jobs)
}

// Run 启动调度并阻塞到 ctx 取消；返回前等待正在执行的任务结束。
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || len(s.jobs) == 0 {
		return nil
	}
	for _, job := range s.jobs {
		if job.RunImmediately {
			job.run()
		}
		logger.Infof("Scheduler: job=%s spec=%s", job.Name, job.Spec)
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	logger.Infof("Scheduler: stopped")
	return nil
}

// guarded 吞掉任务 panic，避免拖垮所在的 errgroup。
func guarded(name string, task func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Scheduler: job=%s panic: %v", name, r)
			}
		}()
		task()
	}
}
