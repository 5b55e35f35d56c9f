package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/robfig/cron/v3"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
)

// Job 定时任务
type Job struct {
	Name string
	Spec string // cron 表达式，为空时不注册
	Run  func(ctx context.Context) error
}

// JobServer 以 kratos transport.Server 的形式运行 cron 任务。
// 所有任务共用一把锁，下载与解析不会同时执行；同一任务上一轮未结束时跳过本轮。
type JobServer struct {
	cron   *cron.Cron
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

var _ transport.Server = (*JobServer)(nil)

// NewJobServer 注册任务
func NewJobServer(jobs ...Job) (*JobServer, error) {
	cronLogger := cron.PrintfLogger(logger.Log)
	s := &JobServer{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, job := range jobs {
		if job.Spec == "" {
			logger.Log.Infof("任务 %s 未配置 cron 表达式，不注册", job.Name)
			continue
		}
		if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name, err)
		}
		logger.Log.Infof("任务已注册: %s (%s)", job.Name, job.Spec)
	}
	return s, nil
}

func (s *JobServer) wrap(job Job) func() {
	return func() {
		_ = s.RunNow(job)
	}
}

// RunNow 在锁内立即执行一次任务
func (s *JobServer) RunNow(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	logger.Log.Infof("任务开始: %s", job.Name)
	if err := job.Run(s.ctx); err != nil {
		logger.Log.Errorf("任务失败: %s: %v", job.Name, err)
		return err
	}
	logger.Log.Infof("任务完成: %s, 耗时 %s", job.Name, time.Since(start))
	return nil
}

// Start 启动调度
func (s *JobServer) Start(ctx context.Context) error {
	s.cron.Start()
	logger.Log.Info("定时任务已启动")
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *JobServer) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Log.Info("定时任务已停止")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
