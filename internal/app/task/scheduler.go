/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2026-09-16 16:09:46
 * @LastEditTime: 2026-09-26 18:20:00
 * @LastEditors: 安知鱼
 */
package task

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// Scheduler 封装了 cron 实例和其依赖，负责任务的注册、启动和停止。
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	distributionSvc distribution.Service
	metrics         *metrics.FileHubMetrics
	statsSpec       string
}

// NewScheduler 是 Scheduler 的构造函数。statsSpec 为带秒字段的 cron 表达式，为空时不注册统计任务。
func NewScheduler(distributionSvc distribution.Service, m *metrics.FileHubMetrics, statsSpec string) *Scheduler {
	logger := log.With().Str("system", "cron").Logger()

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)

	return &Scheduler{
		cron:            c,
		logger:          logger,
		distributionSvc: distributionSvc,
		metrics:         m,
		statsSpec:       statsSpec,
	}
}

// RegisterJobs 在调度器中注册所有定时任务。
func (s *Scheduler) RegisterJobs() error {
	if s.statsSpec == "" {
		s.logger.Info().Msg("未配置统计刷新周期，跳过 StatsRefreshJob")
		return nil
	}

	job := NewStatsRefreshJob(s.distributionSvc, s.metrics)
	if _, err := s.cron.AddJob(s.statsSpec, job); err != nil {
		return fmt.Errorf("注册 %s 失败 (schedule=%q): %w", job.Name(), s.statsSpec, err)
	}
	s.logger.Info().Str("job", job.Name()).Str("schedule", s.statsSpec).Msg("-> 定时任务注册成功")

	// 启动时先刷新一次，避免指标在第一个周期内为零
	go job.Run()
	return nil
}

// Start 启动 cron 调度器。
func (s *Scheduler) Start() {
	s.logger.Info().Msg("Cron scheduler started.")
	s.cron.Start()
}

// Stop 优雅地停止 cron 调度器，等待正在执行的任务结束。
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Cron scheduler gracefully stopped.")
}
