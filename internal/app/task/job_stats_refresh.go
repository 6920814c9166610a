/*
 * @Description: 定时刷新存储统计指标
 * @Author: 安知鱼
 * @Date: 2026-09-16 23:10:27
 * @LastEditTime: 2026-09-26 18:44:03
 * @LastEditors: 安知鱼
 */
package task

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/constant"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

// systemIdentity 定时任务以系统发布者身份读取统计
var systemIdentity = model.Identity{UserID: "system:cron", UserName: "system", Role: constant.RolePublisher}

// StatsRefreshJob 读取统计并写入存量指标
type StatsRefreshJob struct {
	svc     distribution.Service
	metrics *metrics.FileHubMetrics
	timeout time.Duration
}

func NewStatsRefreshJob(svc distribution.Service, m *metrics.FileHubMetrics) *StatsRefreshJob {
	return &StatsRefreshJob{svc: svc, metrics: m, timeout: 30 * time.Second}
}

func (j *StatsRefreshJob) Name() string { return "StatsRefreshJob" }

func (j *StatsRefreshJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stats, err := j.svc.Stats(ctx, systemIdentity)
	if err != nil {
		log.Error().Err(err).Msg("[StatsRefreshJob] 读取统计失败")
		return
	}
	if j.metrics == nil {
		return
	}
	j.metrics.ActiveRecords.Set(float64(stats.TotalRecords))
	j.metrics.ActiveBytes.Set(float64(stats.TotalBytes))
	j.metrics.StoredObjects.Set(float64(stats.StoredObjects))
	j.metrics.StoredBytes.Set(float64(stats.StoredBytes))
}
