package task

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
)

type stubService struct {
	distribution.Service
	stats  *model.DistributionStats
	err    error
	caller model.Identity
}

func (s *stubService) Stats(_ context.Context, caller model.Identity) (*model.DistributionStats, error) {
	s.caller = caller
	return s.stats, s.err
}

func TestStatsRefreshJobSetsGauges(t *testing.T) {
	m := metrics.Init(prometheus.NewRegistry())
	svc := &stubService{stats: &model.DistributionStats{
		TotalRecords:  5,
		TotalBytes:    500,
		StoredObjects: 3,
		StoredBytes:   300,
	}}

	NewStatsRefreshJob(svc, m).Run()

	assert.True(t, svc.caller.IsPublisher())
	assert.Equal(t, float64(5), testutil.ToFloat64(m.ActiveRecords))
	assert.Equal(t, float64(500), testutil.ToFloat64(m.ActiveBytes))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.StoredObjects))
	assert.Equal(t, float64(300), testutil.ToFloat64(m.StoredBytes))
}

func TestStatsRefreshJobKeepsGaugesOnError(t *testing.T) {
	m := metrics.Init(prometheus.NewRegistry())
	m.StoredObjects.Set(7)

	NewStatsRefreshJob(&stubService{err: errors.New("db down")}, m).Run()

	assert.Equal(t, float64(7), testutil.ToFloat64(m.StoredObjects))
}

func TestRegisterJobsRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&stubService{stats: &model.DistributionStats{}}, nil, "every tuesday")
	require.Error(t, s.RegisterJobs())

	s = NewScheduler(&stubService{}, nil, "")
	require.NoError(t, s.RegisterJobs())
}

func TestPanicRecoveryWrapper(t *testing.T) {
	job := NewPanicRecoveryWrapper(zerolog.Nop())(cron.FuncJob(func() { panic("boom") }))
	assert.NotPanics(t, job.Run)
}

func TestGetJobName(t *testing.T) {
	assert.Equal(t, "StatsRefreshJob", getJobName(NewStatsRefreshJob(nil, nil)))
	assert.Equal(t, "cron.FuncJob", getJobName(cron.FuncJob(func() {})))
}
