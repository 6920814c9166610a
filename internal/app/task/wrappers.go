/*
 * @Description: cron 任务装饰器：执行日志与 panic 恢复
 * @Author: 安知鱼
 * @Date: 2026-09-16 22:36:09
 * @LastEditTime: 2026-09-17 00:32:02
 * @LastEditors: 安知鱼
 */
package task

import (
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobWrapper 是 cron.JobWrapper 的类型别名，用于简化代码。
type JobWrapper = cron.JobWrapper

// NewLoggingWrapper 记录每次任务执行的开始与结束，并附带唯一的执行ID
func NewLoggingWrapper(logger zerolog.Logger) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			jobLogger := logger.With().
				Str("job_name", getJobName(j)).
				Str("execution_id", uuid.New().String()).
				Logger()

			startTime := time.Now()
			jobLogger.Debug().Msg("Job execution started")

			j.Run()

			jobLogger.Debug().Dur("duration", time.Since(startTime)).Msg("Job execution finished")
		})
	}
}

// NewPanicRecoveryWrapper 捕获任务中的 panic 并记录堆栈，不会导致进程退出
func NewPanicRecoveryWrapper(logger zerolog.Logger) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("job_name", getJobName(j)).
						Interface("panic", r).
						Str("stack_trace", string(debug.Stack())).
						Msg("Job panicked")
				}
			}()

			j.Run()
		})
	}
}

// getJobName 优先使用任务的 Name() 方法，否则通过反射获取类型名
func getJobName(j cron.Job) string {
	if namedJob, ok := j.(interface{ Name() string }); ok {
		return namedJob.Name()
	}
	jobType := reflect.TypeOf(j)
	if jobType.Kind() == reflect.Ptr {
		return jobType.Elem().String()
	}
	return jobType.String()
}
