package task

// Job 与 cron.Job 接口兼容，并提供一个用于日志的名字
type Job interface {
	Run()
	Name() string
}
