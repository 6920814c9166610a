/*
 * @Description: 应用装配：配置、基础设施、服务、路由与优雅退出
 * @Author: 安知鱼
 * @Date: 2026-09-18 14:21:55
 * @LastEditTime: 2026-09-28 10:19:06
 * @LastEditors: 安知鱼
 */
package server

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-filehub/internal/app/bootstrap"
	"github.com/anzhiyu-c/anheyu-filehub/internal/app/listener"
	"github.com/anzhiyu-c/anheyu-filehub/internal/app/middleware"
	"github.com/anzhiyu-c/anheyu-filehub/internal/app/task"
	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/database"
	ent_impl "github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/ent"
	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/router"
	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/logging"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/metrics"
	"github.com/anzhiyu-c/anheyu-filehub/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
	distribution_handler "github.com/anzhiyu-c/anheyu-filehub/pkg/handler/distribution"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/idgen"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/distribution"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/ratelimit"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/service/workplace"
)

// App 结构体，用于封装应用的所有核心组件
type App struct {
	cfg             *config.Config
	engine          *gin.Engine
	scheduler       *task.Scheduler
	sqlDB           *stdsql.DB
	redisClient     *redis.Client
	eventBus        *event.EventBus
	distributionSvc distribution.Service
}

// NewApp 是应用的构造函数，它执行所有的初始化和依赖注入工作
func NewApp(configPath string) (*App, func(), error) {
	ctx := context.Background()

	// --- Phase 1: 加载外部配置与日志 ---
	cfg, err := config.NewConfigFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	debug := cfg.GetBool(config.KeyServerDebug)
	logging.Setup(cfg.GetString(config.KeyServerLogLevel), debug)
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Phase 2: 初始化基础设施 ---
	sqlDB, err := database.NewSQLDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}
	dbType := cfg.GetString(config.KeyDBType)
	drv, err := database.NewDriver(sqlDB, dbType, cfg.GetBool(config.KeyDBDebug))
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	// Redis 不可用时限流器自动降级为进程内实现
	redisClient := database.NewRedisClient(ctx, cfg)

	eventBus := event.NewEventBus()
	cleanup := func() {
		log.Info().Msg("执行清理操作：关闭事件总线与数据库连接...")
		eventBus.Shutdown()
		sqlDB.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}

	// --- Phase 3: 引导数据库与密钥 ---
	bootstrapper := bootstrap.NewBootstrapper(sqlDB, drv, dbType, cfg)
	if err := bootstrapper.InitializeDatabase(ctx); err != nil {
		return nil, cleanup, fmt.Errorf("数据库初始化失败: %w", err)
	}
	idSeed, err := bootstrapper.IDSeed(ctx)
	if err != nil {
		return nil, cleanup, fmt.Errorf("获取 IDSeed 失败: %w", err)
	}
	if err := idgen.Setup(idSeed); err != nil {
		return nil, cleanup, fmt.Errorf("初始化 ID 编码器失败: %w", err)
	}
	jwtSecret, err := bootstrapper.JWTSecret(ctx)
	if err != nil {
		return nil, cleanup, err
	}

	// --- Phase 4: 初始化存储、限流与业务服务 ---
	m := metrics.Init(prometheus.DefaultRegisterer)

	storageManager, err := storage.NewManagerFromConfig(ctx, cfg, m)
	if err != nil {
		return nil, cleanup, fmt.Errorf("初始化存储后端失败: %w", err)
	}
	limiter, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		return nil, cleanup, fmt.Errorf("初始化上传限流失败: %w", err)
	}

	opts := distribution.OptionsFromConfig(cfg)
	distributionSvc := distribution.NewService(
		ent_impl.NewDistributionRepo(drv),
		ent_impl.NewEntTransactionManager(drv),
		storageManager,
		limiter,
		workplace.NewService(ent_impl.NewWorkplaceRepo(drv)),
		eventBus,
		m,
		opts,
	)

	// --- Phase 5: 后台任务与事件监听 ---
	scheduler := task.NewScheduler(distributionSvc, m, cfg.GetString(config.KeyStatsCron))
	if err := scheduler.RegisterJobs(); err != nil {
		return nil, cleanup, err
	}
	statsJob := task.NewStatsRefreshJob(distributionSvc, m)
	listener.NewDistributionAuditListener(eventBus, statsJob.Run)

	// --- Phase 6: 路由 ---
	mw := middleware.NewMiddleware(jwtSecret, func() bool {
		return cfg.GetBool(config.KeyDistributionEnabled)
	})
	appRouter := router.NewRouter(
		distribution_handler.NewHandler(distributionSvc, opts.MaxUploadSize),
		mw,
		sqlDB.PingContext,
		prometheus.DefaultGatherer,
		cfg.GetInt(config.KeyAPIRequestsPerMinute),
	)
	engine := gin.New()
	engine.Use(gin.Recovery())
	appRouter.Setup(engine)

	app := &App{
		cfg:             cfg,
		engine:          engine,
		scheduler:       scheduler,
		sqlDB:           sqlDB,
		redisClient:     redisClient,
		eventBus:        eventBus,
		distributionSvc: distributionSvc,
	}
	return app, cleanup, nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}

func (a *App) DistributionService() distribution.Service {
	return a.distributionSvc
}

// Run 启动 HTTP 服务与定时任务，收到 SIGINT/SIGTERM 后优雅退出
func (a *App) Run() error {
	a.scheduler.Start()

	port := a.cfg.GetString(config.KeyServerPort)
	if port == "" {
		port = "8091"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Str("version", version.GetVersionString()).Msg("应用程序启动成功")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("收到退出信号，正在关闭 HTTP 服务...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (a *App) Stop() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
}
