// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"os"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/clintagossett/artvault/pkg/cache"
	"github.com/clintagossett/artvault/pkg/configs"
	"github.com/clintagossett/artvault/pkg/internal/jobs"
	"github.com/clintagossett/artvault/pkg/internal/router"
	"github.com/clintagossett/artvault/pkg/internal/storage"
	"github.com/clintagossett/artvault/pkg/log"
	"github.com/clintagossett/artvault/pkg/metrics"
	"github.com/clintagossett/artvault/pkg/middleware"
	"github.com/clintagossett/artvault/pkg/scheduler"
	"github.com/clintagossett/artvault/pkg/tracing"
)

type App struct {
	Engine *gin.Engine

	config  *configs.AppConfig
	manager *storage.Manager
	sched   *scheduler.Scheduler
}

func NewApp(configPath string) *App {
	ctx := contextPkg.Background()
	engine := gin.New()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	config := configs.GetConfig()

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.SchedulerMiddleware(sched),
	)

	// 分享解析路径挂响应缓存（KV 后端就绪时）
	var routerOpts []router.Option
	if manager.KV != nil {
		c := cache.NewCache(manager.KV)
		routerOpts = append(routerOpts, router.WithServeCache(
			middleware.CacheMiddleware(middleware.DefaultCacheConfig(c)),
		))
	}

	router.RegisterAll(engine, routerOpts...)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	return &App{
		Engine:  engine,
		config:  config,
		manager: manager,
		sched:   sched,
	}
}

func (a *App) Run() error {
	a.sched.Start()

	defer a.Close()

	return a.Engine.Run(fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port))
}

// Close 释放调度器、存储与追踪资源.
func (a *App) Close() {
	if err := a.sched.Stop(); err != nil {
		log.Logger().Error().Err(err).Msg("stop scheduler failed")
	}

	if err := a.manager.Close(); err != nil {
		log.Logger().Error().Err(err).Msg("close storage failed")
	}

	if err := tracing.ShutdownTracer(contextPkg.Background()); err != nil {
		log.Logger().Error().Err(err).Msg("shutdown tracer failed")
	}
}
