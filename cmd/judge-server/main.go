package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"go.uber.org/zap"

	"dsajudge/internal/judge/controller"
	"dsajudge/internal/judge/pipeline"
	"dsajudge/internal/judge/repository"
	"dsajudge/internal/judge/runner"
	"dsajudge/internal/judge/sandbox/docker"
	"dsajudge/internal/judge/scheduler"
	"dsajudge/pkg/utils/logger"
)

const defaultConfigPath = "configs/judge-server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger.RedirectLogx()

	conn := sqlx.NewMysql(appCfg.Database.DSN)

	var rds *redis.Redis
	if appCfg.Redis.Addr != "" {
		rds, err = redis.NewRedis(redis.RedisConf{
			Host: appCfg.Redis.Addr,
			Pass: appCfg.Redis.Pass,
			Type: redis.NodeType,
		})
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
	}

	driver, err := docker.NewDriver(docker.Config{
		CgroupParent: appCfg.Sandbox.CgroupParent,
		CPUSet:       appCfg.Sandbox.CPUSet,
	})
	if err != nil {
		logger.Error(context.Background(), "init docker driver failed", zap.Error(err))
		return
	}
	defer func() {
		_ = driver.Close()
	}()
	if err := driver.Ping(context.Background()); err != nil {
		logger.Error(context.Background(), "docker daemon unreachable", zap.Error(err))
		return
	}

	store := repository.NewJudgeStore(conn)
	problemCache := repository.NewProblemCache(rds, store, appCfg.Cache.ProblemTTL)
	cachedStore := repository.NewCachedStore(store, problemCache)

	caseRunner := runner.New(runner.Config{
		ResourceDir:    appCfg.Judge.ResourceDir,
		GuestUID:       appCfg.Judge.GuestUID,
		GuestGID:       appCfg.Judge.GuestGID,
		StdoutMaxBytes: appCfg.Judge.StdoutMaxBytes,
		StderrMaxBytes: appCfg.Judge.StderrMaxBytes,
		BuildTimeoutMS: appCfg.Judge.BuildTimeoutMS,
	})

	pipe := pipeline.New(cachedStore, driver, caseRunner, pipeline.Config{
		UploadDir:   appCfg.Judge.UploadDir,
		ResourceDir: appCfg.Judge.ResourceDir,
		BuildImage:  appCfg.Judge.BuildImage,
		RunImage:    appCfg.Judge.RunImage,
		GuestUID:    appCfg.Judge.GuestUID,
		GuestGID:    appCfg.Judge.GuestGID,
	})

	// Submissions stranded in running by a previous crash go back to
	// the queue before any new claims happen.
	recovered, err := store.RecoverRunning(context.Background())
	if err != nil {
		logger.Error(context.Background(), "startup recovery failed", zap.Error(err))
		return
	}
	if recovered > 0 {
		logger.Info(context.Background(), "requeued stranded submissions", zap.Int("count", recovered))
	}

	sched := scheduler.New(cachedStore, pipe, scheduler.Config{
		QueueSize:    appCfg.Scheduler.QueueSize,
		Workers:      appCfg.Scheduler.Workers,
		PollInterval: appCfg.Scheduler.PollInterval,
	})

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sched.Start(shutdownCtx)

	httpServer := buildHTTPServer(appCfg.Server, cachedStore, sched)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}

	// In-flight submissions finish and finalize; claimed but
	// undispatched ones are requeued so no work is lost.
	sched.Wait()
	recovered, err = store.RecoverRunning(context.Background())
	if err != nil {
		logger.Error(context.Background(), "shutdown recovery failed", zap.Error(err))
		return
	}
	if recovered > 0 {
		logger.Info(context.Background(), "requeued unstarted submissions", zap.Int("count", recovered))
	}
}

func buildHTTPServer(cfg ServerConfig, store *repository.CachedStore, sched *scheduler.Scheduler) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	judgeController := controller.NewJudgeController(store, sched)
	router.GET("/healthz", judgeController.Healthz)

	api := router.Group("/api/v1/judge")
	api.GET("/submissions/:id", judgeController.GetStatus)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
