package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"owl/api"
	"owl/cli"
	"owl/control"
	"owl/define"
	"owl/device"
	"owl/motion"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

func setupLogger(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("⚠️ 无效的日志级别 %q，使用 info", level)
	}
	return log
}

func run(cfg *define.Config) error {
	log := setupLogger(cfg.Server.LogLevel)

	log.Infof("🚀 启动舵机控制服务")
	cli.LogConfig(log, cfg)

	// 初始化驱动
	driver, err := device.CreateDriver(cfg.Device, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Errorf("❌ 关闭驱动失败: %v", err)
		}
	}()
	log.Infof("✅ 驱动 %s 初始化完成", driver.GetModel())

	telemetry := motion.NewTelemetryStore()
	executor := motion.NewExecutor(motion.LimitsFromConfig(cfg.Limits), cfg.Motion.PollInterval, log)
	runner := motion.NewRunner(driver, executor, telemetry, log)
	controller := control.NewController(runner, telemetry, driver, control.NewLibrary(cfg.Sequences.Dir), log)

	controller.Autoplay(cfg.Sequences.Autoplay)

	// 设置 Gin 模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	if cfg.Server.EnableCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"}, // 允许的域，*表示允许所有
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	api.NewServer(controller).SetupRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🌐 舵机控制服务运行在 http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("❌ 服务启动失败: %v", err)
			_ = runner.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
		log.Infof("🛑 收到退出信号，正在关闭服务...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 先停止播放，保证舵机停下后再断开驱动
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Errorf("❌ 停止舵机失败: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("❌ 关闭 HTTP 服务失败: %v", err)
	}

	log.Infof("👋 服务已退出")
	return nil
}

func main() {
	if err := cli.NewRootCommand(run).Execute(); err != nil {
		logrus.Fatalf("❌ %v", err)
	}
}
