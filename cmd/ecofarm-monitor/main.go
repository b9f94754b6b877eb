package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/config"
	httpapi "github.com/BelowZeroPortfolio/eco-farm-sub001/internal/http"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/logger"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ecofarm-monitor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	monitor, err := service.NewMonitorService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create monitor service", zap.Error(err))
	}
	defer monitor.Stop()

	router := httpapi.NewRouter(log)
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(monitor.Ingestion, monitor.Pests, monitor.Snapshots, cfg.Pest.ImageRoot, log))

	// 5. 启动采集循环与管理接口
	serviceErrChan := make(chan error, 2)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := monitor.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()
	go func() {
		if err := service.ServeHTTP(ctx, cfg.HTTP.Addr, router, log); err != nil {
			serviceErrChan <- err
		}
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-serviceErrChan:
		log.Error("Service error", zap.Error(err))
	}

	// 取消上下文，等待当前采集周期结束
	cancel()
	<-loopDone

	log.Info("Monitor service stopped")
}
