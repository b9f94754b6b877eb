package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/cache"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/client"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/config"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/database"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/evaluator"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/gate"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/mqtt"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/notifier"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/pest"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MonitorService 农场监测服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	Ingestion *IngestionService
	Pests     *PestMonitorService
	Snapshots *cache.CacheManager
}

// NewMonitorService 创建监测服务
func NewMonitorService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. 连接 Redis
	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 3. 连接 MQTT（可选）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, err
		}
	}

	// 4. Repository 层
	readingRepo := repository.NewReadingRepository(db, logger)
	settingsRepo := repository.NewSettingsRepository(db, logger)
	subjectRepo := repository.NewSubjectRepository(db, logger)
	detectionRepo := repository.NewDetectionRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)

	// 5. 通知出口
	sinks := []notifier.Notifier{
		notifier.NewDatabaseNotifier(notificationRepo),
		notifier.NewRedisStreamNotifier(redisClient, cfg.Cache.NotificationStream, logger),
	}
	if mqttClient != nil {
		sinks = append(sinks, notifier.NewMQTTNotifier(mqttClient, cfg.MQTT.Topic, cfg.MQTT.QoS))
	}
	notify := notifier.NewMultiNotifier(logger, sinks...)

	// 6. 引擎组件
	catalog, err := pest.LoadCatalog(cfg.Pest.CatalogPath)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}

	snapshots := cache.NewCacheManager(redisClient, cfg.Cache.KeyPrefix, cfg.Cache.SnapshotTTL, logger)
	clockGate := gate.NewClockGate(&gateStore{readingRepo, settingsRepo}, cfg.Ingestion.DefaultIntervalSeconds, logger)
	tracker := evaluator.NewViolationTracker(
		subjectRepo,
		evaluator.NewBandResolver(subjectRepo, logger),
		cfg.Ingestion.DefaultTriggerCount,
		logger,
	)

	ingestion := NewIngestionService(IngestionDeps{
		Bridge:   client.NewSensorBridge(cfg.Bridge.BaseURL, cfg.Bridge.Path, cfg.Bridge.Timeout, logger),
		Gate:     clockGate,
		Readings: readingRepo,
		Subjects: subjectRepo,
		Tracker:  tracker,
		Cache:    snapshots,
		Notifier: notify,
	}, cfg.Ingestion.PollInterval, cfg.Ingestion.EvaluationPolicy, logger)

	pests := NewPestMonitorService(PestMonitorDeps{
		Detector:     client.NewPestDetector(cfg.Detector.BaseURL, cfg.Detector.Path, cfg.Detector.Timeout, logger),
		Deduplicator: pest.NewAlertDeduplicator(detectionRepo, cfg.Pest.ConfidenceThreshold, cfg.Pest.RateLimitSeconds, logger),
		Catalog:      catalog,
		Detections:   detectionRepo,
		Notifier:     notify,
	}, logger)

	logger.Info("Pest catalog loaded", zap.Int("entries", catalog.Len()))
	warmSnapshots(ctx, readingRepo, snapshots, logger)

	return &MonitorService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		logger:      logger,
		Ingestion:   ingestion,
		Pests:       pests,
		Snapshots:   snapshots,
	}, nil
}

// Start 启动采集循环（阻塞，直到 ctx 取消）
func (s *MonitorService) Start(ctx context.Context) error {
	if s.mqttClient != nil && s.config.MQTT.CommandTopic != "" {
		if err := s.mqttClient.Subscribe(s.config.MQTT.CommandTopic, s.config.MQTT.QoS, s.Ingestion.HandleSyncCommand); err != nil {
			return fmt.Errorf("failed to subscribe to command topic: %w", err)
		}
		s.logger.Info("Subscribed to sync command topic", zap.String("topic", s.config.MQTT.CommandTopic))
	}

	return s.Ingestion.Start(ctx)
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	return nil
}

// ServeHTTP 启动管理接口，ctx 取消后优雅关闭
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// gateStore 组合读数仓库与设置仓库，供时钟闸门使用
type gateStore struct {
	*repository.ReadingRepository
	*repository.SettingsRepository
}

// warmSnapshots 启动时用数据库中的最新读数预热仪表盘缓存
func warmSnapshots(ctx context.Context, repo *repository.ReadingRepository, snapshots *cache.CacheManager, logger *zap.Logger) {
	readings, err := repo.LatestReadings(ctx)
	if err != nil {
		logger.Warn("Failed to load latest readings for snapshot cache", zap.Error(err))
		return
	}
	for i := range readings {
		if err := snapshots.SetLatestReading(ctx, &readings[i]); err != nil {
			logger.Warn("Failed to warm snapshot cache", zap.Error(err))
			return
		}
	}
	logger.Info("Snapshot cache warmed", zap.Int("readings", len(readings)))
}
