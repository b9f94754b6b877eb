package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// 评估策略
const (
	// PolicyAllAdmitted 本轮三个指标都通过时钟闸门时才评估
	PolicyAllAdmitted = "all_admitted"
	// PolicyFullSet 只要本轮轮询到完整的三项读数就评估
	PolicyFullSet = "full_set"
)

// Config 农场监测引擎配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 传感器桥接服务（Arduino）
	Bridge struct {
		BaseURL string
		Path    string
		Timeout time.Duration
	}

	// 害虫检测服务（YOLO）
	Detector struct {
		BaseURL string
		Path    string
		Timeout time.Duration
	}

	// 采集循环配置
	Ingestion struct {
		PollInterval           int    // 轮询间隔（秒），默认 10秒
		DefaultIntervalSeconds int    // 记录间隔读取失败时的默认值（秒），默认 1800
		DefaultTriggerCount    int    // 植物未配置触发次数时的默认值，默认 3
		EvaluationPolicy       string // all_admitted 或 full_set
	}

	// 害虫报警去重配置
	Pest struct {
		ConfidenceThreshold float64 // 置信度阈值（0-100），默认 60
		RateLimitSeconds    int     // 同类害虫去重窗口（秒），默认 60
		CatalogPath         string  // 害虫严重度表（YAML），为空时使用内置表
		ImageRoot           string  // 可提交检测的图片目录，请求中的路径必须位于其下
	}

	// Redis 缓存配置
	Cache struct {
		KeyPrefix          string // 缓存键前缀，如 "ecofarm:"
		SnapshotTTL        int    // 仪表盘快照 TTL（秒），默认 3600
		NotificationStream string // 通知 Redis Stream 名称
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "ecofarm"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.ClientID = "ecofarm-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = "ecofarm/alerts"
	cfg.MQTT.CommandTopic = "ecofarm/commands/sync"
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Bridge.BaseURL = getEnv("BRIDGE_URL", "http://localhost:5000")
	cfg.Bridge.Path = getEnv("BRIDGE_PATH", "/sensors")
	cfg.Bridge.Timeout = time.Duration(getEnvInt("BRIDGE_TIMEOUT", 5)) * time.Second

	cfg.Detector.BaseURL = getEnv("DETECTOR_URL", "http://localhost:5001")
	cfg.Detector.Path = getEnv("DETECTOR_PATH", "/detect")
	cfg.Detector.Timeout = time.Duration(getEnvInt("DETECTOR_TIMEOUT", 10)) * time.Second

	cfg.Ingestion.PollInterval = getEnvInt("POLL_INTERVAL", 10)
	cfg.Ingestion.DefaultIntervalSeconds = 1800
	cfg.Ingestion.DefaultTriggerCount = getEnvInt("DEFAULT_TRIGGER_COUNT", 3)
	cfg.Ingestion.EvaluationPolicy = getEnv("EVALUATION_POLICY", PolicyAllAdmitted)

	cfg.Pest.ConfidenceThreshold = getEnvFloat("PEST_CONFIDENCE_THRESHOLD", 60)
	cfg.Pest.RateLimitSeconds = getEnvInt("PEST_RATE_LIMIT", 60)
	cfg.Pest.CatalogPath = getEnv("PEST_CATALOG_PATH", "")
	cfg.Pest.ImageRoot = getEnv("PEST_IMAGE_ROOT", "uploads")

	cfg.Cache.KeyPrefix = getEnv("CACHE_PREFIX", "ecofarm:")
	cfg.Cache.SnapshotTTL = 3600
	cfg.Cache.NotificationStream = getEnv("NOTIFICATION_STREAM", "ecofarm:notifications:stream")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验配置
func (c *Config) validate() error {
	switch c.Ingestion.EvaluationPolicy {
	case PolicyAllAdmitted, PolicyFullSet:
	default:
		return fmt.Errorf("invalid EVALUATION_POLICY: %s", c.Ingestion.EvaluationPolicy)
	}
	if c.Ingestion.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %d", c.Ingestion.PollInterval)
	}
	if c.Ingestion.DefaultTriggerCount <= 0 {
		c.Ingestion.DefaultTriggerCount = 3
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
