package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（升级呼叫网关，可选）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config 报警引擎服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 报警引擎特定配置
	Engine struct {
		// SOS 防抖配置
		Tap struct {
			Threshold int           // 触发 SOS 所需连击次数，默认 3
			Window    time.Duration // 防抖窗口，每次点击刷新，默认 2秒
		}

		// 升级呼叫延迟
		Escalation struct {
			SOSDelay time.Duration // SOS 报警升级延迟，默认 300秒
			MedDelay time.Duration // 漏服药报警升级延迟，默认 60秒
		}

		// 服药检查配置
		Adherence struct {
			ScanInterval   time.Duration // 扫描间隔，默认 60秒
			OverdueMinutes int           // 逾期判定下界（分钟），默认 20
		}

		// 打卡冷却窗口
		CheckInCooldown time.Duration // 默认 1小时
	}

	// 同步总线配置
	Sync struct {
		ChannelPrefix string        // Redis 发布频道前缀，如 "famroom:room:"
		PollInterval  time.Duration // 兜底轮询间隔，默认 30秒
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "famroom")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_BROKER", "") != ""
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "famroom-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_ESCALATION_TOPIC", "famroom/escalation")
	cfg.MQTT.QoS = 1

	// 报警引擎配置
	cfg.Engine.Tap.Threshold = getEnvInt("SOS_TAP_THRESHOLD", 3)
	cfg.Engine.Tap.Window = getEnvDuration("SOS_TAP_WINDOW", 2*time.Second)
	cfg.Engine.Escalation.SOSDelay = getEnvDuration("SOS_ESCALATION_DELAY", 300*time.Second)
	cfg.Engine.Escalation.MedDelay = getEnvDuration("MED_ESCALATION_DELAY", 60*time.Second)
	cfg.Engine.Adherence.ScanInterval = getEnvDuration("MED_SCAN_INTERVAL", 60*time.Second)
	cfg.Engine.Adherence.OverdueMinutes = getEnvInt("MED_OVERDUE_MINUTES", 20)
	cfg.Engine.CheckInCooldown = getEnvDuration("CHECKIN_COOLDOWN", time.Hour)

	// 同步总线配置
	cfg.Sync.ChannelPrefix = getEnv("SYNC_CHANNEL_PREFIX", "famroom:room:")
	cfg.Sync.PollInterval = getEnvDuration("SYNC_POLL_INTERVAL", 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
