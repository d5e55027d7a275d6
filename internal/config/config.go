package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig
	Worker     WorkerConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
	RabbitMQ   RabbitMQConfig
	Redis      RedisConfig
	Cache      CacheConfig
	FrameStore FrameStoreConfig
	Decoder    DecoderConfig
	Player     PlayerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	UploadURLExpiry time.Duration `envconfig:"UPLOAD_URL_EXPIRY" default:"15m"`
}

type WorkerConfig struct {
	TempDir         string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/framestream"`
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	// MetricsPort serves /metrics and /health; 0 disables it.
	MetricsPort int `envconfig:"WORKER_METRICS_PORT" default:"9091"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"framestream"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"framestream"`
	DBName   string `envconfig:"POSTGRES_DB" default:"framestream"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT"`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"media"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"framestream"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"framestream"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Addr          string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password      string        `envconfig:"REDIS_PASSWORD"`
	DB            int           `envconfig:"REDIS_DB" default:"0"`
	MediaCacheTTL time.Duration `envconfig:"MEDIA_CACHE_TTL" default:"5m"`
}

// CacheConfig is the frame window geometry.
type CacheConfig struct {
	Radius    int `envconfig:"CACHE_RADIUS" default:"15"`
	Threshold int `envconfig:"CACHE_THRESHOLD" default:"5"`
}

// FrameStoreConfig selects where decoded frames live while a session is open.
type FrameStoreConfig struct {
	Backend     string        `envconfig:"FRAME_STORE" default:"bolt"`
	BoltDir     string        `envconfig:"FRAME_STORE_BOLT_DIR" default:"/tmp/framestream"`
	BoltTimeout time.Duration `envconfig:"FRAME_STORE_BOLT_TIMEOUT" default:"1s"`
	TTL         time.Duration `envconfig:"FRAME_STORE_TTL" default:"0"`
}

type DecoderConfig struct {
	FFmpegPath  string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string        `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	Threads     int           `envconfig:"FFMPEG_THREADS" default:"0"`
	BatchSize   int           `envconfig:"DECODE_BATCH_SIZE" default:"30"`
	Workers     int           `envconfig:"DECODE_WORKERS" default:"4"`
	Timeout     time.Duration `envconfig:"DECODE_TIMEOUT" default:"10m"`
	AllowShort  bool          `envconfig:"DECODE_ALLOW_SHORT" default:"false"`
}

type PlayerConfig struct {
	// DefaultFPS overrides the probed frame rate when positive.
	DefaultFPS float64 `envconfig:"PLAYER_DEFAULT_FPS" default:"0"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// SlogLevel parses Level. Unknown values fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
