package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	AI        AIConfig        `mapstructure:"ai"`
	Quiz      QuizConfig      `mapstructure:"quiz"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig AI供应商配置，provider选择具体后端
type AIConfig struct {
	Provider  string          `mapstructure:"provider"` // openai, anthropic, gemini, mock
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Retry     AIRetryConfig   `mapstructure:"retry"`
	Timeout   time.Duration   `mapstructure:"timeout_seconds"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"` // 兼容OpenRouter等OpenAI协议服务
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// AIRetryConfig 供应商层瞬时错误（限流、网络抖动）的重试参数
type AIRetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait_ms"`
	MaxWait     time.Duration `mapstructure:"max_wait_ms"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// QuizConfig 测验生成与掌握度状态机参数
// 阈值需满足 0 < MediumThreshold < MasteryThreshold <= 100
type QuizConfig struct {
	MasteryThreshold     int `mapstructure:"mastery_threshold"`      // 达到该分值记为 mastered
	MediumThreshold      int `mapstructure:"medium_threshold"`       // 达到该分值且未达mastery记为 medium
	MaxGenerateAttempts  int `mapstructure:"max_generate_attempts"`  // 生成+校验的总尝试次数上限
	DifficultyTolerance  int `mapstructure:"difficulty_tolerance"`   // mixed难度各档允许的±偏差题数
	MaxQuestionCount     int `mapstructure:"max_question_count"`     // 单次生成题目数上限
	DefaultQuestionCount int `mapstructure:"default_question_count"` // 未指定时的默认题目数
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("QUIZ_MENTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("ai.openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("ai.openai.model", "OPENAI_MODEL")
	viper.BindEnv("ai.openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("ai.anthropic.api_key", "ANTHROPIC_API_KEY")
	viper.BindEnv("ai.anthropic.model", "ANTHROPIC_MODEL")
	viper.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("ai.gemini.model", "GEMINI_MODEL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.AI.Timeout = cfg.AI.Timeout * time.Second
	cfg.AI.Retry.InitialWait = cfg.AI.Retry.InitialWait * time.Millisecond
	cfg.AI.Retry.MaxWait = cfg.AI.Retry.MaxWait * time.Millisecond

	applyQuizDefaults(&cfg.Quiz)
	applyAIDefaults(&cfg.AI)

	if cfg.Quiz.MediumThreshold <= 0 || cfg.Quiz.MediumThreshold >= cfg.Quiz.MasteryThreshold || cfg.Quiz.MasteryThreshold > 100 {
		return nil, fmt.Errorf("invalid quiz thresholds: medium=%d mastery=%d", cfg.Quiz.MediumThreshold, cfg.Quiz.MasteryThreshold)
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func applyQuizDefaults(q *QuizConfig) {
	if q.MasteryThreshold == 0 {
		q.MasteryThreshold = 80
	}
	if q.MediumThreshold == 0 {
		q.MediumThreshold = 50
	}
	if q.MaxGenerateAttempts == 0 {
		q.MaxGenerateAttempts = 3
	}
	if q.DifficultyTolerance == 0 {
		q.DifficultyTolerance = 1
	}
	if q.MaxQuestionCount == 0 {
		q.MaxQuestionCount = 30
	}
	if q.DefaultQuestionCount == 0 {
		q.DefaultQuestionCount = 10
	}
}

func applyAIDefaults(a *AIConfig) {
	if a.Provider == "" {
		a.Provider = "openai"
	}
	if a.OpenAI.Model == "" {
		a.OpenAI.Model = "gpt-4o-mini"
	}
	if a.Anthropic.Model == "" {
		a.Anthropic.Model = "claude-3-5-haiku-latest"
	}
	if a.Gemini.Model == "" {
		a.Gemini.Model = "gemini-2.0-flash"
	}
	if a.Timeout == 0 {
		a.Timeout = 30 * time.Second
	}
	if a.Retry.MaxAttempts == 0 {
		a.Retry.MaxAttempts = 3
	}
	if a.Retry.InitialWait == 0 {
		a.Retry.InitialWait = time.Second
	}
	if a.Retry.MaxWait == 0 {
		a.Retry.MaxWait = 10 * time.Second
	}
	if a.Retry.Multiplier == 0 {
		a.Retry.Multiplier = 2.0
	}
}
