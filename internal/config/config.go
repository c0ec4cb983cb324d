package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AI         AIConfig
	Diagnostic DiagnosticConfig `mapstructure:"diagnostic"`
	StudyPlan  StudyPlanConfig  `mapstructure:"study_plan"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// DiagnosticConfig holds every tunable constant of the adaptive engine.
// Algorithm code reads these values and never hardcodes them.
type DiagnosticConfig struct {
	MaxTotalQuestions  int     `mapstructure:"max_total_questions"`
	MaxPerSubtopic     int     `mapstructure:"max_per_subtopic"`
	MinDifficulty      int     `mapstructure:"min_difficulty"`
	MaxDifficulty      int     `mapstructure:"max_difficulty"`
	StartDifficulty    int     `mapstructure:"start_difficulty"`
	MasteryStep        float64 `mapstructure:"mastery_step"`
	SessionTTLMinutes  int     `mapstructure:"session_ttl_minutes"`
	ClaimTTLMinutes    int     `mapstructure:"claim_ttl_minutes"`
	ThresholdSupport   float64 `mapstructure:"threshold_needs_support"`
	ThresholdDevelop   float64 `mapstructure:"threshold_developing"`
	ThresholdProficent float64 `mapstructure:"threshold_proficient"`
	RecencyWeight      float64 `mapstructure:"recency_weight"`
}

func (c *DiagnosticConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *DiagnosticConfig) ClaimTTL() time.Duration {
	return time.Duration(c.ClaimTTLMinutes) * time.Minute
}

type StudyPlanConfig struct {
	MinWeeks        int `mapstructure:"min_weeks"`
	MaxWeeks        int `mapstructure:"max_weeks"`
	LessonsPerWeek  int `mapstructure:"lessons_per_week"`
	ProviderRetries int `mapstructure:"provider_retries"`
}

type TasksConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("EDUMENTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

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

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	applyDiagnosticDefaults(&cfg.Diagnostic)
	applyStudyPlanDefaults(&cfg.StudyPlan)
	if cfg.Tasks.Concurrency <= 0 {
		cfg.Tasks.Concurrency = 4
	}
	if cfg.Tasks.MaxRetry <= 0 {
		cfg.Tasks.MaxRetry = 5
	}

	if err := validateThresholds(&cfg.Diagnostic); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDiagnosticDefaults(d *DiagnosticConfig) {
	if d.MaxTotalQuestions <= 0 {
		d.MaxTotalQuestions = 20
	}
	if d.MaxPerSubtopic <= 0 {
		d.MaxPerSubtopic = 5
	}
	if d.MinDifficulty <= 0 {
		d.MinDifficulty = 1
	}
	if d.MaxDifficulty <= 0 {
		d.MaxDifficulty = 5
	}
	if d.StartDifficulty <= 0 {
		d.StartDifficulty = (d.MinDifficulty + d.MaxDifficulty) / 2
	}
	if d.MasteryStep <= 0 {
		d.MasteryStep = 0.15
	}
	if d.SessionTTLMinutes <= 0 {
		d.SessionTTLMinutes = 60
	}
	if d.ClaimTTLMinutes <= 0 {
		d.ClaimTTLMinutes = 24 * 60
	}
	if d.ThresholdSupport <= 0 {
		d.ThresholdSupport = 0.4
	}
	if d.ThresholdDevelop <= 0 {
		d.ThresholdDevelop = 0.65
	}
	if d.ThresholdProficent <= 0 {
		d.ThresholdProficent = 0.85
	}
	if d.RecencyWeight <= 0 {
		d.RecencyWeight = 0.1
	}
}

func applyStudyPlanDefaults(p *StudyPlanConfig) {
	if p.MinWeeks <= 0 {
		p.MinWeeks = 2
	}
	if p.MaxWeeks <= 0 {
		p.MaxWeeks = 12
	}
	if p.LessonsPerWeek <= 0 {
		p.LessonsPerWeek = 3
	}
	if p.ProviderRetries <= 0 {
		p.ProviderRetries = 2
	}
}

func validateThresholds(d *DiagnosticConfig) error {
	if !(d.ThresholdSupport < d.ThresholdDevelop && d.ThresholdDevelop < d.ThresholdProficent) {
		return fmt.Errorf("mastery thresholds must be strictly increasing: %.2f / %.2f / %.2f",
			d.ThresholdSupport, d.ThresholdDevelop, d.ThresholdProficent)
	}
	return nil
}
