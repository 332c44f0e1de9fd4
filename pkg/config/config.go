package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Exports   ExportsConfig
	Imports   ImportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig controls timetable runs.
type SchedulerConfig struct {
	Enabled     bool
	DefaultSeed int64
	RunTimeout  time.Duration
	LockTTL     time.Duration
	ReportTTL   time.Duration
	Cron        string
	Workers     int
	QueueSize   int
	Policy      PolicyConfig
}

// PolicyConfig carries the raw scoring constants.
type PolicyConfig struct {
	BaseScore           float64
	DayPenalty          float64
	SlotPenalty         float64
	RescuePenalty       float64
	FallbackPenalty     float64
	BuildingBonus       float64
	PlaceholderScore    float64
	RescueLoadCeiling   int
	FallbackLoadCeiling int
	DefaultQuota        int
	PairSearchDepth     int
	PlaceholderInitial  string
	DepartmentFloors    string
}

// ExportsConfig gates timetable downloads.
type ExportsConfig struct {
	Enabled bool
	Title   string
}

// ImportsConfig gates CSV uploads.
type ImportsConfig struct {
	Enabled          bool
	MaxFileSizeBytes int64
	StandardLabCodes []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:     v.GetBool("ENABLE_SCHEDULER"),
		DefaultSeed: v.GetInt64("SCHEDULER_DEFAULT_SEED"),
		RunTimeout:  parseDuration(v.GetString("SCHEDULER_RUN_TIMEOUT"), 5*time.Minute),
		LockTTL:     parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 10*time.Minute),
		ReportTTL:   parseDuration(v.GetString("SCHEDULER_REPORT_TTL"), 7*24*time.Hour),
		Cron:        strings.TrimSpace(v.GetString("SCHEDULER_CRON")),
		Workers:     v.GetInt("SCHEDULER_WORKERS"),
		QueueSize:   v.GetInt("SCHEDULER_QUEUE_SIZE"),
		Policy: PolicyConfig{
			BaseScore:           v.GetFloat64("SCHEDULER_BASE_SCORE"),
			DayPenalty:          v.GetFloat64("SCHEDULER_DAY_PENALTY"),
			SlotPenalty:         v.GetFloat64("SCHEDULER_SLOT_PENALTY"),
			RescuePenalty:       v.GetFloat64("SCHEDULER_RESCUE_PENALTY"),
			FallbackPenalty:     v.GetFloat64("SCHEDULER_FALLBACK_PENALTY"),
			BuildingBonus:       v.GetFloat64("SCHEDULER_BUILDING_BONUS"),
			PlaceholderScore:    v.GetFloat64("SCHEDULER_PLACEHOLDER_SCORE"),
			RescueLoadCeiling:   v.GetInt("SCHEDULER_RESCUE_LOAD_CEILING"),
			FallbackLoadCeiling: v.GetInt("SCHEDULER_FALLBACK_LOAD_CEILING"),
			DefaultQuota:        v.GetInt("SCHEDULER_DEFAULT_QUOTA"),
			PairSearchDepth:     v.GetInt("SCHEDULER_PAIR_SEARCH_DEPTH"),
			PlaceholderInitial:  v.GetString("SCHEDULER_PLACEHOLDER_INITIAL"),
			DepartmentFloors:    v.GetString("SCHEDULER_DEPARTMENT_FLOORS"),
		},
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
		Title:   v.GetString("EXPORTS_TITLE"),
	}

	maxImportSize := v.GetInt64("IMPORTS_MAX_FILE_SIZE")
	if maxImportSize <= 0 {
		maxImportSize = 5 * 1024 * 1024
	}
	cfg.Imports = ImportsConfig{
		Enabled:          v.GetBool("ENABLE_IMPORTS"),
		MaxFileSizeBytes: maxImportSize,
		StandardLabCodes: splitAndTrim(v.GetString("IMPORTS_STANDARD_LAB_CODES")),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_DEFAULT_SEED", 42)
	v.SetDefault("SCHEDULER_RUN_TIMEOUT", "5m")
	v.SetDefault("SCHEDULER_LOCK_TTL", "10m")
	v.SetDefault("SCHEDULER_REPORT_TTL", "168h")
	v.SetDefault("SCHEDULER_CRON", "")
	v.SetDefault("SCHEDULER_WORKERS", 1)
	v.SetDefault("SCHEDULER_QUEUE_SIZE", 16)

	v.SetDefault("SCHEDULER_BASE_SCORE", 100)
	v.SetDefault("SCHEDULER_DAY_PENALTY", 25)
	v.SetDefault("SCHEDULER_SLOT_PENALTY", 10)
	v.SetDefault("SCHEDULER_RESCUE_PENALTY", 30)
	v.SetDefault("SCHEDULER_FALLBACK_PENALTY", 50)
	v.SetDefault("SCHEDULER_BUILDING_BONUS", 5)
	v.SetDefault("SCHEDULER_PLACEHOLDER_SCORE", -100000)
	v.SetDefault("SCHEDULER_RESCUE_LOAD_CEILING", 2)
	v.SetDefault("SCHEDULER_FALLBACK_LOAD_CEILING", 4)
	v.SetDefault("SCHEDULER_DEFAULT_QUOTA", 4)
	v.SetDefault("SCHEDULER_PAIR_SEARCH_DEPTH", 0)
	v.SetDefault("SCHEDULER_PLACEHOLDER_INITIAL", "TBA")
	v.SetDefault("SCHEDULER_DEPARTMENT_FLOORS", "CSE:3,EEE:4,BBA:2,ENG:5")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_TITLE", "Class Timetable")
	v.SetDefault("ENABLE_IMPORTS", true)
	v.SetDefault("IMPORTS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("IMPORTS_STANDARD_LAB_CODES", "CSE115L,CSE215L,CSE225L")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
