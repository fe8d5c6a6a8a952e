package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

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
	Timezone  string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Presence PresenceConfig
	Sweeper  SweeperConfig
	Backfill BackfillConfig
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

// PresenceConfig tunes scan classification and the presence routes.
type PresenceConfig struct {
	HolidaysFile       string
	OnTimeCutoff       string
	LateCutoff         string
	PatchRequiresAdmin bool
}

// SweeperConfig controls the end-of-day absence sweeper.
type SweeperConfig struct {
	Enabled           bool
	Schedule          string
	LockTTL           time.Duration
	SkipNonSchoolDays bool
}

// BackfillConfig controls historical absence backfill runs.
type BackfillConfig struct {
	DefaultStart  string
	Workers       int
	Retries       int
	QueueCapacity int
}

// Location resolves the configured timezone, falling back to the host's local zone.
// Load rejects unknown zones, so the fallback only applies to hand-built configs.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("APP_TIMEZONE")
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

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

	cfg.Presence = PresenceConfig{
		HolidaysFile:       v.GetString("HOLIDAYS_FILE"),
		OnTimeCutoff:       v.GetString("PRESENCE_ON_TIME_CUTOFF"),
		LateCutoff:         v.GetString("PRESENCE_LATE_CUTOFF"),
		PatchRequiresAdmin: v.GetBool("PRESENCE_PATCH_REQUIRE_ADMIN"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:           v.GetBool("ENABLE_SWEEPER"),
		Schedule:          v.GetString("SWEEPER_CRON"),
		LockTTL:           parseDuration(v.GetString("SWEEPER_LOCK_TTL"), 10*time.Minute),
		SkipNonSchoolDays: v.GetBool("SWEEPER_SKIP_NON_SCHOOL_DAYS"),
	}

	cfg.Backfill = BackfillConfig{
		DefaultStart:  v.GetString("BACKFILL_DEFAULT_START"),
		Workers:       v.GetInt("BACKFILL_WORKERS"),
		Retries:       v.GetInt("BACKFILL_RETRIES"),
		QueueCapacity: v.GetInt("BACKFILL_QUEUE_CAPACITY"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("APP_TIMEZONE", "Africa/Dakar")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "presences")
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

	v.SetDefault("HOLIDAYS_FILE", "./holidays.sn.json")
	v.SetDefault("PRESENCE_ON_TIME_CUTOFF", "08:15")
	v.SetDefault("PRESENCE_LATE_CUTOFF", "16:00")
	v.SetDefault("PRESENCE_PATCH_REQUIRE_ADMIN", false)

	v.SetDefault("ENABLE_SWEEPER", true)
	v.SetDefault("SWEEPER_CRON", "0 16 * * 1-5")
	v.SetDefault("SWEEPER_LOCK_TTL", "10m")
	v.SetDefault("SWEEPER_SKIP_NON_SCHOOL_DAYS", false)

	v.SetDefault("BACKFILL_DEFAULT_START", "2025-06-01")
	v.SetDefault("BACKFILL_WORKERS", 1)
	v.SetDefault("BACKFILL_RETRIES", 1)
	v.SetDefault("BACKFILL_QUEUE_CAPACITY", 8)
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
