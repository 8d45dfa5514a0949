package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Log        LogConfig
	Registry   RegistryConfig
	Remote     RemoteConfig
	Redis      RedisConfig
	Dispatcher DispatcherConfig
	MediaMTX   MediaMTXConfig
	Snapshot   SnapshotConfig
	Capacity   CapacityConfig
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
	Expiry string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegistryConfig selects the registry backend: memory, postgres or remote.
type RegistryConfig struct {
	Backend string
	Seed    bool
}

type RemoteConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Retries  int
}

// RedisConfig leaves Addr empty to run without Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type DispatcherConfig struct {
	Interval    time.Duration
	Probability float64
}

type MediaMTXConfig struct {
	Enabled    bool
	Host       string
	APIPort    string
	HTTPPort   string
	PublicHost string
}

type SnapshotConfig struct {
	OutputPath string
	PublicPath string
}

// CapacityConfig feeds the storage and bandwidth utilization estimate.
type CapacityConfig struct {
	StorageGB         float64
	UplinkMbps        float64
	CameraBitrateMbps float64
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "guardforce_cctv"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiry: getEnv("JWT_EXPIRY", "24h"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Registry: RegistryConfig{
			Backend: getEnv("REGISTRY_BACKEND", BackendMemory),
			Seed:    getEnvBool("REGISTRY_SEED", true),
		},
		Remote: RemoteConfig{
			BaseURL:  getEnv("REMOTE_BASE_URL", "http://localhost:8080/api/v1/cctv"),
			APIToken: getEnv("REMOTE_API_TOKEN", ""),
			Timeout:  getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
			Retries:  getEnvInt("REMOTE_RETRIES", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("EVENT_STREAM", "cctv:events"),
		},
		Dispatcher: DispatcherConfig{
			Interval:    getEnvDuration("DISPATCH_INTERVAL", 5*time.Second),
			Probability: getEnvFloat("DISPATCH_PROBABILITY", 0.3),
		},
		MediaMTX: MediaMTXConfig{
			Enabled:    getEnvBool("MEDIAMTX_ENABLED", false),
			Host:       getEnv("MEDIAMTX_HOST", "localhost"),
			APIPort:    getEnv("MEDIAMTX_API_PORT", "9997"),
			HTTPPort:   getEnv("MEDIAMTX_HTTP_PORT", "8888"),
			PublicHost: getEnv("MEDIAMTX_PUBLIC_HOST", "localhost"),
		},
		Snapshot: SnapshotConfig{
			OutputPath: getEnv("SNAPSHOT_OUTPUT_PATH", "./snapshots"),
			PublicPath: getEnv("SNAPSHOT_PUBLIC_PATH", "/snapshots"),
		},
		Capacity: CapacityConfig{
			StorageGB:         getEnvFloat("STORAGE_CAPACITY_GB", 1000),
			UplinkMbps:        getEnvFloat("UPLINK_MBPS", 1000),
			CameraBitrateMbps: getEnvFloat("CAMERA_BITRATE_MBPS", 4),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
