// Package config loads settings from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	// HTTP
	Port string `yaml:"port"`

	// Storage
	DBPath string `yaml:"db_path"`

	// Libraries to scan for video files.
	Libraries []string `yaml:"libraries"`

	// External tools
	MediaInfoBin string `yaml:"mediainfo_bin"`
	AbAv1Bin     string `yaml:"ab_av1_bin"`

	// Encoding targets
	MinVMAF   float64 `yaml:"min_vmaf"`
	OutputDir string  `yaml:"output_dir"`

	// Pipeline tuning
	MaxWorkers   int           `yaml:"max_workers"`
	BaseTimeout  time.Duration `yaml:"base_timeout"`
	MaxTimeout   time.Duration `yaml:"max_timeout"`
	DispatchRate float64       `yaml:"dispatch_rate"` // items/sec, 0 = unlimited
	ChunkMin     int           `yaml:"chunk_min"`
	ChunkMax     int           `yaml:"chunk_max"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

func defaults() Config {
	return Config{
		Port:         "8080",
		DBPath:       "data/rekoda.db",
		MediaInfoBin: "mediainfo",
		AbAv1Bin:     "ab-av1",
		MinVMAF:      95,
		MaxWorkers:   0, // 0 = number of CPUs
		BaseTimeout:  30 * time.Second,
		MaxTimeout:   10 * time.Minute,
		DispatchRate: 0,
		ChunkMin:     5,
		ChunkMax:     100,
		LogLevel:     slog.LevelInfo,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty and no rekoda.yaml exists), then
// environment variables on top.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		if _, err := os.Stat("rekoda.yaml"); err == nil {
			path = "rekoda.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("REKODA_PORT", cfg.Port)
	cfg.DBPath = getEnv("REKODA_DB_PATH", cfg.DBPath)
	if libs := os.Getenv("REKODA_LIBRARIES"); libs != "" {
		cfg.Libraries = splitNonEmpty(libs)
	}
	cfg.MediaInfoBin = getEnv("REKODA_MEDIAINFO_BIN", cfg.MediaInfoBin)
	cfg.AbAv1Bin = getEnv("REKODA_AB_AV1_BIN", cfg.AbAv1Bin)
	cfg.MinVMAF = getEnvFloat("REKODA_MIN_VMAF", cfg.MinVMAF)
	cfg.OutputDir = getEnv("REKODA_OUTPUT_DIR", cfg.OutputDir)
	cfg.MaxWorkers = getEnvInt("REKODA_MAX_WORKERS", cfg.MaxWorkers)
	cfg.BaseTimeout = getEnvDuration("REKODA_BASE_TIMEOUT", cfg.BaseTimeout)
	cfg.MaxTimeout = getEnvDuration("REKODA_MAX_TIMEOUT", cfg.MaxTimeout)
	cfg.DispatchRate = getEnvFloat("REKODA_DISPATCH_RATE", cfg.DispatchRate)
	cfg.ChunkMin = getEnvInt("REKODA_CHUNK_MIN", cfg.ChunkMin)
	cfg.ChunkMax = getEnvInt("REKODA_CHUNK_MAX", cfg.ChunkMax)
	cfg.LogFile = getEnv("REKODA_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("REKODA_LOG_LEVEL", ""), cfg.LogLevel)

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ":") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string, defaultVal slog.Level) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return defaultVal
}
