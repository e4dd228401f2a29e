package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Question sources.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceMongo    = "mongo"
)

// Storage backends for the best score.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	App struct {
		Name     string `yaml:"name" env:"APP_NAME"`
		Env      string `yaml:"env" env:"APP_ENV"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	} `yaml:"app"`
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Questions struct {
		Source   string `yaml:"source" env:"QUESTIONS_SOURCE"`
		Path     string `yaml:"path" env:"QUESTIONS_PATH"`
		CacheTTL string `yaml:"cache_ttl" env:"QUESTIONS_CACHE_TTL"`
	} `yaml:"questions"`
	Storage struct {
		Backend string `yaml:"backend" env:"STORAGE_BACKEND"`
		Path    string `yaml:"path" env:"STORAGE_PATH"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Mongo struct {
		URI        string `yaml:"uri" env:"MONGO_URI"`
		Database   string `yaml:"database" env:"MONGO_DATABASE"`
		Collection string `yaml:"collection" env:"MONGO_COLLECTION"`
	} `yaml:"mongo"`
	Quiz struct {
		SampleSize      int    `yaml:"sample_size" env:"QUIZ_SAMPLE_SIZE"`
		QuestionSeconds int    `yaml:"question_seconds" env:"QUIZ_QUESTION_SECONDS"`
		SettleDelay     string `yaml:"settle_delay" env:"QUIZ_SETTLE_DELAY"`
		LoadTimeout     string `yaml:"load_timeout" env:"QUIZ_LOAD_TIMEOUT"`
		Difficulty      string `yaml:"difficulty" env:"QUIZ_DIFFICULTY"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.App.Name, "quiz-runner")
	setDefault(&cfg.App.Env, "development")
	setDefault(&cfg.App.LogLevel, "info")
	setDefault(&cfg.Server.Port, "8080")
	setDefault(&cfg.Questions.Source, SourceEmbedded)
	setDefault(&cfg.Questions.CacheTTL, "10m")
	setDefault(&cfg.Storage.Backend, BackendFile)
	setDefault(&cfg.Storage.Path, "quiz-state.yaml")
	setDefault(&cfg.Redis.Prefix, "quiz:kv:")
	setDefault(&cfg.Mongo.Database, "quiz")
	setDefault(&cfg.Mongo.Collection, "questions")
	setDefault(&cfg.Quiz.SettleDelay, "1s")
	setDefault(&cfg.Quiz.LoadTimeout, "5s")
	setDefault(&cfg.Quiz.Difficulty, "all")
	if cfg.Quiz.SampleSize <= 0 {
		cfg.Quiz.SampleSize = 10
	}
	if cfg.Quiz.QuestionSeconds <= 0 {
		cfg.Quiz.QuestionSeconds = 30
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
