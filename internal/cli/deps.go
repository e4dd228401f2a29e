package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-runner/internal/app"
	"quiz-runner/internal/config"
	"quiz-runner/internal/domain"
	"quiz-runner/internal/infra/file"
	"quiz-runner/internal/infra/memory"
	mongoinfra "quiz-runner/internal/infra/mongo"
	pginfra "quiz-runner/internal/infra/postgres"
	redisinfra "quiz-runner/internal/infra/redis"
	"quiz-runner/internal/logging"
)

// deps lazily opens the backends a command needs and closes them in reverse order.
type deps struct {
	cfg config.Config
	log zerolog.Logger

	redisClient *redis.Client
	pgPool      *pgxpool.Pool
	closers     []func()
}

func bootstrap(configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg: cfg,
		log: logging.New(cfg.App.Name, cfg.App.Env, cfg.App.LogLevel),
	}, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) redis() (*redis.Client, error) {
	if d.redisClient != nil {
		return d.redisClient, nil
	}
	if d.cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr not configured")
	}
	d.redisClient = redis.NewClient(&redis.Options{
		Addr:     d.cfg.Redis.Addr,
		Password: d.cfg.Redis.Password,
		DB:       d.cfg.Redis.DB,
	})
	d.closers = append(d.closers, func() { _ = d.redisClient.Close() })
	return d.redisClient, nil
}

func (d *deps) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if d.pgPool != nil {
		return d.pgPool, nil
	}
	if d.cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	pool, err := pgxpool.Connect(ctx, d.cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	d.pgPool = pool
	d.closers = append(d.closers, pool.Close)
	return pool, nil
}

func (d *deps) mongo(ctx context.Context) (*mongo.Client, error) {
	if d.cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo uri not configured")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	d.closers = append(d.closers, func() { _ = client.Disconnect(context.Background()) })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// usesPostgres reports whether any configured component lives in Postgres.
func (d *deps) usesPostgres() bool {
	return d.cfg.Questions.Source == config.SourcePostgres || d.cfg.Storage.Backend == config.BackendPostgres
}

func (d *deps) questionLoader(ctx context.Context) (memory.QuestionLoader, error) {
	switch d.cfg.Questions.Source {
	case config.SourceEmbedded:
		return memory.EmbeddedQuestionLoader{}, nil
	case config.SourceFile:
		if d.cfg.Questions.Path == "" {
			return nil, fmt.Errorf("questions.path not configured")
		}
		return memory.NewFileQuestionLoader(d.cfg.Questions.Path), nil
	case config.SourcePostgres:
		pool, err := d.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return pginfra.NewQuestionLoader(pool), nil
	case config.SourceMongo:
		client, err := d.mongo(ctx)
		if err != nil {
			return nil, err
		}
		return mongoinfra.NewQuestionLoader(client, d.cfg.Mongo.Database, d.cfg.Mongo.Collection), nil
	default:
		return nil, fmt.Errorf("unknown question source %q", d.cfg.Questions.Source)
	}
}

// questionStore wraps the configured loader in a TTL cache, shared through Redis when one is configured.
func (d *deps) questionStore(ctx context.Context) (app.QuestionStore, error) {
	loader, err := d.questionLoader(ctx)
	if err != nil {
		return nil, err
	}
	ttl := config.Duration(d.cfg.Questions.CacheTTL, 10*time.Minute)
	if d.cfg.Redis.Addr != "" {
		client, err := d.redis()
		if err != nil {
			return nil, err
		}
		return redisinfra.NewQuestionRepository(client, loader, ttl), nil
	}
	return memory.NewQuestionRepository(loader, ttl), nil
}

func (d *deps) kvStore(ctx context.Context) (app.KVStore, error) {
	switch d.cfg.Storage.Backend {
	case config.BackendFile:
		return file.NewKVStore(d.cfg.Storage.Path), nil
	case config.BackendMemory:
		return memory.NewKVStore(), nil
	case config.BackendRedis:
		client, err := d.redis()
		if err != nil {
			return nil, err
		}
		return redisinfra.NewKVStore(client, d.cfg.Redis.Prefix), nil
	case config.BackendPostgres:
		pool, err := d.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return pginfra.NewKVStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", d.cfg.Storage.Backend)
	}
}

func (d *deps) sessionOptions() (app.Options, error) {
	filter, err := domain.ParseDifficultyFilter(d.cfg.Quiz.Difficulty)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		SampleSize:      d.cfg.Quiz.SampleSize,
		QuestionSeconds: d.cfg.Quiz.QuestionSeconds,
		Difficulty:      filter,
	}, nil
}

func (d *deps) settleDelay() time.Duration {
	return config.Duration(d.cfg.Quiz.SettleDelay, time.Second)
}

func (d *deps) loadTimeout() time.Duration {
	return config.Duration(d.cfg.Quiz.LoadTimeout, 5*time.Second)
}
