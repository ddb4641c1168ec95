package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"jobboard-backend/internal/analysis"
	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/gc"
	"jobboard-backend/internal/lifecycle"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/llm/gemini"
	"jobboard-backend/internal/llm/openai"
	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/server"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/storage/object"
	localstore "jobboard-backend/internal/shared/storage/object/local"
	s3store "jobboard-backend/internal/shared/storage/object/s3"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
	"jobboard-backend/internal/usage"
	"jobboard-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Redis       *redis.Client
	Store       object.ObjectStore
	TempStore   tempresumes.Store
	Stager      *staging.Stager
	UsersRepo   users.Repo
	LLM         llm.Client
	Usage       *usage.Service
	Analysis    *analysis.Client
	Coordinator *lifecycle.Coordinator
	Collector   *gc.Collector
}

// Options controls which parts Build wires.
type Options struct {
	// SkipRouter builds stores and services only, for CLI tools.
	SkipRouter bool
	// DBOptions overrides the connection pool settings.
	DBOptions *db.Options
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}

	if err := app.buildStores(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildServices(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if opts.SkipRouter {
		return app, nil
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		Verifier:         signer,
		LifecycleHandler: lifecycle.NewHandler(app.Coordinator, cfg.Lifecycle.MaxUploadBytes),
		UsageHandler:     usage.NewHandler(app.Usage),
		UsersHandler:     users.NewHandler(users.NewService(app.UsersRepo)),
		Health:           app.health,
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"reason": "DATABASE_URL empty; using in-memory repositories"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	poolOpts := db.OptionsFromEnv(db.DefaultServerOptions())
	if opts.DBOptions != nil {
		poolOpts = *opts.DBOptions
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, poolOpts)
	if err == nil {
		var version int64
		if version, err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		} else {
			telemetry.Info("bootstrap.db_ready", map[string]any{"schema_version": version})
		}
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"reason": "database unavailable; using in-memory repositories", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func (a *App) buildStores(ctx context.Context) error {
	cfg := a.Config

	store, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.Store = store

	stager, err := staging.New(cfg.Lifecycle.StagingDir, cfg.Lifecycle.MaxUploadBytes)
	if err != nil {
		return err
	}
	a.Stager = stager

	tempStore, err := a.buildTempStore(ctx)
	if err != nil {
		return err
	}
	a.TempStore = tempStore

	if a.DB != nil {
		a.UsersRepo = &users.PGRepo{DB: a.DB}
		a.Usage = usage.NewPostgresService(usage.NewPGStore(a.DB))
	} else {
		a.UsersRepo = users.NewMemoryRepo()
		a.Usage = usage.NewService()
	}
	return nil
}

func buildObjectStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildTempStore(ctx context.Context) (tempresumes.Store, error) {
	cfg := a.Config
	lease := cfg.Lifecycle.SaveClaimLease
	switch cfg.Lifecycle.TempStore {
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, errors.New("TEMP_STORE=redis requires REDIS_URL")
		}
		client, err := tempresumes.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			if config.IsDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.temp_store_fallback", map[string]any{"store": "redis", "error": err})
				a.Config.Lifecycle.TempStore = "memory"
				return tempresumes.NewMemoryStore(lease), nil
			}
			return nil, err
		}
		a.Redis = client
		return tempresumes.NewRedisStore(client, "", lease), nil
	case "postgres":
		if a.DB != nil {
			return &tempresumes.PGStore{DB: a.DB, Lease: lease}, nil
		}
		if !config.IsDevLike(cfg.Env) {
			return nil, errors.New("TEMP_STORE=postgres requires a database")
		}
		telemetry.Warn("bootstrap.temp_store_fallback", map[string]any{"store": "postgres", "reason": "no database"})
		a.Config.Lifecycle.TempStore = "memory"
		return tempresumes.NewMemoryStore(lease), nil
	default:
		return tempresumes.NewMemoryStore(lease), nil
	}
}

func (a *App) buildServices(ctx context.Context) error {
	cfg := a.Config

	provider, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}
	a.LLM = provider
	a.Analysis = analysis.NewClient(provider, a.Usage, usage.Pricing{
		InputPerMTok:  cfg.InputCostPerMTok,
		OutputPerMTok: cfg.OutputCostPerMTok,
	})

	a.Coordinator = &lifecycle.Coordinator{
		Store:           a.TempStore,
		Stager:          a.Stager,
		Extractor:       extract.New(),
		Analyzer:        a.Analysis,
		Permanent:       a.Store,
		Profiles:        users.NewService(a.UsersRepo),
		TTL:             cfg.Lifecycle.TTL,
		AnalysisTimeout: cfg.AnalysisTimeout,
	}
	a.Collector = &gc.Collector{
		Store:       a.TempStore,
		Staging:     a.Stager,
		OrphanGrace: cfg.Lifecycle.OrphanGrace,
		Concurrency: cfg.Lifecycle.SweepConcurrency,
		BatchSize:   cfg.Lifecycle.SweepBatchSize,
	}
	return nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm_disabled", map[string]any{"provider": "openai", "reason": "OPENAI_API_KEY empty"})
			return llm.Disabled{}, nil
		}
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.AnalysisTimeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" && config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm_disabled", map[string]any{"provider": "gemini", "reason": "GEMINI_API_KEY empty"})
			return llm.Disabled{}, nil
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "none", "":
		return llm.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func (a *App) health(ctx context.Context) map[string]string {
	status := map[string]string{"tempStore": a.Config.Lifecycle.TempStore}
	if a.DB == nil {
		status["database"] = "memory"
	} else if err := a.DB.PingContext(ctx); err != nil {
		status["database"] = "down"
	} else {
		status["database"] = "up"
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}
	return status
}
