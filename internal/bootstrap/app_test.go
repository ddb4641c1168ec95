package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/tempresumes"
)

func devConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   filepath.Join(dir, "resumes"),
		LLMProvider:     "none",
		AnalysisTimeout: time.Second,
		Lifecycle: config.Lifecycle{
			TempStore:      "postgres",
			TTL:            time.Hour,
			StagingDir:     filepath.Join(dir, "staging"),
			MaxUploadBytes: 1 << 20,
			SaveClaimLease: time.Minute,
		},
	}
}

func TestBuildFallsBackToMemoryInDev(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), devConfig(t), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(app.Close)

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if _, ok := app.TempStore.(*tempresumes.MemoryStore); !ok {
		t.Fatalf("expected memory temp store, got %T", app.TempStore)
	}
	if app.Config.Lifecycle.TempStore != "memory" {
		t.Fatalf("expected config to record the fallback, got %q", app.Config.Lifecycle.TempStore)
	}
	if _, ok := app.LLM.(llm.Disabled); !ok {
		t.Fatalf("expected disabled llm client, got %T", app.LLM)
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	cfg.JWTSecret = "secret"
	if _, err := Build(context.Background(), cfg, Options{}); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := devConfig(t)
	cfg.LLMProvider = "mystery"
	if _, err := Build(context.Background(), cfg, Options{SkipRouter: true}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}
