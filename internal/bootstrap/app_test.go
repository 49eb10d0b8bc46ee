package bootstrap

import (
	"testing"

	"hirelink-backend/internal/shared/config"
)

func devConfig() config.Config {
	return config.Config{Env: "dev"}
}

func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_MAX_OPEN_CONNS",
		"DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME",
		"DB_CONN_MAX_IDLE_TIME",
		"DB_PING_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildUsesServerPoolDefaults(t *testing.T) {
	clearDBEnv(t)

	app, err := Build(devConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil {
		t.Fatalf("expected in-memory fallback without DATABASE_URL")
	}
	if app.DBOptions.MaxOpenConns != 10 || app.DBOptions.MaxIdleConns != 5 {
		t.Fatalf("expected server pool defaults, got %+v", app.DBOptions)
	}
	if app.Router == nil || app.Reconciler == nil {
		t.Fatalf("expected router and reconciler to be wired")
	}
}

func TestBuildWorkerUsesWorkerPoolDefaults(t *testing.T) {
	clearDBEnv(t)

	app, err := BuildWorker(devConfig())
	if err != nil {
		t.Fatalf("BuildWorker: %v", err)
	}
	if app.DBOptions.MaxOpenConns != 2 || app.DBOptions.MaxIdleConns != 1 {
		t.Fatalf("expected worker pool defaults, got %+v", app.DBOptions)
	}
	if app.Reconciler == nil {
		t.Fatalf("expected reconciler to be wired for the worker")
	}
}
