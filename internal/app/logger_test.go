package app

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerLevelFollowsEnvironment(t *testing.T) {
	dev := NewLogger(&Config{AppEnv: "development"})
	if !dev.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("development logger must emit debug")
	}

	prod := NewLogger(&Config{AppEnv: "production", LogFormat: "json"})
	if prod.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("production logger must not emit debug")
	}
	if !prod.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("production logger must emit info")
	}
}
