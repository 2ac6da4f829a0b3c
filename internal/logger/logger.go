package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu   sync.Mutex
	root *slog.Logger
)

// Init настраивает глобальный логгер. Формат json включается для прода,
// текстовый хендлер остается для локальной разработки.
func Init(level string, json bool) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}

	mu.Lock()
	root = slog.New(h)
	mu.Unlock()
	slog.SetDefault(Get())
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get возвращает корневой логгер, инициализируя его при необходимости
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return root
}

// Component возвращает логгер с меткой подсистемы (ws, session, api...)
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}

// Fatal логирует ошибку и завершает процесс
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
