package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// базовый URL REST API, например http://localhost:3000
	ServerURL string
	// URL событийного канала; если пустой, выводится из ServerURL
	SocketURL string

	LogLevel  string
	LogFormat string

	// адрес для /metrics; пустая строка выключает листенер
	MetricsAddr string

	RequestTimeout time.Duration

	// учетные данные демо-клиента (cmd/app)
	Username string
	Password string
	Nickname string
}

// Load читает .env (если есть) и переменные окружения.
// Отсутствие .env не является ошибкой.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServerURL:      getEnv("SERVER_URL", "http://localhost:3000"),
		SocketURL:      os.Getenv("SOCKET_URL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		Username:       os.Getenv("GAME_USERNAME"),
		Password:       os.Getenv("GAME_PASSWORD"),
		Nickname:       os.Getenv("GAME_NICKNAME"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// поддерживаем голое число секунд
	if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return fallback
}
