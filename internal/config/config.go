// Пакет config — загрузка и валидация конфигурации Talentgate
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Talentgate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8080-8089)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT (валидация токенов компаний через JWKS IdP) ---

	// URL JWKS endpoint
	JWTJWKSURL string
	// Issuer JWT (опционально, проверяется если задан)
	JWTIssuer string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- AI-скоринг (Gemini) ---

	// API-ключ Gemini
	GeminiAPIKey string
	// Имя модели Gemini
	GeminiModel string
	// Таймаут одного вызова скоринга
	ScoringTimeout time.Duration
	// Количество воркеров анализа
	AnalysisWorkers int
	// Размер очереди заданий анализа
	AnalysisQueueSize int

	// --- Кэш извлечённого текста CV ---

	// Максимальное количество записей в кэше
	ExtractCacheSize int
	// Время жизни записи кэша
	ExtractCacheTTL time.Duration

	// --- SMTP ---

	// Хост SMTP-сервера (пустой — отправка писем отключена)
	SMTPHost string
	// Порт SMTP-сервера
	SMTPPort int
	// Имя пользователя SMTP
	SMTPUser string
	// Пароль SMTP
	SMTPPassword string
	// Адрес отправителя
	SMTPFrom string

	// --- Фоновые задачи ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки истечения срока хранения заявок
	RetentionSweepInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TG_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("TG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TG_PORT: %w", err)
	}
	if cfg.Port < 8080 || cfg.Port > 8089 {
		return nil, fmt.Errorf("TG_PORT: значение %d вне допустимого диапазона 8080-8089", cfg.Port)
	}

	// TG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TG_LOG_LEVEL: %w", err)
	}

	// TG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// TG_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("TG_DB_HOST")
	if err != nil {
		return nil, err
	}

	// TG_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("TG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TG_DB_PORT: %w", err)
	}

	// TG_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("TG_DB_NAME")
	if err != nil {
		return nil, err
	}

	// TG_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("TG_DB_USER")
	if err != nil {
		return nil, err
	}

	// TG_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("TG_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// TG_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("TG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	// TG_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("TG_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// TG_JWT_ISSUER — опционально
	cfg.JWTIssuer = getEnvDefault("TG_JWT_ISSUER", "")

	// TG_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("TG_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TG_JWT_LEEWAY: %w", err)
	}

	// --- AI-скоринг ---

	// TG_GEMINI_API_KEY — обязательный
	cfg.GeminiAPIKey, err = getEnvRequired("TG_GEMINI_API_KEY")
	if err != nil {
		return nil, err
	}

	// TG_GEMINI_MODEL — имя модели (по умолчанию gemini-2.5-flash)
	cfg.GeminiModel = getEnvDefault("TG_GEMINI_MODEL", "gemini-2.5-flash")

	// TG_SCORING_TIMEOUT — таймаут вызова скоринга (по умолчанию 60s)
	cfg.ScoringTimeout, err = getEnvDuration("TG_SCORING_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TG_SCORING_TIMEOUT: %w", err)
	}

	// TG_ANALYSIS_WORKERS — количество воркеров анализа (по умолчанию 4)
	cfg.AnalysisWorkers, err = getEnvInt("TG_ANALYSIS_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("TG_ANALYSIS_WORKERS: %w", err)
	}
	if cfg.AnalysisWorkers < 1 || cfg.AnalysisWorkers > 32 {
		return nil, fmt.Errorf("TG_ANALYSIS_WORKERS: значение %d вне допустимого диапазона 1-32", cfg.AnalysisWorkers)
	}

	// TG_ANALYSIS_QUEUE_SIZE — размер очереди анализа (по умолчанию 64)
	cfg.AnalysisQueueSize, err = getEnvInt("TG_ANALYSIS_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("TG_ANALYSIS_QUEUE_SIZE: %w", err)
	}
	if cfg.AnalysisQueueSize < 1 || cfg.AnalysisQueueSize > 4096 {
		return nil, fmt.Errorf("TG_ANALYSIS_QUEUE_SIZE: значение %d вне допустимого диапазона 1-4096", cfg.AnalysisQueueSize)
	}

	// --- Кэш извлечённого текста ---

	// TG_EXTRACT_CACHE_SIZE — размер кэша (по умолчанию 128)
	cfg.ExtractCacheSize, err = getEnvInt("TG_EXTRACT_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("TG_EXTRACT_CACHE_SIZE: %w", err)
	}
	if cfg.ExtractCacheSize < 1 {
		return nil, fmt.Errorf("TG_EXTRACT_CACHE_SIZE: значение %d должно быть положительным", cfg.ExtractCacheSize)
	}

	// TG_EXTRACT_CACHE_TTL — TTL записи кэша (по умолчанию 10m)
	cfg.ExtractCacheTTL, err = getEnvDuration("TG_EXTRACT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TG_EXTRACT_CACHE_TTL: %w", err)
	}

	// --- SMTP ---

	// TG_SMTP_HOST — опционально (пустой — письма не отправляются)
	cfg.SMTPHost = getEnvDefault("TG_SMTP_HOST", "")

	// TG_SMTP_PORT — порт SMTP (по умолчанию 587)
	cfg.SMTPPort, err = getEnvInt("TG_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("TG_SMTP_PORT: %w", err)
	}

	// TG_SMTP_USER / TG_SMTP_PASSWORD — учётные данные SMTP
	cfg.SMTPUser = getEnvDefault("TG_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("TG_SMTP_PASSWORD", "")

	// TG_SMTP_FROM — адрес отправителя (по умолчанию no-reply@talentgate.local)
	cfg.SMTPFrom = getEnvDefault("TG_SMTP_FROM", "no-reply@talentgate.local")

	// --- Фоновые задачи ---

	// TG_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("TG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// TG_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию talentgate)
	cfg.DephealthGroup = getEnvDefault("TG_DEPHEALTH_GROUP", "talentgate")

	// TG_RETENTION_SWEEP_INTERVAL — интервал проверки срока хранения (по умолчанию 1h)
	cfg.RetentionSweepInterval, err = getEnvDuration("TG_RETENTION_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TG_RETENTION_SWEEP_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// TG_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// EmailEnabled сообщает, настроена ли отправка писем.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
