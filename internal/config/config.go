// Пакет config — загрузка и валидация конфигурации Secure Vault
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

// Config содержит все параметры конфигурации Secure Vault.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Внешний базовый URL сервиса (для построения ссылок скачивания)
	BaseURL string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Путь к TLS-сертификату (пусто — HTTP без TLS)
	TLSCertFile string
	// Путь к приватному ключу TLS
	TLSKeyFile string

	// --- Хранилище ---

	// Корневая директория хранилища файлов
	StorageRoot string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

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

	// --- JWT ---

	// URL JWKS endpoint провайдера идентичности
	JWTJWKSURL string
	// Путь к CA-сертификату для TLS-соединения с JWKS (опционально)
	JWKSCACertPath string
	// Claim для ролей в JWT
	JWTRolesClaim string
	// Claim для scopes в JWT
	JWTScopesClaim string

	// --- Кэш токенов ---

	// Размер LRU-кэша записей по токену
	CacheSize int
	// TTL записи в кэше
	CacheTTL time.Duration

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

	// SV_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SV_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SV_BASE_URL — обязательный, внешний URL для ссылок скачивания
	cfg.BaseURL, err = getEnvRequired("SV_BASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// SV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SV_LOG_LEVEL: %w", err)
	}

	// SV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// SV_TLS_CERT_FILE / SV_TLS_KEY_FILE — опциональны, но только парой
	cfg.TLSCertFile = getEnvDefault("SV_TLS_CERT_FILE", "")
	cfg.TLSKeyFile = getEnvDefault("SV_TLS_KEY_FILE", "")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("SV_TLS_CERT_FILE и SV_TLS_KEY_FILE должны задаваться вместе")
	}

	// --- Хранилище ---

	// SV_STORAGE_ROOT — обязательный, корень хранилища
	cfg.StorageRoot, err = getEnvRequired("SV_STORAGE_ROOT")
	if err != nil {
		return nil, err
	}

	// SV_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GiB)
	cfg.MaxFileSize, err = getEnvInt64("SV_MAX_FILE_SIZE", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("SV_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 1 {
		return nil, fmt.Errorf("SV_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- PostgreSQL ---

	// SV_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("SV_DB_HOST")
	if err != nil {
		return nil, err
	}

	// SV_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("SV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SV_DB_PORT: %w", err)
	}

	// SV_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("SV_DB_NAME")
	if err != nil {
		return nil, err
	}

	// SV_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("SV_DB_USER")
	if err != nil {
		return nil, err
	}

	// SV_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("SV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// SV_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("SV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	// SV_JWKS_URL — URL JWKS (опционально; без него аутентификация отключена,
	// админские операции будут недоступны)
	cfg.JWTJWKSURL = getEnvDefault("SV_JWKS_URL", "")

	// SV_JWKS_CA_CERT_PATH — CA-сертификат для JWKS endpoint (опционально)
	cfg.JWKSCACertPath = getEnvDefault("SV_JWKS_CA_CERT_PATH", "")

	// SV_JWT_ROLES_CLAIM — claim для ролей (по умолчанию roles)
	cfg.JWTRolesClaim = getEnvDefault("SV_JWT_ROLES_CLAIM", "roles")

	// SV_JWT_SCOPES_CLAIM — claim для scopes (по умолчанию scope)
	cfg.JWTScopesClaim = getEnvDefault("SV_JWT_SCOPES_CLAIM", "scope")

	// --- Кэш токенов ---

	// SV_CACHE_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("SV_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("SV_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("SV_CACHE_SIZE: значение должно быть положительным")
	}

	// SV_CACHE_TTL — TTL записи кэша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("SV_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_CACHE_TTL: %w", err)
	}

	// --- Graceful shutdown ---

	// SV_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SV_SHUTDOWN_TIMEOUT: %w", err)
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

// TLSEnabled сообщает, настроен ли TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
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

// getEnvInt64 возвращает int64-значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
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
