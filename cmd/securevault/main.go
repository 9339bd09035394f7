// Точка входа SecureVault — сервис защищённого хранения файлов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует файловое хранилище и кэш, создаёт сервисный слой и API
// handlers, запускает HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturkryukov/securevault/internal/api/handlers"
	"github.com/arturkryukov/securevault/internal/api/middleware"
	"github.com/arturkryukov/securevault/internal/config"
	"github.com/arturkryukov/securevault/internal/database"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/server"
	"github.com/arturkryukov/securevault/internal/service"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("SecureVault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Файловое хранилище
	vlt, err := vault.New(cfg.StorageRoot, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища",
			slog.String("root", cfg.StorageRoot),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("root", vlt.StorageRoot()))

	// 6. Repositories
	fileRepo := repository.NewFileRecordRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// 7. Кэш записей по токену
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)

	// 8. Services
	settingsSvc := service.NewSettingsService(settingsRepo, fileRepo, vlt, logger)
	uploadSvc := service.NewUploadService(cfg, vlt, fileRepo, settingsSvc, cache, logger)
	downloadSvc := service.NewDownloadService(vlt, fileRepo, settingsSvc, cache, logger)
	fileSvc := service.NewFileService(vlt, fileRepo, cache, logger)

	// Директория хранения создаётся заранее, чтобы guard-файлы
	// стояли до первой загрузки.
	if policy, perr := settingsSvc.Policy(ctx); perr != nil {
		logger.Error("Ошибка чтения политики доступа", slog.String("error", perr.Error()))
		os.Exit(1)
	} else if derr := vlt.EnsureDir(policy.StorageDirName); derr != nil {
		logger.Error("Ошибка подготовки директории хранения",
			slog.String("dir", policy.StorageDirName),
			slog.String("error", derr.Error()),
		)
		os.Exit(1)
	}

	// 9. JWT middleware (опционально: без SV_JWKS_URL административный
	// API закрыт, работает только скачивание по токену)
	var auth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		auth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWTJWKSURL,
			CACertPath:      cfg.JWKSCACertPath,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: time.Hour,
			JWTLeeway:       time.Minute,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("SV_JWKS_URL не задан: административный API недоступен")
	}

	// 10. Handlers
	h := &server.Handlers{
		Files:    handlers.NewFilesHandler(uploadSvc, fileSvc),
		Download: handlers.NewDownloadHandler(downloadSvc),
		Settings: handlers.NewSettingsHandler(settingsSvc),
		Health:   handlers.NewHealthHandler(cfg.StorageRoot, database.NewReadinessChecker(pool)),
	}

	// 11. HTTP-сервер
	srv := server.New(cfg, logger, h, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
