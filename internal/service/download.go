// download.go — сервис скачивания файлов по токену.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/domain/policy"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// accessDenied — единый ответ на отказ политики и на неизвестный токен.
// Ответы неразличимы: вызывающий не может выяснить, существует ли токен.
func accessDenied() *DownloadError {
	return &DownloadError{
		StatusCode: 403,
		Code:       apierrors.CodeForbidden,
		Message:    "Доступ запрещён",
	}
}

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	vault    *vault.Vault
	repo     repository.FileRecordRepository
	settings *SettingsService
	cache    *CacheService
	logger   *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	vlt *vault.Vault,
	repo repository.FileRecordRepository,
	settings *SettingsService,
	cache *CacheService,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		vault:    vlt,
		repo:     repo,
		settings: settings,
		cache:    cache,
		logger:   logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт файл клиенту по токену скачивания.
//
// Порядок проверок фиксирован:
//  1. Политика доступа — до поиска токена
//  2. Поиск записи по токену (кэш, затем реестр)
//  3. Наличие файла на диске
//
// Отказ политики и неизвестный токен возвращают одинаковый ответ 403.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, token string, id model.Identity) *DownloadError {
	ctx := r.Context()

	// 1. Политика доступа — читается заново на каждый запрос
	p, err := s.settings.Policy(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения политики доступа", slog.String("error", err.Error()))
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при чтении настроек",
		}
	}
	if !policy.Evaluate(p, id) {
		s.logger.Warn("Отказ в скачивании: политика доступа",
			slog.String("mode", string(p.Mode)),
			slog.Bool("authenticated", id.Authenticated),
		)
		return accessDenied()
	}

	// 2. Ищем запись: сначала кэш, затем реестр
	record, ok := s.cache.Get(token)
	if !ok {
		record, err = s.repo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Warn("Отказ в скачивании: неизвестный токен")
				return accessDenied()
			}
			s.logger.Error("Ошибка поиска записи по токену", slog.String("error", err.Error()))
			return &DownloadError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Внутренняя ошибка при поиске файла",
			}
		}
		s.cache.Set(token, record)
	}

	// 3. Открываем файл
	file, err := s.vault.ReadFile(record.StoragePath)
	if err != nil {
		s.logger.Error("Файл отсутствует на диске",
			slog.String("record_id", record.RecordID),
			slog.String("storage_path", record.StoragePath),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: 404,
			Code:       apierrors.CodeFileMissing,
			Message:    "Файл не найден в хранилище",
		}
	}
	defer file.Close()

	// 4. Заголовки: принудительное скачивание, без кэширования ссылки
	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", record.DisplayName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", record.Size))
	w.Header().Set("Expires", "0")
	w.Header().Set("Cache-Control", "must-revalidate")
	w.Header().Set("Pragma", "public")

	// 5. Отдаём содержимое потоково
	if _, err := io.Copy(w, file); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать
		s.logger.Error("Ошибка отдачи файла",
			slog.String("record_id", record.RecordID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.Debug("Файл скачан",
		slog.String("record_id", record.RecordID),
		slog.String("filename", record.DisplayName),
		slog.Int64("size", record.Size),
	)

	return nil
}

// Resolve возвращает запись по токену без отдачи содержимого.
// Порядок проверок совпадает с Serve.
func (s *DownloadService) Resolve(ctx context.Context, token string, id model.Identity) (*model.FileRecord, *DownloadError) {
	p, err := s.settings.Policy(ctx)
	if err != nil {
		return nil, &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при чтении настроек",
		}
	}
	if !policy.Evaluate(p, id) {
		return nil, accessDenied()
	}

	record, ok := s.cache.Get(token)
	if !ok {
		record, err = s.repo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, accessDenied()
			}
			return nil, &DownloadError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Внутренняя ошибка при поиске файла",
			}
		}
		s.cache.Set(token, record)
	}
	return record, nil
}
