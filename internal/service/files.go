// files.go — сервис администрирования реестра файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// FileError — ошибка операции с файлом с HTTP-кодом.
type FileError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FileService — сервис операций над реестром файлов.
type FileService struct {
	vault  *vault.Vault
	repo   repository.FileRecordRepository
	cache  *CacheService
	logger *slog.Logger
}

// NewFileService создаёт сервис операций над реестром.
func NewFileService(
	vlt *vault.Vault,
	repo repository.FileRecordRepository,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		vault:  vlt,
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// List возвращает активные записи реестра.
func (s *FileService) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, *FileError) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.ListActive(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		return nil, &FileError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при получении списка файлов",
		}
	}
	if records == nil {
		records = []*model.FileRecord{}
	}
	return records, nil
}

// Delete удаляет файл с диска и его запись из реестра.
// Отсутствие файла на диске не мешает удалению записи.
func (s *FileService) Delete(ctx context.Context, recordID string) *FileError {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &FileError{
				StatusCode: 404,
				Code:       apierrors.CodeNotFound,
				Message:    fmt.Sprintf("Запись %s не найдена", recordID),
			}
		}
		s.logger.Error("Ошибка поиска записи",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		return &FileError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при поиске записи",
		}
	}

	// Сначала файл, затем запись: байты без записи недопустимы, а запись
	// без байтов обнаруживается при чтении и отдаётся как FILE_MISSING
	if err := s.vault.DeleteFile(record.StoragePath); err != nil {
		s.logger.Error("Ошибка удаления файла с диска",
			slog.String("record_id", recordID),
			slog.String("storage_path", record.StoragePath),
			slog.String("error", err.Error()),
		)
		return &FileError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка удаления файла с диска",
		}
	}

	if err := s.repo.Delete(ctx, recordID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Ошибка удаления записи",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		return &FileError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка удаления записи",
		}
	}

	s.cache.Delete(record.DownloadToken)

	s.logger.Info("Файл удалён",
		slog.String("record_id", recordID),
		slog.String("filename", record.DisplayName),
	)
	return nil
}
