// upload.go — сервис загрузки файлов в защищённое хранилище.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/config"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/storage/naming"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — оригинальное имя файла из multipart part
	OriginalFilename string
	// ContentType — MIME-тип файла
	ContentType string
	// Size — размер файла (из Content-Length multipart part)
	Size int64
	// UploadedBy — идентификатор пользователя (sub из JWT)
	UploadedBy string
	// Destination — имя директории хранения. Пустое значение —
	// директория из текущей политики доступа.
	Destination string
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	Record *model.FileRecord
	// DownloadURL — готовая ссылка скачивания с токеном
	DownloadURL string
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	cfg      *config.Config
	vault    *vault.Vault
	repo     repository.FileRecordRepository
	settings *SettingsService
	cache    *CacheService
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	cfg *config.Config,
	vlt *vault.Vault,
	repo repository.FileRecordRepository,
	settings *SettingsService,
	cache *CacheService,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:      cfg,
		vault:    vlt,
		repo:     repo,
		settings: settings,
		cache:    cache,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// Upload загружает файл в хранилище.
//
// Поток:
//  1. Проверка размера файла
//  2. Определение директории хранения (Destination или политика)
//  3. SaveFile (streaming + SHA-256, имя файла — криптослучайное)
//  4. Генерация токена скачивания (независимо от имени хранения)
//  5. Создание записи в реестре
//
// Операция атомарна: при ошибке создания записи сохранённый файл
// удаляется, частичных результатов не остаётся.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, *UploadError) {
	// 1. Проверяем размер файла
	if params.Size > s.cfg.MaxFileSize {
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.cfg.MaxFileSize),
		}
	}

	// 2. Определяем директорию хранения
	dirName := params.Destination
	if dirName == "" {
		policy, err := s.settings.Policy(ctx)
		if err != nil {
			s.logger.Error("Ошибка чтения политики доступа", slog.String("error", err.Error()))
			return nil, &UploadError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Внутренняя ошибка при чтении настроек",
			}
		}
		dirName = policy.StorageDirName
	}

	// 3. Сохраняем файл (имя на диске никак не связано с оригинальным)
	saved, err := s.vault.SaveFile(dirName, params.Reader)
	if err != nil {
		s.logger.Error("Ошибка сохранения файла",
			slog.String("dir", dirName),
			slog.String("error", err.Error()),
		)
		return nil, classifySaveError(err)
	}

	// Cleanup при ошибке после сохранения файла
	rollback := func() {
		if rbErr := s.vault.DeleteFile(saved.FullPath); rbErr != nil {
			s.logger.Error("Ошибка отката сохранённого файла",
				slog.String("path", saved.FullPath),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	// 4. Генерируем токен скачивания — независимо от имени хранения
	token, err := naming.NewDownloadToken()
	if err != nil {
		rollback()
		s.logger.Error("Ошибка генерации токена скачивания", slog.String("error", err.Error()))
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при генерации токена",
		}
	}

	// 5. Формируем и сохраняем запись реестра
	record := &model.FileRecord{
		RecordID:      uuid.New().String(),
		DisplayName:   naming.SanitizeDisplayName(params.OriginalFilename),
		StoragePath:   saved.FullPath,
		MimeType:      detectContentType(params.ContentType),
		DownloadToken: token,
		Status:        model.StatusActive,
		Size:          saved.Size,
		Checksum:      saved.Checksum,
		UploadedBy:    params.UploadedBy,
		UploadedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		rollback()
		s.logger.Error("Ошибка создания записи файла",
			slog.String("record_id", record.RecordID),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeRecordCreateFailed,
			Message:    "Ошибка создания записи файла",
		}
	}

	s.logger.Info("Файл загружен",
		slog.String("record_id", record.RecordID),
		slog.String("filename", record.DisplayName),
		slog.Int64("size", record.Size),
		slog.String("checksum", record.Checksum),
		slog.String("uploaded_by", record.UploadedBy),
	)

	return &UploadResult{
		Record:      record,
		DownloadURL: s.DownloadURL(token),
	}, nil
}

// classifySaveError переводит ошибку записи файла в ошибку загрузки.
// Исчерпание места на диске и исчерпание попыток подбора свободного
// имени — оба признака переполненного хранилища (507), остальные
// ошибки записи — 500.
func classifySaveError(err error) *UploadError {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, vault.ErrNameExhausted) {
		return &UploadError{
			StatusCode: 507,
			Code:       apierrors.CodeStorageExhausted,
			Message:    "Недостаточно места в хранилище",
		}
	}
	return &UploadError{
		StatusCode: 500,
		Code:       apierrors.CodeWriteFailed,
		Message:    "Ошибка сохранения файла на диск",
	}
}

// DownloadURL строит ссылку скачивания для токена.
func (s *UploadService) DownloadURL(token string) string {
	return fmt.Sprintf("%s/download?token=%s", s.cfg.BaseURL, token)
}

// detectContentType нормализует Content-Type из заголовка multipart part.
// Пустой — application/octet-stream; параметры (charset и т.д.) убираются.
func detectContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
