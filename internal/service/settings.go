// settings.go — сервис политики доступа и переноса директории хранения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// SettingsError — ошибка сохранения настроек с HTTP-кодом.
type SettingsError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UpdateParams — параметры обновления политики доступа.
type UpdateParams struct {
	// Mode — режим доступа (public, authenticated, role_restricted)
	Mode string
	// AllowedRoles — роли для режима role_restricted
	AllowedRoles []string
	// StorageDirName — желаемое имя директории хранения
	StorageDirName string
	// UpdatedBy — идентификатор администратора (sub из JWT)
	UpdatedBy string
}

// SettingsService — сервис настроек: политика доступа и директория хранения.
type SettingsService struct {
	repo     repository.SettingsRepository
	fileRepo repository.FileRecordRepository
	vault    *vault.Vault
	logger   *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
func NewSettingsService(
	repo repository.SettingsRepository,
	fileRepo repository.FileRecordRepository,
	vlt *vault.Vault,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		repo:     repo,
		fileRepo: fileRepo,
		vault:    vlt,
		logger:   logger.With(slog.String("component", "settings_service")),
	}
}

// Policy возвращает текущую политику доступа.
// При первом обращении строка настроек создаётся со значениями по умолчанию,
// чтобы дальнейшие чтения всегда видели явно сохранённую политику.
func (s *SettingsService) Policy(ctx context.Context) (*model.AccessPolicy, error) {
	p, err := s.repo.Get(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	p = model.DefaultAccessPolicy()
	if err := s.repo.Save(ctx, p, ""); err != nil {
		return nil, fmt.Errorf("ошибка первичного сохранения настроек: %w", err)
	}
	s.logger.Info("Политика доступа инициализирована значениями по умолчанию",
		slog.String("mode", string(p.Mode)),
		slog.String("storage_dir", p.StorageDirName),
	)
	return p, nil
}

// Update сохраняет новую политику доступа.
//
// Имя директории хранения меняется только пока реестр пуст: при наличии
// хотя бы одной записи новое имя молча игнорируется и сохраняется прежнее.
// Если целевая директория уже существует на диске, перенос не выполняется
// и прежнее имя также сохраняется.
func (s *SettingsService) Update(ctx context.Context, params UpdateParams) (*model.AccessPolicy, *SettingsError) {
	if !model.ValidAccessMode(params.Mode) {
		return nil, &SettingsError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Недопустимый режим доступа %q, допустимые: public, authenticated, role_restricted", params.Mode),
		}
	}

	current, err := s.Policy(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения текущих настроек", slog.String("error", err.Error()))
		return nil, &SettingsError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при чтении настроек",
		}
	}

	next := &model.AccessPolicy{
		Mode:           model.AccessMode(params.Mode),
		AllowedRoles:   normalizeRoles(params.AllowedRoles),
		StorageDirName: current.StorageDirName,
	}

	// Перенос директории хранения
	requested := sanitizeDirName(params.StorageDirName)
	if requested != current.StorageDirName {
		count, err := s.fileRepo.CountAll(ctx)
		if err != nil {
			s.logger.Error("Ошибка подсчёта записей реестра", slog.String("error", err.Error()))
			return nil, &SettingsError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    "Внутренняя ошибка при проверке реестра",
			}
		}

		switch {
		case count > 0:
			// Реестр не пуст: смена директории молча игнорируется
			s.logger.Warn("Смена директории хранения отклонена: реестр не пуст",
				slog.String("requested", requested),
				slog.String("current", current.StorageDirName),
				slog.Int("records", count),
			)
		default:
			if err := s.vault.Migrate(current.StorageDirName, requested); err != nil {
				if errors.Is(err, vault.ErrTargetExists) {
					s.logger.Warn("Смена директории хранения отклонена: целевая директория существует",
						slog.String("requested", requested),
					)
					break
				}
				s.logger.Error("Ошибка переноса директории хранения",
					slog.String("old", current.StorageDirName),
					slog.String("new", requested),
					slog.String("error", err.Error()),
				)
				return nil, &SettingsError{
					StatusCode: 500,
					Code:       apierrors.CodeInternalError,
					Message:    "Ошибка переноса директории хранения",
				}
			}
			next.StorageDirName = requested
		}
	}

	if err := s.repo.Save(ctx, next, params.UpdatedBy); err != nil {
		s.logger.Error("Ошибка сохранения настроек", slog.String("error", err.Error()))
		return nil, &SettingsError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при сохранении настроек",
		}
	}

	s.logger.Info("Политика доступа обновлена",
		slog.String("mode", string(next.Mode)),
		slog.String("storage_dir", next.StorageDirName),
		slog.String("updated_by", params.UpdatedBy),
	)

	return next, nil
}

// sanitizeDirName приводит имя директории хранения к одному безопасному
// сегменту пути. Недопустимое или пустое имя — директория по умолчанию.
func sanitizeDirName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(filepath.ToSlash(name))
	name = strings.Trim(name, ".")
	if name == "" || name == "/" || strings.ContainsAny(name, "\\/") {
		return model.DefaultStorageDirName
	}
	return name
}

// normalizeRoles убирает пустые элементы и пробелы из списка ролей.
func normalizeRoles(roles []string) []string {
	result := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r != "" {
			result = append(result, r)
		}
	}
	return result
}
