package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/securevault/internal/domain/model"
)

// SettingsRepository — интерфейс для таблицы settings.
// Таблица содержит единственную строку (id = 1) с политикой доступа.
type SettingsRepository interface {
	// Get возвращает текущую политику. Если строка не создана — ErrNotFound.
	Get(ctx context.Context) (*model.AccessPolicy, error)
	// Save создаёт или обновляет политику (upsert единственной строки).
	Save(ctx context.Context, p *model.AccessPolicy, updatedBy string) error
}

// settingsRepo — реализация SettingsRepository.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

// Get возвращает текущую политику доступа.
func (r *settingsRepo) Get(ctx context.Context) (*model.AccessPolicy, error) {
	query := `
		SELECT access_mode, allowed_roles, storage_dir_name
		FROM settings
		WHERE id = 1`

	p := &model.AccessPolicy{}
	err := r.db.QueryRow(ctx, query).Scan(&p.Mode, &p.AllowedRoles, &p.StorageDirName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения настроек: %w", err)
	}
	if p.AllowedRoles == nil {
		p.AllowedRoles = []string{}
	}
	return p, nil
}

// Save создаёт или обновляет политику (INSERT ... ON CONFLICT DO UPDATE).
func (r *settingsRepo) Save(ctx context.Context, p *model.AccessPolicy, updatedBy string) error {
	query := `
		INSERT INTO settings (id, access_mode, allowed_roles, storage_dir_name, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET access_mode = EXCLUDED.access_mode,
			allowed_roles = EXCLUDED.allowed_roles,
			storage_dir_name = EXCLUDED.storage_dir_name,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query, p.Mode, p.AllowedRoles, p.StorageDirName, updatedBy)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настроек: %w", err)
	}
	return nil
}
