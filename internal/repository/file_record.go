package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/securevault/internal/domain/model"
)

// FileRecordRepository — интерфейс CRUD для таблицы file_records.
type FileRecordRepository interface {
	// Create создаёт новую запись файла.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByToken возвращает активную запись по токену скачивания.
	GetByToken(ctx context.Context, token string) (*model.FileRecord, error)
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, recordID string) (*model.FileRecord, error)
	// ListActive возвращает список активных записей.
	ListActive(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
	// Delete удаляет запись физически.
	Delete(ctx context.Context, recordID string) error
	// CountAll возвращает общее количество записей независимо от статуса.
	CountAll(ctx context.Context) (int, error)
}

// fileRecordRepo — реализация FileRecordRepository.
type fileRecordRepo struct {
	db DBTX
}

// NewFileRecordRepository создаёт репозиторий записей файлов.
func NewFileRecordRepository(db DBTX) FileRecordRepository {
	return &fileRecordRepo{db: db}
}

func (r *fileRecordRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO file_records (record_id, display_name, storage_path, mime_type,
			download_token, status, size, checksum, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.RecordID, f.DisplayName, f.StoragePath, f.MimeType,
		f.DownloadToken, f.Status, f.Size, f.Checksum, f.UploadedBy, f.UploadedAt,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись с таким идентификатором или токеном уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRecordRepo) GetByToken(ctx context.Context, token string) (*model.FileRecord, error) {
	query := `
		SELECT record_id, display_name, storage_path, mime_type, download_token,
			status, size, checksum, uploaded_by, uploaded_at, created_at, updated_at
		FROM file_records
		WHERE download_token = $1 AND status = 'active'`

	return r.scanOne(r.db.QueryRow(ctx, query, token))
}

func (r *fileRecordRepo) GetByID(ctx context.Context, recordID string) (*model.FileRecord, error) {
	query := `
		SELECT record_id, display_name, storage_path, mime_type, download_token,
			status, size, checksum, uploaded_by, uploaded_at, created_at, updated_at
		FROM file_records
		WHERE record_id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, recordID))
}

func (r *fileRecordRepo) scanOne(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.RecordID, &f.DisplayName, &f.StoragePath, &f.MimeType, &f.DownloadToken,
		&f.Status, &f.Size, &f.Checksum, &f.UploadedBy, &f.UploadedAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

func (r *fileRecordRepo) ListActive(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	query := `
		SELECT record_id, display_name, storage_path, mime_type, download_token,
			status, size, checksum, uploaded_by, uploaded_at, created_at, updated_at
		FROM file_records
		WHERE status = 'active'
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.RecordID, &f.DisplayName, &f.StoragePath, &f.MimeType, &f.DownloadToken,
			&f.Status, &f.Size, &f.Checksum, &f.UploadedBy, &f.UploadedAt,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRecordRepo) Delete(ctx context.Context, recordID string) error {
	query := `DELETE FROM file_records WHERE record_id = $1`

	tag, err := r.db.Exec(ctx, query, recordID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAll считает все записи независимо от статуса: решение о переносе
// директории хранения принимается только при полном отсутствии записей.
func (r *fileRecordRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM file_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей файлов: %w", err)
	}
	return count, nil
}
