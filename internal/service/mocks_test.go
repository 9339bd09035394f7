package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// --- Mock repositories ---

// mockFileRepo — мок FileRecordRepository для unit-тестов.
type mockFileRepo struct {
	createFn     func(ctx context.Context, f *model.FileRecord) error
	getByTokenFn func(ctx context.Context, token string) (*model.FileRecord, error)
	getByIDFn    func(ctx context.Context, recordID string) (*model.FileRecord, error)
	listActiveFn func(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
	deleteFn     func(ctx context.Context, recordID string) error
	countAllFn   func(ctx context.Context) (int, error)
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) GetByToken(ctx context.Context, token string) (*model.FileRecord, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByID(ctx context.Context, recordID string) (*model.FileRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, recordID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) ListActive(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, recordID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, recordID)
	}
	return nil
}

func (m *mockFileRepo) CountAll(ctx context.Context) (int, error) {
	if m.countAllFn != nil {
		return m.countAllFn(ctx)
	}
	return 0, nil
}

// mockSettingsRepo — мок SettingsRepository: хранит политику в памяти.
type mockSettingsRepo struct {
	policy *model.AccessPolicy
	getErr error
}

func (m *mockSettingsRepo) Get(_ context.Context) (*model.AccessPolicy, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.policy == nil {
		return nil, repository.ErrNotFound
	}
	p := *m.policy
	return &p, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, p *model.AccessPolicy, _ string) error {
	cp := *p
	m.policy = &cp
	return nil
}

// --- Общие помощники ---

// testLogger возвращает логгер, пишущий в stderr только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestVault создаёт Vault во временной директории.
func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания хранилища: %v", err)
	}
	return v
}

// newTestSettings создаёт SettingsService с политикой по умолчанию.
func newTestSettings(t *testing.T, v *vault.Vault, fileRepo repository.FileRecordRepository) (*SettingsService, *mockSettingsRepo) {
	t.Helper()
	repo := &mockSettingsRepo{policy: model.DefaultAccessPolicy()}
	return NewSettingsService(repo, fileRepo, v, testLogger()), repo
}
