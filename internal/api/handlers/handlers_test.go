package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/securevault/internal/config"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/repository"
	"github.com/arturkryukov/securevault/internal/service"
	"github.com/arturkryukov/securevault/internal/storage/vault"
)

// memFileRepo — in-memory реализация FileRecordRepository для HTTP-тестов.
type memFileRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{records: make(map[string]*model.FileRecord)}
}

func (m *memFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.DownloadToken == f.DownloadToken {
			return repository.ErrConflict
		}
	}
	cp := *f
	m.records[f.RecordID] = &cp
	return nil
}

func (m *memFileRepo) GetByToken(_ context.Context, token string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.DownloadToken == token && r.Status == model.StatusActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memFileRepo) GetByID(_ context.Context, recordID string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memFileRepo) ListActive(_ context.Context, limit, offset int) ([]*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.FileRecord{}
	i := 0
	for _, r := range m.records {
		if r.Status != model.StatusActive {
			continue
		}
		if i >= offset && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
		i++
	}
	return out, nil
}

func (m *memFileRepo) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[recordID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, recordID)
	return nil
}

func (m *memFileRepo) CountAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

// memSettingsRepo — in-memory реализация SettingsRepository.
type memSettingsRepo struct {
	mu     sync.Mutex
	policy *model.AccessPolicy
}

func (m *memSettingsRepo) Get(_ context.Context) (*model.AccessPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policy == nil {
		return nil, repository.ErrNotFound
	}
	cp := *m.policy
	cp.AllowedRoles = append([]string{}, m.policy.AllowedRoles...)
	return &cp, nil
}

func (m *memSettingsRepo) Save(_ context.Context, p *model.AccessPolicy, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.AllowedRoles = append([]string{}, p.AllowedRoles...)
	m.policy = &cp
	return nil
}

// testEnv — собранный HTTP router со всеми обработчиками поверх in-memory хранилищ.
type testEnv struct {
	router   chi.Router
	fileRepo *memFileRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{
		BaseURL:     "https://vault.kryukov.lan",
		StorageRoot: t.TempDir(),
		MaxFileSize: 1 << 20,
	}

	vlt, err := vault.New(cfg.StorageRoot, logger)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	fileRepo := newMemFileRepo()
	settingsRepo := &memSettingsRepo{}
	cache := service.NewCacheService(16, time.Minute)

	settingsSvc := service.NewSettingsService(settingsRepo, fileRepo, vlt, logger)
	uploadSvc := service.NewUploadService(cfg, vlt, fileRepo, settingsSvc, cache, logger)
	downloadSvc := service.NewDownloadService(vlt, fileRepo, settingsSvc, cache, logger)
	fileSvc := service.NewFileService(vlt, fileRepo, cache, logger)

	filesH := NewFilesHandler(uploadSvc, fileSvc)
	downloadH := NewDownloadHandler(downloadSvc)
	settingsH := NewSettingsHandler(settingsSvc)
	healthH := NewHealthHandler(cfg.StorageRoot, nil)

	r := chi.NewRouter()
	r.Get("/download", downloadH.Download)
	r.Post("/api/v1/files", filesH.Upload)
	r.Get("/api/v1/files", filesH.List)
	r.Delete("/api/v1/files/{record_id}", filesH.Delete)
	r.Get("/api/v1/settings", settingsH.Get)
	r.Put("/api/v1/settings", settingsH.Update)
	r.Get("/health/live", healthH.HealthLive)
	r.Get("/health/ready", healthH.HealthReady)

	return &testEnv{router: r, fileRepo: fileRepo}
}

// decodeErrorCode извлекает код ошибки из стандартного конверта
// {"error": {"code": ..., "message": ...}}.
func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("ошибка декодирования конверта ошибки: %v", err)
	}
	return resp.Error.Code
}

// multipartBody собирает multipart тело с одним файлом в поле "file".
func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("ошибка создания multipart поля: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("ошибка записи multipart тела: %v", err)
	}
	_ = w.Close()
	return buf, w.FormDataContentType()
}

// uploadFile загружает файл через POST /api/v1/files и декодирует ответ.
func uploadFile(t *testing.T, env *testEnv, filename string, content []byte) map[string]any {
	t.Helper()

	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("ожидался статус 201, получен %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	return resp
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	content := []byte("содержимое секретного документа")

	resp := uploadFile(t, env, "отчёт.pdf", content)

	if resp["display_name"] != "отчёт.pdf" {
		t.Errorf("ожидалось display_name 'отчёт.pdf', получено %v", resp["display_name"])
	}
	token, _ := resp["download_token"].(string)
	if len(token) != 64 {
		t.Errorf("ожидался токен длиной 64, получено %d", len(token))
	}
	wantURL := "https://vault.kryukov.lan/download?token=" + token
	if resp["download_url"] != wantURL {
		t.Errorf("ожидался download_url %q, получен %v", wantURL, resp["download_url"])
	}

	// Скачивание по токену возвращает исходные байты.
	req := httptest.NewRequest(http.MethodGet, "/download?token="+token, nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", w.Code, w.Body.String())
	}
	got, _ := io.ReadAll(w.Body)
	if !bytes.Equal(got, content) {
		t.Errorf("скачанное содержимое не совпадает с загруженным")
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="отчёт.pdf"` {
		t.Errorf("неожиданный Content-Disposition: %q", cd)
	}
}

func TestConcurrentDownloadsSameToken(t *testing.T) {
	env := newTestEnv(t)
	content := bytes.Repeat([]byte("параллельное скачивание одного токена. "), 1024)

	resp := uploadFile(t, env, "shared.bin", content)
	token, _ := resp["download_token"].(string)

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/download?token="+token, nil)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("ожидался статус 200, получен %d", w.Code)
				return
			}
			got, _ := io.ReadAll(w.Body)
			if !bytes.Equal(got, content) {
				t.Errorf("скачанное содержимое повреждено: %d байт вместо %d", len(got), len(content))
			}
		}()
	}
	wg.Wait()
}

func TestUploadNoFile(t *testing.T) {
	env := newTestEnv(t)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	_ = w.WriteField("comment", "без файла")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "NO_FILE" {
		t.Errorf("ожидался код NO_FILE, получен %q", code)
	}
}

func TestDownloadUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	for name, target := range map[string]string{
		"пустой токен":      "/download",
		"неизвестный токен": "/download?token=0000000000000000000000000000000000000000000000000000000000000000",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("ожидался статус 403, получен %d", w.Code)
			}
			if code := decodeErrorCode(t, w.Body.Bytes()); code != "FORBIDDEN" {
				t.Errorf("ожидался код FORBIDDEN, получен %q", code)
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		uploadFile(t, env, fmt.Sprintf("doc-%d.txt", i), []byte(fmt.Sprintf("документ %d", i)))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", w.Code)
	}
	var listResp struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("ошибка декодирования списка: %v", err)
	}
	if len(listResp.Items) != 3 {
		t.Fatalf("ожидалось 3 записи, получено %d", len(listResp.Items))
	}
	for _, item := range listResp.Items {
		url, _ := item["download_url"].(string)
		if url == "" {
			t.Errorf("у записи %v отсутствует download_url", item["record_id"])
		}
	}

	recordID, _ := listResp.Items[0]["record_id"].(string)
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/files/"+recordID, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d: %s", w.Code, w.Body.String())
	}

	if _, err := env.fileRepo.GetByID(context.Background(), recordID); err == nil {
		t.Errorf("запись должна быть удалена из реестра")
	}
}

func TestDeleteInvalidID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/files/not-a-uuid", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400, получен %d", w.Code)
	}
}

func TestSettingsGetAndUpdate(t *testing.T) {
	env := newTestEnv(t)

	// GET при первом обращении возвращает политику по умолчанию.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", w.Code)
	}
	var policy model.AccessPolicy
	if err := json.Unmarshal(w.Body.Bytes(), &policy); err != nil {
		t.Fatalf("ошибка декодирования политики: %v", err)
	}
	if policy.Mode != model.ModePublic {
		t.Errorf("ожидался режим public, получен %s", policy.Mode)
	}

	// PUT меняет режим и роли.
	body := `{"mode": "role_restricted", "allowed_roles": ["editor"], "storage_directory_name": "secure-uploads"}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &policy); err != nil {
		t.Fatalf("ошибка декодирования политики: %v", err)
	}
	if policy.Mode != model.ModeRoleRestricted {
		t.Errorf("ожидался режим role_restricted, получен %s", policy.Mode)
	}
	if len(policy.AllowedRoles) != 1 || policy.AllowedRoles[0] != "editor" {
		t.Errorf("неожиданный список ролей: %v", policy.AllowedRoles)
	}
}

func TestSettingsUpdateInvalidMode(t *testing.T) {
	env := newTestEnv(t)

	body := `{"mode": "secret", "allowed_roles": []}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400, получен %d", w.Code)
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["service"] != "securevault" {
		t.Errorf("ожидался service 'securevault', получен %v", resp["service"])
	}
	if resp["status"] != "ok" {
		t.Errorf("ожидался status 'ok', получен %v", resp["status"])
	}
}

func TestHealthReady(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", w.Code, w.Body.String())
	}
}
