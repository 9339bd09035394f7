// files.go — HTTP handlers файловых операций: загрузка, список, удаление.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/api/middleware"
	"github.com/arturkryukov/securevault/internal/domain/model"
	"github.com/arturkryukov/securevault/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart form в памяти.
const multipartMemoryLimit = 32 << 20 // 32 MiB

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc *service.UploadService
	fileSvc   *service.FileService
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(uploadSvc *service.UploadService, fileSvc *service.FileService) *FilesHandler {
	return &FilesHandler{
		uploadSvc: uploadSvc,
		fileSvc:   fileSvc,
	}
}

// uploadResponse — тело ответа загрузки.
type uploadResponse struct {
	*model.FileRecord
	DownloadURL string `json:"download_url"`
}

// Upload обрабатывает POST /api/v1/files.
// Multipart form: file (обязательно).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.NoFile(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		apierrors.NoFile(w, "Загружен пустой файл")
		return
	}

	result, upErr := h.uploadSvc.Upload(r.Context(), service.UploadParams{
		Reader:           file,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		Size:             header.Size,
		UploadedBy:       id.Subject,
	})
	if upErr != nil {
		apierrors.WriteError(w, upErr.StatusCode, upErr.Code, upErr.Message)
		return
	}

	resp := uploadResponse{
		FileRecord:  result.Record,
		DownloadURL: result.DownloadURL,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// listItem — элемент списка файлов со ссылкой скачивания.
type listItem struct {
	*model.FileRecord
	DownloadURL string `json:"download_url"`
}

// listResponse — тело ответа списка файлов.
type listResponse struct {
	Items  []listItem `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// List обрабатывает GET /api/v1/files.
// Пагинация: limit (1-1000, по умолчанию 100), offset.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			apierrors.ValidationError(w, "Параметр limit должен быть от 1 до 1000")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return
		}
		offset = n
	}

	records, fErr := h.fileSvc.List(r.Context(), limit, offset)
	if fErr != nil {
		apierrors.WriteError(w, fErr.StatusCode, fErr.Code, fErr.Message)
		return
	}

	items := make([]listItem, 0, len(records))
	for _, rec := range records {
		items = append(items, listItem{
			FileRecord:  rec,
			DownloadURL: h.uploadSvc.DownloadURL(rec.DownloadToken),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
	})
}

// Delete обрабатывает DELETE /api/v1/files/{record_id}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "record_id")
	if _, err := uuid.Parse(recordID); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор записи")
		return
	}

	if fErr := h.fileSvc.Delete(r.Context(), recordID); fErr != nil {
		apierrors.WriteError(w, fErr.StatusCode, fErr.Code, fErr.Message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
