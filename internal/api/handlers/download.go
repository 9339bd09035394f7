// download.go — публичный обработчик скачивания по токену.
package handlers

import (
	"net/http"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/api/middleware"
	"github.com/arturkryukov/securevault/internal/service"
)

// DownloadHandler — обработчик GET /download.
type DownloadHandler struct {
	downloadSvc *service.DownloadService
}

// NewDownloadHandler создаёт обработчик скачивания.
func NewDownloadHandler(downloadSvc *service.DownloadService) *DownloadHandler {
	return &DownloadHandler{downloadSvc: downloadSvc}
}

// Download обрабатывает GET /download?token=...
// Идентичность вызывающего разрешается опциональным JWT middleware;
// без токена запрос отклоняется так же, как с неизвестным токеном.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		// Пустой токен неотличим от неизвестного
		apierrors.Forbidden(w, "Доступ запрещён")
		middleware.DownloadsDenied.Inc()
		return
	}

	id := middleware.IdentityFromContext(r.Context())

	if dlErr := h.downloadSvc.Serve(w, r, token, id); dlErr != nil {
		if dlErr.StatusCode == http.StatusForbidden {
			middleware.DownloadsDenied.Inc()
		}
		apierrors.WriteError(w, dlErr.StatusCode, dlErr.Code, dlErr.Message)
		return
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
}
