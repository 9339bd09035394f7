// settings.go — обработчики политики доступа.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/api/middleware"
	"github.com/arturkryukov/securevault/internal/service"
)

// SettingsHandler — обработчик GET/PUT /api/v1/settings.
type SettingsHandler struct {
	settingsSvc *service.SettingsService
}

// NewSettingsHandler создаёт обработчик настроек.
func NewSettingsHandler(settingsSvc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc}
}

// Get обрабатывает GET /api/v1/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.settingsSvc.Policy(r.Context())
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка при чтении настроек")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(policy)
}

// updateSettingsRequest — тело запроса обновления политики.
type updateSettingsRequest struct {
	Mode           string   `json:"mode"`
	AllowedRoles   []string `json:"allowed_roles"`
	StorageDirName string   `json:"storage_directory_name"`
}

// Update обрабатывает PUT /api/v1/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %s", err.Error()))
		return
	}

	id := middleware.IdentityFromContext(r.Context())

	policy, updErr := h.settingsSvc.Update(r.Context(), service.UpdateParams{
		Mode:           req.Mode,
		AllowedRoles:   req.AllowedRoles,
		StorageDirName: req.StorageDirName,
		UpdatedBy:      id.Subject,
	})
	if updErr != nil {
		apierrors.WriteError(w, updErr.StatusCode, updErr.Code, updErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(policy)
}
