// Пакет model — доменные модели Secure Vault.
// FileRecord — метаданные защищённого файла, AccessPolicy — политика
// доступа к скачиванию, Identity — идентичность вызывающего.
package model

import (
	"time"
)

// FileStatus — статус записи файла.
type FileStatus string

const (
	// StatusActive — файл существует и доступен для скачивания по токену.
	// Записи не переводятся в иные статусы: удаление записи выполняется
	// физически вместе с удалением файла.
	StatusActive FileStatus = "active"
)

// FileRecord — метаданные защищённого файла.
// StoragePath и DownloadToken неизменяемы после создания записи.
type FileRecord struct {
	// RecordID — уникальный идентификатор записи (UUID v4)
	RecordID string `json:"record_id"`

	// DisplayName — очищенное оригинальное имя файла.
	// Используется только для отображения и Content-Disposition,
	// никогда — для поиска файла на диске.
	DisplayName string `json:"display_name"`

	// StoragePath — абсолютный путь к файлу на диске.
	// Не возвращается в API-ответах.
	StoragePath string `json:"-"`

	// MimeType — заявленный при загрузке MIME-тип, отдаётся как есть
	MimeType string `json:"mime_type"`

	// DownloadToken — единственный ключ для скачивания файла.
	// Криптослучайная строка, не выводимая из имени или идентификатора.
	DownloadToken string `json:"download_token"`

	// Status — статус записи
	Status FileStatus `json:"status"`

	// Size — размер файла в байтах
	Size int64 `json:"size"`

	// Checksum — SHA-256 хэш содержимого файла
	Checksum string `json:"checksum"`

	// UploadedBy — идентификатор загрузившего (sub из JWT)
	UploadedBy string `json:"uploaded_by"`

	// UploadedAt — дата и время загрузки (UTC)
	UploadedAt time.Time `json:"uploaded_at"`

	// CreatedAt, UpdatedAt — служебные таймстемпы записи
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive проверяет, что запись в активном состоянии.
func (r *FileRecord) IsActive() bool {
	return r.Status == StatusActive
}

// AccessMode — режим доступа к скачиванию.
type AccessMode string

const (
	// ModePublic — скачивание доступно любому, кто знает токен
	ModePublic AccessMode = "public"
	// ModeAuthenticated — только аутентифицированным пользователям
	ModeAuthenticated AccessMode = "authenticated"
	// ModeRoleRestricted — только пользователям с ролями из AllowedRoles
	ModeRoleRestricted AccessMode = "role_restricted"
)

// ValidAccessMode проверяет, что строка — допустимый режим доступа.
func ValidAccessMode(s string) bool {
	switch AccessMode(s) {
	case ModePublic, ModeAuthenticated, ModeRoleRestricted:
		return true
	}
	return false
}

// DefaultStorageDirName — имя директории хранения по умолчанию.
const DefaultStorageDirName = "secure-uploads"

// AccessPolicy — единая конфигурационная запись сервиса.
// Читается в начале каждой обработки скачивания и каждого сохранения настроек.
type AccessPolicy struct {
	// Mode — режим доступа к скачиванию
	Mode AccessMode `json:"mode"`

	// AllowedRoles — роли, которым разрешено скачивание.
	// Имеет смысл только при Mode == role_restricted.
	AllowedRoles []string `json:"allowed_roles"`

	// StorageDirName — логическое имя директории хранения внутри
	// корня хранилища. Меняется только пока не существует ни одной записи.
	StorageDirName string `json:"storage_directory_name"`
}

// DefaultAccessPolicy возвращает политику, устанавливаемую при первом
// запуске: public — намеренно разрешающее значение по умолчанию,
// оператор должен ужесточить его в настройках.
func DefaultAccessPolicy() *AccessPolicy {
	return &AccessPolicy{
		Mode:           ModePublic,
		AllowedRoles:   []string{},
		StorageDirName: DefaultStorageDirName,
	}
}

// Identity — идентичность вызывающего, разрешённая middleware один раз
// на запрос и передаваемая явными параметрами (без глобального состояния).
type Identity struct {
	// Authenticated — прошёл ли вызывающий аутентификацию
	Authenticated bool
	// Subject — идентификатор пользователя (sub из JWT)
	Subject string
	// Roles — роли вызывающего
	Roles []string
}

// Anonymous возвращает идентичность неаутентифицированного вызывающего.
func Anonymous() Identity {
	return Identity{}
}

// HasRole проверяет наличие роли у вызывающего.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}
