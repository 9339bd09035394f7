// Пакет policy — движок политики доступа к скачиванию.
// Чистая функция от (политика, идентичность) без I/O и без
// обращения к глобальному состоянию.
package policy

import (
	"github.com/arturkryukov/securevault/internal/domain/model"
)

// Evaluate возвращает true, если вызывающему разрешено скачивание.
//
//	public          — разрешено всем
//	authenticated   — только аутентифицированным
//	role_restricted — только аутентифицированным с пересечением ролей
//
// Неизвестный или пустой режим трактуется как запрет: разрешающее
// значение public должно быть задано явно (оно устанавливается
// при первом запуске как умолчание).
func Evaluate(p *model.AccessPolicy, id model.Identity) bool {
	if p == nil {
		return false
	}

	switch p.Mode {
	case model.ModePublic:
		return true
	case model.ModeAuthenticated:
		return id.Authenticated
	case model.ModeRoleRestricted:
		if !id.Authenticated {
			return false
		}
		for _, allowed := range p.AllowedRoles {
			if id.HasRole(allowed) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
