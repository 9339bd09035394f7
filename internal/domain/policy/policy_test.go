package policy

import (
	"testing"

	"github.com/arturkryukov/securevault/internal/domain/model"
)

// TestEvaluate проверяет матрицу решений для всех режимов доступа.
func TestEvaluate(t *testing.T) {
	anon := model.Anonymous()
	user := model.Identity{Authenticated: true, Subject: "user-1"}
	subscriber := model.Identity{Authenticated: true, Subject: "user-2", Roles: []string{"subscriber"}}
	editor := model.Identity{Authenticated: true, Subject: "user-3", Roles: []string{"editor", "subscriber"}}

	tests := []struct {
		name    string
		policy  *model.AccessPolicy
		caller  model.Identity
		allowed bool
	}{
		{"public: аноним", &model.AccessPolicy{Mode: model.ModePublic}, anon, true},
		{"public: аутентифицированный", &model.AccessPolicy{Mode: model.ModePublic}, user, true},
		{"authenticated: аноним", &model.AccessPolicy{Mode: model.ModeAuthenticated}, anon, false},
		{"authenticated: аутентифицированный", &model.AccessPolicy{Mode: model.ModeAuthenticated}, user, true},
		{
			"role_restricted: аноним",
			&model.AccessPolicy{Mode: model.ModeRoleRestricted, AllowedRoles: []string{"editor"}},
			anon, false,
		},
		{
			"role_restricted: без нужной роли",
			&model.AccessPolicy{Mode: model.ModeRoleRestricted, AllowedRoles: []string{"editor"}},
			subscriber, false,
		},
		{
			"role_restricted: пересечение ролей",
			&model.AccessPolicy{Mode: model.ModeRoleRestricted, AllowedRoles: []string{"editor"}},
			editor, true,
		},
		{
			"role_restricted: пустой список ролей",
			&model.AccessPolicy{Mode: model.ModeRoleRestricted, AllowedRoles: []string{}},
			editor, false,
		},
		{"неизвестный режим — запрет", &model.AccessPolicy{Mode: "everyone"}, user, false},
		{"пустой режим — запрет", &model.AccessPolicy{}, user, false},
		{"nil политика — запрет", nil, user, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.policy, tt.caller); got != tt.allowed {
				t.Errorf("Evaluate(): ожидалось %v, получено %v", tt.allowed, got)
			}
		})
	}
}

// TestEvaluate_Pure проверяет, что результат не зависит от порядка
// и количества предыдущих вызовов.
func TestEvaluate_Pure(t *testing.T) {
	p := &model.AccessPolicy{Mode: model.ModeRoleRestricted, AllowedRoles: []string{"editor"}}
	editor := model.Identity{Authenticated: true, Roles: []string{"editor"}}
	subscriber := model.Identity{Authenticated: true, Roles: []string{"subscriber"}}

	for i := 0; i < 100; i++ {
		if !Evaluate(p, editor) {
			t.Fatalf("итерация %d: editor должен быть допущен", i)
		}
		if Evaluate(p, subscriber) {
			t.Fatalf("итерация %d: subscriber должен быть отклонён", i)
		}
	}
}

// TestEvaluate_DoesNotMutatePolicy проверяет, что вызов не изменяет политику.
func TestEvaluate_DoesNotMutatePolicy(t *testing.T) {
	p := &model.AccessPolicy{
		Mode:         model.ModeRoleRestricted,
		AllowedRoles: []string{"editor", "author"},
	}

	Evaluate(p, model.Identity{Authenticated: true, Roles: []string{"author"}})

	if p.Mode != model.ModeRoleRestricted {
		t.Error("режим политики изменился после Evaluate")
	}
	if len(p.AllowedRoles) != 2 || p.AllowedRoles[0] != "editor" {
		t.Error("список ролей изменился после Evaluate")
	}
}
