// Пакет rbac — правила доступа к видео.
// Роль пользователя определяется по группам IdP из JWT (admin, viewer).
// Изменять, синхронизировать и удалять видео может только владелец или admin.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleViewer: 1,
	RoleAdmin:  2,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	if roleWeight[a] >= roleWeight[b] {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя по группам IdP.
// Пользователь без совпадений получает роль viewer: любой аутентифицированный
// пользователь может загружать видео и управлять своими записями.
func MapGroupsToRole(groups []string, adminGroups []string) string {
	adminSet := toSet(adminGroups)
	roles := []string{RoleViewer}
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
	}
	return HighestRole(roles)
}

// CanManageVideo проверяет право изменять или удалять видео владельца owner.
func CanManageVideo(subject, role, owner string) bool {
	if subject == "" {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	return subject == owner
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
