package model

import (
	"fmt"
	"strings"
)

// AccessControl — уровень доступа к видео на удалённом хостинге.
// Нулевое значение недопустимо: запись всегда хранит один из трёх вариантов.
type AccessControl int

const (
	// AccessPublic — видео доступно всем и отображается в поиске.
	AccessPublic AccessControl = iota + 1
	// AccessUnlisted — видео доступно только по ссылке.
	AccessUnlisted
	// AccessPrivate — видео доступно только владельцу.
	AccessPrivate
)

// DefaultAccessControl — уровень доступа новой записи по умолчанию.
const DefaultAccessControl = AccessPublic

// ParseAccessControl разбирает строковое значение (public, unlisted, private).
// Регистр не учитывается, пробелы по краям отбрасываются.
func ParseAccessControl(s string) (AccessControl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return AccessPublic, nil
	case "unlisted":
		return AccessUnlisted, nil
	case "private":
		return AccessPrivate, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень доступа %q, допустимые: public, unlisted, private", s)
	}
}

// String возвращает каноническое строковое представление.
// Для недопустимого значения возвращает "invalid(N)".
func (a AccessControl) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessUnlisted:
		return "unlisted"
	case AccessPrivate:
		return "private"
	default:
		return fmt.Sprintf("invalid(%d)", int(a))
	}
}

// Valid сообщает, является ли значение одним из трёх допустимых вариантов.
func (a AccessControl) Valid() bool {
	switch a {
	case AccessPublic, AccessUnlisted, AccessPrivate:
		return true
	default:
		return false
	}
}

// Label — подпись для форм и страниц.
func (a AccessControl) Label() string {
	switch a {
	case AccessPublic:
		return "Public"
	case AccessUnlisted:
		return "Unlisted"
	case AccessPrivate:
		return "Private"
	default:
		return ""
	}
}

// AllAccessControls возвращает все допустимые варианты в порядке отображения.
func AllAccessControls() []AccessControl {
	return []AccessControl{AccessPublic, AccessUnlisted, AccessPrivate}
}

// MarshalText реализует encoding.TextMarshaler (JSON, query-параметры).
func (a AccessControl) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("недопустимый уровень доступа %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (a *AccessControl) UnmarshalText(text []byte) error {
	parsed, err := ParseAccessControl(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
