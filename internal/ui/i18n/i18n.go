// Пакет i18n — интернационализация страниц Video Module.
// Поддерживаемые языки: English (en), Русский (ru).
// Язык определяется middleware: cookie "lang" → Accept-Language → default "en".
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLang — язык по умолчанию и язык fallback-переводов.
const DefaultLang = "en"

// localeFS — встроенные JSON-каталоги переводов.
//
//go:embed locales/*.json
var localeFS embed.FS

var (
	// SupportedLanguages — список поддерживаемых тегов языков.
	SupportedLanguages = []language.Tag{
		language.English,
		language.Russian,
	}

	// matcher — языковой matcher для Accept-Language.
	matcher = language.NewMatcher(SupportedLanguages)
)

// contextKey — тип ключа для контекста (избегаем коллизий).
type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — каталоги переводов всех языков. После загрузки только читается,
// поэтому безопасен для конкурентного использования без блокировок.
type Bundle struct {
	catalogs map[string]map[string]string // lang → key → translation
}

// Load загружает встроенные каталоги переводов.
func Load(logger *slog.Logger) (*Bundle, error) {
	return LoadFS(localeFS, "locales", logger)
}

// LoadFS загружает каталоги <dir>/<lang>.json из файловой системы.
// Формат каталога — плоский JSON {"key": "translation"}.
func LoadFS(fsys fs.FS, dir string, logger *slog.Logger) (*Bundle, error) {
	b := &Bundle{catalogs: make(map[string]map[string]string)}

	for _, tag := range SupportedLanguages {
		lang := baseLang(tag)
		file := path.Join(dir, lang+".json")
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", file, err)
		}

		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
		}
		b.catalogs[lang] = messages

		logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return b, nil
}

// Translate возвращает перевод по ключу для указанного языка.
// Отсутствующий перевод берётся из английского каталога, затем возвращается сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	if b == nil {
		return key
	}
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Translatef возвращает перевод с подстановкой аргументов.
// Формат-строка приходит из каталога, поэтому go vet не может её проверить.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

//nolint:govet // формат-строки загружаются из каталогов во время выполнения
var formatFunc = fmt.Sprintf

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. Default: "en".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// IsSupported сообщает, поддерживается ли язык.
func IsSupported(lang string) bool {
	for _, tag := range SupportedLanguages {
		if baseLang(tag) == lang {
			return true
		}
	}
	return false
}

// MatchLanguage определяет лучший язык из Accept-Language заголовка.
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	if strings.HasPrefix(baseLang(tag), "ru") {
		return "ru"
	}
	return DefaultLang
}

// baseLang возвращает базовый код языка тега ("en", "ru").
func baseLang(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
