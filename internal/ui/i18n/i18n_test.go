package i18n

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLoad_CatalogsHaveSameKeys — встроенные каталоги содержат одинаковый набор ключей.
func TestLoad_CatalogsHaveSameKeys(t *testing.T) {
	b, err := Load(testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	en, ru := b.catalogs["en"], b.catalogs["ru"]
	if len(en) == 0 {
		t.Fatal("английский каталог пуст")
	}
	for key := range en {
		if _, ok := ru[key]; !ok {
			t.Errorf("ключ %q отсутствует в ru.json", key)
		}
	}
	for key := range ru {
		if _, ok := en[key]; !ok {
			t.Errorf("ключ %q отсутствует в en.json", key)
		}
	}
}

// TestTranslate_Fallback — fallback на английский и на сам ключ.
func TestTranslate_Fallback(t *testing.T) {
	en, _ := json.Marshal(map[string]string{"hello": "Hello", "only_en": "English only"})
	ru, _ := json.Marshal(map[string]string{"hello": "Привет", "greet": "Привет, %s"})
	fsys := fstest.MapFS{
		"l/en.json": {Data: en},
		"l/ru.json": {Data: ru},
	}

	b, err := LoadFS(fsys, "l", testLogger())
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}

	tests := []struct {
		lang, key, want string
	}{
		{"ru", "hello", "Привет"},
		{"en", "hello", "Hello"},
		{"ru", "only_en", "English only"},
		{"ru", "missing", "missing"},
	}
	for _, tt := range tests {
		if got := b.Translate(tt.lang, tt.key); got != tt.want {
			t.Errorf("Translate(%s, %s): ожидали %q, получили %q", tt.lang, tt.key, tt.want, got)
		}
	}

	if got := b.Translatef("ru", "greet", "Анна"); got != "Привет, Анна" {
		t.Errorf("Translatef: получили %q", got)
	}

	var nilBundle *Bundle
	if got := nilBundle.Translate("en", "k"); got != "k" {
		t.Errorf("nil Bundle должен возвращать ключ, получили %q", got)
	}
}

// TestLoadFS_MissingCatalog — отсутствующий каталог языка.
func TestLoadFS_MissingCatalog(t *testing.T) {
	fsys := fstest.MapFS{"l/en.json": {Data: []byte(`{}`)}}
	if _, err := LoadFS(fsys, "l", testLogger()); err == nil {
		t.Error("ожидали ошибку для отсутствующего ru.json")
	}
}

// TestMiddleware_DetectLanguage — приоритет cookie над Accept-Language.
func TestMiddleware_DetectLanguage(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"по умолчанию", "", "", "en"},
		{"Accept-Language ru", "", "ru-RU,ru;q=0.9,en;q=0.8", "ru"},
		{"Accept-Language de", "", "de-DE", "en"},
		{"cookie важнее заголовка", "en", "ru-RU", "en"},
		{"неподдерживаемый cookie", "fr", "ru", "ru"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = LangFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ожидали %q, получили %q", tt.want, got)
			}
		})
	}

	if LangFromContext(context.Background()) != DefaultLang {
		t.Error("пустой контекст должен давать язык по умолчанию")
	}
}
