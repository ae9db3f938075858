// Пакет pages — страницы Video Module.
// Разметка хранится во встроенных html/template файлах, каждая страница отдаётся
// как templ.Component. Переводы подставляются функцией t по языку из контекста запроса.
package pages

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/ui/i18n"
	"github.com/bigkaa/goartstore/video-module/internal/ui/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// Имена страниц (файлы templates/<name>.html).
const (
	pageVideo         = "video"
	pageProcessing    = "processing"
	pageFailed        = "failed"
	pageList          = "list"
	pageUpload        = "upload"
	pageBrowserUpload = "browser_upload"
	pageError         = "error"
)

var pageNames = []string{
	pageVideo, pageProcessing, pageFailed, pageList, pageUpload, pageBrowserUpload, pageError,
}

// view — данные, доступные разметке страницы и общего layout.
type view struct {
	User middleware.Identity
	Data any
}

// Renderer — набор разобранных страниц.
type Renderer struct {
	bundle *i18n.Bundle
	pages  map[string]*template.Template
}

// NewRenderer разбирает встроенные шаблоны. Ошибка разметки обнаруживается при старте.
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	// Функции-заглушки нужны на этапе разбора, при рендеринге они заменяются
	// функциями языка запроса.
	stub := template.FuncMap{
		"t":    func(key string, _ ...any) string { return key },
		"lang": func() string { return i18n.DefaultLang },
	}

	r := &Renderer{bundle: bundle, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(stub).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("разбор страницы %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// component возвращает страницу name с данными data.
func (r *Renderer) component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		base, ok := r.pages[name]
		if !ok {
			return fmt.Errorf("страница %s не найдена", name)
		}
		t, err := base.Clone()
		if err != nil {
			return fmt.Errorf("клонирование страницы %s: %w", name, err)
		}

		lang := i18n.LangFromContext(ctx)
		t.Funcs(template.FuncMap{
			"t": func(key string, args ...any) string {
				return r.bundle.Translatef(lang, key, args...)
			},
			"lang": func() string { return lang },
		})

		return t.ExecuteTemplate(w, "layout", view{
			User: middleware.IdentityFromContext(ctx),
			Data: data,
		})
	})
}

// --- Страница видео ---

// VideoData — данные страницы проигрывателя.
type VideoData struct {
	Video *model.VideoRecord
	// CanManage — показывать кнопку удаления
	CanManage bool
}

// Video — страница доступного видео с проигрывателем.
func (r *Renderer) Video(data VideoData) templ.Component {
	return r.component(pageVideo, data)
}

// StatusData — данные страниц недоступного видео.
type StatusData struct {
	RemoteID string
	Detail   string
}

// Processing — страница видео, которое ещё обрабатывается хостингом.
func (r *Renderer) Processing(data StatusData) templ.Component {
	return r.component(pageProcessing, data)
}

// Failed — страница отклонённого или неудачно обработанного видео.
func (r *Renderer) Failed(data StatusData) templ.Component {
	return r.component(pageFailed, data)
}

// --- Список видео автора ---

// ListItem — карточка видео в списке.
type ListItem struct {
	RemoteID  string
	Title     string
	Thumbnail string
	Synced    bool
}

// ListData — данные страницы списка видео автора.
type ListData struct {
	Owner    string
	Items    []ListItem
	Total    int
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

// NewListData формирует страницу списка. page — номер страницы с единицы.
func NewListData(owner string, records []*model.VideoRecord, total, page, pageSize int) ListData {
	data := ListData{
		Owner:    owner,
		Items:    make([]ListItem, 0, len(records)),
		Total:    total,
		HasPrev:  page > 1,
		HasNext:  page*pageSize < total,
		PrevPage: page - 1,
		NextPage: page + 1,
	}
	for _, v := range records {
		item := ListItem{RemoteID: v.RemoteID, Title: v.Title, Synced: v.Synced}
		if len(v.Thumbnails) > 0 {
			item.Thumbnail = v.Thumbnails[len(v.Thumbnails)-1].URL
		}
		data.Items = append(data.Items, item)
	}
	return data
}

// List — страница видео автора.
func (r *Renderer) List(data ListData) templ.Component {
	return r.component(pageList, data)
}

// --- Загрузка ---

// UploadFormData — данные формы загрузки.
type UploadFormData struct {
	Title         string
	Description   string
	Keywords      string
	Access        model.AccessControl
	AccessOptions []model.AccessControl
	// Error — сообщение о неудачной загрузке
	Error string
}

// NewUploadFormData возвращает форму с названием по умолчанию и доступом по ссылке.
func NewUploadFormData(title string) UploadFormData {
	return UploadFormData{
		Title:         title,
		Access:        model.AccessUnlisted,
		AccessOptions: []model.AccessControl{model.AccessPublic, model.AccessUnlisted, model.AccessPrivate},
	}
}

// UploadForm — форма загрузки видео.
func (r *Renderer) UploadForm(data UploadFormData) templ.Component {
	return r.component(pageUpload, data)
}

// BrowserUploadData — параметры отправки файла из браузера на хостинг.
type BrowserUploadData struct {
	ActionURL string
	Token     string
}

// BrowserUpload — страница выбора файла для загрузки напрямую на хостинг.
func (r *Renderer) BrowserUpload(data BrowserUploadData) templ.Component {
	return r.component(pageBrowserUpload, data)
}

// ErrorData — данные страницы ошибки.
type ErrorData struct {
	Message string
}

// Error — страница ошибки.
func (r *Renderer) Error(data ErrorData) templ.Component {
	return r.component(pageError, data)
}
