package model

import (
	"slices"
	"strings"
)

// RemoteEntry — метаданные видео, полученные с хостинга.
type RemoteEntry struct {
	// RemoteID — идентификатор видео на хостинге
	RemoteID string
	// Title — название
	Title string
	// Description — описание
	Description string
	// Keywords — теги
	Keywords []string
	// PlaybackURL — страница просмотра
	PlaybackURL string
	// EmbedURL — адрес встраиваемого плеера
	EmbedURL string
	// AccessControl — уровень доступа (0, если хостинг его не вернул)
	AccessControl AccessControl
	// Thumbnails — адреса превью от меньшего к большему
	Thumbnails []string
	// Availability — состояние обработки на момент запроса
	Availability Availability
}

// Clone возвращает независимую копию (включая срезы тегов и превью).
func (e *RemoteEntry) Clone() *RemoteEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Keywords = slices.Clone(e.Keywords)
	c.Thumbnails = slices.Clone(e.Thumbnails)
	return &c
}

// VideoMetadata — метаданные, отправляемые на хостинг при загрузке и обновлении.
type VideoMetadata struct {
	Title       string
	Description string
	Keywords    []string
}

// UploadSession — параметры загрузки файла напрямую из браузера на хостинг.
type UploadSession struct {
	// PostURL — адрес, на который браузер отправляет файл
	PostURL string
	// Token — одноразовый идентификатор сессии загрузки
	Token string
}

// SplitKeywords разбирает строку ключевых слов через запятую.
// Пустые элементы отбрасываются.
func SplitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// JoinKeywords собирает теги в строку через запятую.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ", ")
}
