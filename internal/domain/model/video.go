// Пакет model — доменные модели Video Module.
package model

import "time"

// VideoRecord — локальная копия метаданных видео, размещённого на удалённом хостинге.
// Хранится в таблице videos. Источник истины — хостинг, запись является зеркалом.
type VideoRecord struct {
	// ID — UUID записи
	ID string
	// RemoteID — идентификатор видео на хостинге (уникальный)
	RemoteID string
	// Title — название
	Title string
	// Description — описание
	Description string
	// Keywords — ключевые слова через запятую
	Keywords string
	// PlaybackURL — страница просмотра на хостинге (только из удалённой записи)
	PlaybackURL string
	// EmbedURL — адрес встраиваемого плеера (только из удалённой записи)
	EmbedURL string
	// AccessControl — уровень доступа
	AccessControl AccessControl
	// Owner — идентификатор автора (subject пользователя)
	Owner string
	// Synced — метаданные получены с хостинга
	Synced bool
	// Thumbnails — превью в порядке, возвращённом хостингом
	Thumbnails []Thumbnail
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Clone возвращает независимую копию записи (включая срез превью).
func (v *VideoRecord) Clone() *VideoRecord {
	if v == nil {
		return nil
	}
	c := *v
	if v.Thumbnails != nil {
		c.Thumbnails = make([]Thumbnail, len(v.Thumbnails))
		copy(c.Thumbnails, v.Thumbnails)
	}
	return &c
}

// Metadata возвращает метаданные записи в формате для отправки на хостинг.
func (v *VideoRecord) Metadata() VideoMetadata {
	return VideoMetadata{
		Title:       v.Title,
		Description: v.Description,
		Keywords:    SplitKeywords(v.Keywords),
	}
}

// ApplyEntry переносит в запись метаданные удалённой записи и отмечает её синхронизированной.
// Превью не копируются: ими управляет репозиторий.
func (v *VideoRecord) ApplyEntry(entry *RemoteEntry) {
	v.RemoteID = entry.RemoteID
	v.Title = entry.Title
	v.Description = entry.Description
	v.Keywords = JoinKeywords(entry.Keywords)
	v.PlaybackURL = entry.PlaybackURL
	v.EmbedURL = entry.EmbedURL
	if entry.AccessControl.Valid() {
		v.AccessControl = entry.AccessControl
	}
	v.Synced = true
}

// ApplyConfirmed переносит в запись метаданные, подтверждённые хостингом после изменения.
func (v *VideoRecord) ApplyConfirmed(entry *RemoteEntry) {
	v.Title = entry.Title
	v.Description = entry.Description
	v.Keywords = JoinKeywords(entry.Keywords)
	if entry.AccessControl.Valid() {
		v.AccessControl = entry.AccessControl
	}
}

// Thumbnail — превью видео. Хранится в таблице video_thumbnails.
type Thumbnail struct {
	// ID — идентификатор записи
	ID int64
	// VideoID — UUID владеющей записи VideoRecord
	VideoID string
	// Position — порядковый номер в списке хостинга (с нуля)
	Position int
	// URL — адрес изображения
	URL string
}

// VideoChanges — частичное изменение записи. nil-поля не меняются.
type VideoChanges struct {
	Title         *string
	Description   *string
	Keywords      *string
	AccessControl *AccessControl
}

// IsEmpty возвращает true, если изменений нет.
func (c VideoChanges) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Keywords == nil && c.AccessControl == nil
}

// ApplyTo применяет изменения к записи.
func (c VideoChanges) ApplyTo(v *VideoRecord) {
	if c.Title != nil {
		v.Title = *c.Title
	}
	if c.Description != nil {
		v.Description = *c.Description
	}
	if c.Keywords != nil {
		v.Keywords = *c.Keywords
	}
	if c.AccessControl != nil {
		v.AccessControl = *c.AccessControl
	}
}
