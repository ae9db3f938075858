// convert.go — преобразование ресурсов YouTube Data API в доменные модели.
package youtube

import (
	"fmt"

	"google.golang.org/api/youtube/v3"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// Шаблоны ссылок на просмотр и встраиваемый плеер.
const (
	watchURLPrefix = "https://www.youtube.com/watch?v="
	embedURLPrefix = "https://www.youtube.com/embed/"
)

// defaultCategoryID — категория "People & Blogs", videos.update требует categoryId.
const defaultCategoryID = "22"

// privacyStatus возвращает status.privacyStatus для уровня доступа.
func privacyStatus(ac model.AccessControl) (string, error) {
	switch ac {
	case model.AccessPublic:
		return "public", nil
	case model.AccessUnlisted:
		return "unlisted", nil
	case model.AccessPrivate:
		return "private", nil
	default:
		return "", fmt.Errorf("недопустимый уровень доступа %v", ac)
	}
}

// accessFromPrivacy — обратное преобразование. Неизвестное значение даёт 0.
func accessFromPrivacy(status string) model.AccessControl {
	switch status {
	case "public":
		return model.AccessPublic
	case "unlisted":
		return model.AccessUnlisted
	case "private":
		return model.AccessPrivate
	default:
		return 0
	}
}

// availabilityFromStatus переводит status.uploadStatus в состояние доступности.
func availabilityFromStatus(status *youtube.VideoStatus, processing *youtube.VideoProcessingDetails) model.Availability {
	if status == nil {
		return model.Unavailable(model.AvailabilityUnknown, "")
	}
	switch status.UploadStatus {
	case "processed":
		return model.Available()
	case "uploaded":
		detail := "uploaded"
		if processing != nil && processing.ProcessingStatus != "" {
			detail = processing.ProcessingStatus
		}
		return model.Unavailable(model.AvailabilityProcessing, detail)
	case "rejected":
		return model.Unavailable(model.AvailabilityRejected, status.RejectionReason)
	case "failed":
		return model.Unavailable(model.AvailabilityFailed, status.FailureReason)
	case "deleted":
		return model.Unavailable(model.AvailabilityRejected, "deleted")
	default:
		return model.Unavailable(model.AvailabilityUnknown, status.UploadStatus)
	}
}

// thumbnailURLs возвращает адреса превью от меньшего к большему, отсутствующие пропускаются.
func thumbnailURLs(details *youtube.ThumbnailDetails) []string {
	if details == nil {
		return nil
	}
	var urls []string
	for _, th := range []*youtube.Thumbnail{
		details.Default, details.Medium, details.High, details.Standard, details.Maxres,
	} {
		if th != nil && th.Url != "" {
			urls = append(urls, th.Url)
		}
	}
	return urls
}

// entryFromVideo собирает RemoteEntry из ресурса videos.
func entryFromVideo(v *youtube.Video) *model.RemoteEntry {
	entry := &model.RemoteEntry{
		RemoteID:     v.Id,
		PlaybackURL:  watchURLPrefix + v.Id,
		EmbedURL:     embedURLPrefix + v.Id,
		Availability: availabilityFromStatus(v.Status, v.ProcessingDetails),
	}
	if v.Snippet != nil {
		entry.Title = v.Snippet.Title
		entry.Description = v.Snippet.Description
		entry.Keywords = v.Snippet.Tags
		entry.Thumbnails = thumbnailURLs(v.Snippet.Thumbnails)
	}
	if v.Status != nil {
		entry.AccessControl = accessFromPrivacy(v.Status.PrivacyStatus)
	}
	return entry
}

// entryFromPlaylistItem собирает RemoteEntry из элемента плейлиста загрузок.
// Состояние обработки в плейлисте недоступно и остаётся Unknown.
func entryFromPlaylistItem(item *youtube.PlaylistItem) *model.RemoteEntry {
	var id string
	if item.ContentDetails != nil {
		id = item.ContentDetails.VideoId
	}
	if id == "" && item.Snippet != nil && item.Snippet.ResourceId != nil {
		id = item.Snippet.ResourceId.VideoId
	}

	entry := &model.RemoteEntry{
		RemoteID:    id,
		PlaybackURL: watchURLPrefix + id,
		EmbedURL:    embedURLPrefix + id,
	}
	if item.Snippet != nil {
		entry.Title = item.Snippet.Title
		entry.Description = item.Snippet.Description
		entry.Thumbnails = thumbnailURLs(item.Snippet.Thumbnails)
	}
	if item.Status != nil {
		entry.AccessControl = accessFromPrivacy(item.Status.PrivacyStatus)
	}
	return entry
}

// videoResource собирает тело videos.insert из метаданных.
func videoResource(meta model.VideoMetadata, ac model.AccessControl) (*youtube.Video, error) {
	privacy, err := privacyStatus(ac)
	if err != nil {
		return nil, err
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Keywords,
			CategoryId:  defaultCategoryID,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}, nil
}
