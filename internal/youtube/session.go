// session.go — операции аутентифицированной сессии YouTube Data API.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// feedPageSize — размер страницы playlistItems.list (максимум API).
const feedPageSize = 50

// Session — аутентифицированная сессия одной логической операции.
// Вызов методов у nil или неаутентифицированной сессии возвращает ErrAuth.
type Session struct {
	client    *Client
	svc       *youtube.Service
	http      *http.Client
	uploadURL string
}

// ready проверяет, что сессия прошла аутентификацию.
func (s *Session) ready(op string) error {
	if s == nil || s.svc == nil || s.client == nil {
		return fmt.Errorf("%w: %s: сессия не аутентифицирована", ErrAuth, op)
	}
	return nil
}

// FetchEntryByID возвращает метаданные видео. Отсутствующее видео → ErrNotFound.
func (s *Session) FetchEntryByID(ctx context.Context, remoteID string) (entry *model.RemoteEntry, err error) {
	const op = "fetch_entry"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	defer func() { observe(op, err) }()

	v, err := s.getVideo(ctx, op, ErrUnavailable, remoteID, "snippet", "status", "player", "processingDetails")
	if err != nil {
		return nil, err
	}
	return entryFromVideo(v), nil
}

// CheckStatus возвращает состояние обработки видео на хостинге.
func (s *Session) CheckStatus(ctx context.Context, remoteID string) (availability model.Availability, err error) {
	const op = "check_status"
	if err := s.ready(op); err != nil {
		return model.Availability{}, err
	}
	defer func() { observe(op, err) }()

	v, err := s.getVideo(ctx, op, ErrUnavailable, remoteID, "status", "processingDetails")
	if err != nil {
		return model.Availability{}, err
	}
	return availabilityFromStatus(v.Status, v.ProcessingDetails), nil
}

// getVideo выполняет videos.list по одному id с таймаутом и повторами.
// fallback — ошибка для сбоев, не относящихся к аутентификации, таймауту и 404.
func (s *Session) getVideo(ctx context.Context, op string, fallback error, remoteID string, parts ...string) (*youtube.Video, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: %s: пустой идентификатор", ErrNotFound, op)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	var resp *youtube.VideoListResponse
	err := s.client.retry(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.svc.Videos.List(parts).Id(remoteID).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, classify(ctx, op, err, fallback)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: видео %s", ErrNotFound, remoteID)
	}
	return resp.Items[0], nil
}

// FetchFeedByUser возвращает ленту загрузок пользователя.
// Последовательность ленивая: страницы запрашиваются по мере итерации,
// прерывание итерации прекращает запросы. Ошибка передаётся последним элементом.
func (s *Session) FetchFeedByUser(ctx context.Context, username string) iter.Seq2[*model.RemoteEntry, error] {
	const op = "fetch_feed"
	return func(yield func(*model.RemoteEntry, error) bool) {
		if err := s.ready(op); err != nil {
			yield(nil, err)
			return
		}

		playlistID, err := s.uploadsPlaylist(ctx, username)
		observe(op, err)
		if err != nil {
			yield(nil, err)
			return
		}

		pageToken := ""
		for {
			items, next, err := s.playlistPage(ctx, playlistID, pageToken)
			observe(op, err)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range items {
				if !yield(entryFromPlaylistItem(item), nil) {
					return
				}
			}
			if next == "" {
				return
			}
			pageToken = next
		}
	}
}

// uploadsPlaylist находит плейлист загрузок канала по имени пользователя
// или по идентификатору канала (UC...).
func (s *Session) uploadsPlaylist(ctx context.Context, username string) (string, error) {
	const op = "fetch_feed"
	if strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("%w: %s: пустое имя пользователя", ErrNotFound, op)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	var resp *youtube.ChannelListResponse
	err := s.client.retry(ctx, func(ctx context.Context) error {
		call := s.svc.Channels.List([]string{"contentDetails"}).Context(ctx)
		if isChannelID(username) {
			call = call.Id(username)
		} else {
			call = call.ForUsername(username)
		}
		var callErr error
		resp, callErr = call.Do()
		return callErr
	})
	if err != nil {
		return "", classify(ctx, op, err, ErrUnavailable)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", fmt.Errorf("%w: канал пользователя %s", ErrNotFound, username)
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// playlistPage запрашивает одну страницу плейлиста.
func (s *Session) playlistPage(ctx context.Context, playlistID, pageToken string) ([]*youtube.PlaylistItem, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	var resp *youtube.PlaylistItemListResponse
	err := s.client.retry(ctx, func(ctx context.Context) error {
		call := s.svc.PlaylistItems.List([]string{"snippet", "contentDetails", "status"}).
			PlaylistId(playlistID).
			MaxResults(feedPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var callErr error
		resp, callErr = call.Do()
		return callErr
	})
	if err != nil {
		return nil, "", classify(ctx, "fetch_feed", err, ErrUnavailable)
	}
	return resp.Items, resp.NextPageToken, nil
}

// isChannelID — идентификаторы каналов имеют вид UC + 22 символа.
func isChannelID(s string) bool {
	return len(s) == 24 && strings.HasPrefix(s, "UC")
}

// CreateUploadSession открывает resumable-сессию загрузки для браузера.
// PostURL — адрес из заголовка Location, Token — его параметр upload_id.
func (s *Session) CreateUploadSession(ctx context.Context, meta model.VideoMetadata, ac model.AccessControl) (session *model.UploadSession, err error) {
	const op = "create_upload_session"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	defer func() { observe(op, err) }()

	video, err := videoResource(meta, ac)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	body, err := json.Marshal(video)
	if err != nil {
		return nil, fmt.Errorf("сериализация метаданных: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	reqURL := s.uploadURL + "?" + url.Values{
		"uploadType": {"resumable"},
		"part":       {"snippet,status"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, classify(ctx, op, err, ErrUpload)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, classify(ctx, op, err, ErrUpload)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: отсутствует Location в ответе", ErrUpload)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: некорректный Location %q", ErrUpload, location)
	}
	token := parsed.Query().Get("upload_id")
	if token == "" {
		return nil, fmt.Errorf("%w: Location без upload_id: %s", ErrUpload, location)
	}

	return &model.UploadSession{PostURL: location, Token: token}, nil
}

// UploadDirect загружает файл на хостинг от имени сервера (videos.insert с media).
func (s *Session) UploadDirect(ctx context.Context, r io.Reader, meta model.VideoMetadata, ac model.AccessControl) (entry *model.RemoteEntry, err error) {
	const op = "upload_direct"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	defer func() { observe(op, err) }()

	if r == nil {
		return nil, fmt.Errorf("%w: отсутствует файл", ErrUpload)
	}
	video, err := videoResource(meta, ac)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.uploadTimeout)
	defer cancel()

	uploaded, err := s.svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(r).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(ctx, op, err, ErrUpload)
	}
	if uploaded.Id == "" {
		return nil, fmt.Errorf("%w: ответ без идентификатора видео", ErrUpload)
	}

	s.client.logger.Info("Видео загружено на YouTube",
		slog.String("remote_id", uploaded.Id),
	)
	return entryFromVideo(uploaded), nil
}

// UpdateEntry обновляет метаданные и уровень доступа видео.
// Описание и теги заменяются целиком, пустые значения очищают их на хостинге.
// Пустое название не отправляется: хостинг его не принимает. Категория сохраняется.
func (s *Session) UpdateEntry(ctx context.Context, remoteID string, meta model.VideoMetadata, ac model.AccessControl) (entry *model.RemoteEntry, err error) {
	const op = "update_entry"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	defer func() { observe(op, err) }()

	privacy, err := privacyStatus(ac)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpdate, err)
	}

	current, err := s.getVideo(ctx, op, ErrUpdate, remoteID, "snippet", "status")
	if err != nil {
		return nil, err
	}

	snippet := current.Snippet
	if snippet == nil {
		snippet = &youtube.VideoSnippet{}
	}
	if snippet.CategoryId == "" {
		snippet.CategoryId = defaultCategoryID
	}
	if meta.Title != "" {
		snippet.Title = meta.Title
	}
	snippet.Description = meta.Description
	snippet.Tags = meta.Keywords
	if snippet.Tags == nil {
		snippet.Tags = []string{}
	}
	// Без ForceSendFields пустые значения не попадут в запрос и хостинг оставит прежние
	snippet.ForceSendFields = append(snippet.ForceSendFields, "Description", "Tags")
	status := current.Status
	if status == nil {
		status = &youtube.VideoStatus{}
	}
	status.PrivacyStatus = privacy

	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	updated, err := s.svc.Videos.Update([]string{"snippet", "status"}, &youtube.Video{
		Id:      remoteID,
		Snippet: snippet,
		Status:  status,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(ctx, op, err, ErrUpdate)
	}
	return entryFromVideo(updated), nil
}

// DeleteEntry удаляет видео с хостинга.
func (s *Session) DeleteEntry(ctx context.Context, remoteID string) (err error) {
	const op = "delete_entry"
	if err := s.ready(op); err != nil {
		return err
	}
	defer func() { observe(op, err) }()

	if remoteID == "" {
		return fmt.Errorf("%w: %s: пустой идентификатор", ErrNotFound, op)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.callTimeout)
	defer cancel()

	if err := s.svc.Videos.Delete(remoteID).Context(ctx).Do(); err != nil {
		return classify(ctx, op, err, ErrUnavailable)
	}
	return nil
}
