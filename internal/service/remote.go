// remote.go — контракт удалённого хостинга для VideoService и его реализация поверх YouTube.
package service

import (
	"context"
	"io"
	"iter"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/youtube"
)

// RemoteSession — аутентифицированная сессия хостинга.
// Принадлежит одной логической операции и не разделяется между запросами.
type RemoteSession interface {
	FetchEntryByID(ctx context.Context, remoteID string) (*model.RemoteEntry, error)
	FetchFeedByUser(ctx context.Context, username string) iter.Seq2[*model.RemoteEntry, error]
	CreateUploadSession(ctx context.Context, meta model.VideoMetadata, ac model.AccessControl) (*model.UploadSession, error)
	UploadDirect(ctx context.Context, r io.Reader, meta model.VideoMetadata, ac model.AccessControl) (*model.RemoteEntry, error)
	CheckStatus(ctx context.Context, remoteID string) (model.Availability, error)
	UpdateEntry(ctx context.Context, remoteID string, meta model.VideoMetadata, ac model.AccessControl) (*model.RemoteEntry, error)
	DeleteEntry(ctx context.Context, remoteID string) error
}

// RemoteVideoService — источник сессий хостинга.
type RemoteVideoService interface {
	NewSession(ctx context.Context) (RemoteSession, error)
}

// YouTubeRemote — RemoteVideoService поверх YouTube Data API.
// Хранит учётные данные канала, каждая сессия получает собственный access token.
type YouTubeRemote struct {
	client *youtube.Client
	creds  youtube.Credentials
}

// NewYouTubeRemote создаёт источник сессий YouTube.
func NewYouTubeRemote(client *youtube.Client, creds youtube.Credentials) *YouTubeRemote {
	return &YouTubeRemote{client: client, creds: creds}
}

// NewSession аутентифицирует новую сессию.
func (r *YouTubeRemote) NewSession(ctx context.Context) (RemoteSession, error) {
	session, err := r.client.Authenticate(ctx, r.creds)
	if err != nil {
		return nil, err
	}
	return session, nil
}
