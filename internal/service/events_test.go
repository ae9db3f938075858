package service

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

func TestNewVideoCreatedEvent(t *testing.T) {
	v := syncedVideo()
	data, err := json.Marshal(NewVideoCreatedEvent(v))
	if err != nil {
		t.Fatalf("json.Marshal() ошибка: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() ошибка: %v", err)
	}
	if got["event"] != "video.created" || got["video_id"] != testVideoID || got["remote_id"] != "abc123" {
		t.Errorf("событие = %v", got)
	}
	if got["access_control"] != "public" {
		t.Errorf("access_control = %v, ожидали public", got["access_control"])
	}
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	publisher := NewRedisPublisher(client, "video.created", testLogger())
	if err := publisher.PublishVideoCreated(context.Background(), syncedVideo()); err == nil {
		t.Error("ожидали ошибку публикации при недоступном Redis")
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (NopPublisher{}).PublishVideoCreated(context.Background(), &model.VideoRecord{}); err != nil {
		t.Errorf("NopPublisher вернул ошибку: %v", err)
	}
}

// TestRedisPublisher_Integration публикует событие в настоящий Redis и читает его подписчиком.
func TestRedisPublisher_Integration(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Не удалось получить адрес контейнера: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	defer client.Close()

	sub := client.Subscribe(ctx, "video.created")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Подписка не подтверждена: %v", err)
	}

	publisher := NewRedisPublisher(client, "video.created", testLogger())
	if err := publisher.PublishVideoCreated(ctx, syncedVideo()); err != nil {
		t.Fatalf("PublishVideoCreated() ошибка: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var event VideoCreatedEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("некорректное тело события: %v", err)
		}
		if event.VideoID != testVideoID {
			t.Errorf("video_id = %q, ожидали %q", event.VideoID, testVideoID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("событие не получено")
	}
}
