package usecase

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// mockMediaRepository provides a configurable mock for MediaRepository.
type mockMediaRepository struct {
	createFn    func(ctx context.Context, media *model.Media) error
	getByIDFn   func(ctx context.Context, id uuid.UUID) (*model.Media, error)
	getByHashFn func(ctx context.Context, hash string) (*model.Media, error)
	listFn      func(ctx context.Context, limit, offset int) ([]*model.Media, error)
	updateFn    func(ctx context.Context, media *model.Media) error
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockMediaRepository) Create(ctx context.Context, media *model.Media) error {
	if m.createFn != nil {
		return m.createFn(ctx, media)
	}
	return nil
}

func (m *mockMediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Media, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrMediaNotFound
}

func (m *mockMediaRepository) GetByHash(ctx context.Context, hash string) (*model.Media, error) {
	if m.getByHashFn != nil {
		return m.getByHashFn(ctx, hash)
	}
	return nil, repository.ErrMediaNotFound
}

func (m *mockMediaRepository) List(ctx context.Context, limit, offset int) ([]*model.Media, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockMediaRepository) Update(ctx context.Context, media *model.Media) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, media)
	}
	return nil
}

func (m *mockMediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedUploadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	downloadFn                   func(ctx context.Context, key string) (io.ReadCloser, error)
	statFn                       func(ctx context.Context, key string) (*repository.ObjectInfo, error)
	deleteFn                     func(ctx context.Context, key string) error
}

func (m *mockObjectStorage) GeneratePresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedUploadURLFn != nil {
		return m.generatePresignedUploadURLFn(ctx, key, expiry)
	}
	return "http://example.com/upload", nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return io.NopCloser(bytes.NewReader([]byte("media"))), nil
}

func (m *mockObjectStorage) Stat(ctx context.Context, key string) (*repository.ObjectInfo, error) {
	if m.statFn != nil {
		return m.statFn(ctx, key)
	}
	return &repository.ObjectInfo{Key: key, Size: 5}, nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishProbeTaskFn  func(ctx context.Context, task repository.ProbeTask) error
	consumeProbeTasksFn func(ctx context.Context, handler func(task repository.ProbeTask) error) error
}

func (m *mockMessageQueue) PublishProbeTask(ctx context.Context, task repository.ProbeTask) error {
	if m.publishProbeTaskFn != nil {
		return m.publishProbeTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeProbeTasks(ctx context.Context, handler func(task repository.ProbeTask) error) error {
	if m.consumeProbeTasksFn != nil {
		return m.consumeProbeTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockDecoder produces solid-color frames whose first byte is the frame index.
type mockDecoder struct {
	probeFn func(ctx context.Context, path string) (*decoder.ProbeResult, error)

	mu     sync.Mutex
	probes int
	decode int
	paths  []string
}

func (m *mockDecoder) Probe(ctx context.Context, path string) (*decoder.ProbeResult, error) {
	m.mu.Lock()
	m.probes++
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.probeFn != nil {
		return m.probeFn(ctx, path)
	}
	return &decoder.ProbeResult{FrameCount: 100, FPS: 25, Width: 2, Height: 2, Duration: 4 * time.Second}, nil
}

func (m *mockDecoder) Decode(ctx context.Context, path string, _ decoder.DecodeOptions, fn func(decoder.RawFrame) error) error {
	info, err := m.Probe(ctx, path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.decode++
	m.mu.Unlock()

	for i := range info.FrameCount {
		data := bytes.Repeat([]byte{byte(i)}, info.Width*info.Height*model.BytesPerPixel)
		raw := decoder.RawFrame{
			Index:     i,
			Timestamp: time.Duration(i) * 40 * time.Millisecond,
			Width:     info.Width,
			Height:    info.Height,
			Data:      data,
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockDecoder) decodes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decode
}

// mockMediaService provides a configurable mock for MediaService.
type mockMediaService struct {
	createMediaFn  func(ctx context.Context, input CreateMediaInput) (*CreateMediaOutput, error)
	triggerProbeFn func(ctx context.Context, mediaID uuid.UUID) error
	getMediaFn     func(ctx context.Context, mediaID uuid.UUID) (*model.Media, error)
	listMediaFn    func(ctx context.Context, limit, offset int) ([]*model.Media, error)
	deleteMediaFn  func(ctx context.Context, mediaID uuid.UUID) error
}

func (m *mockMediaService) CreateMedia(ctx context.Context, input CreateMediaInput) (*CreateMediaOutput, error) {
	if m.createMediaFn != nil {
		return m.createMediaFn(ctx, input)
	}
	return nil, nil
}

func (m *mockMediaService) TriggerProbe(ctx context.Context, mediaID uuid.UUID) error {
	if m.triggerProbeFn != nil {
		return m.triggerProbeFn(ctx, mediaID)
	}
	return nil
}

func (m *mockMediaService) GetMedia(ctx context.Context, mediaID uuid.UUID) (*model.Media, error) {
	if m.getMediaFn != nil {
		return m.getMediaFn(ctx, mediaID)
	}
	return nil, repository.ErrMediaNotFound
}

func (m *mockMediaService) ListMedia(ctx context.Context, limit, offset int) ([]*model.Media, error) {
	if m.listMediaFn != nil {
		return m.listMediaFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockMediaService) DeleteMedia(ctx context.Context, mediaID uuid.UUID) error {
	if m.deleteMediaFn != nil {
		return m.deleteMediaFn(ctx, mediaID)
	}
	return nil
}

// newTestMedia returns media in the given status.
func newTestMedia(status model.Status) *model.Media {
	return &model.Media{
		ID:         uuid.New(),
		Name:       "clip",
		Status:     status,
		ObjectKey:  "originals/clip.mp4",
		FrameCount: 100,
		FPS:        25,
		Width:      2,
		Height:     2,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}
