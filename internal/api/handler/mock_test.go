package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/usecase"
)

// Mock MediaService

type mockMediaService struct {
	createMediaFn  func(ctx context.Context, input usecase.CreateMediaInput) (*usecase.CreateMediaOutput, error)
	triggerProbeFn func(ctx context.Context, mediaID uuid.UUID) error
	getMediaFn     func(ctx context.Context, mediaID uuid.UUID) (*model.Media, error)
	listMediaFn    func(ctx context.Context, limit, offset int) ([]*model.Media, error)
	deleteMediaFn  func(ctx context.Context, mediaID uuid.UUID) error
}

func (m *mockMediaService) CreateMedia(ctx context.Context, input usecase.CreateMediaInput) (*usecase.CreateMediaOutput, error) {
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

// Mock SessionService

type mockSessionService struct {
	openFn     func(ctx context.Context, mediaID uuid.UUID, start int) (*usecase.SessionInfo, error)
	frameFn    func(ctx context.Context, mediaID uuid.UUID, index int, once bool) (*model.Frame, error)
	currentFn  func(ctx context.Context, mediaID uuid.UUID) (*model.Frame, error)
	controlFn  func(ctx context.Context, mediaID uuid.UUID, cmd usecase.Command) (*usecase.SessionInfo, error)
	infoFn     func(ctx context.Context, mediaID uuid.UUID) (*usecase.SessionInfo, error)
	closeFn    func(ctx context.Context, mediaID uuid.UUID) error
	closeAllFn func(ctx context.Context) error
}

func (m *mockSessionService) Open(ctx context.Context, mediaID uuid.UUID, start int) (*usecase.SessionInfo, error) {
	if m.openFn != nil {
		return m.openFn(ctx, mediaID, start)
	}
	return nil, repository.ErrMediaNotFound
}

func (m *mockSessionService) Frame(ctx context.Context, mediaID uuid.UUID, index int, once bool) (*model.Frame, error) {
	if m.frameFn != nil {
		return m.frameFn(ctx, mediaID, index, once)
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockSessionService) Current(ctx context.Context, mediaID uuid.UUID) (*model.Frame, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, mediaID)
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockSessionService) Control(ctx context.Context, mediaID uuid.UUID, cmd usecase.Command) (*usecase.SessionInfo, error) {
	if m.controlFn != nil {
		return m.controlFn(ctx, mediaID, cmd)
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockSessionService) Info(ctx context.Context, mediaID uuid.UUID) (*usecase.SessionInfo, error) {
	if m.infoFn != nil {
		return m.infoFn(ctx, mediaID)
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockSessionService) Close(ctx context.Context, mediaID uuid.UUID) error {
	if m.closeFn != nil {
		return m.closeFn(ctx, mediaID)
	}
	return nil
}

func (m *mockSessionService) CloseAll(ctx context.Context) error {
	if m.closeAllFn != nil {
		return m.closeAllFn(ctx)
	}
	return nil
}
