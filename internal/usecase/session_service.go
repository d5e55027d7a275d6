package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/framecache"
	"github.com/hszk-dev/framestream/internal/infrastructure/framestore"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"github.com/hszk-dev/framestream/internal/pipeline"
	"github.com/hszk-dev/framestream/internal/player"
)

var (
	// ErrMediaNotReady is returned when a session is opened for media that has not been probed.
	ErrMediaNotReady = errors.New("media is not ready for playback")

	// ErrInvalidCommand is returned for an unknown playback command.
	ErrInvalidCommand = errors.New("invalid playback command")
)

// Action names a playback command.
type Action string

const (
	ActionPlay      Action = "play"
	ActionPause     Action = "pause"
	ActionToggle    Action = "toggle"
	ActionDirection Action = "direction"
	ActionStep      Action = "step"
	ActionSeek      Action = "seek"
	ActionFPS       Action = "fps"
)

// Command is one playback control request. Direction is used by direction
// and step (step defaults to the current direction), Index by seek and FPS
// by fps.
type Command struct {
	Action    Action
	Direction model.Direction
	Index     int
	FPS       float64
}

// SessionInfo describes an open playback session.
type SessionInfo struct {
	MediaID uuid.UUID
	Backend framestore.Backend
	Width   int
	Height  int
	State   player.State
}

// SessionService manages one playback session per media file. A session
// decodes the media into a frame store and serves frames through a
// prefetching window.
type SessionService interface {
	// Open decodes the media and centers the window on start. Opening an
	// existing session seeks it to start.
	Open(ctx context.Context, mediaID uuid.UUID, start int) (*SessionInfo, error)

	// Frame returns the frame at index. The caller releases it.
	Frame(ctx context.Context, mediaID uuid.UUID, index int, once bool) (*model.Frame, error)

	// Current returns the most recently painted frame. The caller releases it.
	Current(ctx context.Context, mediaID uuid.UUID) (*model.Frame, error)

	// Control applies a playback command and returns the resulting state.
	Control(ctx context.Context, mediaID uuid.UUID, cmd Command) (*SessionInfo, error)

	// Info returns the state of an open session.
	Info(ctx context.Context, mediaID uuid.UUID) (*SessionInfo, error)

	// Close stops playback and discards the session's frames.
	Close(ctx context.Context, mediaID uuid.UUID) error

	// CloseAll closes every open session.
	CloseAll(ctx context.Context) error
}

// StoreOpener opens the frame store of one media file.
// framestore.Factory satisfies it.
type StoreOpener interface {
	Open(name string) (framestore.Store, error)
	Backend() framestore.Backend
}

// SessionServiceConfig holds configuration for SessionService.
type SessionServiceConfig struct {
	// TempDir is the base directory for downloaded blobs.
	TempDir string
	// DecodeTimeout bounds downloading and decoding one media file.
	DecodeTimeout time.Duration
	// FPS overrides the probed frame rate when positive.
	FPS float64

	Cache    framecache.Config
	Pipeline pipeline.Config
}

// DefaultSessionServiceConfig returns the default configuration.
func DefaultSessionServiceConfig() SessionServiceConfig {
	return SessionServiceConfig{
		TempDir:       os.TempDir(),
		DecodeTimeout: 10 * time.Minute,
		Cache:         framecache.DefaultConfig(),
		Pipeline:      pipeline.DefaultConfig(),
	}
}

type session struct {
	media   *model.Media
	store   framestore.Store
	cache   *framecache.Cache[*model.Frame]
	player  *player.Player[*model.Frame]
	painter *framePainter
}

func (s *session) info(backend framestore.Backend) *SessionInfo {
	return &SessionInfo{
		MediaID: s.media.ID,
		Backend: backend,
		Width:   s.media.Width,
		Height:  s.media.Height,
		State:   s.player.Snapshot(),
	}
}

type sessionService struct {
	media   MediaService
	storage repository.ObjectStorage
	dec     decoder.Decoder
	stores  StoreOpener
	cfg     SessionServiceConfig
	logger  *slog.Logger

	opening singleflight.Group

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(
	media MediaService,
	storage repository.ObjectStorage,
	dec decoder.Decoder,
	stores StoreOpener,
	cfg SessionServiceConfig,
	logger *slog.Logger,
) SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		media:    media,
		storage:  storage,
		dec:      dec,
		stores:   stores,
		cfg:      cfg,
		logger:   logger.With("component", "session_service"),
		sessions: make(map[uuid.UUID]*session),
	}
}

func (s *sessionService) Open(ctx context.Context, mediaID uuid.UUID, start int) (*SessionInfo, error) {
	if sess, ok := s.lookup(mediaID); ok {
		if err := sess.player.Seek(ctx, start); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		return sess.info(s.stores.Backend()), nil
	}

	// Concurrent opens of one media file share a single decode.
	result, err, shared := s.opening.Do(mediaID.String(), func() (any, error) {
		if sess, ok := s.lookup(mediaID); ok {
			return sess, nil
		}
		sess, err := s.open(ctx, mediaID, start)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.sessions[mediaID] = sess
		s.mu.Unlock()
		return sess, nil
	})
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupSession, metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupSession, metrics.SingleflightInitiated).Inc()
	}
	if err != nil {
		return nil, err
	}
	return result.(*session).info(s.stores.Backend()), nil
}

// open downloads and decodes the media and paints start.
func (s *sessionService) open(ctx context.Context, mediaID uuid.UUID, start int) (*session, error) {
	media, err := s.media.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if !media.IsReady() {
		return nil, ErrMediaNotReady
	}

	logger := s.logger.With("media_id", mediaID)

	if s.cfg.DecodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DecodeTimeout)
		defer cancel()
	}

	workDir := filepath.Join(s.cfg.TempDir, "framestream", "sessions", mediaID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath, _, err := downloadBlob(ctx, s.storage, media.ObjectKey, workDir)
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}

	store, err := s.stores.Open(mediaID.String())
	if err != nil {
		return nil, fmt.Errorf("open frame store: %w", err)
	}

	life := framestore.FrameLifecycle()
	cache := framecache.New[*model.Frame](store, s.cfg.Cache,
		framecache.WithLifecycle(life),
		framecache.WithLogger[*model.Frame](logger),
		framecache.WithName[*model.Frame](string(s.stores.Backend())),
	)

	begin := time.Now()
	src := pipeline.NewSource[*model.Frame](s.dec, cache, pipeline.FrameConverter, life, s.cfg.Pipeline, logger)
	probe, err := src.Load(ctx, localPath, start)
	if err != nil {
		cache.Reset()
		return nil, errors.Join(fmt.Errorf("load frames: %w", err), dropStore(context.WithoutCancel(ctx), store))
	}

	fps := s.cfg.FPS
	if fps <= 0 {
		fps = probe.FPS
	}

	painter := &framePainter{}
	p := player.New[*model.Frame](cache, painter,
		player.WithLifecycle(life),
		player.WithLogger[*model.Frame](logger),
		player.WithFPS[*model.Frame](fps),
	)
	if err := p.Seek(ctx, start); err != nil {
		cache.Reset()
		return nil, errors.Join(fmt.Errorf("paint first frame: %w", err), dropStore(context.WithoutCancel(ctx), store))
	}

	logger.Info("session opened",
		"frames", probe.FrameCount,
		"start", start,
		"backend", s.stores.Backend(),
		"duration", time.Since(begin),
	)

	return &session{
		media:   media,
		store:   store,
		cache:   cache,
		player:  p,
		painter: painter,
	}, nil
}

func (s *sessionService) Frame(ctx context.Context, mediaID uuid.UUID, index int, once bool) (*model.Frame, error) {
	sess, ok := s.lookup(mediaID)
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return sess.cache.Get(ctx, index, once)
}

func (s *sessionService) Current(_ context.Context, mediaID uuid.UUID) (*model.Frame, error) {
	sess, ok := s.lookup(mediaID)
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	f := sess.painter.current()
	if f == nil {
		return nil, repository.ErrFrameNotFound
	}
	return f, nil
}

func (s *sessionService) Control(ctx context.Context, mediaID uuid.UUID, cmd Command) (*SessionInfo, error) {
	sess, ok := s.lookup(mediaID)
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	p := sess.player

	var err error
	switch cmd.Action {
	case ActionPlay:
		p.Play(ctx)
	case ActionPause:
		p.Pause()
	case ActionToggle:
		p.Toggle(ctx)
	case ActionDirection:
		err = p.SetDirection(cmd.Direction)
	case ActionStep:
		d := cmd.Direction
		if d == 0 {
			d = p.Snapshot().Direction
		}
		err = p.Step(ctx, d)
	case ActionSeek:
		err = p.Seek(ctx, cmd.Index)
	case ActionFPS:
		err = p.SetFPS(cmd.FPS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Action)
	}
	if err != nil {
		return nil, err
	}
	return sess.info(s.stores.Backend()), nil
}

func (s *sessionService) Info(_ context.Context, mediaID uuid.UUID) (*SessionInfo, error) {
	sess, ok := s.lookup(mediaID)
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return sess.info(s.stores.Backend()), nil
}

func (s *sessionService) Close(ctx context.Context, mediaID uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[mediaID]
	delete(s.sessions, mediaID)
	s.mu.Unlock()

	if !ok {
		return repository.ErrSessionNotFound
	}
	return s.close(ctx, mediaID, sess)
}

func (s *sessionService) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*session)
	s.mu.Unlock()

	var errs []error
	for id, sess := range sessions {
		errs = append(errs, s.close(ctx, id, sess))
	}
	return errors.Join(errs...)
}

func (s *sessionService) close(ctx context.Context, mediaID uuid.UUID, sess *session) error {
	sess.player.Close()
	sess.cache.Reset()
	err := errors.Join(sess.painter.clear(), dropStore(ctx, sess.store))
	if err != nil {
		s.logger.Warn("session closed with errors", "media_id", mediaID, "error", err)
		return err
	}
	s.logger.Info("session closed", "media_id", mediaID)
	return nil
}

func (s *sessionService) lookup(mediaID uuid.UUID) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[mediaID]
	return sess, ok
}

func dropStore(ctx context.Context, store framestore.Store) error {
	if err := store.Drop(ctx); err != nil {
		return fmt.Errorf("drop frame store: %w", err)
	}
	return nil
}

// framePainter keeps a reference to the last painted frame.
type framePainter struct {
	mu   sync.Mutex
	last *model.Frame
}

func (p *framePainter) Paint(_ context.Context, _ int, f *model.Frame) error {
	f.Retain()
	p.mu.Lock()
	prev := p.last
	p.last = f
	p.mu.Unlock()

	if prev != nil {
		return prev.Release()
	}
	return nil
}

// current returns the last painted frame with a reference for the caller,
// or nil.
func (p *framePainter) current() *model.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	p.last.Retain()
	return p.last
}

func (p *framePainter) clear() error {
	p.mu.Lock()
	prev := p.last
	p.last = nil
	p.mu.Unlock()

	if prev == nil {
		return nil
	}
	return prev.Release()
}
