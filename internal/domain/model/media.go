package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an uploaded media file.
type Status string

const (
	StatusPendingUpload Status = "PENDING_UPLOAD"
	StatusProbing       Status = "PROBING"
	StatusReady         Status = "READY"
	StatusFailed        Status = "FAILED"
)

// Valid status transitions:
// PENDING_UPLOAD -> PROBING -> READY
//                         \-> FAILED
var validTransitions = map[Status][]Status{
	StatusPendingUpload: {StatusProbing},
	StatusProbing:       {StatusReady, StatusFailed},
	StatusReady:         {},
	StatusFailed:        {},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingUpload, StatusProbing, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Media describes an uploaded video file and the stream properties
// learned by probing it.
type Media struct {
	ID         uuid.UUID
	Name       string
	Hash       string
	FrameCount int
	FPS        float64
	Width      int
	Height     int
	Status     Status
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProbeInfo holds the stream properties of a media file.
type ProbeInfo struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

var (
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrNameTooLong       = errors.New("name exceeds maximum length of 255 characters")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidProbe      = errors.New("probe info must have positive frame count, fps and resolution")
)

const maxNameLength = 255

// NewMedia creates a new Media with PENDING_UPLOAD status.
func NewMedia(name string) (*Media, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(name) > maxNameLength {
		return nil, ErrNameTooLong
	}

	now := time.Now()
	return &Media{
		ID:        uuid.New(),
		Name:      name,
		Status:    StatusPendingUpload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo attempts to change the media status.
// Returns error if the transition is not allowed.
func (m *Media) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !m.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	m.Status = next
	m.UpdatedAt = time.Now()
	return nil
}

// SetObjectKey sets the object storage key of the uploaded blob.
func (m *Media) SetObjectKey(key string) {
	m.ObjectKey = key
	m.UpdatedAt = time.Now()
}

// SetProbe records the probed stream properties and content hash.
func (m *Media) SetProbe(info ProbeInfo, hash string) error {
	if info.FrameCount <= 0 || info.FPS <= 0 || info.Width <= 0 || info.Height <= 0 {
		return ErrInvalidProbe
	}
	m.FrameCount = info.FrameCount
	m.FPS = info.FPS
	m.Width = info.Width
	m.Height = info.Height
	m.Hash = hash
	m.UpdatedAt = time.Now()
	return nil
}

// FrameDuration returns the display time of one frame, or zero when the
// frame rate is unknown.
func (m *Media) FrameDuration() time.Duration {
	if m.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / m.FPS)
}

// IsReady returns true if the media has been probed and can be played.
func (m *Media) IsReady() bool {
	return m.Status == StatusReady
}

// IsFailed returns true if probing the media failed.
func (m *Media) IsFailed() bool {
	return m.Status == StatusFailed
}
