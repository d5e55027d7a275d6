package framestore

import (
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// FrameLifecycle shares decoded frames by reference count.
func FrameLifecycle() repository.Lifecycle[*model.Frame] {
	return repository.Lifecycle[*model.Frame]{
		Retain:  (*model.Frame).Retain,
		Release: (*model.Frame).Release,
	}
}
