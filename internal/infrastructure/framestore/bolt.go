package framestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	bolt "go.etcd.io/bbolt"
)

// Sub-bucket names inside each store's bucket.
var (
	bucketIdx  = []byte("idx")
	bucketRidx = []byte("ridx")
	keyCount   = []byte("count")
)

// OpenBolt opens (or creates) the bolt database at path.
func OpenBolt(path string, timeout time.Duration) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return db, nil
}

// BoltStore persists encoded frames in a bolt bucket, one record per frame
// keyed by big-endian index, plus a reverse-index record keyed by
// count-index. Ranges are read with a cursor inside a single read
// transaction and never wrap.
type BoltStore struct {
	db   *bolt.DB
	name []byte

	mu    sync.RWMutex
	count int
}

var _ repository.FrameStore[*model.Frame] = (*BoltStore)(nil)

// NewBoltStore creates a store in bucket name of db. A count persisted by
// an earlier Init is picked up again.
func NewBoltStore(db *bolt.DB, name string) (*BoltStore, error) {
	s := &BoltStore{db: db, name: []byte(name)}

	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.name)
		if b == nil {
			return nil
		}
		if v := b.Get(keyCount); len(v) == 8 {
			s.count = int(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read bolt store %s: %w", name, err)
	}
	return s, nil
}

func indexKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// Init drops every record of the previous media and recreates the buckets.
func (s *BoltStore) Init(_ context.Context, count int) error {
	if count <= 0 {
		return fmt.Errorf("init with count %d: %w", count, repository.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(s.name)
		if err != nil {
			return err
		}
		if _, err := b.CreateBucket(bucketIdx); err != nil {
			return err
		}
		if _, err := b.CreateBucket(bucketRidx); err != nil {
			return err
		}
		return b.Put(keyCount, indexKey(count))
	})
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendBolt, metrics.StoreOpInit, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("bolt init: %w", err)
	}

	s.count = count
	return nil
}

func (s *BoltStore) Put(_ context.Context, index int, f *model.Frame) error {
	count := s.Len()
	if count == 0 {
		return repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, count)

	data, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}

	// Concurrent puts share one write transaction and fsync. The function
	// may run more than once.
	err = s.db.Batch(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.name)
		if b == nil {
			return repository.ErrInvalidState
		}
		key := indexKey(index)
		if err := b.Bucket(bucketIdx).Put(key, data); err != nil {
			return err
		}
		return b.Bucket(bucketRidx).Put(indexKey(count-index), key)
	})
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendBolt, metrics.StoreOpPut, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("bolt put frame %d: %w", index, err)
	}
	return nil
}

func (s *BoltStore) Get(_ context.Context, index int) (*model.Frame, error) {
	count := s.Len()
	if count == 0 {
		return nil, repository.ErrInvalidState
	}
	index = model.NormalizeIndex(index, count)

	var f *model.Frame
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.name)
		if b == nil {
			return repository.ErrInvalidState
		}
		v := b.Bucket(bucketIdx).Get(indexKey(index))
		if v == nil {
			return fmt.Errorf("frame %d: %w", index, repository.ErrFrameNotFound)
		}
		var err error
		f, err = DecodeFrame(v)
		return err
	})
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendBolt, metrics.StoreOpGet, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Range returns frames [from, to]. from > to after normalization is
// rejected with ErrInvalidRange.
func (s *BoltStore) Range(_ context.Context, from, to int) (repository.Iterator[*model.Frame], error) {
	count := s.Len()
	if count == 0 {
		return nil, repository.ErrInvalidState
	}
	from = model.NormalizeIndex(from, count)
	to = model.NormalizeIndex(to, count)
	if from > to {
		return nil, fmt.Errorf("range %d..%d: %w", from, to, repository.ErrInvalidRange)
	}

	frames := make([]*model.Frame, 0, to-from+1)
	indices := make([]int, 0, to-from+1)
	release := func() {
		for _, f := range frames {
			_ = f.Release()
		}
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.name)
		if b == nil {
			return repository.ErrInvalidState
		}
		c := b.Bucket(bucketIdx).Cursor()
		want := from
		for k, v := c.Seek(indexKey(from)); k != nil && want <= to; k, v = c.Next() {
			if got := int(binary.BigEndian.Uint64(k)); got != want {
				return fmt.Errorf("frame %d: %w", want, repository.ErrFrameNotFound)
			}
			f, err := DecodeFrame(v)
			if err != nil {
				return err
			}
			frames = append(frames, f)
			indices = append(indices, want)
			want++
		}
		if want <= to {
			return fmt.Errorf("frame %d: %w", want, repository.ErrFrameNotFound)
		}
		return nil
	})
	metrics.FrameStoreOperationsTotal.WithLabelValues(metrics.StoreBackendBolt, metrics.StoreOpRange, metrics.StatusLabel(err)).Inc()
	if err != nil {
		release()
		return nil, err
	}
	return newSliceIterator(frames, indices, FrameLifecycle()), nil
}

func (s *BoltStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *BoltStore) Wraps() bool {
	return false
}

// ReverseIndex resolves a reverse-index key (count-index) back to its
// frame index.
func (s *BoltStore) ReverseIndex(_ context.Context, ridx int) (int, error) {
	var index int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.name)
		if b == nil {
			return repository.ErrInvalidState
		}
		v := b.Bucket(bucketRidx).Get(indexKey(ridx))
		if v == nil {
			return fmt.Errorf("reverse index %d: %w", ridx, repository.ErrFrameNotFound)
		}
		index = int(binary.BigEndian.Uint64(v))
		return nil
	})
	return index, err
}

// Drop removes the store's bucket.
func (s *BoltStore) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt drop: %w", err)
	}
	s.count = 0
	return nil
}
