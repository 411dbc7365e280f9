package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"gorm.io/gorm"
)

// SnapshotStore is the snapshot persistence seam.
// *repository.SnapshotRepository is the production implementation.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *domain.PinSnapshot) error
	Latest(ctx context.Context) (*domain.PinSnapshot, error)
	Prune(ctx context.Context, keep int) error
}

// PinStore holds the currently served pin snapshot. Readers always see a
// complete snapshot: commits persist the new generation first and only
// then swap the in-memory pointer, so a failed commit leaves the previous
// snapshot live.
type PinStore struct {
	current   atomic.Pointer[domain.PinSnapshot]
	snapshots SnapshotStore
	history   int
	logger    *logger.Logger
}

// NewPinStore creates a new pin store backed by the snapshot repository.
func NewPinStore(snapshots SnapshotStore, history int, log *logger.Logger) *PinStore {
	if history <= 0 {
		history = 5
	}
	s := &PinStore{
		snapshots: snapshots,
		history:   history,
		logger:    log,
	}
	s.current.Store(&domain.PinSnapshot{Pins: domain.PinList{}})
	return s
}

// Bootstrap loads the latest persisted snapshot so the query path serves
// data immediately after a restart, before the first refresh completes.
func (s *PinStore) Bootstrap(ctx context.Context) error {
	snapshot, err := s.snapshots.Latest(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("No persisted snapshot found, starting empty")
			return nil
		}
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	s.current.Store(snapshot)
	s.logger.WithFields(logger.Fields{
		"generation": snapshot.Generation,
		"pins":       len(snapshot.Pins),
	}).Info("Bootstrapped pin store from persisted snapshot")
	return nil
}

// Current returns the snapshot being served. The returned snapshot is
// immutable; callers must not modify its pins.
func (s *PinStore) Current() *domain.PinSnapshot {
	return s.current.Load()
}

// Commit persists a new snapshot and atomically makes it the served one.
// On persistence failure nothing is swapped and ErrCommitFailed is
// returned, leaving the prior snapshot live.
func (s *PinStore) Commit(ctx context.Context, runID string, pins []domain.Pin) (*domain.PinSnapshot, error) {
	snapshot := &domain.PinSnapshot{
		GeneratedAt: time.Now(),
		RunID:       runID,
		Pins:        domain.PinList(pins),
	}

	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrCommitFailed)
	}

	s.current.Store(snapshot)

	if err := s.snapshots.Prune(ctx, s.history); err != nil {
		// The new snapshot is already live; pruning failure only delays
		// history cleanup until the next commit.
		s.logger.WithError(err).Warn("Failed to prune snapshot history")
	}

	return snapshot, nil
}
