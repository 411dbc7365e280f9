package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"gorm.io/gorm"
)

// fakeSnapshotStore keeps snapshots in memory and can fail on demand.
type fakeSnapshotStore struct {
	saved      []*domain.PinSnapshot
	generation uint64
	failSave   bool
	pruneKeep  int
	pruneCalls int
}

func (f *fakeSnapshotStore) Save(ctx context.Context, snapshot *domain.PinSnapshot) error {
	if f.failSave {
		return errors.New("disk full")
	}
	f.generation++
	snapshot.Generation = f.generation
	f.saved = append(f.saved, snapshot)
	return nil
}

func (f *fakeSnapshotStore) Latest(ctx context.Context) (*domain.PinSnapshot, error) {
	if len(f.saved) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeSnapshotStore) Prune(ctx context.Context, keep int) error {
	f.pruneCalls++
	f.pruneKeep = keep
	return nil
}

func testPins() []domain.Pin {
	return []domain.Pin{
		{ID: "pin-1", Lat: 12.97, Lon: 77.59, Title: "Engineer", Company: "Acme"},
		{ID: "pin-2", Lat: 18.52, Lon: 73.85, Title: "Designer", Company: "Beta"},
	}
}

func TestCommit_SwapsServedSnapshot(t *testing.T) {
	snapshots := &fakeSnapshotStore{}
	pinStore := NewPinStore(snapshots, 5, logger.New(nil))

	if got := len(pinStore.Current().Pins); got != 0 {
		t.Fatalf("expected empty initial snapshot, got %d pins", got)
	}

	snapshot, err := pinStore.Commit(context.Background(), "run-1", testPins())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if snapshot.Generation != 1 {
		t.Errorf("expected generation 1, got %d", snapshot.Generation)
	}

	current := pinStore.Current()
	if current != snapshot {
		t.Error("expected committed snapshot to be the served one")
	}
	if len(current.Pins) != 2 {
		t.Errorf("expected 2 pins, got %d", len(current.Pins))
	}
	if current.RunID != "run-1" {
		t.Errorf("expected run ID run-1, got %q", current.RunID)
	}
}

func TestCommit_FailureKeepsPriorSnapshot(t *testing.T) {
	snapshots := &fakeSnapshotStore{}
	pinStore := NewPinStore(snapshots, 5, logger.New(nil))

	first, err := pinStore.Commit(context.Background(), "run-1", testPins())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	snapshots.failSave = true
	_, err = pinStore.Commit(context.Background(), "run-2", []domain.Pin{{ID: "pin-3"}})
	if !errors.Is(err, domain.ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}

	if pinStore.Current() != first {
		t.Error("failed commit must leave the prior snapshot live")
	}
	if pinStore.Current().RunID != "run-1" {
		t.Errorf("expected run-1 to stay live, got %q", pinStore.Current().RunID)
	}
}

func TestCommit_PrunesHistory(t *testing.T) {
	snapshots := &fakeSnapshotStore{}
	pinStore := NewPinStore(snapshots, 3, logger.New(nil))

	if _, err := pinStore.Commit(context.Background(), "run-1", testPins()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if snapshots.pruneCalls != 1 {
		t.Errorf("expected 1 prune call, got %d", snapshots.pruneCalls)
	}
	if snapshots.pruneKeep != 3 {
		t.Errorf("expected prune to keep 3, got %d", snapshots.pruneKeep)
	}
}

func TestBootstrap_LoadsLatestSnapshot(t *testing.T) {
	snapshots := &fakeSnapshotStore{}
	persisted := &domain.PinSnapshot{
		GeneratedAt: time.Now(),
		RunID:       "run-9",
		Pins:        domain.PinList(testPins()),
	}
	if err := snapshots.Save(context.Background(), persisted); err != nil {
		t.Fatal(err)
	}

	pinStore := NewPinStore(snapshots, 5, logger.New(nil))
	if err := pinStore.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	current := pinStore.Current()
	if current.RunID != "run-9" {
		t.Errorf("expected run-9, got %q", current.RunID)
	}
	if len(current.Pins) != 2 {
		t.Errorf("expected 2 pins, got %d", len(current.Pins))
	}
}

func TestBootstrap_NoSnapshotStartsEmpty(t *testing.T) {
	pinStore := NewPinStore(&fakeSnapshotStore{}, 5, logger.New(nil))

	if err := pinStore.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap with empty history must not fail: %v", err)
	}
	if got := len(pinStore.Current().Pins); got != 0 {
		t.Errorf("expected empty snapshot, got %d pins", got)
	}
}
