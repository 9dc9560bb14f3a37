package abtest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// snapshotState is the locally cached Snapshot.
type snapshotState struct {
	mu          sync.RWMutex
	snapshot    *Snapshot
	fingerprint uint64
	appliedAt   time.Time
}

// GetSnapshot returns the current snapshot, or nil before the first one.
func (s *snapshotState) GetSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot stores snap unless it has the same content as the current
// snapshot. It reports whether the state changed.
func (s *snapshotState) SetSnapshot(snap *Snapshot, now time.Time) (bool, error) {
	fp, err := fingerprint(snap)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.fingerprint == fp {
		return false, nil
	}
	s.snapshot = snap
	s.fingerprint = fp
	s.appliedAt = now
	return true, nil
}

func (s *snapshotState) AppliedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedAt
}

func fingerprint(snap *Snapshot) (uint64, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
