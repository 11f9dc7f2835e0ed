// Package experiment buckets visitors into experiment variants and renders the
// chosen variant.
//
// Allocation is sticky: the first resolution of an experiment picks a variant
// uniformly at random and persists it in client storage for AssignmentTTL;
// every later resolution inside that window returns the stored pick with no
// side effects. Rendering is two-phase: an Experiment renders nothing until it
// is mounted, and mounting resolves the variant exactly once.
package experiment

import (
	"time"

	"github.com/EHam1/very-professional-blog/internal/clientstore"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// AssignmentStore persists per-experiment assignments in client storage under
// "ab_<experiment>". Expired entries read as unassigned.
type AssignmentStore struct {
	kv  clientstore.Store
	ttl time.Duration
	now func() time.Time
}

// NewAssignmentStore creates an assignment store over kv with the standard TTL.
func NewAssignmentStore(kv clientstore.Store) *AssignmentStore {
	return NewAssignmentStoreWithClock(kv, time.Now)
}

// NewAssignmentStoreWithClock creates an assignment store whose expiry is
// computed from now.
func NewAssignmentStoreWithClock(kv clientstore.Store, now func() time.Time) *AssignmentStore {
	return &AssignmentStore{
		kv:  kv,
		ttl: types.AssignmentTTL,
		now: now,
	}
}

// Get returns the valid assignment for key, if any.
func (s *AssignmentStore) Get(key types.ExperimentKey) (types.VariantName, bool, error) {
	v, ok, err := s.kv.Get(key.StorageKey())
	if err != nil || !ok || v == "" {
		return "", false, err
	}
	return types.VariantName(v), true, nil
}

// Put records variant for key, valid for the store's TTL from now.
func (s *AssignmentStore) Put(key types.ExperimentKey, variant types.VariantName) error {
	return s.kv.Set(key.StorageKey(), string(variant), s.now().Add(s.ttl))
}
