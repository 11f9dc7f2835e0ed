package experiment

import (
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// AssignmentTracker is notified of every fresh assignment.
type AssignmentTracker interface {
	TrackAssignment(experiment types.ExperimentKey, variant types.VariantName)
}

// Allocator resolves a visitor's variant for an experiment.
type Allocator struct {
	store   *AssignmentStore
	tracker AssignmentTracker
	intn    func(n int) int
	logger  *slog.Logger
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithRandom replaces the uniform source; intn(n) must return a value in [0, n).
func WithRandom(intn func(n int) int) AllocatorOption {
	return func(a *Allocator) {
		a.intn = intn
	}
}

// WithAllocatorLogger sets the logger used for storage failures.
func WithAllocatorLogger(logger *slog.Logger) AllocatorOption {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAllocator creates an allocator. tracker may be nil.
func NewAllocator(store *AssignmentStore, tracker AssignmentTracker, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		store:   store,
		tracker: tracker,
		intn:    rand.IntN,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve returns the visitor's variant for key.
//
// A valid stored assignment is returned as is. Otherwise one of candidates is
// picked uniformly, persisted for AssignmentTTL, and reported to the tracker.
// With no usable candidates Resolve returns false and touches nothing.
// Storage failures are logged and never surface: an unreadable store reads as
// unassigned, an unwritable one still yields this render's pick.
func (a *Allocator) Resolve(key types.ExperimentKey, candidates []types.VariantName) (types.VariantName, bool) {
	if v, ok, err := a.store.Get(key); err != nil {
		a.logger.Warn("assignment unreadable",
			slog.String("experiment", string(key)),
			slog.String("error", err.Error()),
		)
	} else if ok {
		return v, true
	}

	names := usableCandidates(candidates)
	if len(names) == 0 {
		return "", false
	}

	pick := names[a.intn(len(names))]

	if err := a.store.Put(key, pick); err != nil {
		a.logger.Warn("assignment not persisted",
			slog.String("experiment", string(key)),
			slog.String("variant", string(pick)),
			slog.String("error", err.Error()),
		)
	}

	if a.tracker != nil {
		a.tracker.TrackAssignment(key, pick)
	}
	return pick, true
}

// usableCandidates drops blank names and repeats, keeping first-seen order.
func usableCandidates(candidates []types.VariantName) []types.VariantName {
	seen := make(map[types.VariantName]struct{}, len(candidates))
	names := make([]types.VariantName, 0, len(candidates))
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		names = append(names, c)
	}
	return names
}
