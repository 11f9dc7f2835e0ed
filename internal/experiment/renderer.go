package experiment

import (
	"io"
	"strings"
	"sync"

	"github.com/EHam1/very-professional-blog/pkg/types"
)

// Phase is an Experiment's render state.
type Phase int

const (
	// PhaseUnresolved renders the empty placeholder.
	PhaseUnresolved Phase = iota
	// PhaseResolved renders the chosen block, or nothing. Terminal.
	PhaseResolved
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUnresolved:
		return "unresolved"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Block is one named variant's content. A block with a blank name is not a
// variant and is never a candidate.
type Block struct {
	Name    types.VariantName
	Content string
}

// Resolver picks the variant for an experiment. *Allocator implements it.
type Resolver interface {
	Resolve(key types.ExperimentKey, candidates []types.VariantName) (types.VariantName, bool)
}

// Experiment renders exactly one of its blocks once mounted.
type Experiment struct {
	key    types.ExperimentKey
	blocks []Block

	mu          sync.Mutex
	phase       Phase
	variant     types.VariantName
	hasVariant  bool
	passthrough bool
}

// NewExperiment creates an unresolved experiment over blocks, in order.
func NewExperiment(key types.ExperimentKey, blocks ...Block) *Experiment {
	return &Experiment{key: key, blocks: blocks}
}

// Key returns the experiment key.
func (e *Experiment) Key() types.ExperimentKey {
	return e.key
}

// Blocks returns the experiment's blocks.
func (e *Experiment) Blocks() []Block {
	return e.blocks
}

// Candidates returns the names of the blocks that are variants.
func (e *Experiment) Candidates() []types.VariantName {
	names := make([]types.VariantName, 0, len(e.blocks))
	for _, b := range e.blocks {
		if b.Name.Valid() {
			names = append(names, b.Name)
		}
	}
	return names
}

// Mount moves the experiment from unresolved to resolved, resolving the
// variant through r. Only the first call transitions; it returns whether this
// call did. A lone unnamed block resolves as a passthrough without consulting r.
func (e *Experiment) Mount(r Resolver) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseResolved {
		return false
	}

	if len(e.blocks) == 1 && !e.blocks[0].Name.Valid() {
		e.passthrough = true
	} else if r != nil {
		e.variant, e.hasVariant = r.Resolve(e.key, e.Candidates())
	}

	e.phase = PhaseResolved
	return true
}

// Phase returns the current phase.
func (e *Experiment) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Variant returns the resolved variant name, if one was assigned.
func (e *Experiment) Variant() (types.VariantName, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variant, e.hasVariant
}

// Render returns the current phase's output: empty while unresolved; after
// mount, the matching block's content, the passthrough block, or empty when
// the assigned variant matches no block.
func (e *Experiment) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseResolved {
		return ""
	}
	if e.passthrough {
		return e.blocks[0].Content
	}
	if !e.hasVariant {
		return ""
	}
	for _, b := range e.blocks {
		if b.Name.Valid() && b.Name == e.variant {
			return b.Content
		}
	}
	return ""
}

// WriteTo writes Render's output to w.
func (e *Experiment) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, e.Render())
	return int64(n), err
}

// Segment is one piece of a document: static text or an experiment.
type Segment struct {
	Text       string
	Experiment *Experiment
}

// Document is an ordered sequence of segments, as parsed from a content body.
type Document []Segment

// Experiments returns the document's experiments in order.
func (d Document) Experiments() []*Experiment {
	var out []*Experiment
	for _, s := range d {
		if s.Experiment != nil {
			out = append(out, s.Experiment)
		}
	}
	return out
}

// Mount mounts every experiment in the document through r.
func (d Document) Mount(r Resolver) {
	for _, e := range d.Experiments() {
		e.Mount(r)
	}
}

// Render concatenates static text with each experiment's current output.
func (d Document) Render() string {
	var b strings.Builder
	for _, s := range d {
		if s.Experiment != nil {
			b.WriteString(s.Experiment.Render())
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
