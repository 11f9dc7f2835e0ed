package tracking

import "github.com/EHam1/very-professional-blog/pkg/types"

// TrackPageView fires a page-view for the emitter's current page. Outside a
// browser context (no location provider) it does nothing.
func TrackPageView(e *Emitter) {
	if e == nil || e.page == nil {
		return
	}
	e.Emit(types.EventPageView, nil)
}

// TrackAssignment fires the assignment event for an experiment.
func (e *Emitter) TrackAssignment(experiment types.ExperimentKey, variant types.VariantName) {
	e.Emit(types.EventAssignment, map[string]any{
		"experiment": string(experiment),
		"variant":    string(variant),
	})
}
