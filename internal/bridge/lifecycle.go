package bridge

import "github.com/user/nbbridge/internal/types"

// Phase is the lifecycle state of the focused document as seen by the bridge.
type Phase string

const (
	PhaseUnattached Phase = "unattached"
	PhaseLoading    Phase = "loading"
	PhaseLoaded     Phase = "loaded"
	PhaseDirty      Phase = "dirty"
	PhaseSaving     Phase = "saving"
	PhaseSaved      Phase = "saved"
	PhaseSaveFailed Phase = "save_failed"
)

// Effect is an outbound consequence of a lifecycle transition.
type Effect int

const (
	EffectAnnounceLoaded Effect = iota
	EffectReportDirty
	EffectReportSaved
	EffectFetchCheckpoints
	EffectReportSaveFailed
)

func (e Effect) String() string {
	switch e {
	case EffectAnnounceLoaded:
		return "announce_loaded"
	case EffectReportDirty:
		return "report_dirty"
	case EffectReportSaved:
		return "report_saved"
	case EffectFetchCheckpoints:
		return "fetch_checkpoints"
	case EffectReportSaveFailed:
		return "report_save_failed"
	}
	return "unknown"
}

// lifecycle is the per-document state machine. Transitions are pure: they
// return the effects to apply and never touch the outside world.
type lifecycle struct {
	phase Phase
}

func newLifecycle() *lifecycle {
	return &lifecycle{phase: PhaseUnattached}
}

func (l *lifecycle) Phase() Phase { return l.phase }

// attach enters the machine for a document that is or is not loaded yet.
func (l *lifecycle) attach(ready, dirty bool) {
	switch {
	case !ready:
		l.phase = PhaseLoading
	case dirty:
		l.phase = PhaseDirty
	default:
		l.phase = PhaseLoaded
	}
}

// detach leaves the machine.
func (l *lifecycle) detach() {
	l.phase = PhaseUnattached
}

// contentChanged handles a change of the document model. announced reports
// whether this bridge has already told the host a document loaded.
func (l *lifecycle) contentChanged(dirty, announced bool) []Effect {
	var effects []Effect
	if !announced {
		effects = append(effects, EffectAnnounceLoaded)
	}
	if dirty {
		effects = append(effects, EffectReportDirty)
	}
	switch l.phase {
	case PhaseUnattached:
	case PhaseSaving:
		// the save outcome decides the next phase
	default:
		if dirty {
			l.phase = PhaseDirty
		} else {
			l.phase = PhaseLoaded
		}
	}
	return effects
}

// saveChanged handles a save-state report.
func (l *lifecycle) saveChanged(state types.SaveState) []Effect {
	if l.phase == PhaseUnattached {
		return nil
	}
	switch state {
	case types.SaveStarted:
		l.phase = PhaseSaving
		return nil
	case types.SaveCompleted:
		l.phase = PhaseSaved
		return []Effect{EffectReportSaved, EffectFetchCheckpoints}
	case types.SaveFailed:
		l.phase = PhaseSaveFailed
		return []Effect{EffectReportSaveFailed}
	}
	return nil
}
