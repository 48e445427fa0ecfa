package bridge

import (
	"slices"
	"testing"

	"github.com/user/nbbridge/internal/types"
)

func TestLifecycleTransitions(t *testing.T) {
	fsm := newLifecycle()
	if fsm.Phase() != PhaseUnattached {
		t.Fatalf("expected unattached, got %s", fsm.Phase())
	}

	fsm.attach(false, false)
	if fsm.Phase() != PhaseLoading {
		t.Fatalf("expected loading, got %s", fsm.Phase())
	}

	steps := []struct {
		name   string
		apply  func() []Effect
		phase  Phase
		effect []Effect
	}{
		{"first change", func() []Effect { return fsm.contentChanged(false, false) }, PhaseLoaded, []Effect{EffectAnnounceLoaded}},
		{"edit", func() []Effect { return fsm.contentChanged(true, true) }, PhaseDirty, []Effect{EffectReportDirty}},
		{"save started", func() []Effect { return fsm.saveChanged(types.SaveStarted) }, PhaseSaving, nil},
		{"clean during save", func() []Effect { return fsm.contentChanged(false, true) }, PhaseSaving, nil},
		{"save completed", func() []Effect { return fsm.saveChanged(types.SaveCompleted) }, PhaseSaved, []Effect{EffectReportSaved, EffectFetchCheckpoints}},
		{"edit after save", func() []Effect { return fsm.contentChanged(true, true) }, PhaseDirty, []Effect{EffectReportDirty}},
		{"save started again", func() []Effect { return fsm.saveChanged(types.SaveStarted) }, PhaseSaving, nil},
		{"save failed", func() []Effect { return fsm.saveChanged(types.SaveFailed) }, PhaseSaveFailed, []Effect{EffectReportSaveFailed}},
	}
	for _, s := range steps {
		effects := s.apply()
		if fsm.Phase() != s.phase {
			t.Errorf("%s: expected phase %s, got %s", s.name, s.phase, fsm.Phase())
		}
		if !slices.Equal(effects, s.effect) {
			t.Errorf("%s: expected effects %v, got %v", s.name, s.effect, effects)
		}
	}
}

func TestLifecycleFirstChangeWhileDirty(t *testing.T) {
	fsm := newLifecycle()
	fsm.attach(true, true)
	if fsm.Phase() != PhaseDirty {
		t.Fatalf("expected dirty, got %s", fsm.Phase())
	}
	effects := fsm.contentChanged(true, false)
	want := []Effect{EffectAnnounceLoaded, EffectReportDirty}
	if !slices.Equal(effects, want) {
		t.Errorf("expected %v, got %v", want, effects)
	}
}

func TestLifecycleDetached(t *testing.T) {
	fsm := newLifecycle()
	fsm.attach(true, false)
	fsm.detach()
	if effects := fsm.saveChanged(types.SaveCompleted); effects != nil {
		t.Errorf("expected no effects once detached, got %v", effects)
	}
	if fsm.Phase() != PhaseUnattached {
		t.Errorf("expected unattached, got %s", fsm.Phase())
	}
}
