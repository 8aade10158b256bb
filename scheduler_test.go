// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Domusgpt/v2-refactored/gpu"
)

func testMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

func testScheduler(attrs ...Attr) *Scheduler {
	store := NewStore()
	base := []Attr{WithAcquirePacing(time.Millisecond), WithStabilizationWindow(0)}
	base = append(base, attrs...)
	return NewScheduler(store, nil, NewLogger("error"), testMetrics(), base...)
}

var dims = Dimensions{Width: 800, Height: 600}

func TestSwitchToColdStartSeedsQuantumDefaults(t *testing.T) {
	s := testScheduler()
	result, err := s.SwitchTo(context.Background(), dims, Quantum)
	if err != nil {
		t.Fatalf("SwitchTo returned error: %v", err)
	}
	if result.Target != Quantum {
		t.Errorf("expected target Quantum, got %v", result.Target)
	}
	active, ok := s.Active()
	if !ok || active != Quantum {
		t.Fatalf("expected active engine Quantum, got %v (ok=%v)", active, ok)
	}

	ins := s.instances[Quantum]
	if ins == nil || !ins.Healthy() {
		t.Fatal("expected a healthy Quantum instance")
	}

	p := s.store.Snapshot(Quantum)
	if p.Hue != 280 || p.Intensity != 0.7 || p.Saturation != 0.9 || p.GridDensity != 20 || p.MorphFactor != 1.0 {
		t.Errorf("expected Quantum defaults, got %+v", p)
	}
}

func TestSwitchToNoopGuardReusesHealthyInstance(t *testing.T) {
	s := testScheduler()
	ctx := context.Background()
	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("first switch failed: %v", err)
	}
	first := s.instances[Faceted]

	result, err := s.SwitchTo(ctx, dims, Faceted)
	if err != nil {
		t.Fatalf("second switch failed: %v", err)
	}
	if !result.Reused {
		t.Error("expected the no-op guard to report Reused=true")
	}
	if s.instances[Faceted] != first {
		t.Error("expected the same instance to survive a no-op switch_to")
	}
}

func TestSwitchToDestroysPreviousByDefault(t *testing.T) {
	s := testScheduler()
	ctx := context.Background()
	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("switch to Faceted failed: %v", err)
	}
	if _, err := s.SwitchTo(ctx, dims, Quantum); err != nil {
		t.Fatalf("switch to Quantum failed: %v", err)
	}
	if _, ok := s.instances[Faceted]; ok {
		t.Error("expected Faceted instance to be destroyed under destroy_on_switch=true")
	}
	if s.pool.LiveCount() != 5 {
		t.Errorf("expected live count 5 (only Quantum's surfaces), got %d", s.pool.LiveCount())
	}
}

func TestSwitchToCachesPreviousWhenDestroyOnSwitchDisabled(t *testing.T) {
	s := testScheduler(WithDestroyOnSwitch(false), WithMaxLiveContexts(10))
	ctx := context.Background()
	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("switch to Faceted failed: %v", err)
	}
	if _, err := s.SwitchTo(ctx, dims, Quantum); err != nil {
		t.Fatalf("switch to Quantum failed: %v", err)
	}
	if _, ok := s.instances[Faceted]; !ok {
		t.Error("expected Faceted instance to remain cached")
	}
	if s.instances[Faceted].IsActive() {
		t.Error("expected cached Faceted instance to be deactivated")
	}
}

func TestSwitchToForceReclaimsOnCapacityExceeded(t *testing.T) {
	s := testScheduler(WithDestroyOnSwitch(false), WithMaxLiveContexts(10))
	ctx := context.Background()
	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("switch to Faceted failed: %v", err)
	}
	if _, err := s.SwitchTo(ctx, dims, Quantum); err != nil {
		t.Fatalf("switch to Quantum failed: %v", err)
	}
	// Pool now holds 10 live contexts (Faceted cached + Quantum active),
	// capacity 10: a third engine's five surfaces cannot fit without
	// reclaiming the cached ones.
	result, err := s.SwitchTo(ctx, dims, Holographic)
	if err != nil {
		t.Fatalf("expected forced reclaim to let the switch succeed, got error: %v", err)
	}
	if result.Target != Holographic {
		t.Errorf("expected target Holographic, got %v", result.Target)
	}
	if _, ok := s.instances[Faceted]; ok {
		t.Error("expected Faceted to be reclaimed to make room")
	}
	if _, ok := s.instances[Quantum]; ok {
		t.Error("expected Quantum to be reclaimed to make room")
	}
	if s.pool.LiveCount() != 5 {
		t.Errorf("expected live count 5 after reclaim, got %d", s.pool.LiveCount())
	}
}

func TestNotifyContextLossTriggersRecoverySwitch(t *testing.T) {
	s := testScheduler()
	ctx := context.Background()
	if _, err := s.SwitchTo(ctx, dims, Polychora); err != nil {
		t.Fatalf("switch to Polychora failed: %v", err)
	}

	var seen []DiagnosticEvent
	s.OnDiagnostic(func(ev DiagnosticEvent) { seen = append(seen, ev) })

	s.NotifyContextLoss(ctx, dims, Polychora, nil)

	active, ok := s.Active()
	if !ok || active != Polychora {
		t.Fatalf("expected recovery switch to restore Polychora as active, got %v (ok=%v)", active, ok)
	}
	if len(seen) == 0 || seen[0].Kind != KindContextLost {
		t.Errorf("expected a ContextLost diagnostic to be surfaced, got %+v", seen)
	}
}

// spyCompositor records the last composited state set for every surface it
// has seen, standing in for the real surface-owning layer so a test can
// assert on the composited set directly.
type spyCompositor struct {
	composited map[string]bool
}

func newSpyCompositor() *spyCompositor {
	return &spyCompositor{composited: map[string]bool{}}
}

func (c *spyCompositor) SetComposited(surfaceID string, composited bool) {
	c.composited[surfaceID] = composited
}

func (c *spyCompositor) Resize(string, int, int, float64) {}

// TestSwitchToCompositesOnlyTargetsFiveSurfaces: after a successful switch
// exactly the five surfaces of the target are composited; no other
// engine's surfaces are.
func TestSwitchToCompositesOnlyTargetsFiveSurfaces(t *testing.T) {
	s := testScheduler()
	spy := newSpyCompositor()
	s.SetCompositor(spy)
	ctx := context.Background()

	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("switch to Faceted failed: %v", err)
	}
	if _, err := s.SwitchTo(ctx, dims, Holographic); err != nil {
		t.Fatalf("switch to Holographic failed: %v", err)
	}

	for _, id := range AllEngineIds {
		want := id == Holographic
		for _, surf := range SurfacesFor(id) {
			if got := spy.composited[surf.ID]; got != want {
				t.Errorf("surface %s (engine %v): composited=%v, want %v", surf.ID, id, got, want)
			}
		}
	}
}

// TestFailedSwitchRestoresPreviousCompositing: after a failed switch the
// previous engine must be left running AND composited, with none of the
// failed target's surfaces still marked composited.
func TestFailedSwitchRestoresPreviousCompositing(t *testing.T) {
	s := testScheduler(WithDestroyOnSwitch(false), WithMaxLiveContexts(10))
	spy := newSpyCompositor()
	s.SetCompositor(spy)
	ctx := context.Background()

	if _, err := s.SwitchTo(ctx, dims, Faceted); err != nil {
		t.Fatalf("switch to Faceted failed: %v", err)
	}

	s.factory = func(EngineId, Role, *gpu.Ctx) (Renderer, error) {
		return nil, errors.New("shader compile failed")
	}
	if _, err := s.SwitchTo(ctx, dims, Quantum); err == nil {
		t.Fatal("expected the switch to Quantum to fail")
	}

	active, ok := s.Active()
	if !ok || active != Faceted {
		t.Fatalf("expected Faceted restored as active, got %v (ok=%v)", active, ok)
	}
	if !s.instances[Faceted].IsActive() {
		t.Error("expected the restored Faceted instance to be running")
	}
	for _, id := range AllEngineIds {
		want := id == Faceted
		for _, surf := range SurfacesFor(id) {
			if got := spy.composited[surf.ID]; got != want {
				t.Errorf("surface %s (engine %v): composited=%v, want %v", surf.ID, id, got, want)
			}
		}
	}
}

func TestSwitchToWithStaleGenerationFailsWithoutActivating(t *testing.T) {
	s := testScheduler()
	ctx := context.Background()
	s.generation = 41
	_, err := s.switchTo(ctx, dims, Faceted, 40)
	if err == nil {
		t.Fatal("expected a stale generation to fail the switch")
	}
	if active, ok := s.Active(); ok {
		t.Errorf("expected a stale switch to leave no engine active, got %v", active)
	}
}
