// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import (
	"context"
	"math"
	"testing"
)

func testRouter(t *testing.T) (*Router, *Scheduler) {
	t.Helper()
	s := testScheduler()
	store := s.store
	r := NewRouter(store, s, testMetrics())
	s.AttachRouter(r)
	if _, err := s.SwitchTo(context.Background(), dims, Quantum); err != nil {
		t.Fatalf("SwitchTo failed: %v", err)
	}
	return r, s
}

// TestPointerDistanceZeroDistanceIsDeterministic: a zero-distance pointer
// event at (0.5,0.5) in Distance mode produces intensity=1.0, grid=5,
// hue=320.
func TestPointerDistanceZeroDistanceIsDeterministic(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Pointer: PointerDistance})

	r.Handle(InputEvent{Kind: KindPointer, X: 0.5, Y: 0.5})

	p := s.store.Snapshot(Quantum)
	if p.GridDensity != 5 {
		t.Errorf("expected gridDensity 5, got %v", p.GridDensity)
	}
	if p.Intensity != 1.0 {
		t.Errorf("expected intensity 1.0, got %v", p.Intensity)
	}
	if p.Hue != 320 {
		t.Errorf("expected hue 320, got %v", p.Hue)
	}
}

// TestWheelCyclePositiveDeltasTenTimes: gridDensity=15, hue=200 -> ten
// positive wheel notches -> gridDensity=23, hue=230.
func TestWheelCyclePositiveDeltasTenTimes(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Wheel: WheelCycle})
	s.store.Set(Quantum, FieldGridDensity, 15)
	s.store.Set(Quantum, FieldHue, 200)

	for i := 0; i < 10; i++ {
		r.Handle(InputEvent{Kind: KindWheel, DY: 1})
	}

	p := s.store.Snapshot(Quantum)
	if math.Abs(p.GridDensity-23) > 1e-9 {
		t.Errorf("expected gridDensity 23, got %v", p.GridDensity)
	}
	if math.Abs(p.Hue-230) > 1e-9 {
		t.Errorf("expected hue 230, got %v", p.Hue)
	}
}

// TestWheelZeroDeltaIsNoOp: a wheel delta of 0 changes nothing.
func TestWheelZeroDeltaIsNoOp(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Wheel: WheelCycle})
	before := s.store.Snapshot(Quantum)

	r.Handle(InputEvent{Kind: KindWheel, DY: 0})

	after := s.store.Snapshot(Quantum)
	if before.GridDensity != after.GridDensity || before.Hue != after.Hue {
		t.Errorf("expected a zero wheel delta to be a no-op, before=%+v after=%+v", before, after)
	}
}

// TestRouterArbitrationRouterWriteWinsOverNative: with the router enabled,
// after one tick of simultaneous native-and-router writes, the router's
// value is observed: native writes apply first, router writes second
// within a tick.
func TestRouterArbitrationRouterWriteWinsOverNative(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Pointer: PointerRotations})

	// Simulate the engine's native reactivity writing hue first...
	s.store.Set(Quantum, FieldHue, 11.0)
	// ...then the router writes later within the same tick (x != 0.5 so the
	// rotations formula produces a hue offset from the native baseline).
	r.Handle(InputEvent{Kind: KindPointer, X: 0.9, Y: 0.5})

	got := s.store.Get(Quantum, FieldHue)
	if got == 11.0 {
		t.Errorf("expected the router's write to win over the native write, got %v", got)
	}
}

func TestRouterIgnoresInputWhenDisabled(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: false, Pointer: PointerDistance})
	before := s.store.Snapshot(Quantum)

	r.Handle(InputEvent{Kind: KindPointer, X: 0.5, Y: 0.5})

	after := s.store.Snapshot(Quantum)
	if before.Hue != after.Hue || before.GridDensity != after.GridDensity ||
		before.Rot4dXW != after.Rot4dXW || before.Intensity != after.Intensity {
		t.Errorf("expected a disabled router to leave params untouched, before=%+v after=%+v", before, after)
	}
}

// TestClickEffectsDecayBelowFloorAndStop: once every amplitude drops below
// 0.01, Tick stops mutating params.
func TestClickEffectsDecayBelowFloorAndStop(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Click: ClickBurst})

	r.Handle(InputEvent{Kind: KindPointerEnd, X: 0.5, Y: 0.5})
	if len(r.click.effects) != 1 {
		t.Fatalf("expected one in-flight click effect, got %d", len(r.click.effects))
	}

	for i := 0; i < 500; i++ {
		r.Tick()
	}
	if len(r.click.effects) != 0 {
		t.Errorf("expected click effects to fully decay and stop, got %d still live", len(r.click.effects))
	}
	_ = s
}

// TestSetActiveEngineClearsStaleEffectsAcrossSwitch: no stale click-decay
// timers survive an engine switch.
func TestSetActiveEngineClearsStaleEffectsAcrossSwitch(t *testing.T) {
	r, s := testRouter(t)
	r.SetMode(ModeSelection{Enabled: true, Click: ClickBurst})
	r.Handle(InputEvent{Kind: KindPointerEnd, X: 0.5, Y: 0.5})
	if len(r.click.effects) == 0 {
		t.Fatal("expected a click effect to be in flight")
	}

	if _, err := s.SwitchTo(context.Background(), dims, Faceted); err != nil {
		t.Fatalf("SwitchTo failed: %v", err)
	}
	if len(r.click.effects) != 0 {
		t.Errorf("expected click effects cleared on engine switch, got %d", len(r.click.effects))
	}
}
