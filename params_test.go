// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetClampsIntoDeclaredRange(t *testing.T) {
	store := NewStore()
	cases := []struct {
		field Field
		value float64
		want  float64
	}{
		{FieldGridDensity, 1000, 100},
		{FieldGridDensity, -5, 5},
		{FieldChaos, 2, 1},
		{FieldChaos, -1, 0},
		{FieldSpeed, 10, 3},
		{FieldSpeed, 0, 0.1},
		{FieldDimension, 10, 4.5},
		{FieldDimension, 0, 3.0},
	}
	for _, c := range cases {
		store.Set(Faceted, c.field, c.value)
		assert.Equalf(t, c.want, store.Get(Faceted, c.field), "field %v: Set(%v) -> Get()", c.field, c.value)
	}
}

func TestSetHueWrapsModulo(t *testing.T) {
	store := NewStore()
	store.Set(Faceted, FieldHue, 370)
	if got := store.Get(Faceted, FieldHue); got != 10 {
		t.Errorf("expected hue 370 mod 360 = 10, got %v", got)
	}
	store.Set(Faceted, FieldHue, -30)
	if got := store.Get(Faceted, FieldHue); got != 330 {
		t.Errorf("expected hue -30 mod 360 = 330, got %v", got)
	}
}

func TestSetRotationWrapsIntoHalfOpenRangeAndTwoPiIsIdentity(t *testing.T) {
	store := NewStore()
	store.Set(Faceted, FieldRot4dXW, 0.5)
	before := store.Get(Faceted, FieldRot4dXW)

	outcome := store.Set(Faceted, FieldRot4dXW, 0.5+2*math.Pi)
	after := store.Get(Faceted, FieldRot4dXW)

	if math.Abs(before-after) > 1e-9 {
		t.Errorf("expected v+2pi to wrap back to v: before=%v after=%v", before, after)
	}
	if outcome.Changed {
		t.Errorf("expected set(v+2pi) to be a no-op Set relative to v, got Changed=%v old=%v new=%v", outcome.Changed, outcome.Old, outcome.New)
	}
}

func TestSetReturnsUnchangedWhenClampedValueIsIdentical(t *testing.T) {
	store := NewStore()
	store.Set(Faceted, FieldChaos, 0.5)
	outcome := store.Set(Faceted, FieldChaos, 0.5)
	if outcome.Changed {
		t.Errorf("expected Unchanged, got Changed old=%v new=%v", outcome.Old, outcome.New)
	}
}

func TestSetWrongTypedValueFailsWithInvalidValue(t *testing.T) {
	store := NewStore()
	before := store.Get(Faceted, FieldHue)
	outcome := store.Set(Faceted, FieldHue, "not-a-number")
	if outcome.Err == nil || !IsKind(outcome.Err, KindInvalidValue) {
		t.Fatalf("expected InvalidValue error, got %v", outcome.Err)
	}
	if got := store.Get(Faceted, FieldHue); got != before {
		t.Errorf("expected rejected write to not move the stored value, before=%v after=%v", before, got)
	}
}

func TestBatchSetAppliesAtomicallyAndReportsChangedFields(t *testing.T) {
	store := NewStore()
	changed := store.BatchSet(Faceted, map[Field]any{
		FieldHue:         200.0, // already the seed value: should not report as changed
		FieldGridDensity: 42.0,
		FieldChaos:       "bad",
	})
	if len(changed) != 1 || changed[0] != FieldGridDensity {
		t.Errorf("expected only gridDensity reported changed, got %v", changed)
	}
	if got := store.Get(Faceted, FieldGridDensity); got != 42.0 {
		t.Errorf("expected gridDensity 42, got %v", got)
	}
}

func TestRestoreThenSnapshotRoundTrips(t *testing.T) {
	store := NewStore()
	store.Set(Quantum, FieldHue, 123.0)
	store.Set(Quantum, FieldChaos, 0.77)
	original := store.Snapshot(Quantum)

	store.Set(Quantum, FieldHue, 10.0) // perturb before restoring
	store.Restore(Quantum, original)
	restored := store.Snapshot(Quantum)

	if restored.Hue != original.Hue || restored.Chaos != original.Chaos {
		t.Errorf("expected restore(snapshot()) to reproduce in-range fields, got %+v want %+v", restored, original)
	}
}

func TestSubscribeReceivesChangeEventsAndUnsubscribeStopsThem(t *testing.T) {
	store := NewStore()
	var events []ChangeEvent
	h := store.Subscribe(Faceted, func(ev ChangeEvent) { events = append(events, ev) })

	store.Set(Faceted, FieldChaos, 0.9)
	if len(events) != 1 || events[0].Field != FieldChaos {
		t.Fatalf("expected one ChangeEvent for chaos, got %+v", events)
	}

	store.Unsubscribe(Faceted, h)
	store.Set(Faceted, FieldChaos, 0.1)
	if len(events) != 1 {
		t.Errorf("expected no further events after Unsubscribe, got %+v", events)
	}
}

func TestCycleGeometryWrapsInsteadOfClamping(t *testing.T) {
	store := NewStore()
	store.Set(Faceted, FieldGeometry, 7)
	store.CycleGeometry(Faceted, 1)
	if got := store.Get(Faceted, FieldGeometry); got != 0 {
		t.Errorf("expected geometry to wrap from 7 to 0, got %v", got)
	}
	store.CycleGeometry(Faceted, -1)
	if got := store.Get(Faceted, FieldGeometry); got != 7 {
		t.Errorf("expected geometry to wrap from 0 to 7, got %v", got)
	}
}
