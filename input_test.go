// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import "testing"

func TestNewPointerEventNormalizesAgainstSurfaceBounds(t *testing.T) {
	bounds := Bounds{Left: 100, Top: 200, Width: 400, Height: 300}
	ev := NewPointerEvent(300, 350, 1, bounds)
	if ev.Kind != KindPointer {
		t.Fatalf("expected KindPointer, got %v", ev.Kind)
	}
	if ev.X != 0.5 || ev.Y != 0.5 {
		t.Errorf("expected normalized (0.5, 0.5), got (%v, %v)", ev.X, ev.Y)
	}
	if ev.Buttons != 1 {
		t.Errorf("expected buttons bitmask preserved, got %v", ev.Buttons)
	}
}

func TestIsUIExclusionRejectsControlElementsAndAcceptsCanvasTargets(t *testing.T) {
	cases := []struct {
		el   UIElement
		want bool
	}{
		{UIElement{Tag: "button", CanvasTarget: false}, true},
		{UIElement{Tag: "input", CanvasTarget: true}, true},
		{UIElement{Tag: "div", UIClass: true, CanvasTarget: true}, true},
		{UIElement{Tag: "canvas", CanvasTarget: true}, false},
		{UIElement{Tag: "div", CanvasTarget: false}, true},
	}
	for _, c := range cases {
		if got := IsUIExclusion(c.el); got != c.want {
			t.Errorf("IsUIExclusion(%+v) = %v, want %v", c.el, got, c.want)
		}
	}
}

func TestBoundsNormalizeHandlesZeroSizedBoundsWithoutDividingByZero(t *testing.T) {
	bounds := Bounds{}
	nx, ny := bounds.normalize(5, 5)
	if nx != 5 || ny != 5 {
		t.Errorf("expected a degenerate bounds box to fall back to unit scale, got (%v, %v)", nx, ny)
	}
}
