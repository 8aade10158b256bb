// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// input.go holds the thin producers that normalize raw device events into
// InputEvents without any mapping to parameters; that is the Router's job
// (router.go). Each producer copies a platform event into an engine-owned
// record, nothing more.

import "github.com/Domusgpt/v2-refactored/audio"

// InputKind tags which variant of InputEvent is populated.
type InputKind int

const (
	KindPointer InputKind = iota
	KindPointerEnd
	KindWheel
	KindMotion
	KindAudioFrame
)

// InputEvent is a tagged variant: Pointer{x,y,buttons} | PointerEnd |
// Wheel{dy} | Motion{alpha,beta,gamma} | AudioFrame{...}. X and Y are
// normalized into [0,1] using the target surface's bounding box, not the
// viewport.
type InputEvent struct {
	Kind InputKind

	X, Y    float64 // Pointer: normalized [0,1] position.
	Buttons int     // Pointer: bitmask of pressed buttons.

	DY float64 // Wheel: scroll delta.

	Alpha, Beta, Gamma float64 // Motion: device orientation in degrees.

	Audio audio.Features // AudioFrame: the analyzer's latest frame.
}

// Bounds describes the target surface's bounding box in the same coordinate
// space raw pointer/touch samples arrive in (e.g. client pixels).
type Bounds struct {
	Left, Top     float64
	Width, Height float64
}

// normalize maps a raw (x,y) into [0,1] relative to b. Points outside b are
// not clamped here. The Router's modes clamp their own derived outputs, so
// a pointer captured slightly outside bounds (common during fast drags)
// still produces a usable, if extreme, value.
func (b Bounds) normalize(x, y float64) (nx, ny float64) {
	w, h := b.Width, b.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return (x - b.Left) / w, (y - b.Top) / h
}

// NewPointerEvent normalizes a raw pointer sample against the target
// surface's bounds.
func NewPointerEvent(rawX, rawY float64, buttons int, bounds Bounds) InputEvent {
	x, y := bounds.normalize(rawX, rawY)
	return InputEvent{Kind: KindPointer, X: x, Y: y, Buttons: buttons}
}

// NewPointerEndEvent reports the end of a pointer gesture (click/tap
// release), the trigger for click-mode effects.
func NewPointerEndEvent(rawX, rawY float64, bounds Bounds) InputEvent {
	x, y := bounds.normalize(rawX, rawY)
	return InputEvent{Kind: KindPointerEnd, X: x, Y: y}
}

// NewWheelEvent wraps a raw scroll delta. A delta of exactly 0 is still
// produced here; treating it as a no-op is the Router's concern.
func NewWheelEvent(dy float64) InputEvent {
	return InputEvent{Kind: KindWheel, DY: dy}
}

// NewMotionEvent wraps a device-orientation sample (iOS/Android style
// alpha/beta/gamma, in degrees).
func NewMotionEvent(alpha, beta, gamma float64) InputEvent {
	return InputEvent{Kind: KindMotion, Alpha: alpha, Beta: beta, Gamma: gamma}
}

// NewAudioFrameEvent wraps one analyzer frame. Frames arrive at roughly
// render frame rate, around 60 Hz.
func NewAudioFrameEvent(features audio.Features) InputEvent {
	return InputEvent{Kind: KindAudioFrame, Audio: features}
}

// UIElement is the minimal shape the allowlist check needs from a DOM-like
// originating element: its tag, whether it carries a declared UI class, and
// whether it's a descendant of a canvas-container.
type UIElement struct {
	Tag          string
	UIClass      bool
	CanvasTarget bool
}

var uiTags = map[string]bool{
	"button": true,
	"input":  true,
	"select": true,
	"range":  true,
}

// IsUIExclusion reports whether an event originating from el must be
// dropped rather than consumed by the router: UI-tagged elements and
// elements marked with a UI class are excluded; only canvas-container
// targets are accepted.
func IsUIExclusion(el UIElement) bool {
	if uiTags[el.Tag] || el.UIClass {
		return true
	}
	return !el.CanvasTarget
}
