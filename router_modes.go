// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// router_modes.go holds the per-mode formulas and decay-animator state for
// the Reactivity Router. The click-effects animator is a frame-synchronous
// decay loop over a scratch slice, reusing its backing array across ticks
// instead of reallocating every frame.

import (
	"math"
	"math/rand"
)

// -- Pointer modes -----------------------------------------------------

// pointerModeState accumulates the small amount of history Velocity needs
// (a rolling mean of recent deltas) and the hue baseline Rotations needs to
// avoid hue drift across a long drag. The baseline is captured on the first
// Rotations event and kept until SetMode or SetActiveEngine resets this
// state; a pointer-end event does not reset it.
type pointerModeState struct {
	haveLast     bool
	lastX, lastY float64
	deltas       []float64 // rolling window, capped at 5 samples

	haveBaseline bool
	baselineHue  float64
}

const velocityWindow = 5

func (r *Router) applyPointer(engineID EngineId, ev InputEvent) {
	switch r.mode.Pointer {
	case PointerRotations:
		r.applyPointerRotations(engineID, ev)
	case PointerVelocity:
		r.applyPointerVelocity(engineID, ev)
	case PointerDistance:
		r.applyPointerDistance(engineID, ev)
	}
	r.pointer.lastX, r.pointer.lastY = ev.X, ev.Y
	r.pointer.haveLast = true
}

// applyPointerRotations maps pointer position directly onto the 4D rotation
// fields plus a hue offset from the captured hue baseline:
//
//	rot4dXW = (x-0.5)*4π     rot4dYW = (x-0.5)*2.8π     rot4dZW = (y-0.5)*4π
//	hue = (baseline + (x-0.5)*30) mod 360
func (r *Router) applyPointerRotations(engineID EngineId, ev InputEvent) {
	if !r.pointer.haveBaseline {
		r.pointer.baselineHue = r.store.Get(engineID, FieldHue)
		r.pointer.haveBaseline = true
	}
	x, y := ev.X, ev.Y
	r.set(engineID, FieldRot4dXW, (x-0.5)*4*math.Pi, "rotations")
	r.set(engineID, FieldRot4dYW, (x-0.5)*2.8*math.Pi, "rotations")
	r.set(engineID, FieldRot4dZW, (y-0.5)*4*math.Pi, "rotations")
	hue := math.Mod(r.pointer.baselineHue+(x-0.5)*30, 360)
	if hue < 0 {
		hue += 360
	}
	r.set(engineID, FieldHue, hue, "rotations")
}

// applyPointerVelocity maps the rolling mean of recent pointer-delta
// magnitudes onto chaos/speed/gridDensity/intensity/hue.
func (r *Router) applyPointerVelocity(engineID EngineId, ev InputEvent) {
	if r.pointer.haveLast {
		dx, dy := ev.X-r.pointer.lastX, ev.Y-r.pointer.lastY
		delta := math.Hypot(dx, dy)
		r.pointer.deltas = append(r.pointer.deltas, delta)
		if len(r.pointer.deltas) > velocityWindow {
			r.pointer.deltas = r.pointer.deltas[len(r.pointer.deltas)-velocityWindow:]
		}
	}
	var mean float64
	if n := len(r.pointer.deltas); n > 0 {
		var sum float64
		for _, d := range r.pointer.deltas {
			sum += d
		}
		mean = sum / float64(n)
	}

	chaos := clampFloat(mean*30, 0, 1)
	speed := clampFloat(0.5+mean*15, 0.5, 3)
	gridDensity := 10 + ev.Y*90
	intensity := 0.4 + ev.X*0.6
	hue := math.Mod(280+mean*80, 360)

	r.set(engineID, FieldChaos, chaos, "velocity")
	r.set(engineID, FieldSpeed, speed, "velocity")
	r.set(engineID, FieldGridDensity, gridDensity, "velocity")
	r.set(engineID, FieldIntensity, intensity, "velocity")
	r.set(engineID, FieldHue, hue, "velocity")
}

// applyPointerDistance maps distance from the surface center onto
// gridDensity/intensity/saturation/hue:
//
//	d = min(√((x-0.5)²+(y-0.5)²)/0.707, 1)
func (r *Router) applyPointerDistance(engineID EngineId, ev InputEvent) {
	dx, dy := ev.X-0.5, ev.Y-0.5
	d := math.Min(math.Hypot(dx, dy)/0.707, 1)

	gridDensity := 5 + 95*d
	intensity := 0.2 + 0.8*(1-d)
	saturation := 0.4 + 0.6*(1-d)
	hue := math.Mod(320+40*d, 360)

	r.set(engineID, FieldGridDensity, gridDensity, "distance")
	r.set(engineID, FieldIntensity, intensity, "distance")
	r.set(engineID, FieldSaturation, saturation, "distance")
	r.set(engineID, FieldHue, hue, "distance")
}

// -- Click modes ---------------------------------------------------------

// clickEffect is one in-flight decaying click animation. amplitudes holds
// per-effect decay state; the mode that created it knows how many entries
// it populated and what they mean.
type clickEffect struct {
	mode       ClickMode
	amplitudes []float64
	decay      []float64
	baselineHue float64
}

// clickModeState holds the slice of in-flight click effects, its backing
// array reused across ticks.
type clickModeState struct {
	effects []*clickEffect
}

const effectFloor = 0.01

func (r *Router) triggerClick(engineID EngineId, ev InputEvent) {
	switch r.mode.Click {
	case ClickBurst:
		r.click.effects = append(r.click.effects, &clickEffect{
			mode:       ClickBurst,
			amplitudes: []float64{1, 1, 1},
			decay:      []float64{0.94, 0.92, 0.91},
		})
	case ClickBlast:
		r.click.effects = append(r.click.effects, &clickEffect{
			mode:        ClickBlast,
			amplitudes:  []float64{1, 1, 1},
			decay:       []float64{0.88, 0.89, 0.90},
			baselineHue: r.store.Get(engineID, FieldHue),
		})
	case ClickRipple:
		if engineID != Holographic {
			return
		}
		dx, dy := ev.X-0.5, ev.Y-0.5
		d := math.Hypot(dx, dy)
		r.click.effects = append(r.click.effects, &clickEffect{
			mode:       ClickRipple,
			amplitudes: []float64{0.1 + 0.2*(1-d)},
			decay:      []float64{0.9},
		})
	}
}

// stepClickEffects advances every in-flight click effect by one frame,
// applying its contribution to the active engine's parameters, then drops
// effects whose every amplitude has decayed below effectFloor so the
// animator stops once nothing visible remains.
func (r *Router) stepClickEffects(engineID EngineId) {
	live := r.click.effects[:0] // keep previous memory.
	for _, e := range r.click.effects {
		switch e.mode {
		case ClickBurst:
			chaos := r.store.Get(engineID, FieldChaos) + 0.8*e.amplitudes[0]
			speed := r.store.Get(engineID, FieldSpeed) + 1.5*e.amplitudes[1]
			intensity := r.store.Get(engineID, FieldIntensity) + 0.3*e.amplitudes[2]
			r.set(engineID, FieldChaos, chaos, "burst")
			r.set(engineID, FieldSpeed, speed, "burst")
			r.set(engineID, FieldIntensity, intensity, "burst")
		case ClickBlast:
			chaos := clampFloat(0.3+0.7*e.amplitudes[0], 0, 1)
			speed := clampFloat(1.0+2.0*e.amplitudes[1], 0.1, 3)
			hue := math.Mod(e.baselineHue+60*e.amplitudes[2], 360)
			r.set(engineID, FieldChaos, chaos, "blast")
			r.set(engineID, FieldSpeed, speed, "blast")
			r.set(engineID, FieldHue, hue, "blast")
		case ClickRipple:
			morph := r.store.Get(engineID, FieldMorphFactor) + e.amplitudes[0]
			r.set(engineID, FieldMorphFactor, morph, "ripple")
		}

		for i := range e.amplitudes {
			e.amplitudes[i] *= e.decay[i]
		}
		if !allBelow(e.amplitudes, effectFloor) {
			live = append(live, e)
		}
	}
	r.click.effects = live
}

func allBelow(values []float64, floor float64) bool {
	for _, v := range values {
		if math.Abs(v) >= floor {
			return false
		}
	}
	return true
}

// -- Wheel modes -----------------------------------------------------------

var sweepFields = [...]Field{FieldHue, FieldIntensity, FieldSaturation, FieldChaos, FieldSpeed}

type wheelModeState struct {
	sweepIndex int
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (r *Router) applyWheel(engineID EngineId, ev InputEvent) {
	if ev.DY == 0 {
		return // a wheel delta of 0 is a no-op.
	}
	switch r.mode.Wheel {
	case WheelCycle:
		r.applyWheelCycle(engineID, ev)
	case WheelWave:
		r.applyWheelWave(engineID, ev)
	case WheelSweep:
		r.applyWheelSweep(engineID, ev)
	}
}

// applyWheelCycle nudges gridDensity and hue per wheel notch:
// gridDensity += sign(dy)*0.8, clamped [5,100]; hue += sign(dy)*3 mod 360.
func (r *Router) applyWheelCycle(engineID EngineId, ev InputEvent) {
	s := sign(ev.DY)
	gridDensity := clampFloat(r.store.Get(engineID, FieldGridDensity)+s*0.8, 5, 100)
	hue := math.Mod(r.store.Get(engineID, FieldHue)+s*3, 360)
	if hue < 0 {
		hue += 360
	}
	r.set(engineID, FieldGridDensity, gridDensity, "cycle")
	r.set(engineID, FieldHue, hue, "cycle")
}

// applyWheelWave nudges morphFactor per wheel notch: += sign(dy)*0.02,
// clamped [0.2, 2.0].
func (r *Router) applyWheelWave(engineID EngineId, ev InputEvent) {
	s := sign(ev.DY)
	morph := clampFloat(r.store.Get(engineID, FieldMorphFactor)+s*0.02, 0.2, 2.0)
	r.set(engineID, FieldMorphFactor, morph, "wave")
}

// applyWheelSweep steps a rotating focus field (hue, intensity, saturation,
// chaos, speed) by 2% of its range per wheel notch, then advances the focus
// with 10% probability per event.
func (r *Router) applyWheelSweep(engineID EngineId, ev InputEvent) {
	s := sign(ev.DY)
	field := sweepFields[r.wheel.sweepIndex%len(sweepFields)]
	fr := defaultRanges[field]
	step := 0.02 * (fr.max - fr.min)
	value := r.store.Get(engineID, field) + s*step
	if fr.wrapMod {
		value = math.Mod(value, fr.max)
		if value < 0 {
			value += fr.max
		}
	} else {
		value = clampFloat(value, fr.min, fr.max)
	}
	r.set(engineID, field, value, "sweep")

	if rand.Float64() < 0.10 {
		r.wheel.sweepIndex = (r.wheel.sweepIndex + 1) % len(sweepFields)
	}
}
