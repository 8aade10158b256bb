// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// router.go is the Reactivity Router: the single place that turns
// InputEvents into Params writes, so behavior is identical across engines
// sharing a mode and engines can yield to it. One arbitrated writer
// replaces multiple subsystems racing each other over the same event
// stream; the Router holds a non-owning handle to the scheduler to query
// the active engine rather than owning engine instances itself.

import "sync"

// PointerMode selects how Pointer events are mapped.
type PointerMode int

const (
	PointerRotations PointerMode = iota
	PointerVelocity
	PointerDistance
)

// ClickMode selects how PointerEnd events are mapped.
type ClickMode int

const (
	ClickBurst ClickMode = iota
	ClickBlast
	ClickRipple
)

// WheelMode selects how Wheel events are mapped.
type WheelMode int

const (
	WheelCycle WheelMode = iota
	WheelWave
	WheelSweep
)

// ModeSelection is the router's current 3x3 grid position plus the master
// enable switch. The three channels compose orthogonally.
type ModeSelection struct {
	Enabled bool
	Pointer PointerMode
	Click   ClickMode
	Wheel   WheelMode
}

// Router maps InputEvents to Params writes for whichever engine the
// attached Scheduler reports as active, arbitrating with that engine's
// native reactivity.
type Router struct {
	mu        sync.Mutex
	store     *Store
	metrics   *Metrics
	scheduler *Scheduler

	perms *Permissions

	mode            ModeSelection
	active          EngineId
	hasActiveEngine bool

	pointer pointerModeState
	click   clickModeState
	wheel   wheelModeState
}

// NewRouter constructs a Router bound to store, writing parameter changes
// for whichever engine scheduler reports active. metrics may be nil: the
// scheduler's collectors are reused when one is attached, falling back to
// the shared process-default instance otherwise.
func NewRouter(store *Store, scheduler *Scheduler, metrics *Metrics) *Router {
	if metrics == nil {
		if scheduler != nil {
			metrics = scheduler.Metrics()
		} else {
			metrics = NewMetrics()
		}
	}
	r := &Router{
		store:     store,
		scheduler: scheduler,
		metrics:   metrics,
		mode:      ModeSelection{Enabled: true, Pointer: PointerRotations, Click: ClickBurst, Wheel: WheelCycle},
	}
	r.wheel.sweepIndex = 0
	return r
}

// SetPermissions installs the host's permission tracker. A nil tracker (the
// default) treats every channel as granted, which suits hosts on platforms
// that never gate audio or motion.
func (r *Router) SetPermissions(p *Permissions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms = p
}

// SetMode installs a new mode selection, resetting per-mode state so a mode
// switch never carries over stale accumulators from the previous selection.
func (r *Router) SetMode(mode ModeSelection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	r.pointer = pointerModeState{}
	r.wheel = wheelModeState{}
	// click effects are intentionally NOT cleared: an in-flight decay from
	// the previous mode still needs to reach zero. The no-stale-timers
	// guarantee is about engine switches, not mode switches.
}

// SetActiveEngine implements RouterAttachment: the Scheduler calls this on
// every successful switch. It also clears any click-effect decay state, so
// no stale timers survive an engine switch.
func (r *Router) SetActiveEngine(id EngineId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
	r.hasActiveEngine = true
	r.pointer = pointerModeState{}
	r.wheel = wheelModeState{}
	r.click.effects = r.click.effects[:0]
}

// Handle routes one InputEvent. Invalid/disabled configuration falls back
// to "off" for that channel and never panics. UI-originated events must be
// filtered by the caller via IsUIExclusion before reaching Handle.
func (r *Router) Handle(ev InputEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasActiveEngine {
		return
	}
	engineID := r.active

	switch ev.Kind {
	case KindAudioFrame:
		// Audio frames bypass mode arbitration entirely: the single
		// analyzer feeds the active Instance directly, and engines never
		// open their own audio input. The router's role for audio is purely
		// to forward to whichever instance is active, since arbitration
		// there is per-field last-write-wins, not mode selection.
		if r.perms != nil && !r.perms.AudioGranted() {
			return
		}
		if r.scheduler != nil {
			if ins, ok := r.scheduler.instanceFor(engineID); ok {
				ins.ApplyAudio(ev.Audio)
			}
		}
		return
	}

	if !r.mode.Enabled {
		return
	}

	switch ev.Kind {
	case KindPointer:
		r.applyPointer(engineID, ev)
	case KindPointerEnd:
		r.triggerClick(engineID, ev)
	case KindWheel:
		r.applyWheel(engineID, ev)
	case KindMotion:
		if r.perms != nil && !r.perms.MotionGranted() {
			return
		}
		// No mode grid entry maps motion to parameters, so there is
		// nothing further to apply here.
	}
}

// Tick advances the click-effects decay animator by one frame. Expected to
// be called once per host tick, after Scheduler.Tick(), so native engine
// writes are applied before router writes within the same frame and the
// router's write wins.
func (r *Router) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasActiveEngine {
		return
	}
	r.stepClickEffects(r.active)
}

// set is the router's sole write path into the Parameter Store, recording
// a metric per field/mode so operators can see which channel is active.
func (r *Router) set(engineID EngineId, field Field, value float64, mode string) {
	r.store.Set(engineID, field, value)
	if r.metrics != nil {
		r.metrics.RouterUpdates.WithLabelValues(field.String(), mode).Inc()
	}
}
