// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// engine_instance.go implements one running visualizer system: owned
// subsystem handles (five gpu.Ctx and five Renderers), a tick split into
// pulling state then drawing, and a teardown that releases everything it
// acquired.

import (
	"context"
	"math"

	"github.com/Domusgpt/v2-refactored/audio"
	"github.com/Domusgpt/v2-refactored/gpu"
)

// Renderer is the opaque per-surface consumer of a parameter vector. Its
// internals (shader programs, geometry) live outside this module; Instance
// only needs to feed it Params and audio.Features and ask it to draw.
type Renderer interface {
	Update(p Params, features audio.Features)
	Draw()
	Dispose()
}

// RendererFactory constructs the Renderer bound to one surface's context.
// A nil factory is replaced with a no-op renderer, sufficient for every
// scheduling and capacity behavior that doesn't depend on actual pixels.
type RendererFactory func(id EngineId, role Role, ctx *gpu.Ctx) (Renderer, error)

type noopRenderer struct{}

func (noopRenderer) Update(Params, audio.Features) {}
func (noopRenderer) Draw() {}
func (noopRenderer) Dispose() {}

func defaultFactory(EngineId, Role, *gpu.Ctx) (Renderer, error) {
	return noopRenderer{}, nil
}

// Instance is C4: one running visualizer system. It owns five renderers
// bound to its five surfaces, drives a cooperative render loop, and
// consumes parameter changes and per-frame audio features.
type Instance struct {
	id        EngineId
	store     *Store
	pool      *gpu.Pool
	factory   RendererFactory
	metrics   *Metrics
	contexts  [5]*gpu.Ctx
	renderers [5]Renderer
	active    bool
	tick      uint64

	overrides map[Field]any // sticky custom overrides set via UpdateParam
	audio     *audio.Features
}

// Create acquires contexts for all five surfaces of id via pool, constructs
// renderers, and returns an Instance. Partial acquisition is an error: on
// any failure every already-acquired context is released before returning.
// metrics may be nil (the audio-silence gauge is then left unset).
func Create(ctx context.Context, id EngineId, store *Store, pool *gpu.Pool, dims Dimensions, factory RendererFactory, metrics *Metrics) (*Instance, error) {
	if factory == nil {
		factory = defaultFactory
	}
	ins := &Instance{
		id:        id,
		store:     store,
		pool:      pool,
		factory:   factory,
		metrics:   metrics,
		overrides: map[Field]any{},
	}

	surfaces := SurfacesFor(id)
	var acquired []*gpu.Ctx
	release := func() {
		for _, c := range acquired {
			pool.Release(c)
		}
	}

	for i, s := range surfaces {
		ref := gpu.SurfaceRef{ID: s.ID, Width: dims.Width, Height: dims.Height}
		gctx, err := pool.Acquire(ctx, ref)
		if err != nil {
			release()
			return nil, NewError(acquireErrorKind(err), "acquiring "+s.ID, err)
		}
		acquired = append(acquired, gctx)
		ins.contexts[i] = gctx

		r, err := factory(id, s.Role, gctx)
		if err != nil {
			release()
			return nil, NewError(KindCreateFailed, "constructing renderer for "+s.ID, err)
		}
		ins.renderers[i] = r
	}

	return ins, nil
}

// Dimensions is the target surface size used when acquiring contexts.
type Dimensions struct {
	Width, Height int
}

// acquireErrorKind maps a gpu.Pool.Acquire sentinel error to the fail-kind
// a caller (the scheduler's forceReclaim retry) needs to distinguish,
// falling back to CreateFailed for anything else.
func acquireErrorKind(err error) ErrorKind {
	switch err {
	case gpu.ErrCapacityExceeded:
		return KindCapacityExceeded
	case gpu.ErrSurfaceNotReady:
		return KindSurfaceNotReady
	case gpu.ErrCreationFailed, gpu.ErrAlreadyBound:
		return KindContextCreationFailed
	default:
		return KindCreateFailed
	}
}

// SetActive toggles the render loop. Suspending retains state but does not
// release contexts.
func (ins *Instance) SetActive(active bool) {
	ins.active = active
}

// IsActive reports whether the instance's render loop is currently running.
func (ins *Instance) IsActive() bool { return ins.active }

// EngineId returns the visualizer system this instance runs.
func (ins *Instance) EngineId() EngineId { return ins.id }

// Healthy reports whether all five contexts are Bound and not Lost, the
// check the scheduler's no-op guard relies on.
func (ins *Instance) Healthy() bool {
	for _, c := range ins.contexts {
		if c == nil || c.State() != gpu.Bound {
			return false
		}
	}
	return true
}

// Tick runs a single render frame: pulls current Params, applies any queued
// audio frame, updates each renderer, and submits draws. A no-op when
// inactive, so repeated calls while suspended are always safe.
func (ins *Instance) Tick() {
	if !ins.active {
		return
	}
	ins.applyAudio()
	params := ins.store.Snapshot(ins.id)
	features := audio.Features{}
	if ins.audio != nil {
		features = *ins.audio
	}
	for _, r := range ins.renderers {
		if r == nil {
			continue
		}
		r.Update(params, features)
		r.Draw()
	}
	ins.tick++
}

// TickCount returns the number of frames rendered since creation.
func (ins *Instance) TickCount() uint64 { return ins.tick }

// UpdateParam forwards to the Parameter Store and records the write as a
// sticky override so it survives a later variant reseed.
func (ins *Instance) UpdateParam(field Field, value any) ChangeOutcome {
	ins.overrides[field] = value
	return ins.store.Set(ins.id, field, value)
}

// SetVariant re-seeds the engine's role-local parameters for the given
// variant, then re-applies any sticky overrides on top: fresh role params
// first, the override map second.
func (ins *Instance) SetVariant(variant int) ChangeOutcome {
	outcome := ins.store.Set(ins.id, FieldVariant, variant)
	seed := variantSeed(ins.id, variant)
	ins.store.BatchSet(ins.id, seed)
	for field, value := range ins.overrides {
		ins.store.Set(ins.id, field, value)
	}
	return outcome
}

// variantSeed derives deterministic role-local baseline values for a given
// variant index. Hue and gridDensity shift with variant%7, so variants that
// differ modulo 7 start visibly different (but reproducible) and switching
// variants is observable even before any user override is applied;
// morphFactor is reset to the engine's seed value for every variant.
func variantSeed(id EngineId, variant int) map[Field]any {
	meta := engineMetas[id]
	base := meta.seed
	spread := float64(variant%7) / 7
	return map[Field]any{
		FieldHue:         math.Mod(base.Hue+spread*360, 360),
		FieldGridDensity: base.GridDensity + spread*20,
		FieldMorphFactor: base.MorphFactor,
	}
}

// ApplyAudio caches features for the next tick. Older frames are replaced,
// not queued.
func (ins *Instance) ApplyAudio(features audio.Features) {
	ins.audio = &features
}

// applyAudio implements each engine's native audio reactivity: an additive
// overlay on the current stored values, recomputed fresh every tick from
// the latest cached audio.Features. A silent frame (below the silence gate)
// produces no change. The gate's state is published on
// Metrics.AudioSilenceGate regardless of whether this particular engine has
// native audio reactivity, since the silence threshold gates every
// audio-reactive consumer.
func (ins *Instance) applyAudio() {
	if ins.audio == nil {
		return
	}
	feat := *ins.audio
	silent := feat.Energy < audio.SilenceThreshold
	if ins.metrics != nil {
		if silent {
			ins.metrics.AudioSilenceGate.Set(1)
		} else {
			ins.metrics.AudioSilenceGate.Set(0)
		}
	}
	if silent || !HasNativeReactivity(ins.id) {
		return
	}
	p := ins.store.Snapshot(ins.id)
	ins.store.Set(ins.id, FieldHue, p.Hue+feat.Mid*120)
	ins.store.Set(ins.id, FieldMorphFactor, p.MorphFactor+feat.Mid*1.0)
	ins.store.Set(ins.id, FieldIntensity, p.Intensity+feat.Bass*0.3)
}

// Destroy stops the loop, disposes renderers, releases all contexts, and
// clears sticky overrides, so overrides reset on destroy+recreate. After
// Destroy the instance is unusable.
func (ins *Instance) Destroy() {
	ins.active = false
	for _, r := range ins.renderers {
		if r != nil {
			r.Dispose()
		}
	}
	for _, c := range ins.contexts {
		if c != nil {
			ins.pool.Release(c)
		}
	}
	ins.contexts = [5]*gpu.Ctx{}
	ins.renderers = [5]Renderer{}
	ins.overrides = map[Field]any{}
	ins.audio = nil
}
