// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// scheduler.go is the Engine Scheduler: the single place that knows which
// engine is active and mediates switches with a deterministic transition
// protocol. One component owns every subsystem and drives the tick; switches
// run as an explicit, cancellable transition rather than a free-running
// loop, since this host multiplexes engines instead of running exactly one
// for the process lifetime.

import (
	"context"
	"sync"
	"time"

	"github.com/Domusgpt/v2-refactored/gpu"
)

// Compositor is the visibility contract the scheduler holds against the
// surface-owning layer: mark surfaces composited or not, and resize the
// active set to the current viewport.
type Compositor interface {
	SetComposited(surfaceID string, composited bool)
	Resize(surfaceID string, width, height int, devicePixelRatio float64)
}

// NullCompositor is the default Compositor, sufficient whenever pixels
// don't need to actually move.
type NullCompositor struct{}

func (NullCompositor) SetComposited(string, bool) {}
func (NullCompositor) Resize(string, int, int, float64) {}

// RouterAttachment is the handle the scheduler uses to tell the Reactivity
// Router which engine is now active. Router itself implements this.
type RouterAttachment interface {
	SetActiveEngine(id EngineId)
}

type noopRouterAttachment struct{}

func (noopRouterAttachment) SetActiveEngine(EngineId) {}

// SwitchResult reports the outcome of a successful SwitchTo.
type SwitchResult struct {
	Target EngineId
	Reused bool // true if an existing cached instance was reused rather than recreated.
}

// Scheduler maintains exactly one active engine id and mediates switches
// via SwitchTo's nine-step transition protocol.
//
// SwitchTo is safe to call concurrently: mu guards active, instances, and
// generation the same way params.go's Store guards its maps, even though
// the host loop is single-threaded. The only scenario in which superseding
// an in-flight call has any observable effect is a second SwitchTo arriving
// on another goroutine while a prior one is still suspended (the
// stabilization wait, or the pool's acquire-pacing limiter); the mutex is
// what makes that a clean cancellation instead of a concurrent-map-write
// panic. mu is never held across a blocking point (time.After, ctx.Done,
// gpu.Pool.Acquire) so one goroutine's suspension never blocks another's
// cancellation check.
type Scheduler struct {
	mu sync.Mutex

	store      *Store
	pool       *gpu.Pool
	compositor Compositor
	router     RouterAttachment
	factory    RendererFactory
	diag       *diagnostics
	metrics    *Metrics

	cfg Config

	active    *EngineId
	instances map[EngineId]*Instance

	// generation guards cancellation: SwitchTo bumps it on entry, and any
	// in-flight call whose captured generation no longer matches the
	// current one unwinds instead of completing. Later calls supersede.
	generation uint64
}

// NewScheduler constructs a Scheduler backed by store, using factory to
// build renderers (nil uses the no-op renderer). Options override
// configDefaults.
func NewScheduler(store *Store, factory RendererFactory, logger *Logger, metrics *Metrics, attrs ...Attr) *Scheduler {
	cfg := configDefaults
	for _, attr := range attrs {
		attr(&cfg)
	}
	if factory == nil {
		factory = defaultFactory
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}
	return &Scheduler{
		store:      store,
		pool:       gpu.NewPool(cfg.MaxLiveContexts, cfg.AcquirePacing),
		compositor: NullCompositor{},
		router:     noopRouterAttachment{},
		factory:    factory,
		diag:       newDiagnostics(logger),
		metrics:    metrics,
		cfg:        cfg,
		instances:  map[EngineId]*Instance{},
	}
}

// SetCompositor installs the surface-visibility collaborator.
func (s *Scheduler) SetCompositor(c Compositor) {
	if c == nil {
		c = NullCompositor{}
	}
	s.compositor = c
}

// AttachRouter installs the Reactivity Router's attachment handle, notified
// on every successful switch.
func (s *Scheduler) AttachRouter(r RouterAttachment) {
	if r == nil {
		r = noopRouterAttachment{}
	}
	s.router = r
}

// OnDiagnostic registers the host's callback for error-taxonomy events.
func (s *Scheduler) OnDiagnostic(sink DiagnosticSink) {
	s.diag.setSink(sink)
}

// Pool exposes the underlying GPU context pool, e.g. for a host's render
// loop to call Tick() once per frame.
func (s *Scheduler) Pool() *gpu.Pool { return s.pool }

// Metrics exposes the scheduler's collectors so collaborators (the Router)
// can share them instead of registering their own.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Active returns the currently active engine id, if any.
func (s *Scheduler) Active() (EngineId, bool) {
	return s.activeID()
}

// Tick drives every instance's render loop and drains queued context-loss
// notifications. Expected to run once per host frame.
func (s *Scheduler) Tick() {
	s.pool.Tick()
	s.metrics.LiveContexts.Set(float64(s.pool.LiveCount()))
	for _, ins := range s.snapshotInstances() {
		ins.Tick()
	}
}

// activeID reads the active engine id under mu.
func (s *Scheduler) activeID() (EngineId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	return *s.active, true
}

// setActiveID records id as active under mu.
func (s *Scheduler) setActiveID(id EngineId) {
	s.mu.Lock()
	v := id
	s.active = &v
	s.mu.Unlock()
}

// clearActiveID records that no engine is active, under mu.
func (s *Scheduler) clearActiveID() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// instanceFor looks up the cached instance for id under mu.
func (s *Scheduler) instanceFor(id EngineId) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ins, ok := s.instances[id]
	return ins, ok
}

// setInstance caches ins for id under mu.
func (s *Scheduler) setInstance(id EngineId, ins *Instance) {
	s.mu.Lock()
	s.instances[id] = ins
	s.mu.Unlock()
}

// deleteInstance drops id's cache entry under mu.
func (s *Scheduler) deleteInstance(id EngineId) {
	s.mu.Lock()
	delete(s.instances, id)
	s.mu.Unlock()
}

// snapshotInstances returns a point-in-time copy of the cached instances, so
// Tick can iterate without holding mu across each instance's render loop.
func (s *Scheduler) snapshotInstances() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, 0, len(s.instances))
	for _, ins := range s.instances {
		out = append(out, ins)
	}
	return out
}

// otherInstanceIDs returns every cached instance id other than exclude,
// a snapshot taken under mu so forceReclaim's destroy loop doesn't mutate
// the map while ranging over it.
func (s *Scheduler) otherInstanceIDs(exclude EngineId) []EngineId {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EngineId, 0, len(s.instances))
	for id := range s.instances {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// SwitchTo runs the nine-step transition to target. A SwitchTo call in
// flight when a new one is issued is cancelled: this function checks its
// generation after every suspension point and unwinds without completing
// activation if superseded.
func (s *Scheduler) SwitchTo(ctx context.Context, dims Dimensions, target EngineId) (SwitchResult, error) {
	myGen := s.bumpGeneration()
	start := time.Now()

	result, err := s.switchTo(ctx, dims, target, myGen)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.SwitchDuration.WithLabelValues(target.String(), outcome).Observe(time.Since(start).Seconds())
	return result, err
}

// bumpGeneration advances the transition generation counter under mu and
// returns the new value, the caller's token for cancelled.
func (s *Scheduler) bumpGeneration() uint64 {
	s.mu.Lock()
	s.generation++
	g := s.generation
	s.mu.Unlock()
	return g
}

func (s *Scheduler) cancelled(myGen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return myGen != s.generation
}

func (s *Scheduler) switchTo(ctx context.Context, dims Dimensions, target EngineId, myGen uint64) (SwitchResult, error) {
	transitionID := NewTransitionID()
	log := s.diag.logger.WithTransition(transitionID, target)

	// Step 1: no-op guard.
	if activeID, ok := s.activeID(); ok && activeID == target {
		if ins, ok := s.instanceFor(target); ok && ins.Healthy() {
			log.Debug("switch_to no-op: already active and healthy")
			return SwitchResult{Target: target, Reused: true}, nil
		}
		log.Debug("active instance unhealthy on no-op guard, treating as fresh switch")
	}

	// Step 2: hide all.
	s.hideAll()
	if s.cancelled(myGen) {
		return SwitchResult{}, NewError(KindSwitchFailed, "cancelled during hide-all", nil)
	}

	// Step 3: deactivate previous (do not yet destroy).
	var prevID *EngineId
	if activeID, ok := s.activeID(); ok && activeID != target {
		id := activeID
		prevID = &id
		if ins, ok := s.instanceFor(*prevID); ok {
			ins.SetActive(false)
		}
	}

	// Step 4: policy decision.
	if s.cfg.DestroyOnSwitch && prevID != nil {
		if ins, ok := s.instanceFor(*prevID); ok {
			ins.Destroy()
			s.deleteInstance(*prevID)
		}
	}
	if s.cancelled(myGen) {
		return SwitchResult{}, NewError(KindSwitchFailed, "cancelled after deactivation", nil)
	}

	// Step 5: prepare target surfaces.
	s.prepareSurfaces(target, dims)

	// Step 6: decide create-or-reuse.
	ins, reused, err := s.createOrReuse(ctx, dims, target, transitionID)
	if err != nil {
		s.rollback(prevID, dims)
		s.metrics.SwitchFailures.WithLabelValues(target.String(), string(KindSwitchFailed)).Inc()
		s.diag.emit(ctx, DiagnosticEvent{Kind: KindSwitchFailed, Engine: target, Reason: "create-or-reuse failed", Cause: err})
		return SwitchResult{}, NewError(KindSwitchFailed, "create-or-reuse failed", err)
	}
	if s.cancelled(myGen) {
		ins.Destroy()
		s.deleteInstance(target)
		return SwitchResult{}, NewError(KindSwitchFailed, "cancelled after creation", nil)
	}

	// Stabilization wait: nominal delay before validation. Exceeding it
	// never fails, only logs, so a context deadline is honored but not
	// required.
	if s.cfg.StabilizationWindow > 0 {
		select {
		case <-time.After(s.cfg.StabilizationWindow):
		case <-ctx.Done():
			log.Warn("stabilization wait interrupted by context cancellation")
		}
	}
	if s.cancelled(myGen) {
		ins.Destroy()
		s.deleteInstance(target)
		return SwitchResult{}, NewError(KindSwitchFailed, "cancelled during stabilization", nil)
	}

	// Step 7: validate.
	if !ins.Healthy() {
		s.metrics.SwitchFailures.WithLabelValues(target.String(), string(KindContextCreationFailed)).Inc()
		s.diag.emit(ctx, DiagnosticEvent{Kind: KindContextCreationFailed, Engine: target, Reason: "target contexts failed validation after stabilization"})
		ins.Destroy()
		s.deleteInstance(target)
		s.rollback(prevID, dims)
		return SwitchResult{}, NewError(KindSwitchFailed, "target failed post-stabilization validation", nil)
	}

	// Step 8: activate.
	ins.SetActive(true)
	s.setActiveID(target)

	// Step 9: reattach router.
	s.router.SetActiveEngine(target)

	log.Info("switch_to completed")
	return SwitchResult{Target: target, Reused: reused}, nil
}

// rollback restores the pre-switch state after a failed transition: the
// target's surfaces (composited at step 5) are hidden again and, when a
// previous engine survives to be restored, it is re-composited and
// reactivated so a failed switch leaves it both running and visible. When
// no previous instance remains (destroyed at step 4), active is cleared
// rather than left naming an engine with no bound contexts.
func (s *Scheduler) rollback(prevID *EngineId, dims Dimensions) {
	s.hideAll()
	if prevID != nil {
		if prev, ok := s.instanceFor(*prevID); ok {
			s.prepareSurfaces(*prevID, dims)
			prev.SetActive(true)
			s.setActiveID(*prevID)
			return
		}
	}
	s.clearActiveID()
}

// hideAll marks every engine's surfaces as not composited.
func (s *Scheduler) hideAll() {
	for _, id := range AllEngineIds {
		for _, surf := range SurfacesFor(id) {
			s.compositor.SetComposited(surf.ID, false)
		}
	}
}

// prepareSurfaces marks target's five surfaces composited and resizes them
// to dims at the configured device-pixel-ratio cap.
func (s *Scheduler) prepareSurfaces(target EngineId, dims Dimensions) {
	for _, surf := range SurfacesFor(target) {
		s.compositor.SetComposited(surf.ID, true)
		s.compositor.Resize(surf.ID, dims.Width, dims.Height, s.cfg.DevicePixelRatioCap)
	}
}

// createOrReuse implements step 6: reuse a cached, still-healthy instance,
// or construct a fresh one via Create.
func (s *Scheduler) createOrReuse(ctx context.Context, dims Dimensions, target EngineId, transitionID string) (*Instance, bool, error) {
	if ins, ok := s.instanceFor(target); ok {
		if ins.Healthy() {
			return ins, true, nil
		}
		ins.Destroy()
		s.deleteInstance(target)
	}

	ins, err := Create(ctx, target, s.store, s.pool, dims, s.factory, s.metrics)
	if err != nil {
		if IsKind(err, KindCapacityExceeded) {
			if retryIns, retryErr := s.retryAfterForceReclaim(ctx, dims, target); retryErr == nil {
				s.setInstance(target, retryIns)
				return retryIns, false, nil
			}
		}
		return nil, false, err
	}
	s.setInstance(target, ins)
	return ins, false, nil
}

// retryAfterForceReclaim handles CapacityExceeded: destroy every cached
// instance other than target and retry creation exactly once.
func (s *Scheduler) retryAfterForceReclaim(ctx context.Context, dims Dimensions, target EngineId) (*Instance, error) {
	s.forceReclaim(target)
	return Create(ctx, target, s.store, s.pool, dims, s.factory, s.metrics)
}

// forceReclaim destroys every cached instance other than exclude, freeing
// their GPU contexts back to the pool.
func (s *Scheduler) forceReclaim(exclude EngineId) {
	for _, id := range s.otherInstanceIDs(exclude) {
		if ins, ok := s.instanceFor(id); ok {
			ins.Destroy()
			s.deleteInstance(id)
		}
	}
}

// NotifyContextLoss is the hook a driver (or the gpu.Pool's on-loss
// handlers) calls when the active engine's context is lost. It runs a
// recovery switch to the same id, deduplicating repeated-cause diagnostics
// per engine.
func (s *Scheduler) NotifyContextLoss(ctx context.Context, dims Dimensions, id EngineId, cause error) {
	s.diag.emitRecoveryOnce(ctx, DiagnosticEvent{Kind: KindContextLost, Engine: id, Reason: "driver-initiated context loss", Cause: cause})

	if _, err := s.SwitchTo(ctx, dims, id); err != nil {
		// Recovery failed: fall back to the default engine with the last
		// known-good parameters.
		s.diag.emit(ctx, DiagnosticEvent{Kind: KindSwitchFailed, Engine: id, Reason: "recovery switch failed, falling back to default engine", Cause: err})
		s.SwitchTo(ctx, dims, Faceted)
	}
}
