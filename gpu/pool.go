// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package gpu mediates acquisition and release of rendering contexts bound
// to surfaces, enforcing a global cap on live contexts. It is a small
// interface in front of whatever the actual driver is, kept deliberately
// opaque since shader programs and geometry generation live outside this
// module. Nothing in this package imports the root engine package; the
// dependency runs one way.
package gpu

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// State is a Ctx's position in the Free -> Bound -> Lost -> Free lifecycle.
type State int

const (
	Free State = iota
	Bound
	Lost
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Bound:
		return "bound"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Sentinel errors for the acquire/release/validate contract. The root
// package's errors.go wraps these into its own typed taxonomy; gpu itself
// returns plain sentinels and stays dependency-free of that taxonomy.
var (
	ErrCapacityExceeded = errors.New("gpu: capacity exceeded")
	ErrAlreadyBound     = errors.New("gpu: surface already bound")
	ErrSurfaceNotReady  = errors.New("gpu: surface not ready")
	ErrCreationFailed   = errors.New("gpu: context creation failed")
	ErrMissing          = errors.New("gpu: no context for surface")
)

// DefaultCap is the default ceiling on live contexts.
const DefaultCap = 5

// HardCap is the hard-fail ceiling the configured capacity may never exceed.
const HardCap = 16

// SurfaceRef identifies the surface a context is bound to without this
// package needing to know about the root package's Surface/EngineId types.
type SurfaceRef struct {
	ID            string
	Width, Height int // zero means "not visible per the layering contract"
}

// Options mirrors WebGL-style context attributes: alpha on, depth on,
// antialias off, premultiplied alpha on, preserve-buffer off, power
// preference platform-chosen, fail-if-perf-caveat false.
type Options struct {
	Alpha                        bool
	Depth                        bool
	Antialias                    bool
	PremultipliedAlpha           bool
	PreserveDrawingBuffer        bool
	PowerPreference              string
	FailIfMajorPerformanceCaveat bool
}

// DefaultOptions returns the standard context option set.
func DefaultOptions() Options {
	return Options{
		Alpha:                 true,
		Depth:                 true,
		Antialias:             false,
		PremultipliedAlpha:    true,
		PreserveDrawingBuffer: false,
		PowerPreference:       "default",
	}
}

// Driver is the opaque, pluggable surface-owning layer a Pool mediates
// against. Production hosts supply a real driver; tests and the package
// default use NullDriver, which always succeeds.
type Driver interface {
	// CreateContext creates and validates the underlying GPU context for
	// ref: create and delete a trivial vertex-shader-like resource, then
	// check for immediate context-lost.
	CreateContext(ref SurfaceRef, opts Options) error
	// DestroyContext performs driver-level destruction (lose-context
	// extension or equivalent).
	DestroyContext(ref SurfaceRef)
	// Validate reports whether ref currently has a healthy context.
	Validate(ref SurfaceRef) (State, error)
}

// NullDriver always succeeds; it is the default Driver, sufficient whenever
// no real backend is present.
type NullDriver struct{}

func (NullDriver) CreateContext(SurfaceRef, Options) error { return nil }
func (NullDriver) DestroyContext(SurfaceRef) {}
func (NullDriver) Validate(ref SurfaceRef) (State, error) { return Bound, nil }

// Ctx is an opaque GPU resource exclusively owned by at most one renderer
// at a time.
type Ctx struct {
	surface SurfaceRef
	state   State
}

// Surface returns the surface this context is bound to.
func (c *Ctx) Surface() SurfaceRef { return c.surface }

// State returns the context's last-known state.
func (c *Ctx) State() State { return c.state }

// Pool acquires/releases rendering contexts bound to surfaces and enforces
// the global cap invariant: at most Cap contexts are Bound or
// allocated-Free at any time.
type Pool struct {
	mu       sync.Mutex
	cap      int
	driver   Driver
	ctxs     map[string]*Ctx // surface ID -> live context
	limiter  *rate.Limiter   // paces sequential acquisitions
	handlers map[string]func(SurfaceRef)
	pending  []SurfaceRef // driver-reported losses awaiting the next Tick
}

// NewPool creates a Pool capped at capLimit contexts, pacing sequential
// acquisitions at roughly pacing apart. A non-positive capLimit falls back
// to DefaultCap and one above HardCap is clamped to HardCap; a non-positive
// pacing falls back to 20ms.
func NewPool(capLimit int, pacing time.Duration) *Pool {
	if capLimit <= 0 {
		capLimit = DefaultCap
	}
	if capLimit > HardCap {
		capLimit = HardCap
	}
	if pacing <= 0 {
		pacing = 20 * time.Millisecond
	}
	return &Pool{
		cap:      capLimit,
		driver:   NullDriver{},
		ctxs:     map[string]*Ctx{},
		limiter:  rate.NewLimiter(rate.Every(pacing), 1),
		handlers: map[string]func(SurfaceRef){},
	}
}

// SetDriver installs the Driver used for context creation/validation.
func (p *Pool) SetDriver(d Driver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.driver = d
}

// LiveCount returns the number of contexts currently allocated (Bound or
// Free-but-allocated), the quantity that must stay <= Cap.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ctxs)
}

// Cap returns the pool's configured capacity.
func (p *Pool) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap
}

// Acquire rejects at capacity, rejects a not-ready surface, creates with
// the standard option set, and validates. It does not register a loss
// handler: NotifyLoss marks a live context Lost by itself, and a handler
// runs on Tick only if one was installed with OnLoss. Acquisitions are paced by the pool's rate limiter to avoid driver stalls
// (a policy, not an invariant).
func (p *Pool) Acquire(ctx context.Context, ref SurfaceRef) (*Ctx, error) {
	p.mu.Lock()
	if _, exists := p.ctxs[ref.ID]; exists {
		p.mu.Unlock()
		return nil, ErrAlreadyBound
	}
	if len(p.ctxs) >= p.cap {
		p.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	if ref.Width <= 0 || ref.Height <= 0 {
		p.mu.Unlock()
		return nil, ErrSurfaceNotReady
	}
	driver := p.driver
	limiter := p.limiter
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if err := driver.CreateContext(ref, DefaultOptions()); err != nil {
		return nil, ErrCreationFailed
	}
	state, err := driver.Validate(ref)
	if err != nil || state == Lost {
		driver.DestroyContext(ref)
		return nil, ErrCreationFailed
	}

	c := &Ctx{surface: ref, state: Bound}
	p.mu.Lock()
	p.ctxs[ref.ID] = c
	p.mu.Unlock()
	return c, nil
}

// Release performs driver-level destruction and removes the entry. Must be
// called before the surface's owner is reused for another engine.
func (p *Pool) Release(c *Ctx) {
	if c == nil {
		return
	}
	p.mu.Lock()
	driver := p.driver
	delete(p.ctxs, c.surface.ID)
	delete(p.handlers, c.surface.ID)
	p.mu.Unlock()

	driver.DestroyContext(c.surface)
	c.state = Free
}

// Validate checks whether ref currently has a healthy context.
func (p *Pool) Validate(ref SurfaceRef) (State, error) {
	p.mu.Lock()
	c, ok := p.ctxs[ref.ID]
	driver := p.driver
	p.mu.Unlock()
	if !ok {
		return Free, ErrMissing
	}
	state, err := driver.Validate(ref)
	if err != nil {
		return Lost, err
	}
	c.state = state
	return state, nil
}

// OnLoss subscribes handler to driver-initiated context loss for ref. The
// handler runs on the next call to Tick, not inside the driver callback.
func (p *Pool) OnLoss(ref SurfaceRef, handler func(SurfaceRef)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[ref.ID] = handler
}

// NotifyLoss is the driver-facing hook: a driver reports a lost context by
// calling this (typically from its own callback), and the notification is
// queued until Tick drains it.
func (p *Pool) NotifyLoss(ref SurfaceRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.ctxs[ref.ID]; ok {
		c.state = Lost
	}
	p.pending = append(p.pending, ref)
}

// Tick drains any queued loss notifications, invoking their handlers. It is
// expected to be called once per host scheduling tick.
func (p *Pool) Tick() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	handlers := make(map[string]func(SurfaceRef), len(pending))
	for _, ref := range pending {
		if h, ok := p.handlers[ref.ID]; ok {
			handlers[ref.ID] = h
		}
	}
	p.mu.Unlock()

	for _, ref := range pending {
		if h, ok := handlers[ref.ID]; ok {
			h(ref)
		}
	}
}
