// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// params.go is the canonical, typed, clamped parameter vector shared by
// every visualizer engine: a small typed record with internal clamp-on-write
// helpers, refreshed and read every tick.

import (
	"math"
	"sync"
)

// Field names one slot of the Params vector. A closed enum instead of a
// string key keeps Store.Set a total function over valid fields and lets
// the compiler catch typos.
type Field int

// Params fields, in schema order. fieldCount must stay last.
const (
	FieldGeometry Field = iota
	FieldVariant
	FieldGridDensity
	FieldMorphFactor
	FieldChaos
	FieldSpeed
	FieldHue
	FieldIntensity
	FieldSaturation
	FieldRot4dXW
	FieldRot4dYW
	FieldRot4dZW
	FieldDimension
	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldGeometry:    "geometry",
	FieldVariant:     "variant",
	FieldGridDensity: "gridDensity",
	FieldMorphFactor: "morphFactor",
	FieldChaos:       "chaos",
	FieldSpeed:       "speed",
	FieldHue:         "hue",
	FieldIntensity:   "intensity",
	FieldSaturation:  "saturation",
	FieldRot4dXW:     "rot4dXW",
	FieldRot4dYW:     "rot4dYW",
	FieldRot4dZW:     "rot4dZW",
	FieldDimension:   "dimension",
}

// String returns the schema field name, matching the JSON snapshot key.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// Params is a fixed-shape, full snapshot of one engine's parameter vector.
// Variant is a pointer because the JSON snapshot schema marks it optional;
// a nil Variant leaves the stored variant untouched on restore.
type Params struct {
	Geometry    int
	Variant     *int
	GridDensity float64
	MorphFactor float64
	Chaos       float64
	Speed       float64
	Hue         float64
	Intensity   float64
	Saturation  float64
	Rot4dXW     float64
	Rot4dYW     float64
	Rot4dZW     float64
	Dimension   float64
}

// fieldRange describes a closed numeric range used for clamping.
type fieldRange struct {
	min, max  float64
	discrete  bool // true for integer fields (geometry, variant)
	wrapMod   bool // hue: modulo into [0, max)
	wrapAngle bool // rotations: wrap into (-pi, pi]
}

var defaultRanges = [fieldCount]fieldRange{
	FieldGeometry:    {min: 0, max: 7, discrete: true},
	FieldVariant:     {min: 0, max: 0, discrete: true}, // max overridden per engine
	FieldGridDensity: {min: 5, max: 100},
	FieldMorphFactor: {min: 0, max: 2},
	FieldChaos:       {min: 0, max: 1},
	FieldSpeed:       {min: 0.1, max: 3},
	FieldHue:         {min: 0, max: 360, wrapMod: true},
	FieldIntensity:   {min: 0, max: 1},
	FieldSaturation:  {min: 0, max: 1},
	FieldRot4dXW:     {min: -2 * math.Pi, max: 2 * math.Pi, wrapAngle: true},
	FieldRot4dYW:     {min: -2 * math.Pi, max: 2 * math.Pi, wrapAngle: true},
	FieldRot4dZW:     {min: -2 * math.Pi, max: 2 * math.Pi, wrapAngle: true},
	FieldDimension:   {min: 3.0, max: 4.5},
}

// ChangeOutcome reports what Store.Set actually did: unchanged, or changed
// with the old and new values.
type ChangeOutcome struct {
	Changed bool
	Old     float64
	New     float64
	Err     error // non-nil (InvalidValue) when the write was rejected
}

// ChangeEvent is delivered to subscribers after a field actually changes.
type ChangeEvent struct {
	Engine EngineId
	Field  Field
	Old    float64
	New    float64
}

// SubHandle identifies a registered subscription for Store.Unsubscribe.
type SubHandle uint64

type subscriber struct {
	handle SubHandle
	fn     func(ChangeEvent)
}

// engineParams holds the live values for one engine, plus its variant cap.
type engineParams struct {
	values       [fieldCount]float64
	variantCount int
}

// Store is the single source of truth for every engine's Params. All access
// is serialized by a mutex even though the host loop is single-threaded:
// cheap, and it lets tests exercise the Store directly without first
// building a scheduler.
type Store struct {
	mu          sync.Mutex
	engines     map[EngineId]*engineParams
	subscribers map[EngineId][]subscriber
	nextHandle  SubHandle
}

// NewStore creates a Store pre-seeded with every known engine's defaults.
func NewStore() *Store {
	s := &Store{
		engines:     map[EngineId]*engineParams{},
		subscribers: map[EngineId][]subscriber{},
	}
	for id, meta := range engineMetas {
		ep := &engineParams{variantCount: meta.variantCount}
		ep.values = meta.seed.toArray()
		s.engines[id] = ep
	}
	return s
}

func (p Params) toArray() [fieldCount]float64 {
	var a [fieldCount]float64
	a[FieldGeometry] = float64(p.Geometry)
	if p.Variant != nil {
		a[FieldVariant] = float64(*p.Variant)
	}
	a[FieldGridDensity] = p.GridDensity
	a[FieldMorphFactor] = p.MorphFactor
	a[FieldChaos] = p.Chaos
	a[FieldSpeed] = p.Speed
	a[FieldHue] = p.Hue
	a[FieldIntensity] = p.Intensity
	a[FieldSaturation] = p.Saturation
	a[FieldRot4dXW] = p.Rot4dXW
	a[FieldRot4dYW] = p.Rot4dYW
	a[FieldRot4dZW] = p.Rot4dZW
	a[FieldDimension] = p.Dimension
	return a
}

func fromArray(a [fieldCount]float64) Params {
	variant := int(a[FieldVariant])
	return Params{
		Geometry:    int(a[FieldGeometry]),
		Variant:     &variant,
		GridDensity: a[FieldGridDensity],
		MorphFactor: a[FieldMorphFactor],
		Chaos:       a[FieldChaos],
		Speed:       a[FieldSpeed],
		Hue:         a[FieldHue],
		Intensity:   a[FieldIntensity],
		Saturation:  a[FieldSaturation],
		Rot4dXW:     a[FieldRot4dXW],
		Rot4dYW:     a[FieldRot4dYW],
		Rot4dZW:     a[FieldRot4dZW],
		Dimension:   a[FieldDimension],
	}
}

// clamp applies the clamping and normalization contract for one field,
// given the engine's variant cap (variant range is per-engine).
func clamp(field Field, raw float64, variantCount int) float64 {
	r := defaultRanges[field]
	switch {
	case field == FieldVariant:
		max := float64(variantCount - 1)
		if max < 0 {
			max = 0
		}
		return clampDiscrete(raw, 0, max)
	case r.discrete:
		return clampDiscrete(raw, r.min, r.max)
	case r.wrapMod:
		return wrapMod(raw, r.max)
	case r.wrapAngle:
		return wrapAngle(raw)
	default:
		return clampFloat(raw, r.min, r.max)
	}
}

func clampDiscrete(v, lo, hi float64) float64 {
	v = math.Floor(v + 0.5) // round to nearest integer
	return clampFloat(v, lo, hi)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapMod normalizes hue into [0, mod).
func wrapMod(v, mod float64) float64 {
	v = math.Mod(v, mod)
	if v < 0 {
		v += mod
	}
	return v
}

// wrapAngle normalizes a 4D rotation into (-pi, pi].
func wrapAngle(v float64) float64 {
	const twoPi = 2 * math.Pi
	v = math.Mod(v, twoPi)
	if v <= -math.Pi {
		v += twoPi
	} else if v > math.Pi {
		v -= twoPi
	}
	return v
}

// toFloat coerces an accepted value type into float64. Strings and any
// other type fail with InvalidValue: the write is rejected, never
// partially applied.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Get returns the stored, already-clamped value for engine/field. Get never
// fails: an unknown engine returns the zero value.
func (s *Store) Get(id EngineId, field Field) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.engines[id]
	if !ok || field < 0 || field >= fieldCount {
		return 0
	}
	return ep.values[field]
}

// Set clamps value into field's range, normalizes angles/hue, writes iff
// the clamped value differs from the stored one, and notifies subscribers.
func (s *Store) Set(id EngineId, field Field, value any) ChangeOutcome {
	if field < 0 || field >= fieldCount {
		return ChangeOutcome{Err: NewError(KindInvalidValue, "unknown field", nil)}
	}
	raw, ok := toFloat(value)
	if !ok {
		return ChangeOutcome{Err: NewError(KindInvalidValue, "wrong-typed value for "+field.String(), nil)}
	}

	s.mu.Lock()
	ep, ok := s.engines[id]
	if !ok {
		s.mu.Unlock()
		return ChangeOutcome{Err: NewError(KindInvalidValue, "unknown engine", nil)}
	}
	clamped := clamp(field, raw, ep.variantCount)
	old := ep.values[field]
	if old == clamped {
		s.mu.Unlock()
		return ChangeOutcome{Changed: false, Old: old, New: clamped}
	}
	ep.values[field] = clamped
	subs := append([]subscriber(nil), s.subscribers[id]...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ChangeEvent{Engine: id, Field: field, Old: old, New: clamped})
	}
	return ChangeOutcome{Changed: true, Old: old, New: clamped}
}

// BatchSet applies every field in values atomically: all writes are clamped
// and committed before any notification fires, so subscribers never observe
// a partially-applied batch. Returns the set of fields that actually changed.
func (s *Store) BatchSet(id EngineId, values map[Field]any) []Field {
	s.mu.Lock()
	ep, ok := s.engines[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	type pending struct {
		field    Field
		old, new float64
	}
	var changes []pending
	for field, value := range values {
		if field < 0 || field >= fieldCount {
			continue
		}
		raw, ok := toFloat(value)
		if !ok {
			continue
		}
		clamped := clamp(field, raw, ep.variantCount)
		old := ep.values[field]
		if old != clamped {
			changes = append(changes, pending{field, old, clamped})
		}
	}
	for _, c := range changes {
		ep.values[c.field] = c.new
	}
	subs := append([]subscriber(nil), s.subscribers[id]...)
	s.mu.Unlock()

	changed := make([]Field, 0, len(changes))
	for _, c := range changes {
		changed = append(changed, c.field)
		for _, sub := range subs {
			sub.fn(ChangeEvent{Engine: id, Field: c.field, Old: c.old, New: c.new})
		}
	}
	return changed
}

// Snapshot returns a full, cheap-to-compare copy of an engine's Params.
func (s *Store) Snapshot(id EngineId) Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.engines[id]
	if !ok {
		return Params{}
	}
	return fromArray(ep.values)
}

// Restore sets every field of p via Set, dropping fields not in the schema.
// A nil Variant leaves the current variant untouched.
func (s *Store) Restore(id EngineId, p Params) {
	s.Set(id, FieldGeometry, p.Geometry)
	if p.Variant != nil {
		s.Set(id, FieldVariant, *p.Variant)
	}
	s.Set(id, FieldGridDensity, p.GridDensity)
	s.Set(id, FieldMorphFactor, p.MorphFactor)
	s.Set(id, FieldChaos, p.Chaos)
	s.Set(id, FieldSpeed, p.Speed)
	s.Set(id, FieldHue, p.Hue)
	s.Set(id, FieldIntensity, p.Intensity)
	s.Set(id, FieldSaturation, p.Saturation)
	s.Set(id, FieldRot4dXW, p.Rot4dXW)
	s.Set(id, FieldRot4dYW, p.Rot4dYW)
	s.Set(id, FieldRot4dZW, p.Rot4dZW)
	s.Set(id, FieldDimension, p.Dimension)
}

// Subscribe registers fn to be called after every changed write for engine
// id. Unsubscribe removes it. Both are cheap enough to call per-tick.
func (s *Store) Subscribe(id EngineId, fn func(ChangeEvent)) SubHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	h := s.nextHandle
	s.subscribers[id] = append(s.subscribers[id], subscriber{handle: h, fn: fn})
	return h
}

// Unsubscribe removes a previously registered subscription, if still present.
func (s *Store) Unsubscribe(id EngineId, handle SubHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[id]
	for i, sub := range subs {
		if sub.handle == handle {
			s.subscribers[id] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// CycleGeometry advances the discrete geometry index by delta, wrapping
// modulo 8 instead of clamping at the endpoints the way a direct Set does.
func (s *Store) CycleGeometry(id EngineId, delta int) ChangeOutcome {
	current := int(s.Get(id, FieldGeometry))
	next := ((current+delta)%8 + 8) % 8
	return s.Set(id, FieldGeometry, next)
}
