// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// snapshot.go is the external JSON interface: a versioned,
// backward-compatible parameter snapshot readers must tolerate (unknown
// fields ignored, legacy aliases accepted, invalid values falling back to
// defaults) plus the deep-link URL query format the gallery preview mode
// uses. Field lookup goes through gjson.Get (pull one path out of a JSON
// blob, shrug at anything else) instead of a strict struct-tagged
// Unmarshal, which would reject the very documents tolerance requires.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// geometryNames labels the eight discrete geometry indices for the
// snapshot's human-readable "geometryName" field.
var geometryNames = [8]string{
	"tetrahedron", "hypercube", "sphere", "torus",
	"klein-bottle", "fractal", "wave", "crystal",
}

func geometryName(index int) string {
	if index < 0 || index >= len(geometryNames) {
		return "unknown"
	}
	return geometryNames[index]
}

// engineSystemName maps EngineId to the snapshot's "system" string, and
// engineIDFromSystemName maps it back. The JSON "system" discriminator is
// the engine's own name (EngineId.String), not its surface-id prefix: the
// two differ for faceted (no prefix) and holographic ("holo").
func engineSystemName(id EngineId) string { return id.String() }

func engineIDFromSystemName(name string) (EngineId, bool) {
	for _, id := range AllEngineIds {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}

// legacyAliases maps a deprecated snapshot key to its current schema field
// name.
var legacyAliases = map[string]string{
	"density": "gridDensity",
	"morph":   "morphFactor",
	"geom":    "geometry",
	"rotXW":   "rot4dXW",
}

// Snapshot is the JSON-serializable capture of one engine's parameters.
// Field order is cosmetic; JSON object key order is not semantically
// meaningful here.
type Snapshot struct {
	System       string         `json:"system"`
	Parameters   map[string]any `json:"parameters"`
	GeometryName string         `json:"geometryName"`
	Created      string         `json:"created"`
}

// BuildSnapshot captures engine id's current Params from store into the
// snapshot JSON schema, stamping Created with the given time (callers pass
// time.Now() in production; tests pass a fixed time for determinism).
func BuildSnapshot(store *Store, id EngineId, at time.Time) Snapshot {
	p := store.Snapshot(id)
	params := map[string]any{
		"geometry":    p.Geometry,
		"gridDensity": p.GridDensity,
		"morphFactor": p.MorphFactor,
		"chaos":       p.Chaos,
		"speed":       p.Speed,
		"hue":         p.Hue,
		"intensity":   p.Intensity,
		"saturation":  p.Saturation,
		"rot4dXW":     p.Rot4dXW,
		"rot4dYW":     p.Rot4dYW,
		"rot4dZW":     p.Rot4dZW,
		"dimension":   p.Dimension,
	}
	if p.Variant != nil {
		params["variant"] = *p.Variant
	}
	return Snapshot{
		System:       engineSystemName(id),
		Parameters:   params,
		GeometryName: geometryName(p.Geometry),
		Created:      at.UTC().Format(time.RFC3339),
	}
}

// MarshalSnapshot builds and serializes engine id's current parameters.
func MarshalSnapshot(store *Store, id EngineId, at time.Time) ([]byte, error) {
	return json.Marshal(BuildSnapshot(store, id, at))
}

// snapshotFieldKeys lists every schema field (plus its legacy alias, if
// any) this parser looks up, in schema order. gjson.Get on a missing path
// returns a zero Result, which the per-type accessors below treat as
// "absent" rather than a type error.
var snapshotFieldKeys = []Field{
	FieldGeometry, FieldVariant, FieldGridDensity, FieldMorphFactor,
	FieldChaos, FieldSpeed, FieldHue, FieldIntensity, FieldSaturation,
	FieldRot4dXW, FieldRot4dYW, FieldRot4dZW, FieldDimension,
}

// fieldAliasOf returns the legacy key that maps onto field, if any.
func fieldAliasOf(field Field) (alias string, ok bool) {
	name := field.String()
	for legacy, current := range legacyAliases {
		if current == name {
			return legacy, true
		}
	}
	return "", false
}

// ParseSnapshot tolerantly decodes a JSON snapshot: unknown fields are
// ignored, legacy aliases are accepted when the canonical key is absent,
// and a field whose value is the wrong JSON type falls back to the target
// engine's seeded default instead of failing the whole parse. The returned
// EngineId is read from "system"; an unrecognized or missing system falls
// back to Faceted, the same fallback deep links use.
func ParseSnapshot(data []byte) (EngineId, Params) {
	root := gjson.ParseBytes(data)
	id, ok := engineIDFromSystemName(root.Get("system").String())
	if !ok {
		id = Faceted
	}
	seed := engineMetas[id].seed
	seedVariant := 0
	if seed.Variant != nil {
		seedVariant = *seed.Variant
	}
	seed.Variant = &seedVariant // defensive copy: never share engineMetas' pointer.

	params := root.Get("parameters")
	result := seed
	for _, field := range snapshotFieldKeys {
		key := field.String()
		r := params.Get(key)
		if !r.Exists() {
			if alias, hasAlias := fieldAliasOf(field); hasAlias {
				r = params.Get(alias)
			}
		}
		if !r.Exists() || r.Type != gjson.Number {
			continue // absent or wrong-typed: keep the seeded default.
		}
		applySnapshotField(&result, field, r.Num)
	}
	return id, result
}

func applySnapshotField(p *Params, field Field, v float64) {
	switch field {
	case FieldGeometry:
		p.Geometry = int(v)
	case FieldVariant:
		variant := int(v)
		p.Variant = &variant
	case FieldGridDensity:
		p.GridDensity = v
	case FieldMorphFactor:
		p.MorphFactor = v
	case FieldChaos:
		p.Chaos = v
	case FieldSpeed:
		p.Speed = v
	case FieldHue:
		p.Hue = v
	case FieldIntensity:
		p.Intensity = v
	case FieldSaturation:
		p.Saturation = v
	case FieldRot4dXW:
		p.Rot4dXW = v
	case FieldRot4dYW:
		p.Rot4dYW = v
	case FieldRot4dZW:
		p.Rot4dZW = v
	case FieldDimension:
		p.Dimension = v
	}
}

// RestoreSnapshot parses data and applies it to store via Store.Restore,
// which clamps every field on write, so restoring an engine's own snapshot
// yields no observable change.
func RestoreSnapshot(store *Store, data []byte) (EngineId, error) {
	id, p := ParseSnapshot(data)
	store.Restore(id, p)
	return id, nil
}

// ParamAssignment is one "&field=value" deep-link pair, kept in the order
// of the knownKeys list passed to ParseDeepLink. A plain map[Field]any would
// lose that order (Go doesn't guarantee map iteration order), so Apply below needs
// the slice form to make field writes deterministic, even though today's
// schema has no field that depends on another's just-applied value.
type ParamAssignment struct {
	Field Field
	Value float64
}

// DeepLink is a parsed gallery preview-mode URL of the form
// "?system=<EngineId>&<param>=<number>&...&hideui=(true|false)".
type DeepLink struct {
	System EngineId
	Params []ParamAssignment
	HideUI bool
}

// Value returns the parsed value for field and whether it was present.
func (d DeepLink) Value(field Field) (float64, bool) {
	for _, a := range d.Params {
		if a.Field == field {
			return a.Value, true
		}
	}
	return 0, false
}

// QueryGetter is the minimal shape ParseDeepLink needs from a parsed query
// string. net/url.Values satisfies this directly via its Get method.
type QueryGetter interface {
	Get(key string) string
}

// fieldByQueryKey resolves a deep-link query key to its schema Field,
// accepting the same legacy aliases the JSON snapshot format does.
func fieldByQueryKey(key string) (Field, bool) {
	if canonical, ok := legacyAliases[key]; ok {
		key = canonical
	}
	for _, field := range snapshotFieldKeys {
		if field.String() == key {
			return field, true
		}
	}
	return 0, false
}

// ParseDeepLink reads a gallery preview-mode query string: it resolves the
// requested system (falling back to Faceted if unavailable or absent),
// collects every recognized numeric parameter key, and reads hideui.
// Unrecognized keys are ignored rather than rejected, matching the
// snapshot format's tolerance.
func ParseDeepLink(q QueryGetter, knownKeys []string) DeepLink {
	var link DeepLink

	system := q.Get("system")
	id, ok := engineIDFromSystemName(system)
	if !ok {
		id = Faceted
	}
	link.System = id

	for _, key := range knownKeys {
		field, ok := fieldByQueryKey(key)
		if !ok {
			continue
		}
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue // invalid numeric value: silently skip.
		}
		link.Params = append(link.Params, ParamAssignment{Field: field, Value: v})
	}

	link.HideUI = q.Get("hideui") == "true"
	return link
}

// Apply writes every parameter in the deep-link to store for d.System, in
// order. It only applies parameter values: it does not switch engines, and
// the Faceted fallback for an unrecognized system happens in ParseDeepLink.
func (d DeepLink) Apply(store *Store) {
	for _, a := range d.Params {
		store.Set(d.System, a.Field, a.Value)
	}
}

// String renders a compact diagnostic description of a deep link, useful in
// log lines when a preview load falls back to Faceted.
func (d DeepLink) String() string {
	return fmt.Sprintf("system=%s params=%d hideui=%v", d.System, len(d.Params), d.HideUI)
}
