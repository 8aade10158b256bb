// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// surface.go is the static, process-wide table mapping each EngineId to its
// five surfaces. Surfaces are process-owned descriptors, built once and
// handed out by value since Surface itself is immutable data.

// EngineId is the closed variant set of visualizer systems this host can run.
type EngineId int

const (
	Faceted EngineId = iota
	Quantum
	Holographic
	Polychora
)

func (id EngineId) String() string {
	if meta, ok := engineMetas[id]; ok {
		return meta.name
	}
	return "unknown"
}

// AllEngineIds lists every known engine, in declaration order.
var AllEngineIds = [4]EngineId{Faceted, Quantum, Holographic, Polychora}

// Role names one of an engine's five layered drawing surfaces.
type Role int

const (
	RoleBackground Role = iota
	RoleShadow
	RoleContent
	RoleHighlight
	RoleAccent
)

var roleNames = [5]string{
	RoleBackground: "background",
	RoleShadow:     "shadow",
	RoleContent:    "content",
	RoleHighlight:  "highlight",
	RoleAccent:     "accent",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// AllRoles lists every role, one per surface, in registry order.
var AllRoles = [5]Role{RoleBackground, RoleShadow, RoleContent, RoleHighlight, RoleAccent}

// Surface is an immutable descriptor for one of an engine's five layered
// drawing targets. Surfaces are owned by the registry for process lifetime.
type Surface struct {
	Engine EngineId
	Role   Role
	ID     string
}

// engineMeta is the static metadata attached to each EngineId: human name,
// surface id prefix, default seed parameters (including the per-engine base
// hue), variant count, and native reactivity flag.
type engineMeta struct {
	name                string
	prefix              string // "" for faceted (bare role names)
	variantCount        int
	hasNativeReactivity bool
	seed                Params
}

func intp(v int) *int { return &v }

var engineMetas = map[EngineId]engineMeta{
	Faceted: {
		name: "faceted", prefix: "", variantCount: 8, hasNativeReactivity: true,
		seed: Params{
			Geometry: 0, Variant: intp(0), GridDensity: 15, MorphFactor: 1.0,
			Chaos: 0.2, Speed: 1.0, Hue: 200, Intensity: 0.5, Saturation: 0.8,
			Dimension: 3.5,
		},
	},
	Quantum: {
		name: "quantum", prefix: "quantum", variantCount: 10, hasNativeReactivity: true,
		seed: Params{
			Geometry: 1, Variant: intp(0), GridDensity: 20, MorphFactor: 1.0,
			Chaos: 0.3, Speed: 1.0, Hue: 280, Intensity: 0.7, Saturation: 0.9,
			Dimension: 3.8,
		},
	},
	Holographic: {
		name: "holographic", prefix: "holo", variantCount: 30, hasNativeReactivity: false,
		seed: Params{
			Geometry: 2, Variant: intp(0), GridDensity: 25, MorphFactor: 0.8,
			Chaos: 0.15, Speed: 0.8, Hue: 320, Intensity: 0.6, Saturation: 0.85,
			Dimension: 4.0,
		},
	},
	Polychora: {
		name: "polychora", prefix: "polychora", variantCount: 12, hasNativeReactivity: true,
		seed: Params{
			Geometry: 3, Variant: intp(0), GridDensity: 30, MorphFactor: 1.2,
			Chaos: 0.25, Speed: 1.1, Hue: 260, Intensity: 0.65, Saturation: 0.9,
			Dimension: 4.2,
		},
	},
}

// HasNativeReactivity reports whether id declares a native-reactivity
// profile the Router must arbitrate with.
func HasNativeReactivity(id EngineId) bool {
	return engineMetas[id].hasNativeReactivity
}

// surfaceID builds the "[engine-prefix-]role-canvas" identifier. The mapping
// is fixed for compatibility with existing snapshots: faceted surfaces carry
// the bare role name, every other engine prepends its prefix.
func surfaceID(prefix string, role Role) string {
	if prefix == "" {
		return role.String() + "-canvas"
	}
	return prefix + "-" + role.String() + "-canvas"
}

var registry = buildRegistry()

func buildRegistry() map[EngineId][5]Surface {
	reg := map[EngineId][5]Surface{}
	for id, meta := range engineMetas {
		var surfaces [5]Surface
		for i, role := range AllRoles {
			surfaces[i] = Surface{Engine: id, Role: role, ID: surfaceID(meta.prefix, role)}
		}
		reg[id] = surfaces
	}
	return reg
}

// SurfacesFor returns the five surfaces declared for id, in role order
// (Background, Shadow, Content, Highlight, Accent). Lookups are total: an
// unknown id returns the zero array.
func SurfacesFor(id EngineId) [5]Surface {
	return registry[id]
}

// SurfaceByRole returns the single surface of the given role for id.
func SurfaceByRole(id EngineId, role Role) Surface {
	surfaces := registry[id]
	for _, s := range surfaces {
		if s.Role == role {
			return s
		}
	}
	return Surface{}
}
