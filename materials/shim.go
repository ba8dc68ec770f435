// Package materials is the external-library shim (C6): the single
// capability the propagator needs from the block/material registry —
// "is voxel type T transparent?" — injected as an interface rather than
// held as process-wide state (spec section 4.6 and section 9's "Global
// state. None.").
package materials

import "github.com/voxlit/voxlit"

// Shim answers transparency queries for voxel type ids. It never
// mutates the type channel; the propagator only ever reads through it.
type Shim interface {
	// IsTransparent reports whether typeID lets artificial/natural light
	// pass through. It fails with a *voxlit.Error of kind
	// KindUnknownVoxelType for an id it has never seen, per spec section
	// 4.6 ("fails fatally if asked about an unknown id").
	IsTransparent(typeID uint8) (bool, error)
}

// Registry is a static transparency table, the simplest real
// implementation of Shim: a fixed map from voxel type id to
// transparency, populated once at startup from the host's block
// library.
type Registry struct {
	transparent map[uint8]bool
}

// NewRegistry builds a Registry from a complete id->transparent map.
// The host is expected to register every voxel type id it can produce;
// an id missing from the map is treated as unknown.
func NewRegistry(transparent map[uint8]bool) *Registry {
	cp := make(map[uint8]bool, len(transparent))
	for k, v := range transparent {
		cp[k] = v
	}
	return &Registry{transparent: cp}
}

// IsTransparent implements Shim.
func (r *Registry) IsTransparent(typeID uint8) (bool, error) {
	t, ok := r.transparent[typeID]
	if !ok {
		return false, voxlit.NewError(voxlit.KindUnknownVoxelType, "unknown voxel type id %d", typeID)
	}
	return t, nil
}

// Set registers or updates the transparency of a voxel type id.
func (r *Registry) Set(typeID uint8, transparent bool) {
	r.transparent[typeID] = transparent
}
