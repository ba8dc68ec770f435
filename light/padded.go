package light

// PaddedBuffer is the (S+2P)^3 working volume the propagator operates
// on: the owner block's interior plus a P-voxel halo copied from each
// present neighbor (spec section 4.2). It carries both the light
// channel and the voxel-type channel, since the add-phase needs to
// consult the type of halo voxels to decide whether a spill would even
// be worth emitting.
type PaddedBuffer struct {
	Size    int // S
	Padding int // P
	edge    int // S + 2P
	Light   []byte
	Type    []byte
}

// NewPaddedBuffer allocates a buffer sized for the given block edge and
// halo padding. Reused across jobs within a worker (spec section 5,
// "memory discipline").
func NewPaddedBuffer(size, padding int) *PaddedBuffer {
	edge := size + 2*padding
	n := edge * edge * edge
	return &PaddedBuffer{
		Size:    size,
		Padding: padding,
		edge:    edge,
		Light:   make([]byte, n),
		Type:    make([]byte, n),
	}
}

// Edge returns S + 2P.
func (b *PaddedBuffer) Edge() int { return b.edge }

// Index returns the dense offset of a padded-coordinate position.
func (b *PaddedBuffer) Index(p Vec3i) int {
	return p.Y + b.edge*(p.X+b.edge*p.Z)
}

// MinBoundary returns (P,P,P), the inclusive lower corner of the
// interior.
func (b *PaddedBuffer) MinBoundary() Vec3i {
	return Vec3i{b.Padding, b.Padding, b.Padding}
}

// MaxBoundary returns (P+S,P+S,P+S), the exclusive upper corner of the
// interior.
func (b *PaddedBuffer) MaxBoundary() Vec3i {
	p := b.Padding
	return Vec3i{p + b.Size, p + b.Size, p + b.Size}
}

// IsInside reports whether p lies within [MinBoundary, MaxBoundary) on
// every axis.
func (b *PaddedBuffer) IsInside(p Vec3i) bool {
	min, max := b.MinBoundary(), b.MaxBoundary()
	return p.X >= min.X && p.X < max.X &&
		p.Y >= min.Y && p.Y < max.Y &&
		p.Z >= min.Z && p.Z < max.Z
}

// ToPadded translates a block-local position into padded coordinates by
// adding P on every axis.
func (b *PaddedBuffer) ToPadded(local Vec3i) Vec3i {
	p := b.Padding
	return local.Add(Vec3i{p, p, p})
}

// ToLocal is the inverse of ToPadded.
func (b *PaddedBuffer) ToLocal(padded Vec3i) Vec3i {
	p := b.Padding
	return padded.Sub(Vec3i{p, p, p})
}

// Reset zeroes the whole buffer (interior and halo) so it can be reused
// for the next job without a fresh allocation.
func (b *PaddedBuffer) Reset() {
	for i := range b.Light {
		b.Light[i] = 0
	}
	for i := range b.Type {
		b.Type[i] = 0
	}
}

// NeighborFace is a read-only snapshot of one face neighbor's own S^3
// light and type arrays, taken at job submission time (spec section 5:
// concurrent edits to the neighbor during the job are reconciled by
// later spill events, not by re-reading it mid-job).
type NeighborFace struct {
	Light []byte
	Type  []byte
}

// Fill copies the owner block's own interior (ownLight/ownType, dense
// S^3 arrays in the persisted layout) into the buffer's interior, and
// for each of the six directions copies the opposing face of the
// corresponding NeighborFace into that direction's halo ring — or
// defaultLight/defaultType when the neighbor entry is nil (spec section
// 4.5: "using channel default values for absent neighbors"). Only the
// halo cells adjacent to the interior are populated; diagonal/corner
// padding cells are never read by the propagator and are left zero.
func (b *PaddedBuffer) Fill(ownLight, ownType []byte, neighbors [6]*NeighborFace, defaultLight, defaultType byte) {
	b.Reset()
	S, P := b.Size, b.Padding

	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			for y := 0; y < S; y++ {
				local := Vec3i{x, y, z}
				li := IndexLocal(S, local)
				pi := b.Index(b.ToPadded(local))
				b.Light[pi] = ownLight[li]
				b.Type[pi] = ownType[li]
			}
		}
	}

	for _, d := range Directions {
		nf := neighbors[d]
		for layer := 0; layer < P; layer++ {
			b.fillFaceLayer(d, layer, nf, defaultLight, defaultType)
		}
	}
}

// fillFaceLayer fills one ring layer (0 = nearest the interior) of the
// halo in direction d from the neighbor's near face, or from the
// defaults if nf is nil.
func (b *PaddedBuffer) fillFaceLayer(d Direction, layer int, nf *NeighborFace, defaultLight, defaultType byte) {
	S, P := b.Size, b.Padding

	// axisPos is the padded coordinate along the face's own axis for
	// this ring layer; neighborAxisPos is the corresponding coordinate
	// inside the neighbor's own S-sized interior.
	var axisPos, neighborAxisPos int
	switch d {
	case PosX, PosY, PosZ:
		axisPos = P + S + layer
		neighborAxisPos = layer
	default: // NegX, NegY, NegZ
		axisPos = P - 1 - layer
		neighborAxisPos = S - 1 - layer
	}

	for u := 0; u < S; u++ {
		for v := 0; v < S; v++ {
			var padded, neighborLocal Vec3i
			switch d {
			case PosX, NegX:
				padded = Vec3i{axisPos, u + P, v + P}
				neighborLocal = Vec3i{neighborAxisPos, u, v}
			case PosY, NegY:
				padded = Vec3i{u + P, axisPos, v + P}
				neighborLocal = Vec3i{u, neighborAxisPos, v}
			default: // PosZ, NegZ
				padded = Vec3i{u + P, v + P, axisPos}
				neighborLocal = Vec3i{u, v, neighborAxisPos}
			}

			pi := b.Index(padded)
			if nf == nil {
				b.Light[pi] = defaultLight
				b.Type[pi] = defaultType
				continue
			}
			li := IndexLocal(S, neighborLocal)
			b.Light[pi] = nf.Light[li]
			b.Type[pi] = nf.Type[li]
		}
	}
}
