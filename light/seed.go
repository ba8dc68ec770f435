package light

// Seed is one aggregated edit for a block: a request to raise a
// channel's light to new_value, or (new_value == 0) to remove whatever
// is currently there (spec section 3).
type Seed struct {
	Channel  Channel
	NewValue uint8
	Local    Vec3i // block-local position, in [0, S)
}

// SpillKind distinguishes an add-flood spill from a remove-flood spill.
// The spec (section 4.5b) describes the derived seed's new_value as the
// discriminant ("spills with value == 0 are remove-seeds"), but both
// phases can legitimately emit a spill carrying a positive `Value` (the
// brightness to propagate, or the brightness being erased) — so this
// type carries the phase explicitly instead of overloading Value. See
// DESIGN.md for the reasoning.
type SpillKind int

const (
	SpillAdd SpillKind = iota
	SpillRemove
)

// SpillEvent is produced when propagation steps outside the padded
// interior and must hand off to a neighboring block (spec section 3).
type SpillEvent struct {
	Kind        SpillKind
	BlockOffset Vec3i // face-normal delta to add to the owner's block position
	Channel     Channel
	Value       uint8 // brightness to add, or the old brightness being erased
	Local       Vec3i // local position in the target block
}

// node is a BFS queue entry; Pos is always in padded coordinates and,
// by construction (see Propagator), always inside the interior.
type node struct {
	Pos   Vec3i
	Value uint8
}
