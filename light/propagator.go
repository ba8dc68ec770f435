package light

import (
	"fmt"

	"github.com/voxlit/voxlit"
	"github.com/voxlit/voxlit/materials"
)

// queues holds the four BFS FIFOs described in spec section 4.3, kept
// as growable slices reused across jobs: a job resets length to zero
// (reset) but keeps the backing array, and within a single phase a
// queue is walked with a growing head index rather than popped from the
// front, so enqueuing during the walk is just an append.
type queues struct {
	artAdd, artRemove, natAdd, natRemove []node
}

func (q *queues) reset() {
	q.artAdd = q.artAdd[:0]
	q.artRemove = q.artRemove[:0]
	q.natAdd = q.natAdd[:0]
	q.natRemove = q.natRemove[:0]
}

// queueOf implements the 2x2 discriminated dispatch from spec section
// 4.3 ("queue_of(channel, is_add)") as a pointer to the backing slice,
// not runtime polymorphism (spec section 9).
func (q *queues) queueOf(ch Channel, isAdd bool) *[]node {
	switch {
	case ch == Artificial && isAdd:
		return &q.artAdd
	case ch == Artificial && !isAdd:
		return &q.artRemove
	case ch == Natural && isAdd:
		return &q.natAdd
	default:
		return &q.natRemove
	}
}

// ProcessInput is one light job's input: the owner block's own S^3
// light/type arrays, a per-direction neighbor snapshot, default channel
// values for absent neighbors, and the seed batch to apply.
type ProcessInput struct {
	BlockPos     Vec3i
	OwnLight     []byte // S^3, persisted layout
	OwnType      []byte // S^3, persisted layout
	Neighbors    [6]*NeighborFace
	DefaultLight byte
	DefaultType  byte
	Seeds        []Seed
}

// ProcessOutput is one light job's result: the mutated light channel
// for the owner block, whether anything changed, and the spill events
// to hand off to neighbors.
type ProcessOutput struct {
	BlockPos Vec3i
	Light    []byte // S^3, persisted layout
	Changed  bool
	Spills   []SpillEvent
}

// Propagator is the per-block worker state from spec section 4.3: a
// reused padded buffer and four reused BFS queues. Not safe for
// concurrent use — the job pool gives each worker its own Propagator.
type Propagator struct {
	buf    *PaddedBuffer
	queues queues
	shim   materials.Shim
	spills []SpillEvent
}

// NewPropagator allocates a Propagator for blocks of the given edge
// length and halo padding, querying transparency through shim.
func NewPropagator(size, padding int, shim materials.Shim) *Propagator {
	return &Propagator{
		buf:  NewPaddedBuffer(size, padding),
		shim: shim,
	}
}

// Process runs phase 0 (seeding), phase 1 (removal flood) and phase 2
// (addition flood) for both channels and returns the updated light
// field and spill events. Given the same input, Process is a pure
// function of its arguments (spec section 4.3, "Determinism"): it never
// reads or writes anything but in and its own reused scratch state.
func (p *Propagator) Process(in ProcessInput) (ProcessOutput, error) {
	S := p.buf.Size
	if len(in.OwnLight) != S*S*S || len(in.OwnType) != S*S*S {
		return ProcessOutput{}, voxlit.NewError(voxlit.KindInvalidPosition,
			"block %v: expected %d-byte channel arrays, got light=%d type=%d",
			in.BlockPos, S*S*S, len(in.OwnLight), len(in.OwnType))
	}

	p.buf.Fill(in.OwnLight, in.OwnType, in.Neighbors, in.DefaultLight, in.DefaultType)
	p.queues.reset()
	p.spills = p.spills[:0]

	changed := false
	for _, s := range in.Seeds {
		if s.NewValue > MaxLevel {
			return ProcessOutput{}, voxlit.NewError(voxlit.KindInvalidPosition,
				"seed at %v: new_value %d exceeds max level %d", s.Local, s.NewValue, MaxLevel)
		}
		if s.Local.X < 0 || s.Local.X >= S || s.Local.Y < 0 || s.Local.Y >= S || s.Local.Z < 0 || s.Local.Z >= S {
			return ProcessOutput{}, voxlit.NewError(voxlit.KindInvalidPosition, "seed local position %v out of [0,%d)", s.Local, S)
		}

		pos := p.buf.ToPadded(s.Local)
		idx := p.buf.Index(pos)
		cur := NibbleOf(s.Channel, p.buf.Light[idx])

		switch {
		case s.NewValue > 0 && s.NewValue > cur:
			p.buf.Light[idx] = SetNibble(s.Channel, p.buf.Light[idx], s.NewValue)
			q := p.queues.queueOf(s.Channel, true)
			*q = append(*q, node{Pos: pos, Value: s.NewValue - 1})
			changed = true
		case s.NewValue == 0 && cur > 0:
			p.buf.Light[idx] = SetNibble(s.Channel, p.buf.Light[idx], 0)
			q := p.queues.queueOf(s.Channel, false)
			*q = append(*q, node{Pos: pos, Value: cur})
			changed = true
		}
	}

	for _, ch := range [2]Channel{Artificial, Natural} {
		rChanged, err := p.runRemove(ch, in.BlockPos)
		if err != nil {
			return ProcessOutput{}, err
		}
		aChanged, err := p.runAdd(ch, in.BlockPos)
		if err != nil {
			return ProcessOutput{}, err
		}
		changed = changed || rChanged || aChanged
	}

	out := ProcessOutput{
		BlockPos: in.BlockPos,
		Light:    make([]byte, S*S*S),
		Changed:  changed,
		Spills:   append([]SpillEvent(nil), p.spills...),
	}
	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			for y := 0; y < S; y++ {
				local := Vec3i{x, y, z}
				out.Light[IndexLocal(S, local)] = p.buf.Light[p.buf.Index(p.buf.ToPadded(local))]
			}
		}
	}
	return out, nil
}

// runRemove drains the channel's remove queue (spec section 4.3, phase
// 1). Returns whether it made any change to the buffer.
func (p *Propagator) runRemove(ch Channel, ownBlock Vec3i) (bool, error) {
	queue := p.queues.queueOf(ch, false)
	changed := false

	for head := 0; head < len(*queue); head++ {
		nd := (*queue)[head]
		for _, d := range Directions {
			n := nd.Pos.Add(d.Offset())

			if !p.buf.IsInside(n) {
				local := p.buf.ToLocal(n)
				p.spills = append(p.spills, SpillEvent{
					Kind:        SpillRemove,
					BlockOffset: d.Offset(),
					Channel:     ch,
					Value:       nd.Value,
					Local:       WrapLocal(local, p.buf.Size),
				})
				continue
			}

			idx := p.buf.Index(n)
			nl := NibbleOf(ch, p.buf.Light[idx])
			if nl == 0 {
				continue
			}

			if nl < nd.Value {
				p.buf.Light[idx] = SetNibble(ch, p.buf.Light[idx], 0)
				*queue = append(*queue, node{Pos: n, Value: nl})
				changed = true
			} else {
				addQ := p.queues.queueOf(ch, true)
				*addQ = append(*addQ, node{Pos: n, Value: nl - 1})
			}
		}
	}
	return changed, nil
}

// runAdd drains the channel's add queue (spec section 4.3, phase 2).
func (p *Propagator) runAdd(ch Channel, ownBlock Vec3i) (bool, error) {
	queue := p.queues.queueOf(ch, true)
	changed := false

	for head := 0; head < len(*queue); head++ {
		nd := (*queue)[head]
		if nd.Value == 0 {
			continue
		}
		for _, d := range Directions {
			n := nd.Pos.Add(d.Offset())
			idx := p.buf.Index(n)

			opaque, err := p.isOpaque(p.buf.Type[idx])
			if err != nil {
				return changed, fmt.Errorf("block %v: %w", ownBlock, err)
			}
			if opaque {
				continue
			}

			if !p.buf.IsInside(n) {
				local := p.buf.ToLocal(n)
				p.spills = append(p.spills, SpillEvent{
					Kind:        SpillAdd,
					BlockOffset: d.Offset(),
					Channel:     ch,
					Value:       nd.Value,
					Local:       WrapLocal(local, p.buf.Size),
				})
				continue
			}

			nl := NibbleOf(ch, p.buf.Light[idx])
			if nd.Value <= nl {
				continue
			}
			p.buf.Light[idx] = SetNibble(ch, p.buf.Light[idx], nd.Value)
			changed = true
			if nd.Value > 1 {
				*queue = append(*queue, node{Pos: n, Value: nd.Value - 1})
			}
		}
	}
	return changed, nil
}

func (p *Propagator) isOpaque(typeID byte) (bool, error) {
	transparent, err := p.shim.IsTransparent(typeID)
	if err != nil {
		return false, err
	}
	return !transparent, nil
}
