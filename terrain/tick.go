package terrain

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxlit/voxlit/jobs"
	"github.com/voxlit/voxlit/light"
)

// Tick runs the fixed-point loop from spec section 4.5 until the
// pending map is empty and no job is in flight, draining and
// re-routing spill events along the way.
func (c *Coordinator) Tick() (TickStats, error) {
	var stats TickStats
	touched := make(map[light.Vec3i]bool)

	for {
		stats.Rounds++

		sendStart := time.Now()
		sent, err := c.sendPhase(&stats)
		stats.SendPhaseDuration += time.Since(sendStart)
		if err != nil {
			return stats, err
		}

		recvStart := time.Now()
		received, err := c.receivePhaseDrain(&stats, touched)
		stats.ReceivePhaseDuration += time.Since(recvStart)
		if err != nil {
			return stats, err
		}

		c.mu.Lock()
		pendingEmpty := len(c.pending) == 0
		anyInFlight := len(c.inFlight) > 0
		c.mu.Unlock()

		if pendingEmpty && !anyInFlight {
			break
		}

		if sent == 0 && received == 0 {
			if !anyInFlight {
				// Nothing left to send (every remaining pending entry belongs to
				// an unloaded block) and nothing to wait on; leave the rest for
				// a future tick once the host loads those blocks.
				break
			}
			recvStart := time.Now()
			if err := c.receivePhaseBlocking(&stats, touched); err != nil {
				return stats, err
			}
			stats.ReceivePhaseDuration += time.Since(recvStart)
		}
	}

	c.fillTouchedBounds(&stats, touched)
	return stats, nil
}

// sendPhase submits one job per pending block not currently in flight,
// builds that block's padded neighbor snapshot, and clears its pending
// entry (spec section 4.5, step 1).
func (c *Coordinator) sendPhase(stats *TickStats) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sent := 0
	for bp, seeds := range c.pending {
		if c.inFlight[bp] {
			continue
		}
		b, ok := c.blocks[bp]
		if !ok {
			// Block not loaded yet: retain the seeds, replay once it loads
			// (spec section 7: BlockNotLoaded is never surfaced).
			continue
		}

		in := light.ProcessInput{
			BlockPos:     bp,
			OwnLight:     b.lightBytes,
			OwnType:      b.typeBytes,
			Neighbors:    c.neighborSnapshotLocked(bp),
			DefaultLight: c.defaultLight,
			DefaultType:  c.defaultType,
			Seeds:        append([]light.Seed(nil), seeds...),
		}
		c.pool.Push(jobs.NewJob(in, 0))

		b.state = StateLightSent
		c.inFlight[bp] = true
		delete(c.pending, bp)
		sent++
		stats.JobsIssued++
		c.cumulative.TotalJobsIssued++
	}
	return sent, nil
}

// neighborSnapshotLocked builds the six-direction NeighborFace snapshot
// for a block from currently loaded neighbors. Caller must hold c.mu.
func (c *Coordinator) neighborSnapshotLocked(bp light.Vec3i) [6]*light.NeighborFace {
	var out [6]*light.NeighborFace
	for _, d := range light.Directions {
		np := bp.Add(d.Offset())
		if nb, ok := c.blocks[np]; ok {
			out[d] = &light.NeighborFace{Light: nb.lightBytes, Type: nb.typeBytes}
		}
	}
	return out
}

// receivePhaseDrain performs a non-blocking drain of the job pool's
// completed outputs (spec section 4.5, step 2).
func (c *Coordinator) receivePhaseDrain(stats *TickStats, touched map[light.Vec3i]bool) (int, error) {
	results := c.pool.Pop()
	for _, r := range results {
		if err := c.applyResult(r, stats, touched); err != nil {
			return len(results), err
		}
	}
	return len(results), nil
}

// receivePhaseBlocking blocks for exactly one result when the
// coordinator has no further work to submit but a job remains in
// flight (spec section 5: "the coordinator may block briefly when
// draining outputs").
func (c *Coordinator) receivePhaseBlocking(stats *TickStats, touched map[light.Vec3i]bool) error {
	r, ok := c.pool.PopWait()
	if !ok {
		return nil
	}
	return c.applyResult(r, stats, touched)
}

// applyResult merges one job's output into storage, routes its spill
// events into pending[target], and advances the block's state (spec
// section 4.5, step 2a-2c).
func (c *Coordinator) applyResult(r jobs.Result, stats *TickStats, touched map[light.Vec3i]bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, r.BlockPos)

	if r.Err != nil {
		c.cumulative.TotalInvariantFaults++
		c.logger.InvariantFault(fmt.Sprintf("%v", r.BlockPos), r.Err)
		return r.Err
	}

	b, ok := c.blocks[r.BlockPos]
	if !ok {
		// Block was unloaded while its job was in flight; drop the result.
		return nil
	}

	b.lightBytes = r.Output.Light
	if r.Output.Changed {
		b.state = StateMeshDirty
		stats.BlocksUpdated++
		c.cumulative.TotalBlocksUpdated++
		touched[r.BlockPos] = true
	} else {
		b.state = StateIdle
	}

	for _, spill := range r.Output.Spills {
		target := r.BlockPos.Add(spill.BlockOffset)
		stats.SpillEventsRouted++
		c.logger.SpillRouted(fmt.Sprintf("%v", r.BlockPos), fmt.Sprintf("%v", target), spill.Channel.String(), spill.Value)

		if spill.Kind == light.SpillRemove {
			// Restore the target's stored nibble to the old brightness the
			// source side believed, then seed a removal so the target's
			// propagator drives the dark flood from that value (spec
			// section 4.5b). A loaded target whose nibble is already dark
			// has nothing to remove, so no seed is queued for it; this is
			// what stops two dark faces from bouncing removals back and
			// forth forever.
			if tb, ok := c.blocks[target]; ok {
				idx := light.IndexLocal(c.blockSize(), spill.Local)
				if light.NibbleOf(spill.Channel, tb.lightBytes[idx]) == 0 {
					continue
				}
				tb.lightBytes[idx] = light.SetNibble(spill.Channel, tb.lightBytes[idx], spill.Value)
			}
			c.appendPendingLocked(target, light.Seed{Channel: spill.Channel, NewValue: 0, Local: spill.Local})
		} else {
			c.appendPendingLocked(target, light.Seed{Channel: spill.Channel, NewValue: spill.Value, Local: spill.Local})
		}
	}
	return nil
}

func (c *Coordinator) appendPendingLocked(bp light.Vec3i, seed light.Seed) {
	c.pending[bp] = append(c.pending[bp], seed)
	if b, ok := c.blocks[bp]; ok && b.state != StateLightSent && !c.inFlight[bp] {
		b.state = StateLightDirty
	}
}

// fillTouchedBounds computes the world-space AABB spanning every block
// touched this tick, for a downstream mesher's dirty-region
// invalidation — the lighting-engine analogue of the teacher's
// StructureDirty/AABBDirty bookkeeping (xbrickmap.go, world.go).
func (c *Coordinator) fillTouchedBounds(stats *TickStats, touched map[light.Vec3i]bool) {
	if len(touched) == 0 {
		return
	}
	S := float32(c.blockSize())
	first := true
	var min, max mgl32.Vec3
	for bp := range touched {
		lo := mgl32.Vec3{float32(bp.X) * S, float32(bp.Y) * S, float32(bp.Z) * S}
		hi := lo.Add(mgl32.Vec3{S, S, S})
		if first {
			min, max = lo, hi
			first = false
			continue
		}
		min = componentMin(min, lo)
		max = componentMax(max, hi)
	}
	stats.HasTouchedBounds = true
	stats.TouchedMin = min
	stats.TouchedMax = max
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minF(a.X(), b.X()), minF(a.Y(), b.Y()), minF(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxF(a.X(), b.X()), maxF(a.Y(), b.Y()), maxF(a.Z(), b.Z())}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
