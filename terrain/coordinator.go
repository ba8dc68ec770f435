package terrain

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxlit/voxlit"
	"github.com/voxlit/voxlit/jobs"
	"github.com/voxlit/voxlit/light"
	"github.com/voxlit/voxlit/materials"
)

// Edit is one batched voxel edit for SetVoxelArtificialBatch /
// SetVoxelNaturalBatch (spec section 1's "thousands of seeds may arrive
// per tick" — real edits rarely come in one at a time).
type Edit struct {
	WorldPos light.Vec3i
	Value    uint8
}

// block is the coordinator's own storage for one loaded block: the two
// dense S^3 channel arrays (spec section 6's persisted layout) plus its
// place in the state machine.
type block struct {
	lightBytes []byte // S^3, persisted layout; this is what propagation mutates
	typeBytes  []byte // S^3, persisted layout; read-only to the propagator
	state      State
}

// TickStats reports what one Tick() call did (spec section 6: "returns
// statistics (blocks updated, jobs issued, time per phase)"), expanded
// with a touched-region bounding box in the spirit of the teacher's
// StructureDirty/AABBDirty bookkeeping in xbrickmap.go/world.go, so a
// downstream mesher can limit its own rebuild to the area that changed.
type TickStats struct {
	BlocksUpdated        int
	JobsIssued           int
	SpillEventsRouted    int
	Rounds               int
	SendPhaseDuration    time.Duration
	ReceivePhaseDuration time.Duration

	HasTouchedBounds bool
	TouchedMin       mgl32.Vec3
	TouchedMax       mgl32.Vec3
}

// CumulativeStats are running counters kept across every Tick call,
// grounded on the teacher's Profiler.Counts[name] accessor pattern
// (mod_vox_rt.go's Counter method) adapted into a plain returned struct
// instead of a global profiler.
type CumulativeStats struct {
	TotalJobsIssued      int
	TotalBlocksUpdated   int
	TotalInvariantFaults int
}

// Coordinator is the terrain coordinator (C5). It runs on a single
// caller thread (spec section 5); all exported methods except Tick are
// cheap synchronous bookkeeping, and Tick drives the job pool to
// quiescence.
type Coordinator struct {
	mu     sync.Mutex
	cfg    voxlit.EngineConfig
	shim   materials.Shim
	pool   *jobs.Pool
	logger voxlit.Logger

	blocks   map[light.Vec3i]*block
	pending  map[light.Vec3i][]light.Seed
	inFlight map[light.Vec3i]bool

	defaultLight byte
	defaultType  byte

	cumulative CumulativeStats
}

// NewCoordinator builds a Coordinator over a fresh job pool sized per
// cfg. The caller owns the Coordinator's lifetime and must call Close
// when done with it.
func NewCoordinator(cfg voxlit.EngineConfig, shim materials.Shim, logger voxlit.Logger) *Coordinator {
	logger = voxlit.OrNop(logger)
	drainInterval := time.Duration(cfg.DrainIntervalMillis) * time.Millisecond
	return &Coordinator{
		cfg:    cfg,
		shim:   shim,
		logger: logger,
		pool: jobs.NewPool(cfg.WorkerCount, cfg.BlockSize(), cfg.HaloPadding, shim, logger,
			cfg.MaxJobsPerWake*2, cfg.MaxJobsPerWake*2, cfg.MaxJobsPerWake, drainInterval),
		blocks:   make(map[light.Vec3i]*block),
		pending:  make(map[light.Vec3i][]light.Seed),
		inFlight: make(map[light.Vec3i]bool),
	}
}

// Close shuts down the underlying job pool (spec section 5: drain
// outputs before destroying the pool).
func (c *Coordinator) Close() {
	c.pool.Close()
}

// LoadBlock brings a block into the coordinator's storage with the
// given voxel-type channel (S^3, persisted layout) and all-zero light
// (spec section 3's lifecycle: "created on first voxel access with
// default nibbles = 0"). Any seeds already pending for this block
// (spill events that arrived before the block loaded) stay in the
// pending map and are replayed by the next Tick.
func (c *Coordinator) LoadBlock(pos light.Vec3i, typeBytes []byte) error {
	size := c.cfg.BlockSize()
	if len(typeBytes) != size*size*size {
		return voxlit.NewError(voxlit.KindInvalidPosition, "block %v: type channel must be %d bytes, got %d", pos, size*size*size, len(typeBytes))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[pos] = &block{
		lightBytes: make([]byte, size*size*size),
		typeBytes:  append([]byte(nil), typeBytes...),
		state:      StateIdle,
	}
	if len(c.pending[pos]) > 0 {
		c.blocks[pos].state = StateLightDirty
	}
	return nil
}

// Unload drops a block's storage and any seeds still pending for it
// (spec section 3: "destroyed only when evicted by the host"), mirroring
// the teacher's updateWorldStreaming eviction of distant regions.
func (c *Coordinator) Unload(pos light.Vec3i) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blocks, pos)
	delete(c.pending, pos)
	delete(c.inFlight, pos)
}

// SetDefaultNeighbor sets the nibble pair used for a not-yet-loaded
// neighbor's halo contribution (spec section 4.5: "using channel default
// values for absent neighbors"). Defaults to 0/0 if never called.
func (c *Coordinator) SetDefaultNeighbor(lightByte, typeByte byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultLight = lightByte
	c.defaultType = typeByte
}

func (c *Coordinator) blockSize() int { return c.cfg.BlockSize() }

// splitWorld maps a world position to its owning block position and the
// block-local position within it (spec section 3: "world position =
// block_position * S + local_position"), using a floor division so
// negative world coordinates still land in [0, S).
func (c *Coordinator) splitWorld(p light.Vec3i) (blockPos, local light.Vec3i) {
	S := c.blockSize()
	bx, lx := floorDivMod(p.X, S)
	by, ly := floorDivMod(p.Y, S)
	bz, lz := floorDivMod(p.Z, S)
	return light.Vec3i{X: bx, Y: by, Z: bz}, light.Vec3i{X: lx, Y: ly, Z: lz}
}

func floorDivMod(a, b int) (q, r int) {
	q = a / b
	r = a % b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// SetVoxelArtificial schedules a seed on the artificial channel for one
// world position (spec section 6).
func (c *Coordinator) SetVoxelArtificial(worldPos light.Vec3i, value uint8) error {
	return c.setVoxel(light.Artificial, worldPos, value)
}

// SetVoxelNatural schedules a seed on the natural channel for one world
// position (spec section 6).
func (c *Coordinator) SetVoxelNatural(worldPos light.Vec3i, value uint8) error {
	return c.setVoxel(light.Natural, worldPos, value)
}

func (c *Coordinator) setVoxel(ch light.Channel, worldPos light.Vec3i, value uint8) error {
	if value > light.MaxLevel {
		return voxlit.NewError(voxlit.KindInvalidPosition, "value %d exceeds max level %d", value, light.MaxLevel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleSeedLocked(ch, worldPos, value)
	return nil
}

// SetVoxelArtificialBatch schedules seeds for a batch of edits on the
// artificial channel in one call, avoiding repeated locking for bulk
// edits (explosions, structure placement).
func (c *Coordinator) SetVoxelArtificialBatch(edits []Edit) error {
	return c.setVoxelBatch(light.Artificial, edits)
}

// SetVoxelNaturalBatch is SetVoxelArtificialBatch for the natural
// channel.
func (c *Coordinator) SetVoxelNaturalBatch(edits []Edit) error {
	return c.setVoxelBatch(light.Natural, edits)
}

func (c *Coordinator) setVoxelBatch(ch light.Channel, edits []Edit) error {
	for _, e := range edits {
		if e.Value > light.MaxLevel {
			return voxlit.NewError(voxlit.KindInvalidPosition, "value %d exceeds max level %d at %v", e.Value, light.MaxLevel, e.WorldPos)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range edits {
		c.scheduleSeedLocked(ch, e.WorldPos, e.Value)
	}
	return nil
}

// scheduleSeedLocked appends a seed to the pending map and marks the
// block LightDirty if it isn't already LightSent (spec section 3: "has
// a pending non-empty seed batch"). Caller must hold c.mu.
func (c *Coordinator) scheduleSeedLocked(ch light.Channel, worldPos light.Vec3i, value uint8) {
	bp, local := c.splitWorld(worldPos)
	c.pending[bp] = append(c.pending[bp], light.Seed{Channel: ch, NewValue: value, Local: local})
	if b, ok := c.blocks[bp]; ok && b.state != StateLightSent {
		b.state = StateLightDirty
	}
}

// GetLightByte returns the current packed nibble pair at worldPos, or
// zero if the owning block isn't loaded (spec section 6).
func (c *Coordinator) GetLightByte(worldPos light.Vec3i) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	bp, local := c.splitWorld(worldPos)
	b, ok := c.blocks[bp]
	if !ok {
		return 0
	}
	return b.lightBytes[light.IndexLocal(c.blockSize(), local)]
}

// CumulativeStats returns the running totals across every Tick call so
// far.
func (c *Coordinator) CumulativeStats() CumulativeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulative
}
