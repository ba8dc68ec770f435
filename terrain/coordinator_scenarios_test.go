package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlit/voxlit"
	"github.com/voxlit/voxlit/light"
	"github.com/voxlit/voxlit/materials"
)

// newScenarioCoordinator builds a Coordinator over an 8-voxel block with
// voxel type 0 registered transparent and type 1 opaque, matching the
// fixtures used throughout the end-to-end scenarios.
func newScenarioCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := testConfig()
	reg := materials.NewRegistry(map[uint8]bool{0: true, 1: false})
	c := NewCoordinator(cfg, reg, voxlit.NewNopLogger())
	t.Cleanup(c.Close)
	return c
}

func loadEmptyBlock(t *testing.T, c *Coordinator, bp light.Vec3i) {
	t.Helper()
	require.NoError(t, c.LoadBlock(bp, blankTypeBytes(c.cfg)))
}

// TestScenario_SingleTorch is E1: placing a single artificial-light
// source inside one loaded block keeps its full value and lights its
// neighbor one level dimmer.
func TestScenario_SingleTorch(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 4, Y: 4, Z: 4}, 15))
	stats, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BlocksUpdated)
	assert.True(t, stats.HasTouchedBounds)

	center := light.GetArtificial(c.GetLightByte(light.Vec3i{X: 4, Y: 4, Z: 4}))
	assert.EqualValues(t, 15, center)

	neighbor := light.GetArtificial(c.GetLightByte(light.Vec3i{X: 5, Y: 4, Z: 4}))
	assert.EqualValues(t, 14, neighbor)
}

// TestScenario_RemoveTorch is E2: removing a previously placed torch
// drives the artificial channel back to zero at the source.
func TestScenario_RemoveTorch(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	pos := light.Vec3i{X: 4, Y: 4, Z: 4}
	require.NoError(t, c.SetVoxelArtificial(pos, 15))
	_, err := c.Tick()
	require.NoError(t, err)

	require.NoError(t, c.SetVoxelArtificial(pos, 0))
	_, err = c.Tick()
	require.NoError(t, err)

	assert.EqualValues(t, 0, light.GetArtificial(c.GetLightByte(pos)))
	assert.EqualValues(t, 0, light.GetArtificial(c.GetLightByte(light.Vec3i{X: 5, Y: 4, Z: 4})))
}

// TestScenario_TwoTorchesOverlap is E3: two torches at different
// brightness leave the brighter value standing where their floods
// overlap.
func TestScenario_TwoTorchesOverlap(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 1, Y: 4, Z: 4}, 10))
	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 6, Y: 4, Z: 4}, 15))
	_, err := c.Tick()
	require.NoError(t, err)

	mid := light.GetArtificial(c.GetLightByte(light.Vec3i{X: 4, Y: 4, Z: 4}))
	assert.EqualValues(t, 13, mid) // from the value-15 torch, 2 cells away
}

// TestScenario_OpaqueWallBlocksFlood is E4: an opaque voxel stops the
// flood from crossing it.
func TestScenario_OpaqueWallBlocksFlood(t *testing.T) {
	c := newScenarioCoordinator(t)
	S := c.cfg.BlockSize()
	typeBytes := make([]byte, S*S*S)
	wallX := 4
	for y := 0; y < S; y++ {
		for z := 0; z < S; z++ {
			typeBytes[light.IndexLocal(S, light.Vec3i{X: wallX, Y: y, Z: z})] = 1
		}
	}
	require.NoError(t, c.LoadBlock(light.Vec3i{}, typeBytes))

	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 1, Y: 4, Z: 4}, 15))
	_, err := c.Tick()
	require.NoError(t, err)

	beyondWall := light.GetArtificial(c.GetLightByte(light.Vec3i{X: 6, Y: 4, Z: 4}))
	assert.EqualValues(t, 0, beyondWall)
}

// TestScenario_RemoveOneOfTwoTorches is E5: removing one of two
// overlapping torches leaves the other torch's flood intact.
func TestScenario_RemoveOneOfTwoTorches(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	dim := light.Vec3i{X: 1, Y: 4, Z: 4}
	bright := light.Vec3i{X: 6, Y: 4, Z: 4}
	require.NoError(t, c.SetVoxelArtificial(dim, 10))
	require.NoError(t, c.SetVoxelArtificial(bright, 15))
	_, err := c.Tick()
	require.NoError(t, err)

	require.NoError(t, c.SetVoxelArtificial(dim, 0))
	_, err = c.Tick()
	require.NoError(t, err)

	assert.EqualValues(t, 15, light.GetArtificial(c.GetLightByte(bright)))
	assert.EqualValues(t, 14, light.GetArtificial(c.GetLightByte(light.Vec3i{X: 5, Y: 4, Z: 4})))
}

// TestScenario_CrossBlockSpillAdd is E6: a torch near a block boundary
// spills into the adjacent loaded block once ticked.
func TestScenario_CrossBlockSpillAdd(t *testing.T) {
	c := newScenarioCoordinator(t)
	left := light.Vec3i{X: 0, Y: 0, Z: 0}
	right := light.Vec3i{X: 1, Y: 0, Z: 0}
	loadEmptyBlock(t, c, left)
	loadEmptyBlock(t, c, right)

	S := c.cfg.BlockSize()
	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: S - 1, Y: 4, Z: 4}, 15))

	var stats TickStats
	var err error
	for i := 0; i < 4; i++ {
		stats, err = c.Tick()
		require.NoError(t, err)
		if stats.SpillEventsRouted == 0 && i > 0 {
			break
		}
	}

	spilled := light.GetArtificial(c.GetLightByte(light.Vec3i{X: S, Y: 4, Z: 4}))
	assert.EqualValues(t, 14, spilled)
}

// TestScenario_CrossBlockSpillRemove extends E6 to the removal side:
// once the source torch is cleared, the spilled brightness in the
// neighboring block must flood back out too.
func TestScenario_CrossBlockSpillRemove(t *testing.T) {
	c := newScenarioCoordinator(t)
	left := light.Vec3i{X: 0, Y: 0, Z: 0}
	right := light.Vec3i{X: 1, Y: 0, Z: 0}
	loadEmptyBlock(t, c, left)
	loadEmptyBlock(t, c, right)

	S := c.cfg.BlockSize()
	source := light.Vec3i{X: S - 1, Y: 4, Z: 4}
	require.NoError(t, c.SetVoxelArtificial(source, 15))
	for i := 0; i < 4; i++ {
		_, err := c.Tick()
		require.NoError(t, err)
	}
	require.NotZero(t, light.GetArtificial(c.GetLightByte(light.Vec3i{X: S, Y: 4, Z: 4})))

	require.NoError(t, c.SetVoxelArtificial(source, 0))
	for i := 0; i < 4; i++ {
		_, err := c.Tick()
		require.NoError(t, err)
	}

	assert.EqualValues(t, 0, light.GetArtificial(c.GetLightByte(light.Vec3i{X: S, Y: 4, Z: 4})))
}

// TestScenario_ChannelsIndependent is P6 at coordinator scope: setting
// natural light does not perturb the artificial channel and vice
// versa.
func TestScenario_ChannelsIndependent(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})
	pos := light.Vec3i{X: 4, Y: 4, Z: 4}

	require.NoError(t, c.SetVoxelArtificial(pos, 12))
	require.NoError(t, c.SetVoxelNatural(pos, 9))
	_, err := c.Tick()
	require.NoError(t, err)

	assert.EqualValues(t, 12, light.GetArtificial(c.GetLightByte(pos)))
	assert.EqualValues(t, 9, light.GetNatural(c.GetLightByte(pos)))
}

// TestScenario_BatchEditsAppliedTogether exercises SetVoxelArtificialBatch
// with two torches placed in one call.
func TestScenario_BatchEditsAppliedTogether(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	edits := []Edit{
		{WorldPos: light.Vec3i{X: 1, Y: 1, Z: 1}, Value: 8},
		{WorldPos: light.Vec3i{X: 6, Y: 6, Z: 6}, Value: 8},
	}
	require.NoError(t, c.SetVoxelArtificialBatch(edits))
	stats, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BlocksUpdated)

	assert.EqualValues(t, 8, light.GetArtificial(c.GetLightByte(edits[0].WorldPos)))
	assert.EqualValues(t, 8, light.GetArtificial(c.GetLightByte(edits[1].WorldPos)))
}

// snapshotBlock reads every byte of a loaded block's light channel back
// through the public GetLightByte API, for whole-field comparisons the
// point-value scenario assertions above don't need.
func snapshotBlock(t *testing.T, c *Coordinator, bp light.Vec3i) []byte {
	t.Helper()
	S := c.cfg.BlockSize()
	out := make([]byte, S*S*S)
	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			for y := 0; y < S; y++ {
				local := light.Vec3i{X: x, Y: y, Z: z}
				world := bp.Scale(S).Add(local)
				out[light.IndexLocal(S, local)] = c.GetLightByte(world)
			}
		}
	}
	return out
}

// TestScenario_Idempotence is P3: setting an emitter to the same value
// and ticking twice in a row leaves the field exactly where a single
// set/tick left it.
func TestScenario_Idempotence(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})
	pos := light.Vec3i{X: 4, Y: 4, Z: 4}

	require.NoError(t, c.SetVoxelArtificial(pos, 12))
	_, err := c.Tick()
	require.NoError(t, err)
	once := snapshotBlock(t, c, light.Vec3i{})

	require.NoError(t, c.SetVoxelArtificial(pos, 12))
	_, err = c.Tick()
	require.NoError(t, err)
	require.NoError(t, c.SetVoxelArtificial(pos, 12))
	_, err = c.Tick()
	require.NoError(t, err)
	twice := snapshotBlock(t, c, light.Vec3i{})

	assert.Equal(t, once, twice)
}

// TestScenario_RemovalReversibilityCrossBlock is P4 exercised across a
// block boundary, not just within one block: after a torch near the
// boundary has spilled into the neighbor and reached quiescence,
// removing it and re-ticking to quiescence again must drive every voxel
// in both blocks back to all-zero, including the spilled brightness in
// the neighbor.
func TestScenario_RemovalReversibilityCrossBlock(t *testing.T) {
	c := newScenarioCoordinator(t)
	left := light.Vec3i{X: 0, Y: 0, Z: 0}
	right := light.Vec3i{X: 1, Y: 0, Z: 0}
	loadEmptyBlock(t, c, left)
	loadEmptyBlock(t, c, right)

	S := c.cfg.BlockSize()
	source := light.Vec3i{X: S - 1, Y: 4, Z: 4}
	require.NoError(t, c.SetVoxelArtificial(source, 15))
	for i := 0; i < 6; i++ {
		_, err := c.Tick()
		require.NoError(t, err)
	}
	require.NotZero(t, light.GetArtificial(c.GetLightByte(light.Vec3i{X: S, Y: 4, Z: 4})))

	require.NoError(t, c.SetVoxelArtificial(source, 0))
	for i := 0; i < 6; i++ {
		_, err := c.Tick()
		require.NoError(t, err)
	}

	for _, bp := range []light.Vec3i{left, right} {
		for _, v := range snapshotBlock(t, c, bp) {
			assert.EqualValuesf(t, 0, light.GetArtificial(v), "block %v left non-zero artificial light after full removal", bp)
		}
	}
}

func TestScenario_CumulativeStatsAccumulate(t *testing.T) {
	c := newScenarioCoordinator(t)
	loadEmptyBlock(t, c, light.Vec3i{})

	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 2, Y: 2, Z: 2}, 15))
	_, err := c.Tick()
	require.NoError(t, err)

	require.NoError(t, c.SetVoxelArtificial(light.Vec3i{X: 2, Y: 2, Z: 2}, 0))
	_, err = c.Tick()
	require.NoError(t, err)

	cum := c.CumulativeStats()
	assert.GreaterOrEqual(t, cum.TotalJobsIssued, 2)
	assert.GreaterOrEqual(t, cum.TotalBlocksUpdated, 2)
}
