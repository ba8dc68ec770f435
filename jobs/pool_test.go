package jobs

import (
	"testing"
	"time"

	"github.com/voxlit/voxlit/light"
)

type allTransparent struct{}

func (allTransparent) IsTransparent(uint8) (bool, error) { return true, nil }

const poolTestSize = 16

func blankInput(pos light.Vec3i, seeds []light.Seed) light.ProcessInput {
	n := poolTestSize * poolTestSize * poolTestSize
	return light.ProcessInput{
		BlockPos: pos,
		OwnLight: make([]byte, n),
		OwnType:  make([]byte, n),
		Seeds:    seeds,
	}
}

func TestPool_PushPop(t *testing.T) {
	pool := NewPool(2, poolTestSize, 1, allTransparent{}, nil, 4, 4, 4, 20*time.Millisecond)
	defer pool.Close()

	job := NewJob(blankInput(light.Vec3i{0, 0, 0}, []light.Seed{
		{Channel: light.Artificial, NewValue: 15, Local: light.Vec3i{0, 0, 0}},
	}), 0)
	pool.Push(job)

	var got *Result
	deadline := time.Now().Add(2 * time.Second)
	for got == nil && time.Now().Before(deadline) {
		for _, r := range pool.Pop() {
			r := r
			got = &r
		}
		if got == nil {
			time.Sleep(time.Millisecond)
		}
	}
	if got == nil {
		t.Fatalf("timed out waiting for job result")
	}
	if got.JobID != job.ID {
		t.Errorf("result JobID = %s, want %s", got.JobID, job.ID)
	}
	if got.Err != nil {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if !got.Output.Changed {
		t.Errorf("expected Changed=true")
	}
}

func TestPool_ParallelDistinctBlocks(t *testing.T) {
	pool := NewPool(4, poolTestSize, 1, allTransparent{}, nil, 8, 8, 4, 20*time.Millisecond)
	defer pool.Close()

	const n = 6
	for i := 0; i < n; i++ {
		pos := light.Vec3i{X: i}
		pool.Push(NewJob(blankInput(pos, []light.Seed{
			{Channel: light.Artificial, NewValue: 10, Local: light.Vec3i{0, 0, 0}},
		}), 0))
	}

	seen := make(map[light.Vec3i]bool)
	deadline := time.Now().Add(3 * time.Second)
	for len(seen) < n && time.Now().Before(deadline) {
		for _, r := range pool.Pop() {
			if r.Err != nil {
				t.Fatalf("job error: %v", r.Err)
			}
			seen[r.BlockPos] = true
		}
		if len(seen) < n {
			time.Sleep(time.Millisecond)
		}
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct block results, want %d", len(seen), n)
	}
}

func TestPool_PopWaitUnblocksOnClose(t *testing.T) {
	pool := NewPool(1, poolTestSize, 1, allTransparent{}, nil, 1, 1, 1, 20*time.Millisecond)
	go pool.Close()

	if _, ok := pool.PopWait(); ok {
		// draining any stray result is fine; keep waiting for the close signal
		for {
			if _, ok := pool.PopWait(); !ok {
				return
			}
		}
	}
}
