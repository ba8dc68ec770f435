// Package jobs is the fixed-size light-propagation worker pool (C4): a
// bounded set of threads each owning a preallocated propagator, pulling
// from a shared input queue and publishing to a shared output queue
// (spec section 4.4). Grounded on the teacher's own background-work
// idiom in world.go (go loadRegion(...) feeding a mutex-guarded pending
// map that the caller drains on its own thread), generalized here into
// a proper channel-based pool since the spec requires a fixed thread
// count rather than one goroutine per load.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxlit/voxlit"
	"github.com/voxlit/voxlit/light"
	"github.com/voxlit/voxlit/materials"
)

// Job is one light-propagation unit of work for a single block.
type Job struct {
	ID    string
	Input light.ProcessInput
	LOD   int
}

// Result is a completed Job's output, or an error if the worker
// aborted it.
type Result struct {
	JobID    string
	BlockPos light.Vec3i
	Output   light.ProcessOutput
	Err      error
}

// NewJob stamps a Job with a fresh id, mirroring the teacher's
// mod_assets.go makeAssetId (uuid.NewString()) so the coordinator can
// correlate a submission with its eventual result even if the pool
// completes jobs out of submission order.
func NewJob(input light.ProcessInput, lod int) Job {
	return Job{ID: uuid.NewString(), Input: input, LOD: lod}
}

// Pool is the fixed W-worker thread pool from spec section 4.4. Jobs
// for distinct blocks run in parallel; the coordinator is responsible
// for not submitting two jobs for the same block concurrently (spec
// section 4.4: "jobs for the same block are serialized because the
// coordinator holds back subsequent submissions").
type Pool struct {
	logger voxlit.Logger
	input  chan Job
	output chan Result
	wg     sync.WaitGroup

	maxJobsPerWake int
	drainInterval  time.Duration

	closeOnce sync.Once
}

// NewPool starts `workers` goroutines, each with its own Propagator
// sized for (blockSize, haloPadding) and querying transparency through
// shim. inputBuffer and outputBuffer size the channels; 0 means
// unbuffered. maxJobsPerWake and drainInterval implement spec section
// 4.4's bounded-latency policy directly: every worker wakes at least
// once per drainInterval even if idle, and on any wake (channel receive
// or periodic tick) it batches up to maxJobsPerWake already-queued jobs
// before publishing results, rather than processing strictly one job
// per wake.
func NewPool(workers, blockSize, haloPadding int, shim materials.Shim, logger voxlit.Logger, inputBuffer, outputBuffer, maxJobsPerWake int, drainInterval time.Duration) *Pool {
	if maxJobsPerWake < 1 {
		maxJobsPerWake = 1
	}
	if drainInterval <= 0 {
		drainInterval = 500 * time.Millisecond
	}
	p := &Pool{
		logger:         voxlit.OrNop(logger),
		input:          make(chan Job, inputBuffer),
		output:         make(chan Result, outputBuffer),
		maxJobsPerWake: maxJobsPerWake,
		drainInterval:  drainInterval,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.workerLoop(light.NewPropagator(blockSize, haloPadding, shim))
	}
	return p
}

// workerLoop implements spec section 4.4's "wait -> take -> process_block
// -> publish" cooperative pull loop. A worker never suspends inside
// process_block; it only blocks waiting for the next job or the next
// periodic wake, and every wake drains a bounded batch (drainAndProcess)
// rather than a single job, satisfying the "workers batch up to M jobs
// per wake" policy with drainInterval as the bound on how long a queued
// job can wait before the next drain even if no new job arrives.
func (p *Pool) workerLoop(prop *light.Propagator) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-p.input:
			if !ok {
				return
			}
			p.drainAndProcess(&job, prop)
		case <-ticker.C:
			p.drainAndProcess(nil, prop)
		}
	}
}

// drainAndProcess processes first (if non-nil) plus up to
// maxJobsPerWake-1 further jobs already queued on the input channel —
// never blocking for jobs that aren't immediately available — then
// publishes every result in the batch.
func (p *Pool) drainAndProcess(first *Job, prop *light.Propagator) {
	batch := make([]Job, 0, p.maxJobsPerWake)
	if first != nil {
		batch = append(batch, *first)
	}

drain:
	for len(batch) < p.maxJobsPerWake {
		select {
		case job, ok := <-p.input:
			if !ok {
				break drain
			}
			batch = append(batch, job)
		default:
			break drain
		}
	}

	for _, job := range batch {
		result := p.processBlock(job, prop)
		p.logger.JobCompleted(fmt.Sprintf("%v", job.Input.BlockPos), job.ID, result.Output.Changed, len(result.Output.Spills))
		p.output <- result
	}
}

// processBlock recovers from any panic in the propagator, surfacing it
// as a fatal InternalInvariant error — spec section 7: "All worker
// exceptions are fatal for the worker and must be surfaced to the
// coordinator."
func (p *Pool) processBlock(job Job, prop *light.Propagator) (result Result) {
	result.JobID = job.ID
	result.BlockPos = job.Input.BlockPos
	defer func() {
		if r := recover(); r != nil {
			result.Err = voxlit.NewError(voxlit.KindInternalInvariant, "worker panic processing block %v: %v", job.Input.BlockPos, r)
		}
	}()
	out, err := prop.Process(job.Input)
	if err != nil {
		result.Err = err
		return result
	}
	result.Output = out
	return result
}

// Push enqueues one light job (spec section 4.4). Blocks if the input
// channel is full and unbuffered/saturated — callers that need strict
// non-blocking submission should size inputBuffer generously at
// construction.
func (p *Pool) Push(j Job) {
	p.logger.JobDispatched(fmt.Sprintf("%v", j.Input.BlockPos), j.ID, len(j.Input.Seeds))
	p.input <- j
}

// Pop performs a non-blocking drain of every job that has completed so
// far (spec section 4.4).
func (p *Pool) Pop() []Result {
	var out []Result
	for {
		select {
		case r := <-p.output:
			out = append(out, r)
		default:
			return out
		}
	}
}

// PopWait blocks until at least one result is available or the pool is
// closed, returning ok=false in the latter case. The coordinator uses
// this for the "may block briefly when draining outputs" allowance in
// spec section 5 when it has no further work to submit but jobs remain
// in flight.
func (p *Pool) PopWait() (Result, bool) {
	r, ok := <-p.output
	return r, ok
}

// Close stops accepting new jobs, waits for every in-flight job to
// finish (spec section 5: "the coordinator drains outputs on shutdown
// before destroying the pool"), and closes the output channel.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.input)
		p.wg.Wait()
		close(p.output)
	})
}

func (j Job) String() string {
	return fmt.Sprintf("Job{%s block=%v seeds=%d}", j.ID, j.Input.BlockPos, len(j.Input.Seeds))
}
