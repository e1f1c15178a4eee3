package decode

import (
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/layerpaper/layerpaper/internal/config"
)

// Job asks for one file decoded and scaled toward one output's buffer size.
// Seq is the output's monotonically increasing selection counter; the
// consumer uses it to discard results that lost a race with a newer
// selection.
type Job struct {
	Output uint32
	Seq    uint64
	Path   string
	Mode   config.Mode
	Width  int
	Height int
}

// Result is a completed Job. Either Image is set or Err explains the decode
// failure. ImageWidth/ImageHeight are the dimensions before scaling.
type Result struct {
	Job         Job
	Image       *image.RGBA
	ImageWidth  int
	ImageHeight int
	Err         error
}

// Pool runs decode jobs on a bounded set of workers and hands results back
// through a channel; workers never touch GPU handles or registry state.
type Pool struct {
	dec     Decoder
	jobs    chan Job
	results chan Result

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts workers goroutines, defaulting to the available hardware
// parallelism.
func NewPool(workers int, dec Decoder) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if dec == nil {
		dec = StdDecoder{}
	}

	p := &Pool{
		dec:     dec,
		jobs:    make(chan Job, 4*workers),
		results: make(chan Result, 4*workers),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a job without blocking the caller. A full queue is
// reported as an error; the caller keeps its current wallpaper.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("decode queue full, dropping job for output %d", job.Output)
	}
}

// Results delivers completed jobs. Jobs for the same output may complete out
// of submission order; callers resolve ordering by Seq, not arrival.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs and, once in-flight work drains, closes the
// results channel.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
		go func() {
			p.wg.Wait()
			close(p.results)
		}()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.results <- p.run(job)
	}
}

func (p *Pool) run(job Job) Result {
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return Result{Job: job, Err: fmt.Errorf("reading %s: %w", job.Path, err)}
	}

	img, err := p.dec.Decode(data)
	if err != nil {
		return Result{Job: job, Err: fmt.Errorf("decoding %s: %w", job.Path, err)}
	}

	bounds := img.Bounds()
	scaled := scaleForMode(img, job.Mode, job.Width, job.Height)

	log.Debugf("decoded %s (%dx%d) for output %d seq %d",
		job.Path, bounds.Dx(), bounds.Dy(), job.Output, job.Seq)

	return Result{
		Job:         job,
		Image:       toRGBA(scaled),
		ImageWidth:  bounds.Dx(),
		ImageHeight: bounds.Dy(),
	}
}
