package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"backend-railjourney/internal/artifact"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/track"
)

var ErrExportCanceled = errors.New("export canceled")

// FrameEncoder turns frames into the output format. Pixel rendering and
// muxing live behind this interface.
type FrameEncoder interface {
	Extension() string
	EncodeFrame(w io.Writer, f Frame) error
}

// JSONLinesEncoder writes one JSON frame descriptor per line, the manifest an
// external renderer consumes.
type JSONLinesEncoder struct{}

func (JSONLinesEncoder) Extension() string { return ".frames.jsonl" }

func (JSONLinesEncoder) EncodeFrame(w io.Writer, f Frame) error {
	return json.NewEncoder(w).Encode(f)
}

// ArtifactRecorder persists the final state of an export.
type ArtifactRecorder interface {
	Complete(ctx context.Context, id, path string, frames int) error
	Fail(ctx context.Context, id string, status artifact.Status, reason string) error
}

type Job struct {
	ID       string
	Samples  []track.Sample
	Events   []station.PassEvent
	Schedule Schedule
	// Progress is called after every encoded frame when set.
	Progress func(done, total int)
}

type Result struct {
	Path   string
	Frames int
}

type Exporter struct {
	Dir      string
	Encoder  FrameEncoder
	Recorder ArtifactRecorder
}

func NewExporter(dir string, enc FrameEncoder, rec ArtifactRecorder) *Exporter {
	if enc == nil {
		enc = JSONLinesEncoder{}
	}
	return &Exporter{Dir: dir, Encoder: enc, Recorder: rec}
}

// Export renders every frame of job. Cancellation is checked at each frame
// boundary; a canceled or failed export removes its partial file and the
// artifact is marked unusable.
func (e *Exporter) Export(ctx context.Context, job Job) (Result, error) {
	sorted := track.SortByTime(job.Samples)
	if len(sorted) == 0 {
		e.fail(ctx, job.ID, artifact.StatusFailed, ErrNoSamples.Error())
		return Result{}, ErrNoSamples
	}
	if err := job.Schedule.Validate(); err != nil {
		e.fail(ctx, job.ID, artifact.StatusFailed, err.Error())
		return Result{}, err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		e.fail(ctx, job.ID, artifact.StatusFailed, err.Error())
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	partial := filepath.Join(e.Dir, job.ID+".partial")
	final := filepath.Join(e.Dir, job.ID+e.Encoder.Extension())

	f, err := os.Create(partial)
	if err != nil {
		e.fail(ctx, job.ID, artifact.StatusFailed, err.Error())
		return Result{}, fmt.Errorf("create partial output: %w", err)
	}
	abort := func(status artifact.Status, cause error) error {
		_ = f.Close()
		if rmErr := os.Remove(partial); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("export %s: remove partial output: %v", job.ID, rmErr)
		}
		e.fail(ctx, job.ID, status, cause.Error())
		return cause
	}

	w := bufio.NewWriter(f)
	total := job.Schedule.FrameCount()
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return Result{}, abort(artifact.StatusCanceled, fmt.Errorf("%w at frame %d/%d", ErrExportCanceled, i, total))
		}
		frame, err := job.Schedule.Frame(sorted, job.Events, i)
		if err != nil {
			return Result{}, abort(artifact.StatusFailed, fmt.Errorf("frame %d: %w", i, err))
		}
		if err := e.Encoder.EncodeFrame(w, frame); err != nil {
			return Result{}, abort(artifact.StatusFailed, fmt.Errorf("encode frame %d: %w", i, err))
		}
		if job.Progress != nil {
			job.Progress(i+1, total)
		}
	}

	if err := w.Flush(); err != nil {
		return Result{}, abort(artifact.StatusFailed, fmt.Errorf("flush output: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(partial)
		e.fail(ctx, job.ID, artifact.StatusFailed, err.Error())
		return Result{}, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		e.fail(ctx, job.ID, artifact.StatusFailed, err.Error())
		return Result{}, fmt.Errorf("finalize output: %w", err)
	}

	if e.Recorder != nil {
		if err := e.Recorder.Complete(context.WithoutCancel(ctx), job.ID, final, total); err != nil {
			log.Printf("export %s: record completion: %v", job.ID, err)
		}
	}
	return Result{Path: final, Frames: total}, nil
}

func (e *Exporter) fail(ctx context.Context, id string, status artifact.Status, reason string) {
	if e.Recorder == nil {
		return
	}
	if err := e.Recorder.Fail(context.WithoutCancel(ctx), id, status, reason); err != nil {
		log.Printf("export %s: record %s: %v", id, status, err)
	}
}
