package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/audiobridge/api/internal/model"
	"github.com/audiobridge/api/internal/telemetry"
)

// OutputDownloader streams one named output of a job to w.
type OutputDownloader func(ctx context.Context, job *Job, name string, w io.Writer) error

// Fetcher realizes the outputs of a succeeded job as local files. Each output
// is streamed to disk rather than buffered. File names are deterministic and
// collision-avoiding.
type Fetcher struct {
	Backend string
	Dir     string
}

// Fetch downloads every declared output of the job into the fetcher's
// directory and returns the local path per output name. If any output fails
// the saved paths are still returned, together with a FetchError enumerating
// which outputs succeeded and which failed. Partial success is never silent.
// defaultExt is used for outputs whose logical name carries no extension.
func (f *Fetcher) Fetch(ctx context.Context, job *Job, prefix, defaultExt string, dl OutputDownloader) (map[string]string, error) {
	if job.State != model.JobStateSucceeded {
		return nil, fmt.Errorf("cannot fetch outputs of job %s in state %s", job.ID, job.State)
	}

	names := make([]string, 0, len(job.Outputs))
	for name := range job.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make(map[string]string, len(names))
	failed := make(map[string]string)

	for _, name := range names {
		path, err := f.saveOutput(ctx, job, prefix, name, defaultExt, dl)
		if err != nil {
			log.Printf("[%s] Fetch (job=%s) output %q failed: %v", f.Backend, job.ID, name, err)
			failed[name] = err.Error()
			continue
		}
		log.Printf("[%s] Fetch (job=%s) saved %q to %s", f.Backend, job.ID, name, path)
		telemetry.ArtifactsFetched.WithLabelValues(f.Backend).Inc()
		saved[name] = path
	}

	if len(failed) > 0 {
		return saved, &FetchError{JobID: job.ID, Succeeded: saved, Failed: failed}
	}
	return saved, nil
}

func (f *Fetcher) saveOutput(ctx context.Context, job *Job, prefix, name, defaultExt string, dl OutputDownloader) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	slug := name
	if ext != "" {
		slug = strings.TrimSuffix(name, "."+ext)
	} else {
		ext = defaultExt
	}

	path, err := allocateOutputPath(f.Dir, prefix, slug, ext)
	if err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := dl(ctx, job, name, file); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return path, nil
}
