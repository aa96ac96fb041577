package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiobridge/api/internal/model"
)

func succeededJob(outputs map[string]string) *Job {
	job := newJob("job-1", model.JobKindSeparation, map[string]string{}, time.Minute)
	job.State = model.JobStateSucceeded
	job.Outputs = outputs
	return job
}

func TestFetcher_SavesAllOutputs(t *testing.T) {
	dir := t.TempDir()
	f := &Fetcher{Backend: "Test", Dir: dir}
	job := succeededJob(map[string]string{"vocals": "vocals", "instrumental": "instrumental"})

	dl := func(ctx context.Context, job *Job, name string, w io.Writer) error {
		_, err := w.Write([]byte("audio-" + name))
		return err
	}

	saved, err := f.Fetch(context.Background(), job, "uvr5", "wav", dl)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved files, got %d", len(saved))
	}
	for name, path := range saved {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("saved file unreadable: %v", err)
		}
		if string(data) != "audio-"+name {
			t.Errorf("unexpected content for %s: %q", name, data)
		}
		if filepath.Ext(path) != ".wav" {
			t.Errorf("expected .wav extension, got %s", path)
		}
		if !strings.HasPrefix(filepath.Base(path), "uvr5_") {
			t.Errorf("expected uvr5_ prefix, got %s", filepath.Base(path))
		}
	}
}

func TestFetcher_PartialFailureEnumerated(t *testing.T) {
	dir := t.TempDir()
	f := &Fetcher{Backend: "Test", Dir: dir}
	job := succeededJob(map[string]string{"vocals": "vocals", "drums": "drums", "bass": "bass"})

	dl := func(ctx context.Context, job *Job, name string, w io.Writer) error {
		if name == "drums" {
			return fmt.Errorf("download interrupted")
		}
		_, err := w.Write([]byte("ok"))
		return err
	}

	saved, err := f.Fetch(context.Background(), job, "uvr5", "wav", dl)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if len(fetchErr.Succeeded) != 2 || len(fetchErr.Failed) != 1 {
		t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", len(fetchErr.Succeeded), len(fetchErr.Failed))
	}
	if !strings.Contains(fetchErr.Failed["drums"], "download interrupted") {
		t.Errorf("expected failure reason recorded, got %q", fetchErr.Failed["drums"])
	}
	// Partial results are still returned.
	if len(saved) != 2 {
		t.Errorf("expected 2 saved paths returned, got %d", len(saved))
	}
	// The failed output must not leave a partial file behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected 2 files on disk, got %d", len(entries))
	}
}

func TestFetcher_RejectsNonSucceededJob(t *testing.T) {
	f := &Fetcher{Backend: "Test", Dir: t.TempDir()}
	job := newJob("job-1", model.JobKindSeparation, map[string]string{}, time.Minute)
	job.State = model.JobStateRunning

	dl := func(ctx context.Context, job *Job, name string, w io.Writer) error { return nil }
	if _, err := f.Fetch(context.Background(), job, "uvr5", "wav", dl); err == nil {
		t.Fatal("expected error when fetching a non-succeeded job")
	}
}

func TestFetcher_UsesOutputNameExtension(t *testing.T) {
	dir := t.TempDir()
	f := &Fetcher{Backend: "Test", Dir: dir}
	job := succeededJob(map[string]string{"out.flac": "filename=out.flac"})

	dl := func(ctx context.Context, job *Job, name string, w io.Writer) error {
		_, err := w.Write([]byte("flac"))
		return err
	}

	saved, err := f.Fetch(context.Background(), job, "comfyui", "bin", dl)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Ext(saved["out.flac"]) != ".flac" {
		t.Errorf("expected extension from output name, got %s", saved["out.flac"])
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "Hello_World"},
		{"vocals (lead) #2!", "vocals_lead_2"},
		{strings.Repeat("a", 50), strings.Repeat("a", 30)},
		{"---  spaced -- out ---", "spaced_out"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAllocateOutputPath_ResolvesCollisions(t *testing.T) {
	dir := t.TempDir()

	first, err := allocateOutputPath(dir, "uvr5", "vocals", "wav")
	if err != nil {
		t.Fatalf("allocateOutputPath failed: %v", err)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create first file: %v", err)
	}

	second, err := allocateOutputPath(dir, "uvr5", "vocals", "wav")
	if err != nil {
		t.Fatalf("allocateOutputPath failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected collision-resolved path, got same path %s", second)
	}
	// When both allocations land in the same timestamp second, the second
	// path must carry the counter suffix.
	if strings.TrimSuffix(first, ".wav") == strings.TrimSuffix(second, "_2.wav") && !strings.HasSuffix(second, "_2.wav") {
		t.Errorf("expected _2 suffix on colliding path, got %s", second)
	}
}
