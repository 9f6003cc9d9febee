package dropfolder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stemboard/core/apperr"
	"stemboard/core/media"
	"stemboard/model"
)

type recordingUploader struct {
	mu    sync.Mutex
	files []media.File
	data  map[string][]byte
	err   error
	queue []error // returned once each, before err
}

func (u *recordingUploader) UploadAsset(_ context.Context, f media.File) (*model.Asset, error) {
	body, _ := io.ReadAll(f.Body)
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) > 0 {
		err := u.queue[0]
		u.queue = u.queue[1:]
		return nil, err
	}
	if u.err != nil {
		return nil, u.err
	}
	if u.data == nil {
		u.data = make(map[string][]byte)
	}
	u.files = append(u.files, f)
	u.data[f.Name] = body
	return &model.Asset{ID: "asset-" + f.Name, Name: f.Name}, nil
}

type uploadResult struct {
	path string
	err  error
}

func startWatcher(t *testing.T, dir string, up Uploader, opts ...Option) <-chan uploadResult {
	t.Helper()
	results := make(chan uploadResult, 16)
	opts = append(opts, WithSettle(20*time.Millisecond), WithUploadHook(func(path string, _ *model.Asset, err error) {
		results <- uploadResult{path, err}
	}))
	w := New(dir, up, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	// give fsnotify a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	return results
}

func waitResult(t *testing.T, results <-chan uploadResult) uploadResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upload")
		return uploadResult{}
	}
}

func TestUploadsNewAudioFiles(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	results := startWatcher(t, dir, up)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".take.mp3"), []byte("hidden"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "take one.mp3"), []byte("ID3 audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := waitResult(t, results)
	if r.err != nil || filepath.Base(r.path) != "take one.mp3" {
		t.Fatalf("unexpected result %+v", r)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.files) != 1 {
		t.Fatalf("expected one upload, got %d", len(up.files))
	}
	f := up.files[0]
	if f.ContentType != "audio/mpeg" || f.Size != int64(len("ID3 audio")) {
		t.Fatalf("unexpected file %+v", f)
	}
	if string(up.data["take one.mp3"]) != "ID3 audio" {
		t.Fatalf("body = %q", up.data["take one.mp3"])
	}
}

func TestExistingFilesAreUploadedWhenRequested(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".bass.wav", "bass.wav.part", "bass.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	up := &recordingUploader{}
	results := startWatcher(t, dir, up, WithExisting())

	r := waitResult(t, results)
	if filepath.Base(r.path) != "bass.wav" || r.err != nil {
		t.Fatalf("unexpected result %+v", r)
	}
	select {
	case extra := <-results:
		t.Fatalf("hidden or partial file uploaded: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.files) != 1 {
		t.Fatalf("expected one upload, got %d", len(up.files))
	}
}

func TestHiddenNames(t *testing.T) {
	cases := map[string]bool{
		"/drop/.take.mp3":           true,
		"/drop/take.mp3.part":       true,
		"/drop/take.mp3.crdownload": true,
		"/drop/take.mp3":            false,
		"/drop/.cache/take.mp3":     false,
	}
	for path, want := range cases {
		if got := hidden(path); got != want {
			t.Errorf("hidden(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRateLimitedUploadIsRetried(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{queue: []error{apperr.RateLimited("upload", "slow down")}}
	results := startWatcher(t, dir, up)

	if err := os.WriteFile(filepath.Join(dir, "keys.ogg"), []byte("OggS"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := waitResult(t, results); !errors.Is(r.err, apperr.ErrRateLimited) {
		t.Fatalf("first attempt should be throttled, got %+v", r)
	}
	if r := waitResult(t, results); r.err != nil || filepath.Base(r.path) != "keys.ogg" {
		t.Fatalf("retry should succeed, got %+v", r)
	}
}

func TestFailedUploadIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{err: errors.New("boom")}
	results := startWatcher(t, dir, up)

	if err := os.WriteFile(filepath.Join(dir, "pad.aiff"), []byte("FORM"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitResult(t, results)
	select {
	case r := <-results:
		t.Fatalf("unexpected second attempt %+v", r)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestUploadErrorsAreReported(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{err: errors.New("boom")}
	results := startWatcher(t, dir, up)

	if err := os.WriteFile(filepath.Join(dir, "mix.flac"), []byte("fLaC"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := waitResult(t, results); r.err == nil {
		t.Fatal("expected the upload error to be reported")
	}
}

func TestRunFailsForMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), &recordingUploader{})
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
