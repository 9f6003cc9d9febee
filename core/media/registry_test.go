package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"stemboard/core/apperr"
	"stemboard/model"
)

func TestRegistryUploadRequiresActiveWorkspace(t *testing.T) {
	backend := &stubBackend{}
	r := NewRegistry(backend)

	_, err := r.UploadAsset(context.Background(), audioFile("a.mp3", 10))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.callCount())
	}
}

func TestRegistryRejectsInvalidFilesWithoutBackendCalls(t *testing.T) {
	backend := &stubBackend{}
	r := NewRegistry(backend)
	ctx := context.Background()
	if _, err := r.Refresh(ctx, "ws-1"); err != nil {
		t.Fatal(err)
	}
	before := backend.callCount()

	bad := []File{
		{Name: "big.wav", ContentType: "audio/wav", Size: MaxUploadBytes + 1},
		{Name: "clip.mp4", ContentType: "video/mp4", Size: 1024},
		{Name: "notes.txt", ContentType: "text/plain", Size: 1},
	}
	for _, f := range bad {
		if _, err := r.UploadAsset(ctx, f); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", f.Name, err)
		}
	}
	if backend.callCount() != before {
		t.Fatalf("invalid files reached the backend: %d calls", backend.callCount()-before)
	}
	if r.IsUploading() {
		t.Fatal("rejected uploads must not set the uploading flag")
	}
}

func TestRegistryRefreshScopesToWorkspace(t *testing.T) {
	backend := &stubBackend{assets: []model.Asset{
		{ID: "a1", WorkspaceID: "ws-1", Name: "one"},
		{ID: "b1", WorkspaceID: "ws-2", Name: "other"},
		{ID: "a2", WorkspaceID: "ws-1", Name: "two", Stems: []model.Stem{{ID: "s1", AssetID: "a2"}}},
	}}
	r := NewRegistry(backend)

	got, err := r.Refresh(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got))
	}
	for _, a := range r.Assets() {
		if a.WorkspaceID != "ws-1" {
			t.Fatalf("asset %s from workspace %s leaked into ws-1", a.ID, a.WorkspaceID)
		}
		if a.Stems == nil {
			t.Fatalf("asset %s should have a non-nil stem list", a.ID)
		}
	}
}

func TestRegistryRefreshClearsOnFailure(t *testing.T) {
	backend := &stubBackend{assets: []model.Asset{{ID: "a1", WorkspaceID: "ws-1"}}}
	r := NewRegistry(backend)
	ctx := context.Background()
	if _, err := r.Refresh(ctx, "ws-1"); err != nil {
		t.Fatal(err)
	}

	backend.listErr = errors.New("network down")
	if _, err := r.Refresh(ctx, "ws-2"); err == nil {
		t.Fatal("expected refresh error")
	}
	if n := len(r.Assets()); n != 0 {
		t.Fatalf("stale assets kept after failure: %d", n)
	}
}

func TestRegistryIsUploadingIsAFlag(t *testing.T) {
	backend := &stubBackend{block: make(chan struct{}), started: make(chan struct{}, 2)}
	r := NewRegistry(backend)
	ctx := context.Background()
	_, _ = r.Refresh(ctx, "ws-1")

	done := make(chan struct{})
	go func() {
		_, _ = r.UploadAsset(ctx, audioFile("a.mp3", 10))
		done <- struct{}{}
	}()
	go func() {
		_, _ = r.UploadDerivedAsset(ctx, audioFile("s.mp3", 10), "asset-a.mp3")
		done <- struct{}{}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-backend.started:
		case <-time.After(time.Second):
			t.Fatal("upload did not start")
		}
	}
	if !r.IsUploading() {
		t.Fatal("expected uploading while calls are in flight")
	}

	// release one upload; the flag drops even though the other is still running
	backend.block <- struct{}{}
	<-done
	if r.IsUploading() {
		t.Fatal("flag should drop when the first upload finishes")
	}
	close(backend.block)
	<-done
}

func TestRegistryUploadDerivedAssetRequiresParent(t *testing.T) {
	backend := &stubBackend{}
	r := NewRegistry(backend)
	if _, err := r.UploadDerivedAsset(context.Background(), audioFile("s.mp3", 1), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Fatal("empty parent must not reach the backend")
	}
}

func TestRegistryUploadIdentitiesAreUnique(t *testing.T) {
	svc, _, _, _ := newTestService()
	r := NewRegistry(svc.ForUser(1))
	ctx := context.Background()
	_, _ = r.Refresh(ctx, "ws-1")

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		a, err := r.UploadAsset(ctx, audioFile("same.mp3", 64))
		if err != nil {
			t.Fatalf("UploadAsset: %v", err)
		}
		if seen[a.ID] {
			t.Fatalf("duplicate asset id %s", a.ID)
		}
		seen[a.ID] = true
		if len(a.Stems) != 0 {
			t.Fatal("new asset should have no stems")
		}
	}
	if n := len(r.Assets()); n != 5 {
		t.Fatalf("expected 5 local assets, got %d", n)
	}
}

func TestRegistryUploadThenStemScenario(t *testing.T) {
	svc, _, _, _ := newTestService()
	r := NewRegistry(svc.ForUser(1))
	ctx := context.Background()

	if _, err := r.Refresh(ctx, "ws-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.UploadAsset(ctx, audioFile("demo.mp3", 2<<20)); err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}

	assets, err := r.Refresh(ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].Name != "demo.mp3" || len(assets[0].Stems) != 0 {
		t.Fatalf("unexpected assets after upload: %+v", assets)
	}

	stem, err := r.UploadDerivedAsset(ctx, audioFile("bass.wav", 512), assets[0].ID)
	if err != nil {
		t.Fatalf("UploadDerivedAsset: %v", err)
	}
	local, ok := r.Find(assets[0].ID)
	if !ok || len(local.Stems) != 1 || local.Stems[0].ID != stem.ID {
		t.Fatalf("stem not appended locally: %+v", local)
	}

	assets, err = r.Refresh(ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || len(assets[0].Stems) != 1 {
		t.Fatalf("expected one asset with one stem, got %+v", assets)
	}
}
