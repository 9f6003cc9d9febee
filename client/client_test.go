package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"stemboard/core/apperr"
	"stemboard/core/auth"
	"stemboard/core/board"
	"stemboard/core/canvas"
	"stemboard/core/media"
	"stemboard/core/workspace"
	"stemboard/repository/memory"
	"stemboard/server"
	"stemboard/storage"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	store := memory.New()
	blobs := storage.NewMemoryStore("https://cdn.example.com/audio")
	hub := board.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	workspaces := workspace.NewService(store, store, nil, hub)
	handler := server.NewAPIHandler(server.Deps{
		Users:      store,
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		Workspaces: workspaces,
		Media:      media.NewService(store, blobs, workspaces, hub, 0),
		Blobs:      blobs,
		Hub:        hub,
	})
	srv := httptest.NewServer(server.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv.URL
}

func signedIn(t *testing.T, baseURL, email string) *Client {
	t.Helper()
	c := New(baseURL)
	user, err := c.Register(context.Background(), email, "correct horse")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if user.Email != email || c.Token() == "" {
		t.Fatalf("unexpected register result %+v token=%q", user, c.Token())
	}
	return c
}

func audioFile(name string, size int) media.File {
	return media.File{
		Name:        name,
		ContentType: "audio/mpeg",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0x55}, size)),
	}
}

func TestLoginReplacesToken(t *testing.T) {
	base := newTestServer(t)
	signedIn(t, base, "ana@example.com")

	c := New(base)
	if _, err := c.Login(context.Background(), "ana@example.com", "nope"); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := c.Login(context.Background(), "ana@example.com", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.Token() == "" {
		t.Fatal("token not kept after login")
	}
}

func TestErrorKindsSurviveTheWire(t *testing.T) {
	base := newTestServer(t)
	ctx := context.Background()
	owner := signedIn(t, base, "ana@example.com")
	guest := signedIn(t, base, "ben@example.com")

	if _, err := New(base).ListWorkspaces(ctx); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := owner.CreateWorkspace(ctx, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	ws, err := owner.CreateWorkspace(ctx, "Demo A")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.AddCollaborator(ctx, ws.ID, "nobody@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := guest.AddCollaborator(ctx, ws.ID, "ana@example.com"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := owner.AddCollaborator(ctx, ws.ID, "ben@example.com"); err != nil {
		t.Fatal(err)
	}
	err = owner.AddCollaborator(ctx, ws.ID, "ben@example.com")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := apperr.Message(err); got != "add collaborator: User is already a collaborator on this project." {
		t.Fatalf("server message not carried over: %q", got)
	}
	if _, err := owner.UploadStem(ctx, "missing", audioFile("bass.wav", 10)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	base := newTestServer(t)
	ctx := context.Background()
	c := signedIn(t, base, "ana@example.com")
	ws, err := c.CreateWorkspace(ctx, "Demo A")
	if err != nil {
		t.Fatal(err)
	}

	snap, err := c.LoadSnapshot(ctx, ws.ID)
	if err != nil || snap != nil {
		t.Fatalf("expected no snapshot, got %s, %v", snap, err)
	}
	doc := []byte(`{"document":{"shapes":[1,2,3]}}`)
	if err := c.SaveSnapshot(ctx, ws.ID, doc); err != nil {
		t.Fatal(err)
	}
	snap, err = c.LoadSnapshot(ctx, ws.ID)
	if err != nil || !bytes.Equal(snap, doc) {
		t.Fatalf("snapshot = %s, %v", snap, err)
	}
}

func TestDownloadThroughProxy(t *testing.T) {
	base := newTestServer(t)
	ctx := context.Background()
	c := signedIn(t, base, "ana@example.com")
	ws, _ := c.CreateWorkspace(ctx, "Demo A")

	asset, err := c.UploadAsset(ctx, ws.ID, audioFile("mix.mp3", 1024))
	if err != nil {
		t.Fatal(err)
	}
	body, err := c.Download(ctx, asset.MasterURL)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if len(data) != 1024 {
		t.Fatalf("downloaded %d bytes", len(data))
	}

	if _, err := c.Download(ctx, "https://elsewhere.example.com/x.mp3"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// The client core running against a real server: select a workspace, upload
// a demo and a stem, edit the board and have a collaborator see it.
func TestClientCoreAgainstServer(t *testing.T) {
	base := newTestServer(t)
	ctx := context.Background()
	ana := signedIn(t, base, "ana@example.com")
	signedIn(t, base, "ben@example.com")

	session := workspace.NewSession(ana)
	registry := media.NewRegistry(ana)
	engine := &canvas.MemoryEngine{}
	saved := make(chan error, 4)
	syncer := canvas.NewSynchronizer(engine, ana, canvas.WithSaveHook(func(_ string, err error) { saved <- err }))
	session.OnActiveChange(registry.OnActiveChange)
	session.OnActiveChange(syncer.OnActiveChange)

	ws, err := session.CreateWorkspace(ctx, "Demo A")
	if err != nil {
		t.Fatal(err)
	}
	if registry.WorkspaceID() != ws.ID || syncer.WorkspaceID() != ws.ID {
		t.Fatal("listeners did not follow the new workspace")
	}

	asset, err := registry.UploadAsset(ctx, audioFile("take one.mp3", 2<<20))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := registry.UploadDerivedAsset(ctx, audioFile("bass.wav", 512), asset.ID); err != nil {
		t.Fatal(err)
	}
	if registry.IsUploading() {
		t.Fatal("upload flag left set")
	}

	assets, err := registry.Refresh(ctx, ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || len(assets[0].Stems) != 1 || assets[0].Stems[0].Name != "bass.wav" {
		t.Fatalf("unexpected assets after refresh %+v", assets)
	}

	if err := session.AddCollaborator(ctx, ws.ID, "ben@example.com"); err != nil {
		t.Fatal(err)
	}

	doc := []byte(`{"shapes":{"waveform:1":{"x":0,"y":150}}}`)
	engine.Set(doc)
	syncer.MarkDirty()
	syncer.Flush()
	select {
	case err := <-saved:
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not saved")
	}

	ben := New(base)
	if _, err := ben.Login(ctx, "ben@example.com", "correct horse"); err != nil {
		t.Fatal(err)
	}
	benSession := workspace.NewSession(ben)
	benEngine := &canvas.MemoryEngine{}
	benSync := canvas.NewSynchronizer(benEngine, ben)
	benSession.OnActiveChange(benSync.OnActiveChange)
	if _, err := benSession.ListWorkspaces(ctx); err != nil {
		t.Fatal(err)
	}
	if benSession.ActiveID() != ws.ID {
		t.Fatalf("collaborator active workspace = %q", benSession.ActiveID())
	}
	got, _ := benEngine.Snapshot()
	if !bytes.Equal(got, doc) {
		t.Fatalf("collaborator board = %s", got)
	}
}
