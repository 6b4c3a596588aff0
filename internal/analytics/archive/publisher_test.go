package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeStore struct {
	objects map[string]int64
	// sizeSkew shifts reported sizes to simulate a corrupted upload.
	sizeSkew int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]int64{}}
}

func (f *fakeStore) Put(ctx context.Context, key, localPath string) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	f.objects[key] = info.Size() + f.sizeSkew
	return f.objects[key], nil
}

func (f *fakeStore) Size(ctx context.Context, key string) (int64, error) {
	return f.objects[key], nil
}

func TestPublisher_KeyScheme(t *testing.T) {
	p := NewPublisher(newFakeStore(), "analytics/fuga")
	got := p.Key("/tmp/iMusics_Spotify_trends_2025-01-01.tsv.gz")
	want := "analytics/fuga/iMusics_Spotify_trends_2025-01-01.tsv.gz"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPublisher_UploadSizeParity(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "iMusics_Deezer_trends_2025-01-01.tsv.gz")
	if err := os.WriteFile(local, []byte("compressed-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newFakeStore()
	p := NewPublisher(store, "prefix")
	if err := p.Upload(context.Background(), []string{local}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if store.objects[p.Key(local)] != int64(len("compressed-bytes")) {
		t.Fatalf("stored size mismatch")
	}
}

func TestPublisher_UploadSizeMismatchFails(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "iMusics_Deezer_trends_2025-01-01.tsv.gz")
	if err := os.WriteFile(local, []byte("compressed-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newFakeStore()
	store.sizeSkew = 1
	p := NewPublisher(store, "prefix")
	err := p.Upload(context.Background(), []string{local})
	if err == nil || !strings.Contains(err.Error(), "size parity violation") {
		t.Fatalf("expected parity failure, got %v", err)
	}
}

func TestPublisher_MissingLocalFile(t *testing.T) {
	p := NewPublisher(newFakeStore(), "prefix")
	if err := p.Upload(context.Background(), []string{"/nope/missing.tsv.gz"}); err == nil {
		t.Fatalf("expected stat error for missing staged archive")
	}
}
