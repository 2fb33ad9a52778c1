package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shelfd/shelfd/pkg/storage"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "de", "ad", "beef", "data"), -1)
}

func TestSaveAndOpen(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	info, err := b.Save(ctx, strings.NewReader("hello\n"), storage.SaveOptions{Size: 6})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if info.Size != 6 {
		t.Errorf("expected size 6, got %d", info.Size)
	}
	if info.Checksum != "md5:b1946ac92492d2347c6235b4d2611184" {
		t.Errorf("unexpected checksum %q", info.Checksum)
	}
	if !info.Readable || info.Writable {
		t.Errorf("expected read-only result, got readable=%v writable=%v", info.Readable, info.Writable)
	}

	rc, err := b.Open(ctx)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("expected round-trip content, got %q", data)
	}
}

func TestSaveCleansUpOnSizeError(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	_, err := b.Save(ctx, strings.NewReader("way too many bytes"), storage.SaveOptions{
		SizeLimit: &storage.FileSizeLimit{Limit: 4, Reason: "quota"},
		Size:      -1,
	})
	var fse *storage.FileSizeError
	if !errors.As(err, &fse) {
		t.Fatalf("expected FileSizeError, got %v", err)
	}

	if _, statErr := os.Stat(b.uri); !os.IsNotExist(statErr) {
		t.Error("expected partial blob to be removed")
	}
	if _, statErr := os.Stat(filepath.Dir(b.uri)); !os.IsNotExist(statErr) {
		t.Error("expected containing directory to be removed")
	}
}

func TestSaveCleansUpOnShortStream(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	_, err := b.Save(ctx, strings.NewReader("ab"), storage.SaveOptions{Size: 10})
	var ufe *storage.UnexpectedFileSizeError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnexpectedFileSizeError, got %v", err)
	}
	if _, statErr := os.Stat(b.uri); !os.IsNotExist(statErr) {
		t.Error("expected partial blob to be removed")
	}
}

func TestInitializeAndUpdate(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	info, err := b.Initialize(ctx, 11)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if info.Size != 11 || info.Readable || !info.Writable {
		t.Errorf("unexpected initialize result: %+v", info)
	}

	// Initialize twice with the same size is idempotent.
	if _, err := b.Initialize(ctx, 11); err != nil {
		t.Fatalf("second initialize failed: %v", err)
	}

	written, sum, err := b.Update(ctx, strings.NewReader("AAAAAA"), 0, storage.UpdateOptions{Size: 6})
	if err != nil {
		t.Fatalf("update part 0 failed: %v", err)
	}
	if written != 6 {
		t.Errorf("expected 6 bytes written, got %d", written)
	}
	if sum == "" {
		t.Error("expected per-part checksum")
	}

	if _, _, err := b.Update(ctx, strings.NewReader("BBBBB"), 6, storage.UpdateOptions{Size: 5}); err != nil {
		t.Fatalf("update part 1 failed: %v", err)
	}

	data, err := os.ReadFile(b.uri)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "AAAAAABBBBB" {
		t.Errorf("expected merged content, got %q", data)
	}

	sum, err = b.Checksum(ctx, 0, nil)
	if err != nil {
		t.Fatalf("checksum failed: %v", err)
	}
	want, _ := storage.ComputeChecksum(bytes.NewReader(data), "md5", 0, nil)
	if sum != want {
		t.Errorf("expected checksum %q, got %q", want, sum)
	}
}

func TestDeleteRemovesBlobAndDir(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	if _, err := b.Save(ctx, strings.NewReader("x"), storage.SaveOptions{Size: 1}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(b.uri); !os.IsNotExist(err) {
		t.Error("expected blob to be removed")
	}
	if _, err := os.Stat(filepath.Dir(b.uri)); !os.IsNotExist(err) {
		t.Error("expected empty directory to be removed")
	}

	// Deleting a missing blob is not an error.
	if err := b.Delete(ctx); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

func TestOpenMissingBlob(t *testing.T) {
	b := testBackend(t)

	_, err := b.Open(context.Background())
	var serr *storage.Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestCanUpdate(t *testing.T) {
	if !testBackend(t).CanUpdate() {
		t.Error("filesystem backend must support offset writes")
	}
}
