package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestLocation(t *testing.T, store *GORMStore) *models.Location {
	t.Helper()
	loc := &models.Location{Name: "primary", URI: "mem://primary", Backend: "memory", Default: true}
	if err := store.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("failed to create location: %v", err)
	}
	return loc
}

func createTestBucket(t *testing.T, store *GORMStore, loc *models.Location) *models.Bucket {
	t.Helper()
	bucket := &models.Bucket{DefaultLocationID: loc.ID, DefaultStorageClass: "S"}
	if err := store.CreateBucket(context.Background(), bucket); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	return bucket
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()
		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		if _, err := New(&Config{Type: "invalid"}); err == nil {
			t.Error("expected error for invalid config")
		}
	})
}

func TestLocationOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		loc := &models.Location{Name: "eu-west", URI: "/srv/data", Backend: "fs", Default: true}
		if err := store.CreateLocation(ctx, loc); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := store.GetLocation(ctx, "eu-west")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.URI != "/srv/data" || got.Backend != "fs" {
			t.Errorf("unexpected location %+v", got)
		}
	})

	t.Run("invalid slug rejected", func(t *testing.T) {
		err := store.CreateLocation(ctx, &models.Location{Name: "Bad Name", URI: "/x", Backend: "fs"})
		if !errors.Is(err, models.ErrInvalidSlug) {
			t.Errorf("expected slug error, got %v", err)
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := store.CreateLocation(ctx, &models.Location{Name: "eu-west", URI: "/y", Backend: "fs"})
		if !errors.Is(err, models.ErrDuplicateLocation) {
			t.Errorf("expected duplicate error, got %v", err)
		}
	})

	t.Run("second default displaces the first", func(t *testing.T) {
		loc := &models.Location{Name: "eu-east", URI: "/srv/data2", Backend: "fs", Default: true}
		if err := store.CreateLocation(ctx, loc); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		def, err := store.GetDefaultLocation(ctx)
		if err != nil {
			t.Fatalf("get default failed: %v", err)
		}
		if def.Name != "eu-east" {
			t.Errorf("expected eu-east as default, got %s", def.Name)
		}
	})

	t.Run("set default", func(t *testing.T) {
		if err := store.SetDefaultLocation(ctx, "eu-west"); err != nil {
			t.Fatalf("set default failed: %v", err)
		}
		def, err := store.GetDefaultLocation(ctx)
		if err != nil {
			t.Fatalf("get default failed: %v", err)
		}
		if def.Name != "eu-west" {
			t.Errorf("expected eu-west as default, got %s", def.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := store.GetLocation(ctx, "nope"); !errors.Is(err, models.ErrLocationNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestBucketOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	loc := createTestLocation(t, store)

	t.Run("create and get", func(t *testing.T) {
		bucket := createTestBucket(t, store, loc)
		got, err := store.GetBucket(ctx, bucket.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.DefaultLocation == nil || got.DefaultLocation.Name != "primary" {
			t.Errorf("expected preloaded location, got %+v", got.DefaultLocation)
		}
		if got.Size != 0 {
			t.Errorf("expected zero size, got %d", got.Size)
		}
	})

	t.Run("size accounting", func(t *testing.T) {
		bucket := createTestBucket(t, store, loc)

		if err := store.AddBucketSize(ctx, bucket.ID, 10); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if err := store.AddBucketSize(ctx, bucket.ID, -4); err != nil {
			t.Fatalf("subtract failed: %v", err)
		}

		got, _ := store.GetBucket(ctx, bucket.ID)
		if got.Size != 6 {
			t.Errorf("expected size 6, got %d", got.Size)
		}

		// The counter never goes negative.
		if err := store.AddBucketSize(ctx, bucket.ID, -100); err != nil {
			t.Fatalf("subtract failed: %v", err)
		}
		got, _ = store.GetBucket(ctx, bucket.ID)
		if got.Size != 0 {
			t.Errorf("expected clamped size 0, got %d", got.Size)
		}
	})

	t.Run("soft delete hides the bucket", func(t *testing.T) {
		bucket := createTestBucket(t, store, loc)
		if err := store.SoftDeleteBucket(ctx, bucket.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := store.GetBucket(ctx, bucket.ID); !errors.Is(err, models.ErrBucketNotFound) {
			t.Errorf("expected not found after soft delete, got %v", err)
		}
	})

	t.Run("update limits", func(t *testing.T) {
		bucket := createTestBucket(t, store, loc)

		quota := int64(100)
		quotaPtr := &quota
		locked := true
		if err := store.UpdateBucketLimits(ctx, bucket.ID, &quotaPtr, nil, &locked); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		got, _ := store.GetBucket(ctx, bucket.ID)
		if got.QuotaSize == nil || *got.QuotaSize != 100 {
			t.Errorf("expected quota 100, got %v", got.QuotaSize)
		}
		if !got.Locked {
			t.Error("expected bucket locked")
		}

		// Explicit nil clears the quota.
		var cleared *int64
		if err := store.UpdateBucketLimits(ctx, bucket.ID, &cleared, nil, nil); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		got, _ = store.GetBucket(ctx, bucket.ID)
		if got.QuotaSize != nil {
			t.Errorf("expected quota cleared, got %v", got.QuotaSize)
		}
	})

	t.Run("tags", func(t *testing.T) {
		bucket := createTestBucket(t, store, loc)

		if err := store.SetBucketTag(ctx, bucket.ID, "env", "prod"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.SetBucketTag(ctx, bucket.ID, "env", "staging"); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		tags, err := store.GetBucketTags(ctx, bucket.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(tags) != 1 || tags[0].Value != "staging" {
			t.Errorf("expected upserted tag, got %+v", tags)
		}

		if err := store.DeleteBucketTag(ctx, bucket.ID, "env"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		tags, _ = store.GetBucketTags(ctx, bucket.ID)
		if len(tags) != 0 {
			t.Errorf("expected no tags, got %+v", tags)
		}
	})
}

func TestObjectVersionOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	loc := createTestLocation(t, store)
	bucket := createTestBucket(t, store, loc)

	makeFile := func(t *testing.T, uri string, size int64) *models.FileInstance {
		t.Helper()
		file := &models.FileInstance{}
		if err := store.CreateFile(ctx, file); err != nil {
			t.Fatalf("create file failed: %v", err)
		}
		file.URI = &uri
		file.Size = size
		file.Checksum = "md5:test"
		file.Readable = true
		file.Writable = false
		file.Backend = "memory"
		if err := store.UpdateFile(ctx, file); err != nil {
			t.Fatalf("update file failed: %v", err)
		}
		return file
	}

	t.Run("head demotion", func(t *testing.T) {
		f1 := makeFile(t, "mem://a", 1)
		f2 := makeFile(t, "mem://b", 2)

		v1, err := store.CreateVersion(ctx, bucket.ID, "k", &f1.ID, "text/plain")
		if err != nil {
			t.Fatalf("create v1 failed: %v", err)
		}
		v2, err := store.CreateVersion(ctx, bucket.ID, "k", &f2.ID, "text/plain")
		if err != nil {
			t.Fatalf("create v2 failed: %v", err)
		}

		head, err := store.GetObject(ctx, bucket.ID, "k", "", false)
		if err != nil {
			t.Fatalf("get head failed: %v", err)
		}
		if head.VersionID != v2.VersionID {
			t.Errorf("expected v2 as head, got %s", head.VersionID)
		}

		old, err := store.GetObject(ctx, bucket.ID, "k", v1.VersionID, false)
		if err != nil {
			t.Fatalf("get v1 failed: %v", err)
		}
		if old.IsHead {
			t.Error("expected v1 demoted")
		}
	})

	t.Run("delete marker resolution", func(t *testing.T) {
		f := makeFile(t, "mem://c", 3)
		live, err := store.CreateVersion(ctx, bucket.ID, "marked", &f.ID, "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		marker, err := store.CreateVersion(ctx, bucket.ID, "marked", nil, "")
		if err != nil {
			t.Fatalf("create marker failed: %v", err)
		}
		if !marker.IsDeleteMarker() {
			t.Error("expected a delete marker")
		}

		// Head resolution skips delete markers.
		if _, err := store.GetObject(ctx, bucket.ID, "marked", "", false); !errors.Is(err, models.ErrObjectNotFound) {
			t.Errorf("expected not found through marker, got %v", err)
		}

		// The prior live version stays reachable by versionId.
		got, err := store.GetObject(ctx, bucket.ID, "marked", live.VersionID, false)
		if err != nil {
			t.Fatalf("get by version failed: %v", err)
		}
		if got.File == nil || got.File.Size != 3 {
			t.Errorf("expected preloaded file, got %+v", got.File)
		}
	})

	t.Run("list heads and versions", func(t *testing.T) {
		heads, err := store.ListObjects(ctx, bucket.ID, false, 0)
		if err != nil {
			t.Fatalf("list heads failed: %v", err)
		}
		// "k" has a live head; "marked" is hidden behind its delete marker.
		if len(heads) != 1 || heads[0].Key != "k" {
			t.Errorf("unexpected heads: %+v", heads)
		}

		versions, err := store.ListObjects(ctx, bucket.ID, true, 0)
		if err != nil {
			t.Fatalf("list versions failed: %v", err)
		}
		if len(versions) != 3 {
			t.Errorf("expected 3 live versions, got %d", len(versions))
		}
	})

	t.Run("remove head promotes previous", func(t *testing.T) {
		head, err := store.GetObject(ctx, bucket.ID, "k", "", false)
		if err != nil {
			t.Fatalf("get head failed: %v", err)
		}

		if _, err := store.RemoveVersion(ctx, bucket.ID, "k", head.VersionID); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		promoted, err := store.GetObject(ctx, bucket.ID, "k", "", false)
		if err != nil {
			t.Fatalf("expected promoted head: %v", err)
		}
		if promoted.VersionID == head.VersionID {
			t.Error("removed version still resolves as head")
		}
		if !promoted.IsHead {
			t.Error("expected promoted version to be head")
		}
	})

	t.Run("relink all", func(t *testing.T) {
		oldFile := makeFile(t, "mem://old", 4)
		newFile := makeFile(t, "mem://new", 4)

		if _, err := store.CreateVersion(ctx, bucket.ID, "relink", &oldFile.ID, ""); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		n, err := store.RelinkAll(ctx, oldFile.ID, newFile.ID)
		if err != nil {
			t.Fatalf("relink failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 relinked version, got %d", n)
		}

		count, err := store.CountVersionsByFile(ctx, oldFile.ID)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected no versions on old file, got %d", count)
		}
	})

	t.Run("version tags", func(t *testing.T) {
		f := makeFile(t, "mem://tagged", 1)
		version, err := store.CreateVersion(ctx, bucket.ID, "tagged", &f.ID, "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := store.SetVersionTag(ctx, version.VersionID, "kind", "report"); err != nil {
			t.Fatalf("set tag failed: %v", err)
		}
		tags, err := store.GetVersionTags(ctx, version.VersionID)
		if err != nil {
			t.Fatalf("get tags failed: %v", err)
		}
		if len(tags) != 1 || tags[0].Value != "report" {
			t.Errorf("unexpected tags %+v", tags)
		}
	})
}

func TestFileOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	loc := createTestLocation(t, store)
	bucket := createTestBucket(t, store, loc)

	t.Run("read-only delete requires force", func(t *testing.T) {
		file := &models.FileInstance{}
		if err := store.CreateFile(ctx, file); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		uri := "mem://ro"
		file.URI = &uri
		file.Readable = true
		file.Writable = false
		if err := store.UpdateFile(ctx, file); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if err := store.DeleteFile(ctx, file.ID, false); !errors.Is(err, models.ErrFileNotWritable) {
			t.Errorf("expected not-writable error, got %v", err)
		}
		if err := store.DeleteFile(ctx, file.ID, true); err != nil {
			t.Errorf("forced delete failed: %v", err)
		}
	})

	t.Run("orphan listing", func(t *testing.T) {
		referenced := &models.FileInstance{}
		orphan := &models.FileInstance{}
		if err := store.CreateFile(ctx, referenced); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := store.CreateFile(ctx, orphan); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if _, err := store.CreateVersion(ctx, bucket.ID, "ref", &referenced.ID, ""); err != nil {
			t.Fatalf("create version failed: %v", err)
		}

		orphans, err := store.ListOrphanedFiles(ctx, 0)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}

		found := map[string]bool{}
		for _, f := range orphans {
			found[f.ID] = true
		}
		if !found[orphan.ID] {
			t.Error("expected orphan in listing")
		}
		if found[referenced.ID] {
			t.Error("referenced file listed as orphan")
		}
	})

	t.Run("due for check selection", func(t *testing.T) {
		file := &models.FileInstance{}
		if err := store.CreateFile(ctx, file); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		uri := "mem://due"
		file.URI = &uri
		file.Size = 10
		file.Readable = true
		file.Writable = false
		if err := store.UpdateFile(ctx, file); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		// Never-checked readable files are always due.
		due, err := store.ListFilesDueForCheck(ctx, time.Now().Add(-time.Hour), 0, 0)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		found := false
		for _, f := range due {
			if f.ID == file.ID {
				found = true
			}
		}
		if !found {
			t.Error("expected never-checked file to be due")
		}

		// A fresh check takes it out of the slice.
		match := true
		applied, err := store.SetFileCheckState(ctx, file.ID, &match, time.Now(), file.UpdatedAt)
		if err != nil {
			t.Fatalf("set state failed: %v", err)
		}
		if !applied {
			t.Fatal("expected optimistic update to apply")
		}

		due, _ = store.ListFilesDueForCheck(ctx, time.Now().Add(-time.Hour), 0, 0)
		for _, f := range due {
			if f.ID == file.ID {
				t.Error("freshly checked file still due")
			}
		}
	})

	t.Run("optimistic check state", func(t *testing.T) {
		file := &models.FileInstance{}
		if err := store.CreateFile(ctx, file); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		stale := file.UpdatedAt.Add(-time.Minute)
		match := false
		applied, err := store.SetFileCheckState(ctx, file.ID, &match, time.Now(), stale)
		if err != nil {
			t.Fatalf("set state failed: %v", err)
		}
		if applied {
			t.Error("expected stale update to lose")
		}
	})
}

func TestMultipartOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	loc := createTestLocation(t, store)
	bucket := createTestBucket(t, store, loc)

	newUpload := func(t *testing.T, key string) *models.MultipartUpload {
		t.Helper()
		file := &models.FileInstance{}
		if err := store.CreateFile(ctx, file); err != nil {
			t.Fatalf("create file failed: %v", err)
		}
		m := &models.MultipartUpload{
			BucketID:       bucket.ID,
			Key:            key,
			FileID:         file.ID,
			ChunkSize:      6,
			Size:           11,
			LastPartNumber: 1,
			LastPartSize:   5,
		}
		if err := store.CreateMultipart(ctx, m); err != nil {
			t.Fatalf("create multipart failed: %v", err)
		}
		return m
	}

	t.Run("create and get", func(t *testing.T) {
		m := newUpload(t, "big")

		got, err := store.GetMultipart(ctx, bucket.ID, "big", m.UploadID, false)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ChunkSize != 6 || got.LastPartSize != 5 {
			t.Errorf("unexpected upload %+v", got)
		}
	})

	t.Run("replace part", func(t *testing.T) {
		m := newUpload(t, "replace")

		part := &models.Part{UploadID: m.UploadID, PartNumber: 0, Checksum: "md5:a", StartByte: 0, EndByte: 6}
		if err := store.ReplacePart(ctx, part); err != nil {
			t.Fatalf("replace failed: %v", err)
		}

		// Re-upload replaces, never merges.
		part2 := &models.Part{UploadID: m.UploadID, PartNumber: 0, Checksum: "md5:b", StartByte: 0, EndByte: 6}
		if err := store.ReplacePart(ctx, part2); err != nil {
			t.Fatalf("second replace failed: %v", err)
		}

		parts, err := store.ListParts(ctx, m.UploadID, 0)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(parts) != 1 || parts[0].Checksum != "md5:b" {
			t.Errorf("expected single replaced part, got %+v", parts)
		}
	})

	t.Run("complete is terminal", func(t *testing.T) {
		m := newUpload(t, "complete")

		if err := store.CompleteMultipart(ctx, m.UploadID); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if err := store.CompleteMultipart(ctx, m.UploadID); !errors.Is(err, models.ErrMultipartAlreadyCompleted) {
			t.Errorf("expected already-completed error, got %v", err)
		}

		// Completed uploads disappear from the default lookup.
		if _, err := store.GetMultipart(ctx, bucket.ID, "complete", m.UploadID, false); !errors.Is(err, models.ErrMultipartNotFound) {
			t.Errorf("expected not found without completed flag, got %v", err)
		}
		if _, err := store.GetMultipart(ctx, bucket.ID, "complete", m.UploadID, true); err != nil {
			t.Errorf("expected completed lookup to succeed, got %v", err)
		}
	})

	t.Run("delete cascades to parts", func(t *testing.T) {
		m := newUpload(t, "cascade")
		part := &models.Part{UploadID: m.UploadID, PartNumber: 0, Checksum: "md5:x", StartByte: 0, EndByte: 6}
		if err := store.ReplacePart(ctx, part); err != nil {
			t.Fatalf("replace failed: %v", err)
		}

		if err := store.DeleteMultipart(ctx, m.UploadID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		count, err := store.CountParts(ctx, m.UploadID)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected parts deleted, got %d", count)
		}
	})

	t.Run("expired listing", func(t *testing.T) {
		m := newUpload(t, "expired")

		// Backdate the row past the expiration window.
		if err := store.DB().Exec(
			"UPDATE multipart_uploads SET updated_at = ? WHERE upload_id = ?",
			time.Now().Add(-5*24*time.Hour), m.UploadID).Error; err != nil {
			t.Fatalf("backdate failed: %v", err)
		}

		expired, err := store.ListExpiredMultiparts(ctx, time.Now().Add(-4*24*time.Hour))
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}

		found := false
		for _, u := range expired {
			if u.UploadID == m.UploadID {
				found = true
			}
		}
		if !found {
			t.Error("expected backdated upload in expired listing")
		}
	})
}
