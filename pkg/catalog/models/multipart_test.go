package models

import (
	"testing"
	"time"
)

func TestPartLayout(t *testing.T) {
	tests := []struct {
		name           string
		size           int64
		chunkSize      int64
		lastPartNumber int
		lastPartSize   int64
	}{
		{"uneven split", 11, 6, 1, 5},
		{"single part exact", 6, 6, 0, 6},
		{"exact multiple keeps full tail", 12, 6, 1, 6},
		{"smaller than one part", 4, 6, 0, 4},
		{"many parts", 100, 7, 14, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastPartNumber, lastPartSize := PartLayout(tt.size, tt.chunkSize)
			if lastPartNumber != tt.lastPartNumber {
				t.Errorf("last part number = %d, want %d", lastPartNumber, tt.lastPartNumber)
			}
			if lastPartSize != tt.lastPartSize {
				t.Errorf("last part size = %d, want %d", lastPartSize, tt.lastPartSize)
			}

			// The layout invariant must hold for every computed layout.
			if got := int64(lastPartNumber)*tt.chunkSize + lastPartSize; got != tt.size {
				t.Errorf("layout does not reconstruct size: %d != %d", got, tt.size)
			}
			if lastPartSize <= 0 || lastPartSize > tt.chunkSize {
				t.Errorf("last part size %d out of (0, %d]", lastPartSize, tt.chunkSize)
			}
		})
	}
}

func TestExpectedPartSize(t *testing.T) {
	m := &MultipartUpload{ChunkSize: 6, Size: 11, LastPartNumber: 1, LastPartSize: 5}

	if size, err := m.ExpectedPartSize(0); err != nil || size != 6 {
		t.Errorf("part 0: got (%d, %v), want (6, nil)", size, err)
	}
	if size, err := m.ExpectedPartSize(1); err != nil || size != 5 {
		t.Errorf("part 1: got (%d, %v), want (5, nil)", size, err)
	}
	if _, err := m.ExpectedPartSize(2); err != ErrMultipartInvalidPartNumber {
		t.Errorf("part 2: expected invalid part number, got %v", err)
	}
	if _, err := m.ExpectedPartSize(-1); err != ErrMultipartInvalidPartNumber {
		t.Errorf("part -1: expected invalid part number, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	ttl := 4 * 24 * time.Hour

	m := &MultipartUpload{UpdatedAt: now.Add(-5 * 24 * time.Hour)}
	if !m.Expired(ttl, now) {
		t.Error("expected stale upload to be expired")
	}

	m.Completed = true
	if m.Expired(ttl, now) {
		t.Error("completed uploads never expire")
	}

	fresh := &MultipartUpload{UpdatedAt: now.Add(-time.Hour)}
	if fresh.Expired(ttl, now) {
		t.Error("fresh upload must not be expired")
	}
}

func TestLocationValidate(t *testing.T) {
	valid := &Location{Name: "eu-west"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid slug, got %v", err)
	}

	for _, name := range []string{"", "A", "UPPER", "1abc", "x", "this-name-is-way-too-long-for-a-slug"} {
		loc := &Location{Name: name}
		if err := loc.Validate(); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestBucketQuotaRemaining(t *testing.T) {
	b := &Bucket{Size: 3}
	if b.QuotaRemaining() != nil {
		t.Error("expected nil remaining without quota")
	}

	quota := int64(10)
	b.QuotaSize = &quota
	if got := b.QuotaRemaining(); got == nil || *got != 7 {
		t.Errorf("expected 7 remaining, got %v", got)
	}

	b.Size = 15
	if got := b.QuotaRemaining(); got == nil || *got != 0 {
		t.Errorf("expected 0 remaining when over quota, got %v", got)
	}
}
