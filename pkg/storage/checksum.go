package storage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// DefaultAlgo is the hash algorithm used when a backend does not override it.
const DefaultAlgo = "md5"

// DefaultChunkSize is the buffer size used for streaming copies and
// checksum recomputation.
const DefaultChunkSize = 64 * 1024

// NewHash returns a fresh digest for the named algorithm.
func NewHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q", algo)
	}
}

// FormatChecksum renders a digest in the canonical "<algo>:<hex>" form.
func FormatChecksum(algo string, h hash.Hash) string {
	return algo + ":" + hex.EncodeToString(h.Sum(nil))
}

// SplitChecksum splits a canonical checksum into algorithm and hex digest.
func SplitChecksum(checksum string) (algo, digest string) {
	if i := strings.IndexByte(checksum, ':'); i >= 0 {
		return checksum[:i], checksum[i+1:]
	}
	return "", checksum
}

// ProgressFunc receives the number of bytes read so far and the running total
// including any offset the caller started at.
type ProgressFunc func(read, total int64)

// ChecksumOptions configure a ChecksumReader.
type ChecksumOptions struct {
	// SizeLimit fails the stream with a FileSizeError once more bytes than
	// the limit have been read. Nil means unlimited.
	SizeLimit *FileSizeLimit

	// Size is the declared size of the stream. Reading more bytes fails with
	// an UnexpectedFileSizeError; Verify reports when fewer arrived.
	// Negative means unknown.
	Size int64

	// Offset is added to the byte count reported to Progress.
	Offset int64

	// Progress, if set, is called after every read.
	Progress ProgressFunc
}

// ChecksumReader decorates an io.Reader with a running digest, byte counting,
// and size-bound enforcement. It is the single ingest path for all uploads:
// every byte that reaches a backend flows through one of these.
type ChecksumReader struct {
	r         io.Reader
	algo      string
	hash      hash.Hash
	bytesRead int64
	opts      ChecksumOptions
	failed    error
}

// NewChecksumReader wraps r with digest computation using the given
// algorithm.
func NewChecksumReader(r io.Reader, algo string, opts ChecksumOptions) (*ChecksumReader, error) {
	if algo == "" {
		algo = DefaultAlgo
	}
	h, err := NewHash(algo)
	if err != nil {
		return nil, err
	}
	// A declared zero size is meaningful; callers that do not know the
	// stream size pass a negative Size.
	return &ChecksumReader{r: r, algo: algo, hash: h, opts: opts}, nil
}

// Read implements io.Reader.
func (c *ChecksumReader) Read(p []byte) (int, error) {
	if c.failed != nil {
		return 0, c.failed
	}

	n, err := c.r.Read(p)
	if n > 0 {
		c.hash.Write(p[:n])
		c.bytesRead += int64(n)

		if c.opts.SizeLimit != nil && c.bytesRead > c.opts.SizeLimit.Limit {
			c.failed = &FileSizeError{Limit: *c.opts.SizeLimit}
			return n, c.failed
		}
		if c.opts.Size >= 0 && c.bytesRead > c.opts.Size {
			c.failed = &UnexpectedFileSizeError{}
			return n, c.failed
		}
		if c.opts.Progress != nil {
			c.opts.Progress(c.bytesRead, c.bytesRead+c.opts.Offset)
		}
	}
	return n, err
}

// Verify checks that a declared size was fully consumed. Call after the
// stream hit EOF.
func (c *ChecksumReader) Verify() error {
	if c.failed != nil {
		return c.failed
	}
	if c.opts.Size >= 0 && c.bytesRead < c.opts.Size {
		return &UnexpectedFileSizeError{Smaller: true}
	}
	return nil
}

// BytesRead returns the number of bytes consumed so far.
func (c *ChecksumReader) BytesRead() int64 {
	return c.bytesRead
}

// Checksum returns the digest of all bytes read, in "<algo>:<hex>" form.
func (c *ChecksumReader) Checksum() string {
	return FormatChecksum(c.algo, c.hash)
}

// ComputeChecksum streams r to completion and returns its canonical checksum.
func ComputeChecksum(r io.Reader, algo string, chunkSize int, progress ProgressFunc) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	cr, err := NewChecksumReader(r, algo, ChecksumOptions{Size: -1, Progress: progress})
	if err != nil {
		return "", err
	}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(io.Discard, cr, buf); err != nil {
		return "", err
	}
	return cr.Checksum(), nil
}
