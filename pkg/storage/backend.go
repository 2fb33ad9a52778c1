// Package storage defines the blob backend contract and the streaming
// primitives shared by all backends: the checksum reader every upload flows
// through, size-limit enforcement, the URI path layout, and the registry that
// maps configured backend names to constructors.
package storage

import (
	"context"
	"io"
)

// Info describes the blob state a backend operation produced. It mirrors the
// mutable columns of a FileInstance so orchestration code can apply it
// directly.
type Info struct {
	URI      string
	Size     int64
	Checksum string
	Readable bool
	Writable bool
}

// SaveOptions tune a Save call.
type SaveOptions struct {
	// SizeLimit aborts the save once exceeded; the backend removes the
	// partial blob before returning.
	SizeLimit *FileSizeLimit

	// Size is the declared stream size, negative when unknown. A mismatch in
	// either direction fails the save.
	Size int64

	// ChunkSize is the copy buffer size; zero uses DefaultChunkSize.
	ChunkSize int

	// Progress, if set, is invoked as bytes arrive.
	Progress ProgressFunc
}

// UpdateOptions tune an offset write.
type UpdateOptions struct {
	// Size is the declared part size, negative when unknown.
	Size int64

	// PartSize is the upload's fixed chunk size. Backends without true
	// offset writes derive the part index from it.
	PartSize int64

	// ChunkSize is the copy buffer size; zero uses DefaultChunkSize.
	ChunkSize int
}

// Backend is the interface to a single blob. Handles are cheap, carry no open
// resources, and are constructed per operation by the factory.
//
// Error contract: every failure surfaces as (or wraps into) *Error; size
// violations surface as *FileSizeError / *UnexpectedFileSizeError. Raw driver
// errors never escape.
type Backend interface {
	// Open returns a reader over the full blob. The caller closes it. The
	// returned reader may additionally implement io.Seeker; range serving
	// uses the seek when available and discards otherwise.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Initialize creates the blob truncated to the given size. Calling it
	// twice with the same size is idempotent.
	Initialize(ctx context.Context, size int64) (Info, error)

	// Save streams the reader into the blob, computing the checksum on the
	// fly. On any error the partial blob is removed and the containing
	// directory cleaned. A successful save returns the blob read-only.
	Save(ctx context.Context, r io.Reader, opts SaveOptions) (Info, error)

	// Update writes the stream at the given byte offset, for multipart
	// parts. Returns the bytes written and the checksum of exactly those
	// bytes. Backends that cannot write at offsets persist the part
	// separately and report ErrNotSupported only if they support neither.
	Update(ctx context.Context, r io.Reader, seek int64, opts UpdateOptions) (int64, string, error)

	// OpenPart returns a reader over one previously updated part. Only
	// meaningful on backends that persist parts separately (CanUpdate
	// false); in-place backends return ErrNotSupported.
	OpenPart(ctx context.Context, partNumber int) (io.ReadCloser, error)

	// DeleteParts removes any separately persisted parts after a completed
	// merge. In-place backends have nothing to remove and return nil.
	DeleteParts(ctx context.Context) error

	// Delete removes the blob and, where the layout allows it, its
	// containing directory when empty.
	Delete(ctx context.Context) error

	// Checksum re-reads the blob and returns its canonical checksum.
	Checksum(ctx context.Context, chunkSize int, progress ProgressFunc) (string, error)

	// CanUpdate reports whether Update writes into the initialized blob at
	// the requested offset. When false, multipart completion must
	// stream-concatenate parts through Save.
	CanUpdate() bool
}
