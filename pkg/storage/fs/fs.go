// Package fs provides a filesystem-backed blob backend.
//
// Blobs are stored one per directory following the factory's split layout
// (<base>/<xx>/<yy>/<rest>/data); deleting a blob also removes its directory
// when empty. Offset writes are supported, so multipart uploads finalize in
// place.
package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/shelfd/shelfd/pkg/storage"
)

// Backend is a handle to a single blob on the local filesystem. The blob path
// is the URI verbatim.
type Backend struct {
	uri      string
	size     int64
	algo     string
	cleanDir bool
}

// Option configures a Backend handle.
type Option func(*Backend)

// WithAlgo overrides the checksum algorithm (default md5).
func WithAlgo(algo string) Option {
	return func(b *Backend) { b.algo = algo }
}

// WithoutDirCleanup keeps the containing directory on delete.
func WithoutDirCleanup() Option {
	return func(b *Backend) { b.cleanDir = false }
}

// New returns a handle to the blob at uri with the given known size
// (negative when unknown).
func New(uri string, size int64, opts ...Option) *Backend {
	b := &Backend{uri: uri, size: size, algo: storage.DefaultAlgo, cleanDir: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Opener returns a storage.Opener registering this backend type.
func Opener(opts ...Option) storage.Opener {
	return func(uri string, size int64) storage.Backend {
		return New(uri, size, opts...)
	}
}

func (b *Backend) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(b.uri)
	if err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}
	return f, nil
}

func (b *Backend) Initialize(ctx context.Context, size int64) (storage.Info, error) {
	if err := os.MkdirAll(filepath.Dir(b.uri), 0755); err != nil {
		return storage.Info{}, &storage.Error{Op: "initialize", Err: err}
	}

	f, err := os.OpenFile(b.uri, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return storage.Info{}, &storage.Error{Op: "initialize", Err: err}
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		b.cleanup()
		return storage.Info{}, &storage.Error{Op: "initialize", Err: err}
	}
	if err := f.Close(); err != nil {
		return storage.Info{}, &storage.Error{Op: "initialize", Err: err}
	}

	b.size = size
	return storage.Info{URI: b.uri, Size: size, Readable: false, Writable: true}, nil
}

func (b *Backend) Save(ctx context.Context, r io.Reader, opts storage.SaveOptions) (storage.Info, error) {
	if err := os.MkdirAll(filepath.Dir(b.uri), 0755); err != nil {
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	cr, err := storage.NewChecksumReader(r, b.algo, storage.ChecksumOptions{
		SizeLimit: opts.SizeLimit,
		Size:      opts.Size,
		Progress:  opts.Progress,
	})
	if err != nil {
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	f, err := os.OpenFile(b.uri, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	if _, err := io.CopyBuffer(f, cr, buf); err != nil {
		f.Close()
		b.cleanup()
		return storage.Info{}, passOrWrap("save", err)
	}
	if err := cr.Verify(); err != nil {
		f.Close()
		b.cleanup()
		return storage.Info{}, err
	}
	if err := f.Close(); err != nil {
		b.cleanup()
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	b.size = cr.BytesRead()
	return storage.Info{
		URI:      b.uri,
		Size:     cr.BytesRead(),
		Checksum: cr.Checksum(),
		Readable: true,
		Writable: false,
	}, nil
}

func (b *Backend) Update(ctx context.Context, r io.Reader, seek int64, opts storage.UpdateOptions) (int64, string, error) {
	cr, err := storage.NewChecksumReader(r, b.algo, storage.ChecksumOptions{
		Size:   opts.Size,
		Offset: seek,
	})
	if err != nil {
		return 0, "", &storage.Error{Op: "update", Err: err}
	}

	f, err := os.OpenFile(b.uri, os.O_RDWR, 0644)
	if err != nil {
		return 0, "", &storage.Error{Op: "update", Err: err}
	}
	defer f.Close()

	if _, err := f.Seek(seek, io.SeekStart); err != nil {
		return 0, "", &storage.Error{Op: "update", Err: err}
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = storage.DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	if _, err := io.CopyBuffer(f, cr, buf); err != nil {
		return cr.BytesRead(), "", passOrWrap("update", err)
	}
	if err := cr.Verify(); err != nil {
		return cr.BytesRead(), "", err
	}

	return cr.BytesRead(), cr.Checksum(), nil
}

func (b *Backend) OpenPart(ctx context.Context, partNumber int) (io.ReadCloser, error) {
	return nil, storage.ErrNotSupported
}

func (b *Backend) DeleteParts(ctx context.Context) error {
	return nil
}

func (b *Backend) Delete(ctx context.Context) error {
	if err := os.Remove(b.uri); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &storage.Error{Op: "delete", Err: err}
	}
	if b.cleanDir {
		// Best effort: the directory holds only this blob in the default
		// layout. A non-empty directory is left alone.
		_ = os.Remove(filepath.Dir(b.uri))
	}
	return nil
}

func (b *Backend) Checksum(ctx context.Context, chunkSize int, progress storage.ProgressFunc) (string, error) {
	f, err := os.Open(b.uri)
	if err != nil {
		return "", &storage.Error{Op: "checksum", Err: err}
	}
	defer f.Close()

	sum, err := storage.ComputeChecksum(f, b.algo, chunkSize, progress)
	if err != nil {
		return "", &storage.Error{Op: "checksum", Err: err}
	}
	return sum, nil
}

func (b *Backend) CanUpdate() bool {
	return true
}

// cleanup removes the partial blob and its directory after a failed write.
func (b *Backend) cleanup() {
	_ = os.Remove(b.uri)
	if b.cleanDir {
		_ = os.Remove(filepath.Dir(b.uri))
	}
}

// passOrWrap lets size-limit errors surface unchanged and wraps everything
// else into a storage error.
func passOrWrap(op string, err error) error {
	var fse *storage.FileSizeError
	var ufe *storage.UnexpectedFileSizeError
	if errors.As(err, &fse) || errors.As(err, &ufe) {
		return err
	}
	return &storage.Error{Op: op, Err: err}
}
