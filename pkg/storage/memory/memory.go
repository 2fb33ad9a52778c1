// Package memory provides an in-memory blob backend.
//
// Blobs live in a shared Store keyed by URI. The backend supports offset
// writes, which makes it a drop-in stand-in for the filesystem backend in
// unit tests.
package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/shelfd/shelfd/pkg/storage"
)

// ErrBlobNotFound is returned when reading a URI that was never saved.
var ErrBlobNotFound = errors.New("blob not found")

// Store holds all blobs for a set of memory backends.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStore returns an empty in-memory blob store.
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Opener returns a storage.Opener creating handles over this store.
func (s *Store) Opener(opts ...Option) storage.Opener {
	return func(uri string, size int64) storage.Backend {
		return New(s, uri, size, opts...)
	}
}

// Get returns a copy of the blob bytes, for test assertions.
func (s *Store) Get(uri string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[uri]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Put stores blob bytes directly, for test setup (e.g. corrupting a blob).
func (s *Store) Put(uri string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[uri] = append([]byte(nil), data...)
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Backend is a handle to a single in-memory blob.
type Backend struct {
	store *Store
	uri   string
	size  int64
	algo  string
}

// Option configures a Backend handle.
type Option func(*Backend)

// WithAlgo overrides the checksum algorithm (default md5).
func WithAlgo(algo string) Option {
	return func(b *Backend) { b.algo = algo }
}

// New returns a handle to the blob at uri inside store.
func New(store *Store, uri string, size int64, opts ...Option) *Backend {
	b := &Backend{store: store, uri: uri, size: size, algo: storage.DefaultAlgo}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Open(ctx context.Context) (io.ReadCloser, error) {
	data, ok := b.store.Get(b.uri)
	if !ok {
		return nil, &storage.Error{Op: "open", Err: ErrBlobNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) Initialize(ctx context.Context, size int64) (storage.Info, error) {
	b.store.mu.Lock()
	b.store.blobs[b.uri] = make([]byte, size)
	b.store.mu.Unlock()

	b.size = size
	return storage.Info{URI: b.uri, Size: size, Readable: false, Writable: true}, nil
}

func (b *Backend) Save(ctx context.Context, r io.Reader, opts storage.SaveOptions) (storage.Info, error) {
	cr, err := storage.NewChecksumReader(r, b.algo, storage.ChecksumOptions{
		SizeLimit: opts.SizeLimit,
		Size:      opts.Size,
		Progress:  opts.Progress,
	})
	if err != nil {
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, cr); err != nil {
		b.cleanup()
		return storage.Info{}, err
	}
	if err := cr.Verify(); err != nil {
		b.cleanup()
		return storage.Info{}, err
	}

	b.store.Put(b.uri, buf.Bytes())
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

	data, err := io.ReadAll(cr)
	if err != nil {
		return cr.BytesRead(), "", err
	}
	if err := cr.Verify(); err != nil {
		return cr.BytesRead(), "", err
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	blob, ok := b.store.blobs[b.uri]
	if !ok {
		return 0, "", &storage.Error{Op: "update", Err: ErrBlobNotFound}
	}
	if need := seek + int64(len(data)); int64(len(blob)) < need {
		grown := make([]byte, need)
		copy(grown, blob)
		blob = grown
	}
	copy(blob[seek:], data)
	b.store.blobs[b.uri] = blob

	return int64(len(data)), cr.Checksum(), nil
}

func (b *Backend) OpenPart(ctx context.Context, partNumber int) (io.ReadCloser, error) {
	return nil, storage.ErrNotSupported
}

func (b *Backend) DeleteParts(ctx context.Context) error {
	return nil
}

func (b *Backend) Delete(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	delete(b.store.blobs, b.uri)
	return nil
}

func (b *Backend) Checksum(ctx context.Context, chunkSize int, progress storage.ProgressFunc) (string, error) {
	data, ok := b.store.Get(b.uri)
	if !ok {
		return "", &storage.Error{Op: "checksum", Err: ErrBlobNotFound}
	}
	sum, err := storage.ComputeChecksum(bytes.NewReader(data), b.algo, chunkSize, progress)
	if err != nil {
		return "", &storage.Error{Op: "checksum", Err: err}
	}
	return sum, nil
}

func (b *Backend) CanUpdate() bool {
	return true
}

func (b *Backend) cleanup() {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	delete(b.store.blobs, b.uri)
}
