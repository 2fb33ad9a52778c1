package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// Opener constructs a backend handle for a blob at uri with the given known
// size (negative when unknown).
type Opener func(uri string, size int64) Backend

// Registry maps configured backend names to constructors. Backends are
// registered once at startup; resolution afterwards is a table lookup.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry returns an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register adds a named backend constructor. Re-registering a name replaces
// the previous constructor.
func (r *Registry) Register(name string, opener Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[name] = opener
}

// Get returns the constructor for a backend name.
func (r *Registry) Get(name string) (Opener, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opener, ok := r.openers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, name)
	}
	return opener, nil
}

// Names returns the registered backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.openers))
	for name := range r.openers {
		names = append(names, name)
	}
	return names
}

// Factory resolves file instances to backend handles and initializes storage
// for new files.
type Factory struct {
	registry       *Registry
	pathDimensions int
	splitLength    int
}

// NewFactory creates a factory over the given registry using the configured
// URI path layout.
func NewFactory(registry *Registry, pathDimensions, splitLength int) *Factory {
	return &Factory{
		registry:       registry,
		pathDimensions: pathDimensions,
		splitLength:    splitLength,
	}
}

// ForFile returns a backend handle for an existing file instance, built from
// its recorded backend name, URI, and size.
func (f *Factory) ForFile(file *models.FileInstance) (Backend, error) {
	if file.Backend == "" {
		return nil, ErrNoBackend
	}
	opener, err := f.registry.Get(file.Backend)
	if err != nil {
		return nil, err
	}
	uri := ""
	if file.URI != nil {
		uri = *file.URI
	}
	return opener(uri, file.Size), nil
}

// Initialize places a new file instance in the given location (a nil location
// fails with ErrNoDefaultLocation), derives the suggested URI, records backend
// and URI on the instance, and initializes the blob truncated to size.
func (f *Factory) Initialize(ctx context.Context, file *models.FileInstance, size int64, location *models.Location) (Backend, error) {
	if location == nil {
		return nil, models.ErrNoDefaultLocation
	}
	opener, err := f.registry.Get(location.Backend)
	if err != nil {
		return nil, err
	}

	uri := MakePath(location.URI, strings.ReplaceAll(file.ID, "-", ""), "data", f.pathDimensions, f.splitLength)
	backend := opener(uri, size)

	info, err := backend.Initialize(ctx, size)
	if err != nil {
		return nil, err
	}

	file.Backend = location.Backend
	file.URI = &info.URI
	file.Size = info.Size
	file.Readable = info.Readable
	file.Writable = info.Writable

	return backend, nil
}
