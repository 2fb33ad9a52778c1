// Package service implements the object-store engine: bucket lifecycle,
// the upload/download orchestration, the multipart state machine, and the
// maintenance operations the background workers run.
//
// The service owns no global state. It is constructed from a catalog store,
// a storage factory, and an engine configuration; asynchronous work is handed
// to a Scheduler the caller injects.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/metrics"
	"github.com/shelfd/shelfd/pkg/storage"
)

// ErrChecksumMismatch reports that a client-declared Content-MD5 did not
// match the digest computed on ingest.
var ErrChecksumMismatch = errors.New("declared checksum does not match content")

// Config carries the engine knobs the service enforces.
type Config struct {
	// ClassList maps storage class characters to labels.
	ClassList map[string]string

	// DefaultClass is applied to buckets created without one.
	DefaultClass string

	// DefaultQuotaSize is applied to new buckets (0 = unlimited).
	DefaultQuotaSize int64

	// DefaultMaxFileSize is applied to new buckets (0 = unlimited).
	DefaultMaxFileSize int64

	// MinFileSize rejects uploads smaller than this.
	MinFileSize int64

	// MaxFileSize is the global per-file cap (0 = unlimited).
	MaxFileSize int64

	// Multipart bounds.
	MultipartChunkSizeMin int64
	MultipartChunkSizeMax int64
	MultipartMaxParts     int
	MultipartExpires      time.Duration

	// ObjectKeyMaxLen rejects longer object keys.
	ObjectKeyMaxLen int
}

// applyDefaults fills in zero values with the documented defaults.
func (c *Config) applyDefaults() {
	if c.ClassList == nil {
		c.ClassList = map[string]string{"S": "Standard", "A": "Archive"}
	}
	if c.DefaultClass == "" {
		c.DefaultClass = "S"
	}
	if c.MultipartChunkSizeMin == 0 {
		c.MultipartChunkSizeMin = 5 * 1024 * 1024
	}
	if c.MultipartChunkSizeMax == 0 {
		c.MultipartChunkSizeMax = 5 * 1024 * 1024 * 1024
	}
	if c.MultipartMaxParts == 0 {
		c.MultipartMaxParts = 10000
	}
	if c.MultipartExpires == 0 {
		c.MultipartExpires = 4 * 24 * time.Hour
	}
	if c.ObjectKeyMaxLen == 0 {
		c.ObjectKeyMaxLen = 255
	}
}

// Scheduler hands a named unit of background work to a worker pool. Enqueue
// reports false when the work could not be accepted; callers fall back to
// running it inline or leave it for the periodic sweeps.
type Scheduler interface {
	Enqueue(name string, fn func(ctx context.Context) error) bool
}

// Service is the storage engine control plane.
type Service struct {
	store     catalog.Store
	factory   *storage.Factory
	cfg       Config
	metrics   *metrics.EngineMetrics
	scheduler Scheduler
}

// New constructs the engine service.
func New(store catalog.Store, factory *storage.Factory, cfg Config, m *metrics.EngineMetrics) *Service {
	cfg.applyDefaults()
	return &Service{
		store:   store,
		factory: factory,
		cfg:     cfg,
		metrics: m,
	}
}

// SetScheduler injects the background worker pool. Without one, asynchronous
// steps (multipart merge, blob cleanup) run inline.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// Store exposes the catalog for read paths that need direct queries.
func (s *Service) Store() catalog.Store {
	return s.store
}

// Config returns the engine configuration in effect.
func (s *Service) Config() Config {
	return s.cfg
}

// schedule enqueues fn or runs it inline when no scheduler is attached or
// the queue is full.
func (s *Service) schedule(name string, fn func(ctx context.Context) error) {
	if s.scheduler != nil && s.scheduler.Enqueue(name, fn) {
		return
	}
	// Inline fallback keeps the operation's semantics; it only loses the
	// asynchrony.
	_ = fn(context.Background())
}
