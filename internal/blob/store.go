// Package blob stores attachment content by its sha256 digest and tracks
// how many alerts, responses and records reference each digest. Content is
// written once and deleted when its last reference is released.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/blob/core"
	"workflow-portal-go/internal/metrics"
	"workflow-portal-go/internal/models"
)

// URLPrefix is prepended to the digest to form FileAttachment.URL.
const URLPrefix = "/api/attachments/"

// DefaultMaxSize caps a single upload.
const DefaultMaxSize int64 = 25 << 20

// UploadMeta is what the client tells us about an uploaded file.
type UploadMeta struct {
	Name         string
	ContentType  string
	LastModified int64 // unix millis, as reported by the client
}

type Store struct {
	backend core.Backend
	maxSize int64
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	refs    map[string]int
	pending map[string]int // uploads not yet claimed by an alert, response or record
}

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithMaxSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

func New(backend core.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		maxSize: DefaultMaxSize,
		log:     zap.NewNop(),
		refs:    make(map[string]int),
		pending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Driver() core.Driver { return s.backend.Driver() }

// ValidDigest reports whether d looks like a hex sha256 digest.
func ValidDigest(d string) bool {
	if len(d) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(d)
	return err == nil
}

// Acquire stores the content of r (unless the same bytes are already
// stored) and takes one pending reference on it. The reference is handed
// over by Claim or dropped by Discard.
func (s *Store) Acquire(ctx context.Context, r io.Reader, meta UploadMeta) (models.FileAttachment, error) {
	if meta.Name == "" {
		return models.FileAttachment{}, apperr.NewValidationError("file name is required")
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return models.FileAttachment{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return models.FileAttachment{}, apperr.NewValidationError("file too large",
			fmt.Sprintf("%s exceeds %d bytes", meta.Name, s.maxSize))
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[digest] == 0 {
		if err := s.writeLocked(ctx, digest, data, meta.ContentType); err != nil {
			return models.FileAttachment{}, err
		}
	}
	s.refs[digest]++
	s.pending[digest]++
	s.log.Debug("Attachment acquired",
		zap.String("digest", digest),
		zap.String("name", meta.Name),
		zap.Int("refs", s.refs[digest]))

	return models.FileAttachment{
		ID:           uuid.NewString(),
		Name:         meta.Name,
		Size:         int64(len(data)),
		Type:         meta.ContentType,
		URL:          URLPrefix + digest,
		LastModified: meta.LastModified,
		Digest:       digest,
	}, nil
}

func (s *Store) writeLocked(ctx context.Context, digest string, data []byte, contentType string) error {
	_, err := s.backend.Put(ctx, digest, bytes.NewReader(data), core.PutOptions{ContentType: contentType})
	switch {
	case err == nil:
		s.metrics.AttachmentStored(int64(len(data)))
		return nil
	case errors.Is(err, core.ErrExists):
		return nil
	default:
		s.log.Error("Failed to store attachment", zap.String("digest", digest), zap.Error(err))
		return fmt.Errorf("store attachment %s: %w", digest, err)
	}
}

// Claim takes one reference per digest for a new owner, reusing a
// pending upload reference when there is one. Unknown digests fail the
// whole call with a validation error.
func (s *Store) Claim(digests ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range digests {
		if s.refs[d] == 0 {
			return apperr.NewValidationError("unknown attachment", d)
		}
	}
	for _, d := range digests {
		if s.pending[d] > 0 {
			s.pending[d]--
			if s.pending[d] == 0 {
				delete(s.pending, d)
			}
			continue
		}
		s.refs[d]++
	}
	return nil
}

// Discard drops an upload that was never claimed.
func (s *Store) Discard(ctx context.Context, digest string) error {
	s.mu.Lock()
	if s.pending[digest] == 0 {
		s.mu.Unlock()
		return apperr.NewNotFoundError("no pending upload", digest)
	}
	s.pending[digest]--
	if s.pending[digest] == 0 {
		delete(s.pending, digest)
	}
	s.mu.Unlock()
	return s.Release(ctx, digest)
}

// Known reports whether digest currently has at least one reference.
func (s *Store) Known(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[digest] > 0
}

// Refs returns the reference count for digest.
func (s *Store) Refs(digest string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs[digest]
}

// Release drops one reference per digest and deletes content that is no
// longer referenced. Unknown digests are ignored.
func (s *Store) Release(ctx context.Context, digests ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, d := range digests {
		n, ok := s.refs[d]
		if !ok {
			continue
		}
		if n > 1 {
			s.refs[d] = n - 1
			continue
		}
		delete(s.refs, d)
		if _, err := s.backend.Delete(ctx, d); err != nil {
			s.log.Warn("Failed to delete attachment content", zap.String("digest", d), zap.Error(err))
			errs = append(errs, fmt.Errorf("delete attachment %s: %w", d, err))
			continue
		}
		s.log.Debug("Attachment content deleted", zap.String("digest", d))
	}
	return errors.Join(errs...)
}

// Restore replaces the reference table with counts and removes stored
// content that nothing references.
func (s *Store) Restore(ctx context.Context, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = make(map[string]int, len(counts))
	s.pending = make(map[string]int)
	for d, n := range counts {
		if n > 0 {
			s.refs[d] = n
		}
	}

	infos, err := s.backend.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	removed := 0
	for _, info := range infos {
		if !ValidDigest(info.Key) || s.refs[info.Key] > 0 {
			continue
		}
		if _, err := s.backend.Delete(ctx, info.Key); err != nil {
			return fmt.Errorf("delete orphan %s: %w", info.Key, err)
		}
		removed++
	}
	s.log.Info("Attachment references restored",
		zap.Int("referenced", len(s.refs)),
		zap.Int("orphans_removed", removed))
	return nil
}

// Open returns the content for a referenced digest.
func (s *Store) Open(ctx context.Context, digest string) (core.Info, io.ReadCloser, error) {
	if !ValidDigest(digest) || !s.Known(digest) {
		return core.Info{}, nil, apperr.NewNotFoundError("attachment not found", digest)
	}
	info, rc, err := s.backend.Get(ctx, digest)
	if errors.Is(err, core.ErrNotFound) {
		return core.Info{}, nil, apperr.NewNotFoundError("attachment content missing", digest)
	}
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("open attachment %s: %w", digest, err)
	}
	return info, rc, nil
}

// PresignURL returns a direct download URL when the backend supports it,
// or core.ErrUnsupported.
func (s *Store) PresignURL(ctx context.Context, digest string, opts core.SignedURLOptions) (string, error) {
	if !ValidDigest(digest) || !s.Known(digest) {
		return "", apperr.NewNotFoundError("attachment not found", digest)
	}
	return s.backend.PresignURL(ctx, digest, opts)
}
