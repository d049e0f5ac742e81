package staging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stagedSuffix = ".mp4"

// Stager downloads videos into uniquely named files under one directory,
// dispatching on the URL scheme.
type Stager struct {
	dir      string
	fetchers map[string]port.VideoFetcher
	logger   *zap.Logger
}

func NewStager(dir string, logger *zap.Logger) (*Stager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{
		dir:      abs,
		fetchers: make(map[string]port.VideoFetcher),
		logger:   logger,
	}, nil
}

// Register routes URLs with the given scheme to f.
func (s *Stager) Register(scheme string, f port.VideoFetcher) {
	s.fetchers[strings.ToLower(scheme)] = f
}

func (s *Stager) Dir() string { return s.dir }

// Stage fetches rawURL into a new file. Errors wrap entity.ErrDownload and
// leave nothing behind on disk.
func (s *Stager) Stage(ctx context.Context, rawURL string) (port.StagedVideo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", entity.ErrDownload, err)
	}
	fetcher, ok := s.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", entity.ErrDownload, u.Scheme)
	}

	path := filepath.Join(s.dir, uuid.NewString()+stagedSuffix)
	staged := false
	// runs on errors and on a fetcher panic alike
	defer func() {
		if staged {
			return
		}
		if rmErr := removeIfExists(path); rmErr != nil {
			s.logger.Warn("failed to remove partial download", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	if err := fetcher.Fetch(ctx, rawURL, path); err != nil {
		if errors.Is(err, entity.ErrDownload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrDownload, err)
	}

	staged = true
	s.logger.Debug("video staged", zap.String("path", path))
	return &stagedFile{path: path}, nil
}

// Sweep removes staged files left behind by a previous process.
func (s *Stager) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+stagedSuffix))
	if err != nil {
		return 0, fmt.Errorf("glob staged files: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if _, err := uuid.Parse(strings.TrimSuffix(filepath.Base(m), stagedSuffix)); err != nil {
			continue
		}
		if err := removeIfExists(m); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

type stagedFile struct {
	path string
	once sync.Once
	err  error
}

func (f *stagedFile) Path() string { return f.path }

func (f *stagedFile) Release() error {
	f.once.Do(func() {
		f.err = removeIfExists(f.path)
	})
	return f.err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
