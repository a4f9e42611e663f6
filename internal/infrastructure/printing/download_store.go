package printing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDownloadTTL is how long an unclaimed download stays on disk
const DefaultDownloadTTL = 15 * time.Minute

// DownloadStoreConfig contains configuration for the download store
type DownloadStoreConfig struct {
	// BasePath is the root directory for pending downloads
	// Default: /data/downloads
	BasePath string
	// BaseURL is the URL prefix the download handler is mounted on
	// Example: https://print.example.com/api/v1/print/downloads
	BaseURL string
	// TTL is how long a download can be claimed
	TTL    time.Duration
	Logger *zap.Logger
}

// DownloadFile is a claimed download
type DownloadFile struct {
	Token    string
	Filename string
	Content  []byte
	ModTime  time.Time
}

// FileDownloadStore keeps delivered artifacts on the local file system until
// they are claimed once through their token.
// Path structure: {base}/{token}/{filename}
type FileDownloadStore struct {
	basePath string
	baseURL  string
	ttl      time.Duration
	logger   *zap.Logger
}

// NewFileDownloadStore creates a new file system download store
func NewFileDownloadStore(config *DownloadStoreConfig) (*FileDownloadStore, error) {
	if config == nil {
		config = &DownloadStoreConfig{}
	}
	basePath := config.BasePath
	if basePath == "" {
		basePath = "/data/downloads"
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "/api/v1/print/downloads"
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultDownloadTTL
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", basePath, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileDownloadStore{
		basePath: basePath,
		baseURL:  baseURL,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// TTL returns how long a stored download can be claimed
func (s *FileDownloadStore) TTL() time.Duration {
	return s.ttl
}

// Download stores the artifact and returns the link the client follows to save it
func (s *FileDownloadStore) Download(ctx context.Context, artifact *printing.Artifact) (Link, error) {
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}
	if artifact.Size() == 0 {
		return Link{}, fmt.Errorf("artifact is empty")
	}

	token := uuid.New().String()
	dir := filepath.Join(s.basePath, token)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Link{}, fmt.Errorf("failed to create download directory: %w", err)
	}

	filename := printing.SanitizeFilename(artifact.Filename)
	if err := os.WriteFile(filepath.Join(dir, filename), artifact.Content, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return Link{}, fmt.Errorf("failed to write download: %w", err)
	}

	link := Link{URL: s.URL(token), ExpiresAt: time.Now().Add(s.ttl)}
	s.logger.Info("Download stored",
		zap.String("token", token),
		zap.String("filename", filename),
		zap.Int("size", artifact.Size()))
	return link, nil
}

// Claim returns the download for token and removes it from the store.
// Unknown, expired and already claimed tokens return shared.ErrNotFound.
func (s *FileDownloadStore) Claim(ctx context.Context, token string) (*DownloadFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.tokenDir(token)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read download: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat download: %w", err)
		}
		if time.Since(info.ModTime()) > s.ttl {
			_ = os.RemoveAll(dir)
			return nil, shared.ErrNotFound
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read download: %w", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("Failed to remove claimed download", zap.String("token", token), zap.Error(err))
		}
		return &DownloadFile{
			Token:    token,
			Filename: entry.Name(),
			Content:  content,
			ModTime:  info.ModTime(),
		}, nil
	}
	return nil, shared.ErrNotFound
}

// CleanupOlderThan removes downloads older than age and returns how many were removed
func (s *FileDownloadStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to list downloads: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, nil
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.basePath, entry.Name())); err == nil {
				deleted++
				s.logger.Debug("Deleted expired download", zap.String("token", entry.Name()))
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("Download cleanup completed",
			zap.Int("deleted", deleted),
			zap.Duration("age", age))
	}
	return deleted, nil
}

// URL returns the accessible URL for a download token
func (s *FileDownloadStore) URL(token string) string {
	return s.baseURL + "/" + token
}

// tokenDir resolves the directory of a token, rejecting anything that is not a
// plain UUID so a token can never point outside the base path.
func (s *FileDownloadStore) tokenDir(token string) (string, error) {
	id, err := uuid.Parse(token)
	if err != nil || id.String() != strings.ToLower(token) {
		s.logger.Warn("Blocked invalid download token", zap.String("token", token))
		return "", shared.ErrNotFound
	}
	return filepath.Join(s.basePath, id.String()), nil
}

var _ DownloadTarget = (*FileDownloadStore)(nil)
