package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"adscope/internal/domain/creative"
)

// ContentStore keeps creative bytes on the local filesystem, addressed by
// fingerprint: <root>/<media-type>/<fingerprint>.<ext>. Writes go through a
// temp file plus rename, so the addressed path either holds the complete
// bytes or does not exist.
type ContentStore struct {
	root string
	log  zerolog.Logger
}

var _ creative.ContentStore = (*ContentStore)(nil)

func NewContentStore(root string, log zerolog.Logger) (*ContentStore, error) {
	logger := log.With().Str("component", "content-store").Logger()

	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("media cache root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media cache root: %w", err)
	}

	logger.Info().Str("path", root).Msg("content store initialized")
	return &ContentStore{root: root, log: logger}, nil
}

func (s *ContentStore) Write(ctx context.Context, fingerprint string, mediaType creative.MediaType, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, string(mediaType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	finalPath := filepath.Join(dir, fingerprint+normalizeExt(ext))

	tmp, err := os.CreateTemp(dir, "."+fingerprint+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write media bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to promote media file: %w", err)
	}

	s.log.Debug().
		Str("fingerprint", fingerprint).
		Str("path", finalPath).
		Int("bytes", len(data)).
		Msg("media written to content store")

	return finalPath, nil
}

func (s *ContentStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove media file: %w", err)
	}
	return nil
}

func (s *ContentStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Health checks that the cache root is writable.
func (s *ContentStore) Health(ctx context.Context) error {
	testFile := filepath.Join(s.root, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("media cache root not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(strings.ToLower(ext))
	if ext == "" {
		return ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
