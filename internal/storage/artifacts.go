package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNoArtifacts = errors.New("no model artifacts found")

func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// downloadObjects copies already listed objects under prefix into dest.
func downloadObjects(ctx context.Context, p Provider, bucket, prefix string, objects []Object, dest string) error {
	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dest, err)
	}

	for _, obj := range objects {
		// Directory markers created by some S3 clients.
		if strings.HasSuffix(obj.Name, "/") {
			continue
		}

		localPath := filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(obj.Name, prefix)))
		if err := p.DownloadObject(ctx, bucket, obj.Name, localPath); err != nil {
			return fmt.Errorf("error downloading directory %s/%s to %s: %w", bucket, prefix, dest, err)
		}
	}

	return nil
}

func hasEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// FetchModelArtifacts downloads every object under prefix into dir. A dir that
// already has contents is used as is. Objects are staged in a sibling
// directory and renamed into place so that an interrupted download never
// leaves a partial model in dir.
func FetchModelArtifacts(ctx context.Context, provider Provider, bucket, prefix, dir string) error {
	present, err := hasEntries(dir)
	if err != nil {
		return fmt.Errorf("error checking model dir %s: %w", dir, err)
	}
	if present {
		slog.Info("model artifacts already present", "dir", dir)
		return nil
	}

	prefix = normalizePrefix(prefix)

	objects, err := provider.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("error listing model artifacts: %w", err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("%w under %s/%s", ErrNoArtifacts, bucket, prefix)
	}

	staging := filepath.Join(filepath.Dir(dir), ".staging-"+uuid.New().String())
	if err := downloadObjects(ctx, provider, bucket, prefix, objects, staging); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("error fetching model artifacts: %w", err)
	}

	// An empty dir left behind by a previous run would block the rename.
	if err := os.RemoveAll(dir); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("error clearing model dir %s: %w", dir, err)
	}

	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("error moving model artifacts into %s: %w", dir, err)
	}

	slog.Info("fetched model artifacts", "bucket", bucket, "prefix", prefix, "dir", dir, "n_objects", len(objects))

	return nil
}
