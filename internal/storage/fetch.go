package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// downloadClient bounds http(s) input downloads.
var downloadClient = &http.Client{Timeout: 5 * time.Minute}

// ObjectGetter downloads an object from a bucket.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetch resolves ref to a local file inside dir and returns its path.
// Supported refs:
// - file://path or a plain filesystem path (returned as is)
// - http(s):// URLs
// - s3://bucket/key (needs objects)
// Downloaded files keep the base name of the ref so the extension check
// still applies.
func Fetch(ctx context.Context, ref, dir string, objects ObjectGetter) (string, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		if objects == nil {
			return "", fmt.Errorf("s3 ref %s needs a configured S3 client", ref)
		}
		bucket, key, err := ParseS3URL(ref)
		if err != nil {
			return "", err
		}
		data, err := objects.Get(ctx, bucket, key)
		if err != nil {
			return "", err
		}
		return writeLocal(dir, key, data)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return downloadHTTP(ctx, ref, dir)
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), nil
	default:
		return ref, nil
	}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(ref string) (bucket, key string, err error) {
	p := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return p[:slash], p[slash+1:], nil
}

func downloadHTTP(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: http %d", url, resp.StatusCode)
	}
	name := url
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	sub, err := fetchDir(dir)
	if err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(sub, localName(name)))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	log.Info().Str("url", url).Str("file", f.Name()).Msg("downloaded input document")
	return f.Name(), nil
}

func writeLocal(dir, key string, data []byte) (string, error) {
	sub, err := fetchDir(dir)
	if err != nil {
		return "", err
	}
	p := filepath.Join(sub, localName(key))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// fetchDir gives each download its own directory under dir, so refs that
// share a base name never overwrite each other.
func fetchDir(dir string) (string, error) {
	sub, err := os.MkdirTemp(dir, "fetch_")
	if err != nil {
		return "", fmt.Errorf("create fetch dir: %w", err)
	}
	return sub, nil
}

func localName(ref string) string {
	name := filepath.Base(strings.TrimRight(ref, "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}
